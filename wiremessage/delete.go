// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/streamdb/mongowire/bsoncore"

// Delete is an OP_DELETE message: `{ zero32; cstring collection; i32 flags;
// BSON selector }`.
type Delete struct {
	FullCollection string
	Flags          DeleteFlags
	Selector       bsoncore.Document
}

// OpCode implements Message.
func (Delete) OpCode() OpCode { return OpDelete }

// LoadBody implements Message.
func (d *Delete) LoadBody(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	coll, off, ok := readCString(body, 4)
	if !ok {
		return false
	}
	d.FullCollection = coll

	if off+4 > len(body) {
		return false
	}
	d.Flags = DeleteFlags(readI32(body, off))
	off += 4

	sel, off, ok := readDocument(body, off)
	if !ok {
		return false
	}
	d.Selector = sel

	return off == len(body)
}

// Save implements Message.
func (d Delete) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, 0)
	body = appendCString(body, d.FullCollection)
	body = writeI32Append(body, int32(d.Flags))
	body = append(body, d.Selector.Bytes()...)
	buf = append(buf, body...)
	return finalize(buf, OpDelete, requestID, responseTo)
}
