// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/streamdb/mongowire/bsoncore"

// Update is an OP_UPDATE message: `{ zero32; cstring collection; i32 flags;
// BSON selector; BSON update }`.
type Update struct {
	FullCollection string
	Flags          UpdateFlags
	Selector       bsoncore.Document
	UpdateDoc      bsoncore.Document
}

// OpCode implements Message.
func (Update) OpCode() OpCode { return OpUpdate }

// LoadBody implements Message.
func (u *Update) LoadBody(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	coll, off, ok := readCString(body, 4)
	if !ok {
		return false
	}
	u.FullCollection = coll

	if off+4 > len(body) {
		return false
	}
	u.Flags = UpdateFlags(readI32(body, off))
	off += 4

	sel, off, ok := readDocument(body, off)
	if !ok {
		return false
	}
	u.Selector = sel

	upd, off, ok := readDocument(body, off)
	if !ok {
		return false
	}
	u.UpdateDoc = upd

	return off == len(body)
}

// Save implements Message.
func (u Update) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, 0)
	body = appendCString(body, u.FullCollection)
	body = writeI32Append(body, int32(u.Flags))
	body = append(body, u.Selector.Bytes()...)
	body = append(body, u.UpdateDoc.Bytes()...)
	buf = append(buf, body...)
	return finalize(buf, OpUpdate, requestID, responseTo)
}
