// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/streamdb/mongowire/bsoncore"

// Reply is an OP_REPLY message: `{ i32 flags; i64 cursor_id; i32
// starting_from; i32 number_returned; BSON[number_returned] }`.
type Reply struct {
	Flags          ReplyFlags
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	Documents      []bsoncore.Document
}

// OpCode implements Message.
func (Reply) OpCode() OpCode { return OpReply }

// LoadBody implements Message.
func (r *Reply) LoadBody(body []byte) bool {
	if len(body) < 20 {
		return false
	}
	r.Flags = ReplyFlags(readI32(body, 0))
	r.CursorID = readI64(body, 4)
	r.StartingFrom = readI32(body, 12)
	r.NumberReturned = readI32(body, 16)

	off := 20
	docs := make([]bsoncore.Document, 0, r.NumberReturned)
	for i := int32(0); i < r.NumberReturned; i++ {
		doc, newOff, ok := readDocument(body, off)
		if !ok {
			return false
		}
		docs = append(docs, doc)
		off = newOff
	}
	// The concatenated documents must exactly consume the remaining bytes.
	if off != len(body) {
		return false
	}
	r.Documents = docs
	return true
}

// Save implements Message.
func (r Reply) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, int32(r.Flags))
	body = writeI64Append(body, r.CursorID)
	body = writeI32Append(body, r.StartingFrom)
	body = writeI32Append(body, int32(len(r.Documents)))
	for _, d := range r.Documents {
		body = append(body, d.Bytes()...)
	}
	buf = append(buf, body...)
	return finalize(buf, OpReply, requestID, responseTo)
}
