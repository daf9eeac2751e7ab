// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "github.com/streamdb/mongowire/bsoncore"

// InsertFlags is the OP_INSERT flags bitfield.
type InsertFlags int32

// ContinueOnError, when set, tells the server to keep inserting subsequent
// documents in the batch after one fails, rather than aborting the batch.
const InsertContinueOnError InsertFlags = 1 << 0

// Has reports whether bit is set in f.
func (f InsertFlags) Has(bit InsertFlags) bool { return f&bit != 0 }

// Insert is an OP_INSERT message: `{ i32 flags; cstring collection; BSON+
// documents }`. Documents repeat until the body ends.
type Insert struct {
	Flags          InsertFlags
	FullCollection string
	Documents      []bsoncore.Document
}

// OpCode implements Message.
func (Insert) OpCode() OpCode { return OpInsert }

// LoadBody implements Message.
func (m *Insert) LoadBody(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	m.Flags = InsertFlags(readI32(body, 0))

	coll, off, ok := readCString(body, 4)
	if !ok {
		return false
	}
	m.FullCollection = coll

	var docs []bsoncore.Document
	for off < len(body) {
		doc, newOff, ok := readDocument(body, off)
		if !ok {
			return false
		}
		docs = append(docs, doc)
		off = newOff
	}
	if len(docs) == 0 {
		return false
	}
	m.Documents = docs
	return true
}

// Save implements Message.
func (m Insert) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, int32(m.Flags))
	body = appendCString(body, m.FullCollection)
	for _, d := range m.Documents {
		body = append(body, d.Bytes()...)
	}
	buf = append(buf, body...)
	return finalize(buf, OpInsert, requestID, responseTo)
}
