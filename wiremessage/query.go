// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "strings"

// Query is an OP_QUERY message: `{ i32 flags; cstring collection; i32 skip;
// i32 limit; BSON query; [BSON fields] }`. Fields is present only when bytes
// remain after the query document.
type Query struct {
	Flags           QueryFlags
	FullCollection  string
	NumberToSkip    int32
	NumberToReturn  int32
	QueryDoc        []byte
	ReturnFieldsSel []byte // nil if absent
}

// OpCode implements Message.
func (Query) OpCode() OpCode { return OpQuery }

// IsCommand reports whether FullCollection names a `.$cmd` pseudo-collection,
// i.e. this query is a command invocation rather than a document query.
func (q Query) IsCommand() bool {
	return strings.HasSuffix(q.FullCollection, ".$cmd")
}

// LoadBody implements Message.
func (q *Query) LoadBody(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	q.Flags = QueryFlags(readI32(body, 0))

	coll, off, ok := readCString(body, 4)
	if !ok {
		return false
	}
	q.FullCollection = coll

	if off+8 > len(body) {
		return false
	}
	q.NumberToSkip = readI32(body, off)
	q.NumberToReturn = readI32(body, off+4)
	off += 8

	doc, off, ok := readDocument(body, off)
	if !ok {
		return false
	}
	q.QueryDoc = doc.Bytes()

	if off < len(body) {
		fields, off2, ok := readDocument(body, off)
		if !ok {
			return false
		}
		q.ReturnFieldsSel = fields.Bytes()
		off = off2
	} else {
		q.ReturnFieldsSel = nil
	}

	return off == len(body)
}

// Save implements Message.
func (q Query) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, int32(q.Flags))
	body = appendCString(body, q.FullCollection)
	body = writeI32Append(body, q.NumberToSkip)
	body = writeI32Append(body, q.NumberToReturn)
	body = append(body, q.QueryDoc...)
	if q.ReturnFieldsSel != nil {
		body = append(body, q.ReturnFieldsSel...)
	}
	buf = append(buf, body...)
	return finalize(buf, OpQuery, requestID, responseTo)
}

func writeI32Append(dst []byte, v int32) []byte {
	var b [4]byte
	writeI32(b[:], 0, v)
	return append(dst, b[:]...)
}

func writeI64Append(dst []byte, v int64) []byte {
	var b [8]byte
	writeI64(b[:], 0, v)
	return append(dst, b[:]...)
}
