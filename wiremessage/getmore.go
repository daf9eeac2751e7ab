// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

// GetMore is an OP_GETMORE message: `{ zero32; cstring collection; i32
// limit; i64 cursor_id }`.
type GetMore struct {
	FullCollection string
	NumberToReturn int32
	CursorID       int64
}

// OpCode implements Message.
func (GetMore) OpCode() OpCode { return OpGetMore }

// LoadBody implements Message.
func (g *GetMore) LoadBody(body []byte) bool {
	if len(body) < 4 {
		return false
	}
	coll, off, ok := readCString(body, 4)
	if !ok {
		return false
	}
	g.FullCollection = coll

	if off+12 > len(body) {
		return false
	}
	g.NumberToReturn = readI32(body, off)
	g.CursorID = readI64(body, off+4)
	off += 12

	return off == len(body)
}

// Save implements Message.
func (g GetMore) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, 0)
	body = appendCString(body, g.FullCollection)
	body = writeI32Append(body, g.NumberToReturn)
	body = writeI64Append(body, g.CursorID)
	buf = append(buf, body...)
	return finalize(buf, OpGetMore, requestID, responseTo)
}
