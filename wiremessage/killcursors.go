// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

// KillCursors is an OP_KILL_CURSORS message: `{ zero32; i32 count;
// i64[count] cursor_ids }`.
type KillCursors struct {
	CursorIDs []int64
}

// OpCode implements Message.
func (KillCursors) OpCode() OpCode { return OpKillCursors }

// LoadBody implements Message.
func (k *KillCursors) LoadBody(body []byte) bool {
	if len(body) < 8 {
		return false
	}
	count := readI32(body, 4)
	if count < 0 {
		return false
	}
	off := 8
	if off+int(count)*8 != len(body) {
		return false
	}
	ids := make([]int64, count)
	for i := int32(0); i < count; i++ {
		ids[i] = readI64(body, off)
		off += 8
	}
	k.CursorIDs = ids
	return true
}

// Save implements Message.
func (k KillCursors) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	var body []byte
	body = writeI32Append(body, 0)
	body = writeI32Append(body, int32(len(k.CursorIDs)))
	for _, id := range k.CursorIDs {
		body = writeI64Append(body, id)
	}
	buf = append(buf, body...)
	return finalize(buf, OpKillCursors, requestID, responseTo)
}
