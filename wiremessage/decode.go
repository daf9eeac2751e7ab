// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import "fmt"

// Decode parses a complete, fully-buffered message (header plus body) into
// the concrete Message type matching its op code. buf must be exactly
// header.MessageLength bytes, as InputStream guarantees.
func Decode(buf []byte) (Message, Header, error) {
	if len(buf) < HeaderLen {
		return nil, Header{}, fmt.Errorf("wiremessage: buffer shorter than header (%d bytes)", len(buf))
	}
	h := ReadHeader(buf)
	if int(h.MessageLength) != len(buf) {
		return nil, h, fmt.Errorf("wiremessage: declared length %d does not match buffer of %d bytes", h.MessageLength, len(buf))
	}

	var msg Message
	switch h.OpCode {
	case OpReply:
		msg = &Reply{}
	case OpMessage:
		msg = &Msg{}
	case OpUpdate:
		msg = &Update{}
	case OpInsert:
		msg = &Insert{}
	case OpQuery:
		msg = &Query{}
	case OpGetMore:
		msg = &GetMore{}
	case OpDelete:
		msg = &Delete{}
	case OpKillCursors:
		msg = &KillCursors{}
	default:
		return nil, h, fmt.Errorf("wiremessage: unknown op code %d", int32(h.OpCode))
	}

	if !msg.LoadBody(buf[HeaderLen:]) {
		return nil, h, fmt.Errorf("wiremessage: malformed %s body", h.OpCode)
	}
	return msg, h, nil
}
