// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

// Msg is a legacy OP_MSG ad-hoc notice: `{ cstring message }`. Superseded in
// modern servers by the command protocol; kept here because pre-3.6 servers
// may still emit it.
type Msg struct {
	Message string
}

// OpCode implements Message.
func (Msg) OpCode() OpCode { return OpMessage }

// LoadBody implements Message.
func (m *Msg) LoadBody(body []byte) bool {
	s, off, ok := readCString(body, 0)
	if !ok || off != len(body) {
		return false
	}
	m.Message = s
	return true
}

// Save implements Message.
func (m Msg) Save(requestID, responseTo int32) []byte {
	buf := newHeaderBuf()
	body := appendCString(nil, m.Message)
	buf = append(buf, body...)
	return finalize(buf, OpMessage, requestID, responseTo)
}
