// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wiremessage encodes and decodes the pre-3.6 MongoDB wire protocol:
// a 16-byte header followed by an op-code-specific body. Every message kind
// here owns both the parse-from-bytes and serialise-to-bytes direction.
package wiremessage

import (
	"encoding/binary"
	"fmt"

	"github.com/streamdb/mongowire/bsoncore"
)

// HeaderLen is the fixed size of every message header.
const HeaderLen = 16

// OpCode identifies the kind of operation a message carries.
type OpCode int32

// The full set of op codes this protocol understands.
const (
	OpReply       OpCode = 1
	OpMessage     OpCode = 1000
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	opReserved    OpCode = 2003
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
)

// String renders the op code's mnemonic name.
func (c OpCode) String() string {
	switch c {
	case OpReply:
		return "REPLY"
	case OpMessage:
		return "MSG"
	case OpUpdate:
		return "UPDATE"
	case OpInsert:
		return "INSERT"
	case opReserved:
		return "RESERVED"
	case OpQuery:
		return "QUERY"
	case OpGetMore:
		return "GETMORE"
	case OpDelete:
		return "DELETE"
	case OpKillCursors:
		return "KILL_CURSORS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(c))
	}
}

// IsMutation reports whether messages of this op code are writes that may be
// followed by an appended getLastError.
func (c OpCode) IsMutation() bool {
	return c == OpUpdate || c == OpInsert || c == OpDelete
}

// HasServerReply reports whether this op code expects a REPLY correlated by
// request id, as opposed to a fire-and-forget write.
func (c OpCode) HasServerReply() bool {
	return c == OpQuery || c == OpGetMore
}

// Header is the 16-byte prefix common to every message.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// ReadHeader decodes a Header from the first HeaderLen bytes of b.
func ReadHeader(b []byte) Header {
	return Header{
		MessageLength: readI32(b, 0),
		RequestID:     readI32(b, 4),
		ResponseTo:    readI32(b, 8),
		OpCode:        OpCode(readI32(b, 12)),
	}
}

// WriteHeader encodes h into the first HeaderLen bytes of b. b must be at
// least HeaderLen bytes long.
func WriteHeader(b []byte, h Header) {
	writeI32(b, 0, h.MessageLength)
	writeI32(b, 4, h.RequestID)
	writeI32(b, 8, h.ResponseTo)
	writeI32(b, 12, int32(h.OpCode))
}

// String renders a diagnostic summary of h.
func (h Header) String() string {
	return fmt.Sprintf("opCode:%s(%d) len:%d reqID:%d respTo:%d",
		h.OpCode, int32(h.OpCode), h.MessageLength, h.RequestID, h.ResponseTo)
}

// Message is implemented by every concrete message kind: it knows how to
// read its own body (header already consumed) and how to serialise itself,
// header included, with the final length prefix patched in.
type Message interface {
	// OpCode returns the op code this message serialises as.
	OpCode() OpCode
	// LoadBody parses body (the bytes following the 16-byte header) into the
	// message's fields. Returns false on any framing or bounds violation.
	LoadBody(body []byte) bool
	// Save serialises header+body into a freshly allocated buffer, with
	// requestID and responseTo written into the header.
	Save(requestID, responseTo int32) []byte
}

func readI32(b []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(b[off : off+4]))
}

func writeI32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:off+4], uint32(v))
}

func readI64(b []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(b[off : off+8]))
}

func writeI64(b []byte, off int, v int64) {
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(v))
}

// readCString reads a NUL-terminated string starting at off, returning the
// string and the offset just past the terminator.
func readCString(b []byte, off int) (string, int, bool) {
	for i := off; i < len(b); i++ {
		if b[i] == 0 {
			return string(b[off:i]), i + 1, true
		}
	}
	return "", off, false
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0x00)
}

// readDocument reads one length-prefixed BSON document starting at off,
// returning the document and the offset just past it.
func readDocument(b []byte, off int) (bsoncore.Document, int, bool) {
	if off+4 > len(b) {
		return nil, off, false
	}
	n := int(readI32(b, off))
	if n < 5 || off+n > len(b) {
		return nil, off, false
	}
	doc, ok := bsoncore.NewFromBytes(b[off : off+n])
	if !ok {
		return nil, off, false
	}
	return doc, off + n, true
}

// newHeaderBuf allocates a buffer with HeaderLen zero bytes reserved for the
// header, ready for the caller to append body bytes onto.
func newHeaderBuf() []byte {
	return make([]byte, HeaderLen)
}

// finalize writes the header (with the now-known total length) into buf[0:16]
// and returns buf.
func finalize(buf []byte, op OpCode, requestID, responseTo int32) []byte {
	WriteHeader(buf, Header{
		MessageLength: int32(len(buf)),
		RequestID:     requestID,
		ResponseTo:    responseTo,
		OpCode:        op,
	})
	return buf
}
