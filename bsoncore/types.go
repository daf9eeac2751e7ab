// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsoncore implements a length-prefixed, tag-and-length BSON codec
// operating directly on byte buffers, in the style of the reference
// driver's x/bsonx/bsoncore package: no reflection, no allocation beyond
// what growing a []byte requires, and an iterator that tolerates malformed
// or adversarial input without panicking.
package bsoncore

import "fmt"

// Type is a one-byte BSON element type tag.
type Type byte

// The subset of BSON type tags this codec supports.
const (
	TypeDouble           Type = 0x01
	TypeString           Type = 0x02
	TypeEmbeddedDocument Type = 0x03
	TypeArray            Type = 0x04
	TypeUndefined        Type = 0x06
	TypeObjectID         Type = 0x07
	TypeBoolean          Type = 0x08
	TypeDateTime         Type = 0x09
	TypeNull             Type = 0x0A
	TypeRegex            Type = 0x0B
	TypeInt32            Type = 0x10
	TypeInt64            Type = 0x12

	// typeEndOfDocument is not a real element tag; it marks the terminating
	// NUL byte of a document or array.
	typeEndOfDocument Type = 0x00
)

// String renders the type tag's name, used in diagnostics.
func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeEmbeddedDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectId"
	case TypeBoolean:
		return "bool"
	case TypeDateTime:
		return "dateTime"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

func readInt32(buf []byte, offset int32) int32 {
	return int32(buf[offset]) | int32(buf[offset+1])<<8 | int32(buf[offset+2])<<16 | int32(buf[offset+3])<<24
}

func writeInt32(buf []byte, offset int32, v int32) {
	buf[offset] = byte(v)
	buf[offset+1] = byte(v >> 8)
	buf[offset+2] = byte(v >> 16)
	buf[offset+3] = byte(v >> 24)
}

func readInt64(buf []byte, offset int32) int64 {
	return int64(buf[offset]) | int64(buf[offset+1])<<8 | int64(buf[offset+2])<<16 | int64(buf[offset+3])<<24 |
		int64(buf[offset+4])<<32 | int64(buf[offset+5])<<40 | int64(buf[offset+6])<<48 | int64(buf[offset+7])<<56
}

func writeInt64(buf []byte, offset int32, v int64) {
	for i := 0; i < 8; i++ {
		buf[offset+int32(i)] = byte(v >> (8 * uint(i)))
	}
}

func readFloat64Bits(buf []byte, offset int32) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[offset+int32(i)]) << (8 * uint(i))
	}
	return v
}

func indexNUL(buf []byte) int {
	for i, b := range buf {
		if b == 0 {
			return i
		}
	}
	return -1
}
