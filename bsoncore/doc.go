// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/streamdb/mongowire/objectid"
)

// Document is a length-prefixed BSON document. The first 4 bytes are a
// little-endian total length, inclusive of themselves and the trailing NUL
// terminator; the minimum valid Document is the 5-byte empty document.
//
// Document owns its backing array exclusively; callers that need to retain
// a buffer beyond a single mutation should hold onto the value a method
// returns, not the receiver.
type Document []byte

// ErrInvalidLength is returned by NewFromBytes when the leading length
// prefix does not match the supplied buffer.
var ErrInvalidLength = docError("bsoncore: declared length does not match buffer")

type docError string

func (e docError) Error() string { return string(e) }

// NewEmpty returns the canonical 5-byte empty document.
func NewEmpty() Document {
	return Document{0x05, 0x00, 0x00, 0x00, 0x00}
}

// NewWithObjectID returns a document containing a single "_id" key set to a
// freshly generated ObjectId. A nil supplier falls back to objectid.Default.
func NewWithObjectID(supplier objectid.Supplier) Document {
	if supplier == nil {
		supplier = objectid.Default
	}
	return NewEmpty().AppendObjectID("_id", supplier.NewObjectId())
}

// NewFromBytes returns a Document owning a copy of buf, or false if the
// leading i32 length prefix does not exactly equal len(buf).
func NewFromBytes(buf []byte) (Document, bool) {
	if len(buf) < 5 {
		return nil, false
	}
	length := readInt32(buf, 0)
	if int(length) != len(buf) {
		return nil, false
	}
	if buf[length-1] != 0x00 {
		return nil, false
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return Document(out), true
}

// Len returns the document's declared total length.
func (d Document) Len() int32 {
	if len(d) < 4 {
		return 0
	}
	return readInt32(d, 0)
}

// IsEmpty reports whether d is the canonical 5-byte empty document.
func (d Document) IsEmpty() bool {
	return len(d) == 5
}

// Bytes returns the raw underlying buffer.
func (d Document) Bytes() []byte {
	return []byte(d)
}

// appendElement strips d's trailing NUL, appends a tag byte, a NUL-terminated
// key, the payload appendPayload produces, re-appends the terminator, and
// rewrites the length prefix to cover the whole buffer. This is the single
// choke point every Append* method routes through, matching spec.md's
// "mutations append elements in place and rewrite the length prefix" rule.
func (d Document) appendElement(tag Type, key string, appendPayload func([]byte) []byte) Document {
	body := d
	if n := len(body); n > 0 {
		body = body[:n-1] // drop trailing NUL
	} else {
		body = NewEmpty()[:4]
	}
	body = append(body, byte(tag))
	body = append(body, key...)
	body = append(body, 0x00)
	body = appendPayload(body)
	body = append(body, 0x00)
	out := make([]byte, len(body))
	copy(out, body)
	writeInt32(out, 0, int32(len(out)))
	return Document(out)
}

// AppendDouble appends a double element.
func (d Document) AppendDouble(key string, v float64) Document {
	return d.appendElement(TypeDouble, key, func(dst []byte) []byte {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		return append(dst, buf[:]...)
	})
}

// AppendString appends a UTF-8 string element. A nil value appends a NULL
// element instead of a string, per spec.md's append_string rule.
func (d Document) AppendString(key string, value *string) Document {
	if value == nil {
		return d.AppendNull(key)
	}
	return d.AppendStringValue(key, *value)
}

// AppendStringValue appends a non-nullable UTF-8 string element.
func (d Document) AppendStringValue(key, value string) Document {
	return d.appendElement(TypeString, key, func(dst []byte) []byte {
		var lb [4]byte
		binary.LittleEndian.PutUint32(lb[:], uint32(len(value)+1))
		dst = append(dst, lb[:]...)
		dst = append(dst, value...)
		return append(dst, 0x00)
	})
}

// AppendDocument appends an embedded document element. sub must already be
// a valid length-prefixed Document.
func (d Document) AppendDocument(key string, sub Document) Document {
	return d.appendElement(TypeEmbeddedDocument, key, func(dst []byte) []byte {
		return append(dst, sub...)
	})
}

// AppendArray appends an embedded array element. arr must already be a
// valid length-prefixed Array.
func (d Document) AppendArray(key string, arr Array) Document {
	return d.appendElement(TypeArray, key, func(dst []byte) []byte {
		return append(dst, arr...)
	})
}

// AppendUndefined appends an undefined element.
func (d Document) AppendUndefined(key string) Document {
	return d.appendElement(TypeUndefined, key, func(dst []byte) []byte { return dst })
}

// AppendObjectID appends an ObjectId element.
func (d Document) AppendObjectID(key string, id objectid.ObjectId) Document {
	return d.appendElement(TypeObjectID, key, func(dst []byte) []byte {
		return append(dst, id[:]...)
	})
}

// AppendBoolean appends a boolean element.
func (d Document) AppendBoolean(key string, v bool) Document {
	return d.appendElement(TypeBoolean, key, func(dst []byte) []byte {
		if v {
			return append(dst, 0x01)
		}
		return append(dst, 0x00)
	})
}

// AppendDateTime appends a UTC datetime element, stored as milliseconds
// since the Unix epoch.
func (d Document) AppendDateTime(key string, t time.Time) Document {
	return d.appendElement(TypeDateTime, key, func(dst []byte) []byte {
		var buf [8]byte
		writeInt64(buf[:], 0, t.UnixMilli())
		return append(dst, buf[:]...)
	})
}

// AppendNull appends a null element.
func (d Document) AppendNull(key string) Document {
	return d.appendElement(TypeNull, key, func(dst []byte) []byte { return dst })
}

// AppendRegex appends a regex element: two NUL-terminated strings, pattern
// then options.
func (d Document) AppendRegex(key, pattern, options string) Document {
	return d.appendElement(TypeRegex, key, func(dst []byte) []byte {
		dst = append(dst, pattern...)
		dst = append(dst, 0x00)
		dst = append(dst, options...)
		return append(dst, 0x00)
	})
}

// AppendInt32 appends a signed 32-bit integer element.
func (d Document) AppendInt32(key string, v int32) Document {
	return d.appendElement(TypeInt32, key, func(dst []byte) []byte {
		var buf [4]byte
		writeInt32(buf[:], 0, v)
		return append(dst, buf[:]...)
	})
}

// AppendInt64 appends a signed 64-bit integer element.
func (d Document) AppendInt64(key string, v int64) Document {
	return d.appendElement(TypeInt64, key, func(dst []byte) []byte {
		var buf [8]byte
		writeInt64(buf[:], 0, v)
		return append(dst, buf[:]...)
	})
}

// Join concatenates other's elements onto the end of d. A join with an
// empty other document is a no-op.
func (d Document) Join(other Document) Document {
	if len(other) <= 5 {
		return d
	}

	body := d
	if n := len(body); n > 0 {
		body = body[:n-1]
	}
	body = append(body, other[4:len(other)-1]...)
	body = append(body, 0x00)

	out := make([]byte, len(body))
	copy(out, body)
	writeInt32(out, 0, int32(len(out)))
	return Document(out)
}

// Clone returns a Document owning a fresh copy of d's backing array.
func (d Document) Clone() Document {
	out := make([]byte, len(d))
	copy(out, d)
	return Document(out)
}

// Equal reports whether d and other have identical byte representations.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}
