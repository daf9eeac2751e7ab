// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/streamdb/mongowire/objectid"
)

// Iterator is a small, heap-free value that walks the elements of a
// Document or Array without copying the backing buffer, except where a
// string element's body fails UTF-8 validation (see WasTruncated).
type Iterator struct {
	doc    []byte
	offset int32
	length int32

	key       string
	typ       Type
	value1    []byte
	value2    []byte
	truncated bool

	// atEnd is set once Next() reaches a clean end of document (the
	// terminator, or a tag-0 byte), as opposed to a malformed-input
	// failure, which instead zeroes the iterator via zero(). Document.
	// Validate uses this to distinguish "ran out of elements" from
	// "something didn't parse".
	atEnd bool
}

// Iterator returns a new Iterator positioned before the document's first
// element.
func (d Document) Iterator() *Iterator {
	return &Iterator{doc: d, offset: 4, length: int32(len(d))}
}

// Iterator returns a new Iterator positioned before the array's first
// element.
func (a Array) Iterator() *Iterator {
	return Document(a).Iterator()
}

func (it *Iterator) zero() {
	*it = Iterator{}
}

// Next advances to the next element, returning false when the document is
// exhausted or malformed. A false return after a prior true Next() means
// the document ended cleanly or hit a framing error; callers distinguish
// the two with the Document-level Validate, since Next itself
// mirrors spec.md's "zeroed iterator" tolerance policy rather than
// propagating an error value.
func (it *Iterator) Next() bool {
	if it == nil || it.doc == nil {
		return false
	}

	// Fails when the current offset is within one byte of the end (only
	// the terminator remains).
	if it.length-it.offset <= 1 {
		it.atEnd = true
		return false
	}

	tag := Type(it.doc[it.offset])
	if tag == typeEndOfDocument {
		it.atEnd = true
		return false
	}

	pos := it.offset + 1
	rest := it.doc[pos:it.length]
	nul := indexNUL(rest)
	if nul < 0 {
		it.zero()
		return false
	}
	keyBytes := rest[:nul]
	if !utf8.Valid(keyBytes) {
		it.zero()
		return false
	}

	newKey := string(keyBytes)
	pos += int32(nul) + 1

	ok, newPos, typ, v1, v2, truncated := dispatch(it.doc, pos, it.length, tag)
	if !ok {
		it.zero()
		return false
	}

	it.key = newKey
	it.typ = typ
	it.value1 = v1
	it.value2 = v2
	it.truncated = truncated
	it.offset = newPos
	return true
}

// dispatch parses the payload for tag starting at pos, returning the new
// offset and the decoded value pointers.
func dispatch(doc []byte, pos, length int32, tag Type) (ok bool, newPos int32, typ Type, v1, v2 []byte, truncated bool) {
	switch tag {
	case TypeDouble:
		if pos+8 > length {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + 8, tag, doc[pos : pos+8], nil, false

	case TypeString:
		v, np, trunc, ok := readLengthPrefixedString(doc, pos, length)
		return ok, np, tag, v, nil, trunc

	case TypeEmbeddedDocument, TypeArray:
		if pos+4 > length {
			return false, pos, tag, nil, nil, false
		}
		innerLen := readInt32(doc, pos)
		if innerLen < 5 || pos+innerLen > length {
			return false, pos, tag, nil, nil, false
		}
		if doc[pos+innerLen-1] != 0x00 {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + innerLen, tag, doc[pos : pos+innerLen], nil, false

	case TypeUndefined, TypeNull:
		return true, pos, tag, nil, nil, false

	case TypeObjectID:
		if pos+objectid.Size > length {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + objectid.Size, tag, doc[pos : pos+objectid.Size], nil, false

	case TypeBoolean:
		if pos+1 > length {
			return false, pos, tag, nil, nil, false
		}
		b := doc[pos]
		if b != 0x00 && b != 0x01 {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + 1, tag, doc[pos : pos+1], nil, false

	case TypeDateTime:
		if pos+8 > length {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + 8, tag, doc[pos : pos+8], nil, false

	case TypeRegex:
		pattern, np, trunc1, ok := readCString(doc, pos, length)
		if !ok {
			return false, pos, tag, nil, nil, false
		}
		options, np2, trunc2, ok := readCString(doc, np, length)
		if !ok {
			return false, pos, tag, nil, nil, false
		}
		return true, np2, tag, pattern, options, trunc1 || trunc2

	case TypeInt32:
		if pos+4 > length {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + 4, tag, doc[pos : pos+4], nil, false

	case TypeInt64:
		if pos+8 > length {
			return false, pos, tag, nil, nil, false
		}
		return true, pos + 8, tag, doc[pos : pos+8], nil, false

	default:
		return false, pos, tag, nil, nil, false
	}
}

// readLengthPrefixedString reads a BSON string payload: an i32 length
// (inclusive of the trailing NUL) followed by that many bytes. If the body
// is not valid UTF-8, this returns a truncated copy of the prefix up to the
// first invalid byte rather than mutating doc, per the decision recorded in
// DESIGN.md for spec.md's open UTF-8 tolerance question.
func readLengthPrefixedString(doc []byte, pos, length int32) (value []byte, newPos int32, truncated, ok bool) {
	if pos+4 > length {
		return nil, pos, false, false
	}
	strLen := readInt32(doc, pos)
	if strLen < 1 || pos+4+strLen > length {
		return nil, pos, false, false
	}
	body := doc[pos+4 : pos+4+strLen-1] // exclude trailing NUL
	newPos = pos + 4 + strLen

	if k := firstInvalidUTF8(body); k >= 0 {
		out := make([]byte, k)
		copy(out, body[:k])
		return out, newPos, true, true
	}
	return body, newPos, false, true
}

// readCString reads a NUL-terminated string (used for regex pattern and
// options, which are not length-prefixed). Applies the same truncation
// tolerance as readLengthPrefixedString.
func readCString(doc []byte, pos, length int32) (value []byte, newPos int32, truncated, ok bool) {
	if pos > length {
		return nil, pos, false, false
	}
	rest := doc[pos:length]
	nul := indexNUL(rest)
	if nul < 0 {
		return nil, pos, false, false
	}
	body := rest[:nul]
	newPos = pos + int32(nul) + 1

	if k := firstInvalidUTF8(body); k >= 0 {
		out := make([]byte, k)
		copy(out, body[:k])
		return out, newPos, true, true
	}
	return body, newPos, false, true
}

// firstInvalidUTF8 returns the byte offset of the first invalid UTF-8
// sequence in b, or -1 if b is entirely valid.
func firstInvalidUTF8(b []byte) int {
	valid := 0
	for len(b[valid:]) > 0 {
		r, size := utf8.DecodeRune(b[valid:])
		if r == utf8.RuneError && size <= 1 {
			return valid
		}
		valid += size
	}
	return -1
}

// Key returns the current element's key.
func (it *Iterator) Key() string { return it.key }

// Type returns the current element's type tag.
func (it *Iterator) Type() Type { return it.typ }

// WasTruncated reports whether the current element's string (or regex
// component) value was truncated due to invalid UTF-8.
func (it *Iterator) WasTruncated() bool { return it.truncated }

// Double returns the current element's value as a float64.
func (it *Iterator) Double() (float64, bool) {
	if it.typ != TypeDouble {
		return 0, false
	}
	bits := readFloat64Bits(it.value1, 0)
	return float64FromBits(bits), true
}

// StringValue returns the current element's value as a string. Works only
// for TypeString; use Regex for regex components.
func (it *Iterator) StringValue() (string, bool) {
	if it.typ != TypeString {
		return "", false
	}
	return string(it.value1), true
}

// Document returns the current element's value as an embedded Document.
func (it *Iterator) Document() (Document, bool) {
	if it.typ != TypeEmbeddedDocument {
		return nil, false
	}
	return Document(it.value1), true
}

// ArrayValue returns the current element's value as an embedded Array.
func (it *Iterator) ArrayValue() (Array, bool) {
	if it.typ != TypeArray {
		return nil, false
	}
	return Array(it.value1), true
}

// Recurse initializes child to iterate the current element's embedded
// document or array, returning false if the current element is not of that
// shape.
func (it *Iterator) Recurse(child *Iterator) bool {
	if it.typ != TypeEmbeddedDocument && it.typ != TypeArray {
		return false
	}
	*child = Iterator{doc: it.value1, offset: 4, length: int32(len(it.value1))}
	return true
}

// ObjectID returns the current element's value as an ObjectId.
func (it *Iterator) ObjectID() (objectid.ObjectId, bool) {
	if it.typ != TypeObjectID {
		return objectid.Nil, false
	}
	var id objectid.ObjectId
	copy(id[:], it.value1)
	return id, true
}

// Boolean coerces the current element's value to a bool, leniently: it
// accepts boolean, non-zero int32, non-zero int64, or a double equal to
// 1.0, per spec.md's accessor coercion rule. All other types fail.
func (it *Iterator) Boolean() (bool, bool) {
	switch it.typ {
	case TypeBoolean:
		return it.value1[0] != 0x00, true
	case TypeInt32:
		return readInt32(it.value1, 0) != 0, true
	case TypeInt64:
		return readInt64(it.value1, 0) != 0, true
	case TypeDouble:
		return float64FromBits(readFloat64Bits(it.value1, 0)) == 1.0, true
	default:
		return false, false
	}
}

// DateTime returns the current element's value as a time.Time.
func (it *Iterator) DateTime() (time.Time, bool) {
	if it.typ != TypeDateTime {
		return time.Time{}, false
	}
	ms := readInt64(it.value1, 0)
	return time.UnixMilli(ms).UTC(), true
}

// Regex returns the current element's pattern and options.
func (it *Iterator) Regex() (pattern, options string, ok bool) {
	if it.typ != TypeRegex {
		return "", "", false
	}
	return string(it.value1), string(it.value2), true
}

// Int32 returns the current element's value as an int32.
func (it *Iterator) Int32() (int32, bool) {
	if it.typ != TypeInt32 {
		return 0, false
	}
	return readInt32(it.value1, 0), true
}

// Int64 returns the current element's value as an int64.
func (it *Iterator) Int64() (int64, bool) {
	if it.typ != TypeInt64 {
		return 0, false
	}
	return readInt64(it.value1, 0), true
}

// IsNull reports whether the current element is BSON null.
func (it *Iterator) IsNull() bool { return it.typ == TypeNull }

// IsUndefined reports whether the current element is BSON undefined.
func (it *Iterator) IsUndefined() bool { return it.typ == TypeUndefined }

// Find advances Next() repeatedly until either key matches or the document
// is exhausted.
func (d Document) Find(key string) (*Iterator, bool) {
	it := d.Iterator()
	for it.Next() {
		if it.Key() == key {
			return it, true
		}
	}
	return nil, false
}

func float64FromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}
