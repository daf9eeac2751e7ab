// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"time"

	"github.com/streamdb/mongowire/objectid"
)

// Array is a BSON array: a Document whose keys are the decimal string
// representation of the element's index ("0", "1", …). It shares Document's
// wire representation exactly; the distinction is purely how keys are
// assigned and how String() brackets the output.
type Array Document

// NewArray returns an empty array.
func NewArray() Array {
	return Array(NewEmpty())
}

// Len returns the array's declared total length.
func (a Array) Len() int32 { return Document(a).Len() }

// count walks a to determine how many elements it currently holds, so the
// next Append can assign the correct decimal index. This is O(n) per
// append; arrays in this core are small command/document payloads, not bulk
// data structures, so the quadratic build cost is acceptable.
func (a Array) count() int {
	n := 0
	it := a.Iterator()
	for it.Next() {
		n++
	}
	return n
}

func (a Array) nextIndex() string {
	return itoa(a.count())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// AppendDouble appends a double to the array.
func (a Array) AppendDouble(v float64) Array {
	return Array(Document(a).AppendDouble(a.nextIndex(), v))
}

// AppendString appends a string to the array.
func (a Array) AppendString(v string) Array {
	return Array(Document(a).AppendStringValue(a.nextIndex(), v))
}

// AppendDocument appends an embedded document to the array.
func (a Array) AppendDocument(v Document) Array {
	return Array(Document(a).AppendDocument(a.nextIndex(), v))
}

// AppendArray appends a nested array to the array.
func (a Array) AppendArray(v Array) Array {
	return Array(Document(a).AppendArray(a.nextIndex(), v))
}

// AppendObjectID appends an ObjectId to the array.
func (a Array) AppendObjectID(v objectid.ObjectId) Array {
	return Array(Document(a).AppendObjectID(a.nextIndex(), v))
}

// AppendBoolean appends a boolean to the array.
func (a Array) AppendBoolean(v bool) Array {
	return Array(Document(a).AppendBoolean(a.nextIndex(), v))
}

// AppendDateTime appends a datetime to the array.
func (a Array) AppendDateTime(v time.Time) Array {
	return Array(Document(a).AppendDateTime(a.nextIndex(), v))
}

// AppendNull appends a null to the array.
func (a Array) AppendNull() Array {
	return Array(Document(a).AppendNull(a.nextIndex()))
}

// AppendInt32 appends an int32 to the array.
func (a Array) AppendInt32(v int32) Array {
	return Array(Document(a).AppendInt32(a.nextIndex(), v))
}

// AppendInt64 appends an int64 to the array.
func (a Array) AppendInt64(v int64) Array {
	return Array(Document(a).AppendInt64(a.nextIndex(), v))
}

// Bytes returns the raw underlying buffer.
func (a Array) Bytes() []byte { return []byte(a) }
