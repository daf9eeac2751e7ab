// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// String renders d as a human-readable "{ \"k\": v, … }" form, matching
// spec.md's §4.1 rendering rules: dates as ISODate(...), object ids as
// ObjectId(...), and 64-bit ints as NumberLong(n). Regex rendering follows
// the Open Question decision recorded in DESIGN.md.
//
// If d is shorter than the 5-byte minimum, String returns an empty string.
// Otherwise it renders the elements that parse and stops at the first one
// that does not.
func (d Document) String() string {
	if len(d) < 5 {
		return ""
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	it := d.Iterator()
	first := true
	for it.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&buf, " %q: %s", it.Key(), renderValue(it))
	}
	if !first {
		buf.WriteByte(' ')
	}
	buf.WriteByte('}')
	return buf.String()
}

// String renders a as "[ v, … ]".
func (a Array) String() string {
	if len(a) < 5 {
		return ""
	}

	var buf bytes.Buffer
	buf.WriteByte('[')

	it := a.Iterator()
	first := true
	for it.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&buf, " %s", renderValue(it))
	}
	if !first {
		buf.WriteByte(' ')
	}
	buf.WriteByte(']')
	return buf.String()
}

func renderValue(it *Iterator) string {
	switch it.Type() {
	case TypeDouble:
		v, _ := it.Double()
		return strconv.FormatFloat(v, 'g', -1, 64)
	case TypeString:
		v, _ := it.StringValue()
		return strconv.Quote(v)
	case TypeEmbeddedDocument:
		v, _ := it.Document()
		return v.String()
	case TypeArray:
		v, _ := it.ArrayValue()
		return v.String()
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		v, _ := it.ObjectID()
		return fmt.Sprintf("ObjectId(%q)", v.String())
	case TypeBoolean:
		v, _ := it.Boolean()
		return strconv.FormatBool(v)
	case TypeDateTime:
		v, _ := it.DateTime()
		return fmt.Sprintf("ISODate(%q)", v.Format("2006-01-02T15:04:05.000Z07:00"))
	case TypeNull:
		return "null"
	case TypeRegex:
		// Open item per spec.md §9(1): no canonical rendering exists
		// upstream. This core emits the conservative two-argument form.
		pattern, options, _ := it.Regex()
		return fmt.Sprintf("Regex(%q,%q)", pattern, options)
	case TypeInt32:
		v, _ := it.Int32()
		return strconv.Itoa(int(v))
	case TypeInt64:
		v, _ := it.Int64()
		return fmt.Sprintf("NumberLong(%d)", v)
	default:
		return "<unknown>"
	}
}

// DebugString outputs a diagnostics-oriented rendering that never hides a
// malformed suffix: it stringifies as much of d as parses and appends a
// marker for the remainder, mirroring the teacher's
// bsoncore.Array.DebugString.
func (d Document) DebugString() string {
	if len(d) < 5 {
		return "<malformed>"
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Document(%d)[", d.Len())

	it := d.Iterator()
	first := true
	for it.Next() {
		if !first {
			buf.WriteByte(' ')
		}
		first = false
		fmt.Fprintf(&buf, "%s:%s=%s", it.Key(), it.Type(), renderValue(it))
	}
	if !it.atEnd {
		if !first {
			buf.WriteByte(' ')
		}
		buf.WriteString("<malformed>")
	}
	buf.WriteByte(']')
	return buf.String()
}
