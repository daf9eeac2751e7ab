// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsoncore

// Validate walks every element of d and reports whether the document is
// well-formed: the declared length matches the buffer, every element
// parses within bounds, and the buffer ends with the NUL terminator.
func (d Document) Validate() bool {
	if len(d) < 5 {
		return false
	}
	if int(d.Len()) != len(d) {
		return false
	}
	if d[len(d)-1] != 0x00 {
		return false
	}

	it := d.Iterator()
	for it.Next() {
	}
	return it.atEnd
}

// Validate reports whether a is a well-formed array.
func (a Array) Validate() bool {
	return Document(a).Validate()
}
