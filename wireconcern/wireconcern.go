// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wireconcern describes the write-concern value used to fuse an
// acknowledging getLastError command onto unsafe write operations.
package wireconcern

import "github.com/streamdb/mongowire/bsoncore"

// Unacknowledged is the w sentinel meaning "fire and forget; do not emit
// getLastError".
const Unacknowledged int32 = -1

// WriteConcern controls whether and how a write is acknowledged by the
// server via an appended getLastError command.
type WriteConcern struct {
	W          int32
	WMajority  bool
	WTags      bsoncore.Document // nil if unset
	Journal    bool
	FSync      bool
	WTimeoutMS uint32
}

// Acknowledged reports whether this concern requires an appended
// getLastError at all.
func (wc WriteConcern) Acknowledged() bool {
	return wc.W != Unacknowledged
}

// GetLastErrorCommand builds the `{ getlasterror: 1, ... }` command document
// this concern implies. Callers should check Acknowledged() first; building
// the command for an unacknowledged concern still returns a well-formed
// document, it is simply never sent.
func (wc WriteConcern) GetLastErrorCommand() bsoncore.Document {
	d := bsoncore.NewEmpty().AppendInt32("getlasterror", 1)
	d = d.AppendBoolean("j", wc.Journal)

	switch {
	case wc.WMajority:
		d = d.AppendStringValue("w", "majority")
	case wc.WTags != nil:
		d = d.AppendDocument("w", wc.WTags)
	default:
		w := wc.W
		if w == 0 {
			w = 1
		}
		d = d.AppendInt32("w", w)
	}

	// fsync is only included when requested; the common case (false) is
	// left implicit, matching the server's own default.
	if wc.FSync {
		d = d.AppendBoolean("fsync", true)
	}
	if wc.WTimeoutMS > 0 {
		d = d.AppendInt32("wtimeout", int32(wc.WTimeoutMS))
	}
	return d
}

// Default is the implicit write concern when a URI specifies neither `safe`
// nor `w`: acknowledged with w=1, no journal, no fsync, no timeout.
var Default = WriteConcern{W: 1}

// FireAndForget is the unacknowledged sentinel concern.
var FireAndForget = WriteConcern{W: Unacknowledged}
