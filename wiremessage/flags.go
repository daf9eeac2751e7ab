// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

// QueryFlags is the OP_QUERY flags bitfield.
type QueryFlags int32

// QueryFlags bits, in wire order.
const (
	QueryTailableCursor  QueryFlags = 1 << 1
	QuerySlaveOK         QueryFlags = 1 << 2
	QueryOplogReplay     QueryFlags = 1 << 3
	QueryNoCursorTimeout QueryFlags = 1 << 4
	QueryAwaitData       QueryFlags = 1 << 5
	QueryExhaust         QueryFlags = 1 << 6
	QueryPartial         QueryFlags = 1 << 7
)

// Has reports whether bit is set in f.
func (f QueryFlags) Has(bit QueryFlags) bool { return f&bit != 0 }

// UpdateFlags is the OP_UPDATE flags bitfield.
type UpdateFlags int32

const (
	UpdateUpsert      UpdateFlags = 1 << 0
	UpdateMultiUpdate UpdateFlags = 1 << 1
)

// Has reports whether bit is set in f.
func (f UpdateFlags) Has(bit UpdateFlags) bool { return f&bit != 0 }

// DeleteFlags is the OP_DELETE flags bitfield.
type DeleteFlags int32

const (
	DeleteSingleRemove DeleteFlags = 1 << 0
)

// Has reports whether bit is set in f.
func (f DeleteFlags) Has(bit DeleteFlags) bool { return f&bit != 0 }

// ReplyFlags is the OP_REPLY flags bitfield.
type ReplyFlags int32

const (
	ReplyCursorNotFound ReplyFlags = 1 << 0
	ReplyQueryFailure   ReplyFlags = 1 << 1
	ReplyShardConfigStale ReplyFlags = 1 << 2
	ReplyAwaitCapable   ReplyFlags = 1 << 3
)

// Has reports whether bit is set in f.
func (f ReplyFlags) Has(bit ReplyFlags) bool { return f&bit != 0 }
