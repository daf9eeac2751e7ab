// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"net"
	"time"

	"github.com/streamdb/mongowire/bsoncore"
)

// ServerDescription is the parsed result of an ismaster command reply.
type ServerDescription struct {
	OK             bool
	IsMaster       bool
	Secondary      bool
	Msg            string
	SetName        string
	Primary        string
	Hosts          []string
	MaxWireVersion int32
}

// ParseServerDescription extracts the fields this core's discovery logic
// needs from an ismaster command's reply document. Fields absent or of the
// wrong BSON type are left at their zero value rather than causing failure,
// mirroring the tolerant style of the rest of this codec.
func ParseServerDescription(doc bsoncore.Document) ServerDescription {
	var d ServerDescription
	it := doc.Iterator()
	for it.Next() {
		switch it.Key() {
		case "ok":
			d.OK = isTruthyNumeric(it)
		case "ismaster":
			if b, ok := it.Boolean(); ok {
				d.IsMaster = b
			}
		case "secondary":
			if b, ok := it.Boolean(); ok {
				d.Secondary = b
			}
		case "msg":
			if s, ok := it.StringValue(); ok {
				d.Msg = s
			}
		case "setName":
			if s, ok := it.StringValue(); ok {
				d.SetName = s
			}
		case "primary":
			if s, ok := it.StringValue(); ok {
				d.Primary = s
			}
		case "maxWireVersion":
			if n, ok := it.Int32(); ok {
				d.MaxWireVersion = n
			}
		case "hosts":
			if arr, ok := it.ArrayValue(); ok {
				ait := arr.Iterator()
				for ait.Next() {
					if s, ok := ait.StringValue(); ok {
						d.Hosts = append(d.Hosts, s)
					}
				}
			}
		}
	}
	return d
}

// isTruthyNumeric reports the BSON-standard truthiness of the current
// element: ok is conventionally 1.0/1/true, and drivers treat any nonzero
// numeric or true boolean as truthy.
func isTruthyNumeric(it *bsoncore.Iterator) bool {
	if it.Type() == bsoncore.TypeBoolean {
		b, _ := it.Boolean()
		return b
	}
	if f, ok := it.Double(); ok {
		return f != 0
	}
	if n, ok := it.Int32(); ok {
		return n != 0
	}
	if n, ok := it.Int64(); ok {
		return n != 0
	}
	return false
}

// Dialer opens a duplex byte stream to a host:port candidate.
type Dialer func(ctx context.Context, host string) (net.Conn, error)

// BackoffTimer returns a channel that fires after d, for use as the retry
// timer Connection arms when the Manager yields no host.
func BackoffTimer(d time.Duration) <-chan time.Time {
	return time.After(d)
}
