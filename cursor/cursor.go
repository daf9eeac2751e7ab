// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package cursor drives a query to completion batch by batch, invoking a
// caller visitor per document and killing the server-side cursor on early
// abort.
package cursor

import (
	"context"

	"github.com/streamdb/mongowire/bsoncore"
	"github.com/streamdb/mongowire/core/connection"
	"github.com/streamdb/mongowire/internal/logger"
	"github.com/streamdb/mongowire/metrics"
	"github.com/streamdb/mongowire/protocol"
	"github.com/streamdb/mongowire/wiremessage"
)

// Params are the construction parameters for a Cursor, mirroring the query
// a single OP_QUERY would carry.
type Params struct {
	Database   string
	Collection string
	Query      bsoncore.Document
	Fields     bsoncore.Document // nil if absent
	Skip       int32
	Limit      int32
	Flags      wiremessage.QueryFlags
	BatchSize  int32
}

func (p Params) fullCollection() string {
	return p.Database + "." + p.Collection
}

// Cursor drives one query's result set: an initial QUERY, then a chain of
// GETMOREs (or, under the EXHAUST flag, a chain of unsolicited REPLYs) until
// the server-side cursor is exhausted, the configured limit is reached, or
// the caller's visitor aborts.
type Cursor struct {
	conn *connection.Connection
	p    Params
	log  *logger.Logger
	rec  *metrics.Recorder
}

// New constructs a Cursor bound to conn. No I/O happens until ForEach or
// Count is called.
func New(conn *connection.Connection, p Params, log *logger.Logger, rec *metrics.Recorder) *Cursor {
	return &Cursor{conn: conn, p: p, log: log, rec: rec}
}

// Count issues a `count` command against the cursor's database, encoded as
// `{ count: <collection>, query: <query> }`, and returns the `n` field
// coerced to u64.
func (c *Cursor) Count(ctx context.Context) (uint64, error) {
	cmd := bsoncore.NewEmpty().
		AppendStringValue("count", c.p.Collection).
		AppendDocument("query", c.p.Query)

	reply, err := c.conn.Command(ctx, c.p.Database, cmd)
	if err != nil {
		return 0, err
	}

	it := reply.Iterator()
	for it.Next() {
		if it.Key() != "n" {
			continue
		}
		if n, ok := it.Int64(); ok {
			return uint64(n), nil
		}
		if n, ok := it.Int32(); ok {
			return uint64(n), nil
		}
		if f, ok := it.Double(); ok {
			return uint64(f), nil
		}
	}
	return 0, nil
}

// Visitor is invoked once per document in a cursor's result set. Returning
// false stops iteration cleanly; returning a non-nil error stops iteration
// and propagates the error to ForEach's caller. Both cases still trigger a
// kill-cursors if the server-side cursor is still open.
type Visitor func(bsoncore.Document) (bool, error)

// ForEach drives the cursor's query to completion, batch by batch. It logs
// "opened" once the first REPLY arrives, "getmore" for every subsequent
// batch fetch, and "killed" if a kill-cursors is sent.
func (c *Cursor) ForEach(ctx context.Context, visit Visitor) error {
	flags := c.p.Flags
	if c.conn.SlaveOK() {
		flags |= wiremessage.QuerySlaveOK
	}

	query := wiremessage.Query{
		Flags:           flags,
		FullCollection:  c.p.fullCollection(),
		NumberToSkip:    c.p.Skip,
		NumberToReturn:  c.p.BatchSize,
		QueryDoc:        c.p.Query.Bytes(),
		ReturnFieldsSel: fieldsBytes(c.p.Fields),
	}

	var (
		offset    int32
		cursorID  int64
		aborted   bool
		visitErr  error
		firstSeen bool
	)

	exhaust := flags.Has(wiremessage.QueryExhaust)

	processBatch := func(reply *wiremessage.Reply) bool {
		cursorID = reply.CursorID
		if !firstSeen {
			firstSeen = true
			c.logLifecycle("opened", cursorID)
		}

		for _, doc := range reply.Documents {
			if !exhaust && c.p.Limit > 0 && offset >= c.p.Limit {
				aborted = true
				return false
			}
			cont, err := visit(doc)
			offset++
			if err != nil {
				aborted = true
				visitErr = err
				return false
			}
			if !cont {
				aborted = true
				return false
			}
		}
		return true
	}

	var err error
	if flags.Has(wiremessage.QueryExhaust) {
		err = c.runExhaust(ctx, query, processBatch)
	} else {
		err = c.runGetMore(ctx, query, &cursorID, &offset, processBatch)
	}
	if err != nil {
		return err
	}
	if visitErr != nil {
		c.killIfOpen(cursorID)
		return visitErr
	}
	if aborted {
		c.killIfOpen(cursorID)
		return nil
	}
	// runGetMore also returns here when the limit is reached at a batch
	// boundary with the cursor still open; on natural exhaustion the last
	// REPLY reported cursor id zero and killIfOpen sends nothing.
	c.killIfOpen(cursorID)
	return nil
}

// runGetMore drives the non-EXHAUST path: one initial QUERY, then a
// GETMORE per subsequent batch, continuing while the cursor is open, the
// limit (if any) has not been reached, and the visitor has not stopped.
func (c *Cursor) runGetMore(ctx context.Context, query wiremessage.Query, cursorID *int64, offset *int32, processBatch func(*wiremessage.Reply) bool) error {
	reply, err := c.conn.Submit(ctx, func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error) {
		return p.Query(ctx, query)
	})
	if err != nil {
		return err
	}

	for {
		if !processBatch(reply) {
			return nil
		}
		if *cursorID == 0 {
			return nil
		}
		if c.p.Limit > 0 && *offset >= c.p.Limit {
			return nil
		}

		c.logLifecycle("getmore", *cursorID)
		reply, err = c.conn.Submit(ctx, func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error) {
			return p.GetMore(ctx, wiremessage.GetMore{
				FullCollection: c.p.fullCollection(),
				NumberToReturn: c.p.BatchSize,
				CursorID:       *cursorID,
			})
		})
		if err != nil {
			return err
		}
	}
}

// runExhaust drives the EXHAUST path: the server pushes REPLYs
// unprompted, so the Cursor just keeps draining them until the cursor id
// reaches zero or the visitor stops. Per this core's stated policy, limit
// is not treated as an upper bound to stop early in this mode — the
// caller's visitor is the only thing that can stop the drain, since the
// wire offers no way to tell the server to stop pushing mid-stream.
func (c *Cursor) runExhaust(ctx context.Context, query wiremessage.Query, processBatch func(*wiremessage.Reply) bool) error {
	return c.conn.StreamQuery(ctx, query, func(reply *wiremessage.Reply) (bool, error) {
		return processBatch(reply), nil
	})
}

// killIfOpen fires a best-effort OP_KILL_CURSORS for id, ignoring the
// result: kill-cursors is fire-and-forget by design, so a failure here
// only means the server will reap it on its own idle-cursor timeout.
func (c *Cursor) killIfOpen(id int64) {
	if id == 0 {
		return
	}
	_, _ = c.conn.Submit(context.Background(), func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error) {
		err := p.KillCursors(wiremessage.KillCursors{CursorIDs: []int64{id}})
		return nil, err
	})
	c.logLifecycle("killed", id)
}

func (c *Cursor) logLifecycle(event string, cursorID int64) {
	if c.log == nil {
		return
	}
	c.log.Print(logger.LevelDebug, logger.CursorLifecycleMessage{Event: event, CursorID: cursorID})
}

func fieldsBytes(d bsoncore.Document) []byte {
	if d == nil {
		return nil
	}
	return d.Bytes()
}
