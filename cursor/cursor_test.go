// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package cursor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/streamdb/mongowire/bsoncore"
	"github.com/streamdb/mongowire/core/connection"
	"github.com/streamdb/mongowire/internal/iostream"
	"github.com/streamdb/mongowire/wireconcern"
	"github.com/streamdb/mongowire/wiremessage"
)

// fakeHost answers the first command query over conn with ismasterDoc, then
// hands every later message to handle.
func fakeHost(t *testing.T, conn net.Conn, ismasterDoc bsoncore.Document, handle func(wiremessage.Message, wiremessage.Header) []byte) {
	t.Helper()
	in := iostream.NewInputStream("fake-host", conn, conn)
	first := true
	for {
		msg, hdr, err := in.ReadMessage(context.Background())
		if err != nil {
			return
		}
		if first {
			first = false
			if q, ok := msg.(*wiremessage.Query); ok && q.IsCommand() {
				reply := wiremessage.Reply{NumberReturned: 1, Documents: []bsoncore.Document{ismasterDoc}}
				if _, err := conn.Write(reply.Save(0, hdr.RequestID)); err != nil {
					return
				}
				continue
			}
		}
		if out := handle(msg, hdr); out != nil {
			if _, err := conn.Write(out); err != nil {
				return
			}
		}
	}
}

func testConnection(t *testing.T, handle func(wiremessage.Message, wiremessage.Header) []byte) *connection.Connection {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	ismaster := bsoncore.NewEmpty().AppendBoolean("ok", true).AppendBoolean("ismaster", true)
	go fakeHost(t, server, ismaster, handle)

	dial := func(ctx context.Context, host string) (net.Conn, error) {
		return client, nil
	}
	opts := connection.Options{Hosts: []string{"a:27017"}, WriteConcern: wireconcern.Default}
	c := connection.New("test", opts, dial, nil, nil)
	t.Cleanup(c.Dispose)
	return c
}

func TestCursorForEachDrainsGetMoreBatches(t *testing.T) {
	var getMores int
	conn := testConnection(t, func(msg wiremessage.Message, hdr wiremessage.Header) []byte {
		switch m := msg.(type) {
		case *wiremessage.Query:
			reply := wiremessage.Reply{
				CursorID:       42,
				NumberReturned: 1,
				Documents:      []bsoncore.Document{bsoncore.NewEmpty().AppendInt32("_id", 1)},
			}
			return reply.Save(0, hdr.RequestID)
		case *wiremessage.GetMore:
			getMores++
			if getMores == 1 {
				reply := wiremessage.Reply{
					CursorID:       42,
					NumberReturned: 1,
					Documents:      []bsoncore.Document{bsoncore.NewEmpty().AppendInt32("_id", 2)},
				}
				return reply.Save(0, hdr.RequestID)
			}
			reply := wiremessage.Reply{CursorID: 0, NumberReturned: 0}
			return reply.Save(0, hdr.RequestID)
		default:
			_ = m
			return nil
		}
	})

	c := New(conn, Params{Database: "test", Collection: "things", Query: bsoncore.NewEmpty(), BatchSize: 1}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var seen []int32
	err := c.ForEach(ctx, func(doc bsoncore.Document) (bool, error) {
		it := doc.Iterator()
		for it.Next() {
			if it.Key() == "_id" {
				if n, ok := it.Int32(); ok {
					seen = append(seen, n)
				}
			}
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("seen = %v", seen)
	}
	if getMores != 2 {
		t.Fatalf("getMores = %d, want 2", getMores)
	}
}

func TestCursorAbortTriggersKillCursors(t *testing.T) {
	killed := make(chan int64, 1)
	conn := testConnection(t, func(msg wiremessage.Message, hdr wiremessage.Header) []byte {
		switch m := msg.(type) {
		case *wiremessage.Query:
			reply := wiremessage.Reply{
				CursorID:       7,
				NumberReturned: 3,
				Documents: []bsoncore.Document{
					bsoncore.NewEmpty().AppendInt32("_id", 1),
					bsoncore.NewEmpty().AppendInt32("_id", 2),
					bsoncore.NewEmpty().AppendInt32("_id", 3),
				},
			}
			return reply.Save(0, hdr.RequestID)
		case *wiremessage.KillCursors:
			if len(m.CursorIDs) == 1 {
				killed <- m.CursorIDs[0]
			}
			return nil
		default:
			return nil
		}
	})

	c := New(conn, Params{Database: "test", Collection: "things", Query: bsoncore.NewEmpty(), BatchSize: 3}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var count int
	err := c.ForEach(ctx, func(doc bsoncore.Document) (bool, error) {
		count++
		return count < 3, nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	select {
	case id := <-killed:
		if id != 7 {
			t.Fatalf("killed cursor id = %d, want 7", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw kill-cursors")
	}
}

func TestCursorVisitorErrorPropagatesAndKills(t *testing.T) {
	killed := make(chan struct{}, 1)
	wantErr := errors.New("visitor blew up")

	conn := testConnection(t, func(msg wiremessage.Message, hdr wiremessage.Header) []byte {
		switch m := msg.(type) {
		case *wiremessage.Query:
			reply := wiremessage.Reply{
				CursorID:       9,
				NumberReturned: 1,
				Documents:      []bsoncore.Document{bsoncore.NewEmpty().AppendInt32("_id", 1)},
			}
			return reply.Save(0, hdr.RequestID)
		case *wiremessage.KillCursors:
			_ = m
			killed <- struct{}{}
			return nil
		default:
			return nil
		}
	})

	c := New(conn, Params{Database: "test", Collection: "things", Query: bsoncore.NewEmpty(), BatchSize: 1}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.ForEach(ctx, func(doc bsoncore.Document) (bool, error) {
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	select {
	case <-killed:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw kill-cursors after visitor error")
	}
}

func TestCursorCountReadsNField(t *testing.T) {
	conn := testConnection(t, func(msg wiremessage.Message, hdr wiremessage.Header) []byte {
		q, ok := msg.(*wiremessage.Query)
		if !ok || !q.IsCommand() {
			return nil
		}
		reply := wiremessage.Reply{
			NumberReturned: 1,
			Documents:      []bsoncore.Document{bsoncore.NewEmpty().AppendInt32("n", 5).AppendBoolean("ok", true)},
		}
		return reply.Save(0, hdr.RequestID)
	})

	c := New(conn, Params{Database: "test", Collection: "things", Query: bsoncore.NewEmpty()}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := c.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}
}
