// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package connection presents the single logical endpoint callers submit
// work to: it owns a topology.Manager for host rotation, drives the
// CONNECTING/CONNECTED state machine, queues requests until a primary is
// reachable, and promotes getLastError/command failures to errors.
package connection

import (
	"context"
	"sync"
	"time"

	"github.com/streamdb/mongowire/bsoncore"
	"github.com/streamdb/mongowire/internal/logger"
	"github.com/streamdb/mongowire/metrics"
	"github.com/streamdb/mongowire/protocol"
	"github.com/streamdb/mongowire/topology"
	"github.com/streamdb/mongowire/wiremessage"
)

// State is one of the four states a Connection can be in.
type State int32

const (
	StateInitial State = iota
	StateConnecting
	StateConnected
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisposed:
		return "DISPOSED"
	default:
		return "UNKNOWN"
	}
}

// operation is a unit of work waiting for a live Protocol; run is handed
// the Protocol once one is available.
type operation struct {
	ctx      context.Context
	run      func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error)
	resultCh chan opResult
}

type opResult struct {
	reply *wiremessage.Reply
	err   error
}

// Connection is the public entry point: callers submit write helpers via
// Submit/Command and never see Protocol or topology.Manager directly.
type Connection struct {
	id   string
	opts Options
	dial topology.Dialer
	log  *logger.Logger
	rec  *metrics.Recorder

	mu      sync.Mutex
	state   State
	manager *topology.Manager
	proto   *protocol.Protocol
	queue   []*operation

	disposeOnce sync.Once
	disposed    chan struct{}
}

// New constructs a Connection in state INITIAL. dial opens a duplex byte
// stream to a host:port candidate; tests supply a fake that hands back
// net.Pipe ends.
func New(id string, opts Options, dial topology.Dialer, log *logger.Logger, rec *metrics.Recorder) *Connection {
	return &Connection{
		id:       id,
		opts:     opts,
		dial:     dial,
		log:      log,
		rec:      rec,
		manager:  topology.NewManager(opts.Hosts),
		disposed: make(chan struct{}),
	}
}

func (c *Connection) logTransition(from, to State) {
	if c.log == nil {
		return
	}
	c.log.Print(logger.LevelInfo, logger.StateTransitionMessage{From: from.String(), To: to.String(), Address: c.id})
}

// Submit runs run against a live Protocol, queueing the caller behind
// in-flight discovery or ahead-of-it queued work as the Connection state
// machine requires, and blocks until run completes or ctx is done.
func (c *Connection) Submit(ctx context.Context, run func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error)) (*wiremessage.Reply, error) {
	op := &operation{ctx: ctx, run: run, resultCh: make(chan opResult, 1)}

	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return nil, Error{ConnectionID: c.id, Kind: KindDisposed, message: "connection is disposed"}
	case StateInitial:
		c.state = StateConnecting
		c.queue = append(c.queue, op)
		c.mu.Unlock()
		c.logTransition(StateInitial, StateConnecting)
		go c.discoverLoop()
	case StateConnecting:
		c.queue = append(c.queue, op)
		c.mu.Unlock()
	case StateConnected:
		if len(c.queue) == 0 {
			proto := c.proto
			c.mu.Unlock()
			c.dispatch(op, proto)
		} else {
			c.queue = append(c.queue, op)
			c.mu.Unlock()
		}
	}

	select {
	case res := <-op.resultCh:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) dispatch(op *operation, proto *protocol.Protocol) {
	go func() {
		ctx := op.ctx
		if c.opts.SocketTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.SocketTimeout)
			defer cancel()
		}
		reply, err := op.run(ctx, proto)
		op.resultCh <- opResult{reply: reply, err: err}
	}()
}

func (c *Connection) drainQueue(err error) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, op := range queue {
		op.resultCh <- opResult{err: err}
	}
}

// discoverLoop runs until disposed, cycling candidates, establishing a
// Protocol against the first valid primary, draining the queue into it,
// and restarting discovery if that Protocol later fails.
func (c *Connection) discoverLoop() {
	for {
		c.mu.Lock()
		if c.state == StateDisposed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		host, ok := c.manager.Next()
		if !ok {
			c.drainQueue(Error{ConnectionID: c.id, Kind: KindConnectFailed, message: "no reachable host in the candidate list"})
			delay := c.manager.Delay()
			select {
			case <-time.After(delay):
			case <-c.disposed:
				return
			}
			c.manager.ResetCycle()
			continue
		}

		proto, desc, err := c.tryCandidate(host)
		if err != nil {
			continue
		}

		if desc.Primary != "" {
			c.manager.AddDiscovered(desc.Primary)
		}
		for _, h := range desc.Hosts {
			c.manager.AddDiscovered(h)
		}
		c.manager.ResetDelay()

		c.mu.Lock()
		prev := c.state
		c.proto = proto
		c.state = StateConnected
		queued := c.queue
		c.queue = nil
		c.mu.Unlock()
		c.logTransition(prev, StateConnected)

		for _, op := range queued {
			c.dispatch(op, proto)
		}

		select {
		case <-proto.Done():
		case <-c.disposed:
			return
		}

		c.mu.Lock()
		if c.state == StateDisposed {
			c.mu.Unlock()
			return
		}
		c.proto = nil
		c.state = StateConnecting
		c.mu.Unlock()
		c.logTransition(StateConnected, StateConnecting)
	}
}

// tryCandidate dials host, issues ismaster, and validates it as a usable
// primary. On any failure the Protocol (if constructed) is disposed and an
// error is returned so the caller advances to the next candidate.
func (c *Connection) tryCandidate(host string) (*protocol.Protocol, topology.ServerDescription, error) {
	dialCtx := context.Background()
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, c.opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := c.dial(dialCtx, host)
	if err != nil {
		if c.rec != nil {
			c.rec.DiscoveryAttempt("dial-error")
		}
		return nil, topology.ServerDescription{}, err
	}

	proto := protocol.New(host, conn, c.opts.WriteConcern, c.log, c.rec)

	ismasterCtx := context.Background()
	if c.opts.SocketTimeout > 0 {
		var cancel context.CancelFunc
		ismasterCtx, cancel = context.WithTimeout(ismasterCtx, c.opts.SocketTimeout)
		defer cancel()
	}

	reply, err := proto.Query(ismasterCtx, wiremessage.Query{
		FullCollection: "admin.$cmd",
		NumberToReturn: -1,
		QueryDoc:       bsoncore.NewEmpty().AppendInt32("ismaster", 1).Bytes(),
	})
	if err != nil {
		proto.Dispose()
		if c.rec != nil {
			c.rec.DiscoveryAttempt("ismaster-error")
		}
		return nil, topology.ServerDescription{}, err
	}
	if len(reply.Documents) == 0 {
		proto.Dispose()
		if c.rec != nil {
			c.rec.DiscoveryAttempt("ismaster-error")
		}
		return nil, topology.ServerDescription{}, Error{ConnectionID: c.id, Kind: KindProtocol, message: "empty ismaster reply"}
	}

	desc := topology.ParseServerDescription(reply.Documents[0])
	if !desc.OK || !desc.IsMaster || (c.opts.ReplicaSet != "" && desc.SetName != c.opts.ReplicaSet) {
		proto.Dispose()
		if c.rec != nil {
			c.rec.DiscoveryAttempt("not-primary")
		}
		return nil, topology.ServerDescription{}, Error{ConnectionID: c.id, Kind: KindNotPrimary, message: "candidate is not a usable primary"}
	}

	if c.rec != nil {
		c.rec.DiscoveryAttempt("ok")
	}
	if c.log != nil {
		c.log.Print(logger.LevelInfo, logger.DiscoveryMessage{
			Candidate: host,
			IsPrimary: desc.IsMaster,
			SetName:   desc.SetName,
			NewHosts:  desc.Hosts,
		})
	}

	return proto, desc, nil
}

// StreamQuery submits an OP_QUERY and invokes onReply for every REPLY
// dispatched back against it, including the unsolicited pushes an
// EXHAUST-flagged query receives. Used by cursor.Cursor's EXHAUST drain
// path, which needs more than the single reply Submit's run signature
// otherwise returns.
func (c *Connection) StreamQuery(ctx context.Context, q wiremessage.Query, onReply func(*wiremessage.Reply) (bool, error)) error {
	_, err := c.Submit(ctx, func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error) {
		return nil, p.QueryStream(ctx, q, onReply)
	})
	return err
}

// Command submits cmd against db+".$cmd" and applies getLastError-style
// diagnostic promotion: an ok: falsy reply with a non-empty errmsg becomes
// a command-failed error; otherwise the raw reply document is returned.
func (c *Connection) Command(ctx context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, error) {
	flags := wiremessage.QueryFlags(0)
	if c.opts.SlaveOK {
		flags |= wiremessage.QuerySlaveOK
	}

	reply, err := c.Submit(ctx, func(ctx context.Context, p *protocol.Protocol) (*wiremessage.Reply, error) {
		return p.Query(ctx, wiremessage.Query{
			FullCollection: db + ".$cmd",
			Flags:          flags,
			NumberToReturn: -1,
			QueryDoc:       cmd.Bytes(),
		})
	})
	if err != nil {
		return nil, err
	}
	if reply == nil || len(reply.Documents) == 0 {
		return nil, Error{ConnectionID: c.id, Kind: KindProtocol, message: "empty command reply"}
	}

	doc := reply.Documents[0]
	if failed, errmsg := commandFailure(doc); failed {
		return nil, Error{ConnectionID: c.id, Kind: KindCommandFailed, message: errmsg}
	}
	return doc, nil
}

// Ping issues `{ ismaster: 1 }` against admin and discards the reply,
// returning only whether the round trip succeeded.
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.Command(ctx, "admin", bsoncore.NewEmpty().AppendInt32("ismaster", 1))
	return err
}

// commandFailure reports whether doc is a failed command reply: it has an
// ok field whose value is falsy and a non-empty errmsg field.
func commandFailure(doc bsoncore.Document) (failed bool, errmsg string) {
	it := doc.Iterator()
	sawOK, okTruthy := false, false
	for it.Next() {
		switch it.Key() {
		case "ok":
			sawOK = true
			if b, ok := it.Boolean(); ok {
				okTruthy = b
			} else if f, ok := it.Double(); ok {
				okTruthy = f != 0
			} else if n, ok := it.Int32(); ok {
				okTruthy = n != 0
			} else if n, ok := it.Int64(); ok {
				okTruthy = n != 0
			}
		case "errmsg":
			if s, ok := it.StringValue(); ok {
				errmsg = s
			}
		}
	}
	return sawOK && !okTruthy && errmsg != "", errmsg
}

// SlaveOK reports whether this Connection was configured to allow reads
// against secondaries, for callers (Cursor) that build their own QUERY
// flags rather than going through Command.
func (c *Connection) SlaveOK() bool {
	return c.opts.SlaveOK
}

// Dispose cancels discovery, fails every queued and outstanding request,
// and tears down the live Protocol if any. Idempotent.
func (c *Connection) Dispose() {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		prev := c.state
		c.state = StateDisposed
		proto := c.proto
		c.proto = nil
		queue := c.queue
		c.queue = nil
		c.mu.Unlock()

		close(c.disposed)
		if proto != nil {
			proto.Dispose()
		}
		for _, op := range queue {
			op.resultCh <- opResult{err: Error{ConnectionID: c.id, Kind: KindDisposed, message: "disposed"}}
		}
		c.logTransition(prev, StateDisposed)
	})
}

// State reports the Connection's current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
