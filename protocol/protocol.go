// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package protocol

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/streamdb/mongowire/bsoncore"
	"github.com/streamdb/mongowire/internal/iostream"
	"github.com/streamdb/mongowire/internal/logger"
	"github.com/streamdb/mongowire/metrics"
	"github.com/streamdb/mongowire/wireconcern"
	"github.com/streamdb/mongowire/wiremessage"
)

// Result is what a round-tripping write helper's waiter is fulfilled with.
type Result struct {
	Reply *wiremessage.Reply
	Err   error
}

type waiter struct {
	resultCh chan Result
	// streaming marks a waiter fed by more than one REPLY against the same
	// request id (EXHAUST-mode cursors). dispatch leaves it registered
	// until the caller unregisters it, instead of deleting it on first
	// match like every other write helper's waiter.
	streaming bool
	// admittedAt is when this waiter was registered in the request table,
	// for the admission-to-dispatch latency histogram.
	admittedAt time.Time
}

// Protocol owns a connection's InputStream/OutputStream pair, dispatches
// incoming REPLYs to the waiter registered under their response_to, and
// exposes one async write helper per legacy operation kind.
type Protocol struct {
	id       string
	stream   io.Closer
	in       *iostream.InputStream
	out      *iostream.OutputStream
	defaults wireconcern.WriteConcern
	log      *logger.Logger
	rec      *metrics.Recorder

	mu     sync.Mutex
	table  map[int32]*waiter
	nextID int32

	closeOnce sync.Once
	closed    chan struct{}
	failErr   error
}

// New constructs a Protocol over stream, baking defaults into every
// getLastError its update/insert/delete helpers append.
func New(id string, stream io.ReadWriteCloser, defaults wireconcern.WriteConcern, log *logger.Logger, rec *metrics.Recorder) *Protocol {
	p := &Protocol{
		id:       id,
		stream:   stream,
		in:       iostream.NewInputStream(id, stream, stream),
		out:      iostream.NewOutputStream(id, stream),
		defaults: defaults,
		log:      log,
		rec:      rec,
		table:    make(map[int32]*waiter),
		nextID:   1 + rand.Int31n(iostream.MaxRequestID-1),
		closed:   make(chan struct{}),
	}
	go p.dispatchLoop()
	return p
}

// nextRequestID allocates the next id from Protocol's own counter, distinct
// from OutputStream's, wrapping to 1 past MaxRequestID.
func (p *Protocol) nextRequestID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	if p.nextID == iostream.MaxRequestID {
		p.nextID = 1
	} else {
		p.nextID++
	}
	return id
}

func (p *Protocol) dispatchLoop() {
	for {
		msg, hdr, err := p.in.ReadMessage(context.Background())
		if err != nil {
			p.fail(err)
			return
		}
		p.dispatch(msg, hdr)
	}
}

func (p *Protocol) dispatch(msg wiremessage.Message, hdr wiremessage.Header) {
	reply, ok := msg.(*wiremessage.Reply)
	if !ok {
		return
	}

	p.mu.Lock()
	w, found := p.table[hdr.ResponseTo]
	if found && !w.streaming {
		delete(p.table, hdr.ResponseTo)
	}
	p.mu.Unlock()

	if found {
		if p.rec != nil {
			p.rec.ObserveReplyLatencySeconds(time.Since(w.admittedAt).Seconds())
		}
		w.resultCh <- Result{Reply: reply}
	}

	if p.log != nil {
		p.log.Print(logger.LevelDebug, logger.ReplyDispatchedMessage{
			ResponseTo: hdr.ResponseTo,
			Matched:    found,
			Reply:      replyDocsString(reply),
		})
	}
}

func replyDocsString(r *wiremessage.Reply) string {
	if r == nil || len(r.Documents) == 0 {
		return ""
	}
	return r.Documents[0].String()
}

// fail drains the request table, fulfilling every waiter with err, and
// disposes the OutputStream. Idempotent.
func (p *Protocol) fail(err error) {
	p.closeOnce.Do(func() {
		p.failErr = err
		close(p.closed)
		p.mu.Lock()
		table := p.table
		p.table = make(map[int32]*waiter)
		p.mu.Unlock()

		for _, w := range table {
			w.resultCh <- Result{Err: err}
		}
		p.out.Dispose()
	})
}

// Done returns a channel that is closed once this Protocol has failed or
// been disposed; Err then reports why.
func (p *Protocol) Done() <-chan struct{} { return p.closed }

// Err reports the failure this Protocol was torn down with. Only
// meaningful after Done is closed.
func (p *Protocol) Err() error { return p.failErr }

// Dispose tears the Protocol down as if its stream had failed, cancelling
// every outstanding waiter and closing the underlying stream so the
// dispatch loop's blocked read unblocks.
func (p *Protocol) Dispose() {
	p.stream.Close()
	p.fail(Error{ConnectionID: p.id, Kind: KindCancelled, message: "disposed"})
}

func (p *Protocol) roundTrip(ctx context.Context, key int32, frame []byte, mode iostream.CompletionMode, op string) (*wiremessage.Reply, error) {
	w := &waiter{resultCh: make(chan Result, 1), admittedAt: time.Now()}
	p.mu.Lock()
	p.table[key] = w
	p.mu.Unlock()
	if p.rec != nil {
		p.rec.RequestStarted()
	}

	if err := p.out.Enqueue(frame, mode); err != nil {
		failErr := Error{ConnectionID: p.id, Kind: KindWrite, Wrapped: err, message: "write helper failed to write"}
		p.fail(failErr)
		if p.rec != nil {
			p.rec.RequestCompleted(op, "error")
		}
		return nil, failErr
	}

	select {
	case res := <-w.resultCh:
		outcome := "ok"
		if res.Err != nil {
			outcome = "error"
		}
		if p.rec != nil {
			p.rec.RequestCompleted(op, outcome)
		}
		return res.Reply, res.Err
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.table, key)
		p.mu.Unlock()
		if p.rec != nil {
			p.rec.RequestCompleted(op, "cancelled")
		}
		return nil, Error{ConnectionID: p.id, Kind: KindCancelled, Wrapped: ctx.Err(), message: "write helper cancelled"}
	}
}

func (p *Protocol) writeOnly(frame []byte, op string) error {
	if p.rec != nil {
		p.rec.RequestStarted()
	}
	err := p.out.Enqueue(frame, iostream.CompleteOnWrite)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		err = Error{ConnectionID: p.id, Kind: KindWrite, Wrapped: err, message: "write helper failed to write"}
		p.fail(err)
	}
	if p.rec != nil {
		p.rec.RequestCompleted(op, outcome)
	}
	return err
}

func (p *Protocol) logWrite(op string, id int32, doc bsoncore.Document) {
	if p.log == nil {
		return
	}
	p.log.Print(logger.LevelDebug, logger.WriteHelperMessage{OpName: op, RequestID: id, Command: doc.String()})
}

// Query issues an OP_QUERY and waits for its REPLY.
func (p *Protocol) Query(ctx context.Context, q wiremessage.Query) (*wiremessage.Reply, error) {
	id := p.nextRequestID()
	p.logWrite("query", id, bsoncore.Document(q.QueryDoc))
	return p.roundTrip(ctx, id, q.Save(id, 0), iostream.CompleteOnReply, "query")
}

// QueryStream issues an OP_QUERY and invokes onReply for every REPLY the
// server sends back against it, including the unsolicited pushes an
// EXHAUST-flagged query receives without a matching GETMORE. onReply
// returns false to stop early; the stream also ends on its own once a
// REPLY reports cursor id zero.
func (p *Protocol) QueryStream(ctx context.Context, q wiremessage.Query, onReply func(*wiremessage.Reply) (bool, error)) error {
	id := p.nextRequestID()
	w := &waiter{resultCh: make(chan Result, 1), streaming: true, admittedAt: time.Now()}
	p.mu.Lock()
	p.table[id] = w
	p.mu.Unlock()
	defer p.unregister(id)

	if p.rec != nil {
		p.rec.RequestStarted()
	}
	p.logWrite("query", id, bsoncore.Document(q.QueryDoc))

	if err := p.out.Enqueue(q.Save(id, 0), iostream.CompleteOnReply); err != nil {
		failErr := Error{ConnectionID: p.id, Kind: KindWrite, Wrapped: err, message: "write helper failed to write"}
		p.fail(failErr)
		if p.rec != nil {
			p.rec.RequestCompleted("query", "error")
		}
		return failErr
	}

	for {
		select {
		case res := <-w.resultCh:
			if res.Err != nil {
				if p.rec != nil {
					p.rec.RequestCompleted("query", "error")
				}
				return res.Err
			}
			cont, err := onReply(res.Reply)
			if err != nil {
				if p.rec != nil {
					p.rec.RequestCompleted("query", "error")
				}
				return err
			}
			if !cont || res.Reply.CursorID == 0 {
				if p.rec != nil {
					p.rec.RequestCompleted("query", "ok")
				}
				return nil
			}
		case <-ctx.Done():
			if p.rec != nil {
				p.rec.RequestCompleted("query", "cancelled")
			}
			return Error{ConnectionID: p.id, Kind: KindCancelled, Wrapped: ctx.Err(), message: "stream query cancelled"}
		}
	}
}

func (p *Protocol) unregister(key int32) {
	p.mu.Lock()
	delete(p.table, key)
	p.mu.Unlock()
}

// GetMore issues an OP_GETMORE and waits for its REPLY.
func (p *Protocol) GetMore(ctx context.Context, g wiremessage.GetMore) (*wiremessage.Reply, error) {
	id := p.nextRequestID()
	p.logWrite("getmore", id, nil)
	return p.roundTrip(ctx, id, g.Save(id, 0), iostream.CompleteOnReply, "getmore")
}

// Msg issues a legacy OP_MSG notice fire-and-forget.
func (p *Protocol) Msg(m wiremessage.Msg) error {
	id := p.nextRequestID()
	p.logWrite("msg", id, nil)
	return p.writeOnly(m.Save(id, 0), "msg")
}

// KillCursors issues OP_KILL_CURSORS fire-and-forget.
func (p *Protocol) KillCursors(k wiremessage.KillCursors) error {
	id := p.nextRequestID()
	p.logWrite("killcursors", id, nil)
	return p.writeOnly(k.Save(id, 0), "killcursors")
}

// Update issues an OP_UPDATE, fusing an appended getLastError built from
// Protocol's default WriteConcern unless that concern is unacknowledged.
func (p *Protocol) Update(ctx context.Context, u wiremessage.Update) (*wiremessage.Reply, error) {
	return p.fusedWrite(ctx, u.Save, u.FullCollection, "update")
}

// Insert issues an OP_INSERT, fusing an appended getLastError as Update does.
func (p *Protocol) Insert(ctx context.Context, ins wiremessage.Insert) (*wiremessage.Reply, error) {
	return p.fusedWrite(ctx, ins.Save, ins.FullCollection, "insert")
}

// Delete issues an OP_DELETE, fusing an appended getLastError as Update does.
func (p *Protocol) Delete(ctx context.Context, d wiremessage.Delete) (*wiremessage.Reply, error) {
	return p.fusedWrite(ctx, d.Save, d.FullCollection, "delete")
}

// fusedWrite implements the UPDATE/INSERT/DELETE write-helper contract: the
// primary message and its appended getLastError are concatenated into one
// buffer and written in a single Enqueue call, so the server receives both
// on the same connection in order. If the default concern is
// unacknowledged, the getLastError is omitted and the call completes on
// write alone.
func (p *Protocol) fusedWrite(ctx context.Context, save func(requestID, responseTo int32) []byte, fullCollection, op string) (*wiremessage.Reply, error) {
	id := p.nextRequestID()
	primary := save(id, 0)

	if !p.defaults.Acknowledged() {
		p.logWrite(op, id, nil)
		return nil, p.writeOnly(primary, op)
	}

	// Consume id+1 from Protocol's own counter so it is never reissued;
	// the counter is thereby advanced twice for one logical write.
	_ = p.nextRequestID()
	getID := id + 1

	getQuery := wiremessage.Query{
		FullCollection: dbCmdCollection(fullCollection),
		NumberToReturn: -1,
		QueryDoc:       p.defaults.GetLastErrorCommand().Bytes(),
	}
	frame := append(primary, getQuery.Save(getID, 0)...)

	p.logWrite(op, id, nil)
	return p.roundTrip(ctx, getID, frame, iostream.CompleteOnGetLastError, op)
}

// dbCmdCollection turns "db.collection" into "db.$cmd", the pseudo
// collection getLastError and other commands are addressed to.
func dbCmdCollection(fullCollection string) string {
	if i := strings.IndexByte(fullCollection, '.'); i >= 0 {
		return fullCollection[:i] + ".$cmd"
	}
	return fullCollection + ".$cmd"
}
