// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package iostream

import (
	"io"
	"math/rand"
	"sync"
)

// CompletionMode selects when a queued write is considered done, which in
// turn decides what OutputStream hands back to the caller.
type CompletionMode int

const (
	// CompleteOnWrite resolves as soon as the bytes have left the local
	// buffer; used for MSG, KILL_CURSORS, and unacknowledged
	// (fire-and-forget) mutations.
	CompleteOnWrite CompletionMode = iota
	// CompleteOnReply resolves once a REPLY tagged with the matching
	// responseTo has been dispatched back by the caller's read side;
	// used for QUERY and GETMORE.
	CompleteOnReply
	// CompleteOnGetLastError resolves once the getLastError companion
	// query appended at requestID+1 has replied; used for acknowledged
	// mutations (UPDATE, INSERT, DELETE).
	CompleteOnGetLastError
)

// pendingWrite is one entry in the tail write queue: a fully serialized
// frame plus how its caller wants to learn it is done.
type pendingWrite struct {
	frame []byte
	mode  CompletionMode
	done  chan error
}

// OutputStream serializes writes to a duplex stream: one goroutine drains
// a queue so that frames are never interleaved, and produces the sequence
// of request identifiers this protocol's correlation table keys on.
type OutputStream struct {
	id string
	w  io.Writer

	mu      sync.Mutex
	nextID  int32
	queue   chan pendingWrite
	closed  chan struct{}
	closeMu sync.Once
}

// MaxRequestID is the wrap point for the request-id counter: on reaching
// it the next id issued is 1, never 0 (0 is reserved by convention for
// "no response expected").
const MaxRequestID = 1<<31 - 1

// NewOutputStream wraps w as a frame sink identified by id, seeding the
// request-id counter at a random value in [1, 2^31) and starting the
// single writer goroutine that drains the tail queue.
func NewOutputStream(id string, w io.Writer) *OutputStream {
	s := &OutputStream{
		id:     id,
		w:      w,
		nextID: 1 + rand.Int31n(MaxRequestID),
		queue:  make(chan pendingWrite, 64),
		closed: make(chan struct{}),
	}
	go s.run()
	return s
}

// NextRequestID returns the next request identifier and advances the
// counter, wrapping to 1 past MaxRequestID.
func (s *OutputStream) NextRequestID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	if s.nextID == MaxRequestID {
		s.nextID = 1
	} else {
		s.nextID++
	}
	return id
}

// Enqueue appends frame to the tail write queue and blocks until it has
// been handed to the underlying writer (CompleteOnWrite semantics are
// resolved here; CompleteOnReply/CompleteOnGetLastError only mark that the
// bytes are on the wire — the caller's request table resolves the rest
// once a matching reply arrives).
func (s *OutputStream) Enqueue(frame []byte, mode CompletionMode) error {
	pw := pendingWrite{frame: frame, mode: mode, done: make(chan error, 1)}
	select {
	case s.queue <- pw:
	case <-s.closed:
		return Error{StreamID: s.id, message: msgClosedStream}
	}
	select {
	case err := <-pw.done:
		return err
	case <-s.closed:
		return Error{StreamID: s.id, message: msgClosedStream}
	}
}

// run drains the tail write queue on a single goroutine so frames are never
// interleaved. A write error or short write is fatal: the current waiter is
// failed, the stream is closed, and the loop stops — any frame still sitting
// in the queue is left for Dispose to unblock with a closed-stream error
// rather than attempted against a now-unreliable writer.
func (s *OutputStream) run() {
	for {
		select {
		case pw := <-s.queue:
			n, err := s.w.Write(pw.frame)
			if err == nil && n != len(pw.frame) {
				err = Error{StreamID: s.id, message: msgShortWrite}
			} else if err != nil {
				err = Error{StreamID: s.id, Wrapped: err, message: msgShortWrite}
			}
			pw.done <- err
			if err != nil {
				s.Dispose()
				return
			}
		case <-s.closed:
			return
		}
	}
}

// Dispose stops accepting new writes; anything already sitting in the
// queue unblocks its caller with a closed-stream error via the select in
// Enqueue. Safe to call more than once.
func (s *OutputStream) Dispose() {
	s.closeMu.Do(func() {
		close(s.closed)
	})
}
