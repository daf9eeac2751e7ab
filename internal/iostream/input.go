// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package iostream

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/streamdb/mongowire/internal"
	"github.com/streamdb/mongowire/wiremessage"
)

// InputStream consumes a duplex byte stream and produces a lazy,
// restartable sequence of fully-framed messages. Only one ReadMessage call
// may be in flight at a time; callers serialise their own calls.
type InputStream struct {
	id     string
	r      io.Reader
	closer io.Closer

	listener *internal.CancellationListener
}

// NewInputStream wraps r (and, if non-nil, closer for abort-on-cancel) as a
// framed message source identified by id for diagnostics.
func NewInputStream(id string, r io.Reader, closer io.Closer) *InputStream {
	return &InputStream{
		id:       id,
		r:        r,
		closer:   closer,
		listener: internal.NewCancellationListener(),
	}
}

// ReadMessage performs the two-phase read described by this protocol: fill
// 4 bytes to learn the total length, then fill the remainder, tolerating
// short reads by looping. A cancelled ctx aborts the in-progress read by
// closing the underlying stream and returns a cancelled error without
// invoking any further logic.
func (s *InputStream) ReadMessage(ctx context.Context) (wiremessage.Message, wiremessage.Header, error) {
	type result struct {
		msg wiremessage.Message
		hdr wiremessage.Header
		err error
	}

	done := make(chan result, 1)
	go func() {
		msg, hdr, err := s.readMessageBlocking()
		done <- result{msg, hdr, err}
	}()

	aborted := make(chan struct{})
	go func() {
		s.listener.Listen(ctx, func() {
			if s.closer != nil {
				s.closer.Close()
			}
		})
		close(aborted)
	}()

	r := <-done
	s.listener.StopListening()
	<-aborted

	if r.err != nil {
		if ctx.Err() == context.Canceled {
			return nil, wiremessage.Header{}, Error{StreamID: s.id, Wrapped: ctx.Err(), message: msgCancelled}
		}
		return nil, wiremessage.Header{}, r.err
	}
	return r.msg, r.hdr, nil
}

func (s *InputStream) readMessageBlocking() (wiremessage.Message, wiremessage.Header, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.r, lenBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, wiremessage.Header{}, Error{StreamID: s.id, Wrapped: err, message: msgClosedStream}
		}
		return nil, wiremessage.Header{}, Error{StreamID: s.id, Wrapped: err, message: "failed to read length prefix"}
	}

	total := int32(binary.LittleEndian.Uint32(lenBuf[:]))
	if total <= wiremessage.HeaderLen {
		return nil, wiremessage.Header{}, Error{StreamID: s.id, message: msgInsufficientData}
	}

	buf := make([]byte, total)
	copy(buf[0:4], lenBuf[:])

	// Loop reading the remainder; short reads just advance the offset.
	offset := 4
	for offset < int(total) {
		n, err := s.r.Read(buf[offset:])
		offset += n
		if err != nil {
			if err == io.EOF {
				return nil, wiremessage.Header{}, Error{StreamID: s.id, Wrapped: err, message: msgClosedStream}
			}
			return nil, wiremessage.Header{}, Error{StreamID: s.id, Wrapped: err, message: "failed to read message body"}
		}
	}

	msg, hdr, err := wiremessage.Decode(buf)
	if err != nil {
		return nil, wiremessage.Header{}, Error{StreamID: s.id, Wrapped: err, message: msgMessageInvalid}
	}
	return msg, hdr, nil
}

// Dispose closes the underlying closer, which also ends any read in
// progress.
func (s *InputStream) Dispose() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
