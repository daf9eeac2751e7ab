// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package topology implements the replica-set discovery Manager: a
// seed/discovered host list with an iteration cursor and exponential
// backoff, validated candidate-by-candidate via an ismaster command.
package topology

import (
	"math/rand"
	"sync"
	"time"
)

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 1000 * time.Millisecond
	backoffCap = 60000 * time.Millisecond
)

// Manager walks a changing list of seed and discovered hosts, handing out
// one candidate per Next call and tracking an exponential reconnection
// delay for when the list is exhausted.
type Manager struct {
	mu         sync.Mutex
	seeds      []string
	discovered []string
	cursor     int
	delay      time.Duration
	rnd        *rand.Rand
}

// NewManager constructs a Manager seeded with hosts in URI order.
func NewManager(seeds []string) *Manager {
	m := &Manager{
		seeds: append([]string(nil), seeds...),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	m.delay = m.randomInitialDelay()
	return m
}

func (m *Manager) randomInitialDelay() time.Duration {
	span := int64(maxBackoff - minBackoff)
	return minBackoff + time.Duration(m.rnd.Int63n(span+1))
}

// Next returns the next candidate host:port to try, walking seeds then
// discovered hosts. ok is false once both lists are exhausted for this
// cycle; Delay then reports how long to wait before calling ResetCycle and
// trying again.
func (m *Manager) Next() (host string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor < len(m.seeds) {
		host = m.seeds[m.cursor]
		m.cursor++
		return host, true
	}
	discoveredIdx := m.cursor - len(m.seeds)
	if discoveredIdx < len(m.discovered) {
		host = m.discovered[discoveredIdx]
		m.cursor++
		return host, true
	}
	return "", false
}

// Delay reports the currently suggested retry delay and then doubles it,
// capped at backoffCap, so repeated exhausted cycles back off further.
func (m *Manager) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.delay
	next := d * 2
	if next > backoffCap {
		next = backoffCap
	}
	m.delay = next
	return d
}

// ResetCycle rewinds the iteration cursor to the start of the seed list,
// so the next Next call begins a fresh pass over seeds-then-discovered.
func (m *Manager) ResetCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = 0
}

// ResetDelay restores the reconnection delay to a fresh random value,
// called when a candidate is confirmed primary.
func (m *Manager) ResetDelay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = m.randomInitialDelay()
}

// AddDiscovered appends host to the discovered list if not already present
// among seeds or discovered hosts.
func (m *Manager) AddDiscovered(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.seeds {
		if s == host {
			return
		}
	}
	for _, d := range m.discovered {
		if d == host {
			return
		}
	}
	m.discovered = append(m.discovered, host)
}

// Hosts returns a snapshot of seed and discovered hosts, for diagnostics.
func (m *Manager) Hosts() (seeds, discovered []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seeds...), append([]string(nil), m.discovered...)
}
