// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

// StateTransitionMessage records a Connection state-machine transition.
type StateTransitionMessage struct {
	From, To string
	Address  string
}

func (StateTransitionMessage) Component() Component { return ComponentConnection }
func (StateTransitionMessage) Text() string          { return "connection state transition" }
func (m StateTransitionMessage) Serialize() []interface{} {
	return []interface{}{"from", m.From, "to", m.To, "address", m.Address}
}

// WriteHelperMessage records a Protocol write-helper invocation (update,
// insert, query, getmore, delete, kill-cursors, msg).
type WriteHelperMessage struct {
	OpName    string
	RequestID int32
	Command   string // rendered BSON, truncated by the logger before the sink sees it
}

func (WriteHelperMessage) Component() Component { return ComponentProtocol }
func (WriteHelperMessage) Text() string          { return "write helper invoked" }
func (m WriteHelperMessage) Serialize() []interface{} {
	return []interface{}{"op", m.OpName, "requestID", m.RequestID, "command", m.Command}
}

// ReplyDispatchedMessage records a REPLY being routed to its waiter.
type ReplyDispatchedMessage struct {
	ResponseTo int32
	Matched    bool
	Reply      string
}

func (ReplyDispatchedMessage) Component() Component { return ComponentProtocol }
func (ReplyDispatchedMessage) Text() string          { return "reply dispatched" }
func (m ReplyDispatchedMessage) Serialize() []interface{} {
	return []interface{}{"responseTo", m.ResponseTo, "matched", m.Matched, "reply", m.Reply}
}

// DiscoveryMessage records an ismaster reply's effect on the topology
// Manager's candidate lists.
type DiscoveryMessage struct {
	Candidate   string
	IsPrimary   bool
	SetName     string
	NewHosts    []string
}

func (DiscoveryMessage) Component() Component { return ComponentTopology }
func (DiscoveryMessage) Text() string          { return "topology discovery" }
func (m DiscoveryMessage) Serialize() []interface{} {
	return []interface{}{"candidate", m.Candidate, "isPrimary", m.IsPrimary, "setName", m.SetName, "newHosts", m.NewHosts}
}

// CursorLifecycleMessage records a cursor open/getmore/close event.
type CursorLifecycleMessage struct {
	Event    string // "opened", "getmore", "killed"
	CursorID int64
}

func (CursorLifecycleMessage) Component() Component { return ComponentCursor }
func (CursorLifecycleMessage) Text() string          { return "cursor lifecycle" }
func (m CursorLifecycleMessage) Serialize() []interface{} {
	return []interface{}{"event", m.Event, "cursorID", m.CursorID}
}
