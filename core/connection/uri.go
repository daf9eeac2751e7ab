// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/streamdb/mongowire/wireconcern"
)

// Options is the parsed, connection-ready form of a mongodb:// URI.
type Options struct {
	Hosts          []string
	ReplicaSet     string
	SlaveOK        bool
	WriteConcern   wireconcern.WriteConcern
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

// ParseURI parses `mongodb://host[:port][,host[:port]]*[/][?opts]`. A host
// without an explicit port inherits the default Mongo port, 27017.
func ParseURI(uri string) (Options, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Options{}, fmt.Errorf("connection: invalid URI: %w", err)
	}
	if u.Scheme != "mongodb" {
		return Options{}, fmt.Errorf("connection: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Options{}, fmt.Errorf("connection: URI has no host list")
	}

	var hosts []string
	for _, h := range strings.Split(u.Host, ",") {
		if h == "" {
			continue
		}
		if !strings.Contains(h, ":") {
			h += ":27017"
		}
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		return Options{}, fmt.Errorf("connection: URI has no host list")
	}

	opts := Options{
		Hosts:        hosts,
		WriteConcern: wireconcern.Default,
	}

	q := u.Query()
	opts.ReplicaSet = q.Get("replicaSet")

	if v, err := parseBoolOption(q, "slaveOk"); err != nil {
		return Options{}, err
	} else if v {
		opts.SlaveOK = true
	}

	safe := true
	if q.Has("safe") {
		v, err := parseBoolOption(q, "safe")
		if err != nil {
			return Options{}, err
		}
		safe = v
	}

	if v := q.Get("w"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("connection: invalid w option %q: %w", v, err)
		}
		opts.WriteConcern.W = int32(n)
	}
	if !safe {
		opts.WriteConcern.W = wireconcern.Unacknowledged
	}

	if v := q.Get("wtimeoutms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("connection: invalid wtimeoutms option %q: %w", v, err)
		}
		opts.WriteConcern.WTimeoutMS = uint32(n)
	}
	if v, err := parseBoolOption(q, "fsync"); err != nil {
		return Options{}, err
	} else {
		opts.WriteConcern.FSync = v
	}
	if v, err := parseBoolOption(q, "journal"); err != nil {
		return Options{}, err
	} else {
		opts.WriteConcern.Journal = v
	}

	if v := q.Get("connecttimeoutms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("connection: invalid connecttimeoutms option %q: %w", v, err)
		}
		opts.ConnectTimeout = time.Duration(n) * time.Millisecond
	}
	if v := q.Get("sockettimeoutms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("connection: invalid sockettimeoutms option %q: %w", v, err)
		}
		opts.SocketTimeout = time.Duration(n) * time.Millisecond
	}

	return opts, nil
}

func parseBoolOption(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("connection: invalid %s option %q", key, v)
	}
	return b, nil
}
