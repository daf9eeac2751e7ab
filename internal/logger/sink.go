// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"fmt"
	"os"
)

// LogSink is a subset of go-logr/logr's LogSink interface: a level-tagged,
// structured info writer.
type LogSink interface {
	Info(level int, msg string, keysAndValues ...interface{})
}

const logSinkPathEnvVar = "MONGOWIRE_LOG_PATH"

const (
	logSinkPathStdout = "stdout"
	logSinkPathStderr = "stderr"
)

type osSink struct {
	w *os.File
}

func newOSSink(w *os.File) *osSink {
	return &osSink{w: w}
}

// Info implements LogSink by writing a single formatted line.
func (s *osSink) Info(level int, msg string, keysAndValues ...interface{}) {
	fmt.Fprintf(s.w, "[%d] %s %v\n", level, msg, keysAndValues)
}

func getEnvLogSink() LogSink {
	switch os.Getenv(logSinkPathEnvVar) {
	case logSinkPathStdout:
		return newOSSink(os.Stdout)
	case logSinkPathStderr:
		return newOSSink(os.Stderr)
	default:
		return nil
	}
}

func selectLogSink(override LogSink) LogSink {
	if override != nil {
		return override
	}
	if sink := getEnvLogSink(); sink != nil {
		return sink
	}
	return newOSSink(os.Stderr)
}
