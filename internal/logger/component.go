// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "os"

// Component names one of this core's four log-producing subsystems.
type Component int

const (
	ComponentConnection Component = iota
	ComponentProtocol
	ComponentTopology
	ComponentCursor
)

// String renders the component's name, used as the MONGOWIRE_LOG_* env var
// suffix and in diagnostics.
func (c Component) String() string {
	switch c {
	case ComponentConnection:
		return "CONNECTION"
	case ComponentProtocol:
		return "PROTOCOL"
	case ComponentTopology:
		return "TOPOLOGY"
	case ComponentCursor:
		return "CURSOR"
	default:
		return "UNKNOWN"
	}
}

const envVarAll = "MONGOWIRE_LOG_ALL"

var allComponents = []Component{ComponentConnection, ComponentProtocol, ComponentTopology, ComponentCursor}

func envVarFor(c Component) string {
	return "MONGOWIRE_LOG_" + c.String()
}

// getEnvComponentLevels builds a component-to-level map from the
// environment, with MONGOWIRE_LOG_ALL taking priority over each component's
// individual variable.
func getEnvComponentLevels() map[Component]Level {
	levels := make(map[Component]Level, len(allComponents))
	global := ParseLevel(os.Getenv(envVarAll))

	for _, c := range allComponents {
		level := global
		if global == LevelOff {
			level = ParseLevel(os.Getenv(envVarFor(c)))
		}
		levels[c] = level
	}
	return levels
}
