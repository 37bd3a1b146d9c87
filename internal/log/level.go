// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level is the level of the logger.
type Level uint8

const (
	// Trace is the trace (trce) level.
	Trace Level = iota
	// Debug is the debug (dbug) level.
	Debug
	// Info is the info level.
	Info
	// Warn is the warn level.
	Warn
	// Error is the error (eror) level.
	Error
	// Critical is the critical (crit) level.
	Critical
)

type levelFormat struct {
	name   string
	colour color.Attribute
}

var levelFormats = map[Level]levelFormat{
	Trace:    {name: "TRCE", colour: color.FgHiCyan},
	Debug:    {name: "DBUG", colour: color.FgHiBlue},
	Info:     {name: "INFO", colour: color.FgCyan},
	Warn:     {name: "WARN", colour: color.FgYellow},
	Error:    {name: "EROR", colour: color.FgHiRed},
	Critical: {name: "CRIT", colour: color.FgRed},
}

func (level Level) String() (s string) {
	format, ok := levelFormats[level]
	if !ok {
		return "???"
	}
	return format.name
}

// ColouredString returns the corresponding coloured
// string for the level.
func (level Level) ColouredString() (s string) {
	attribute := color.Reset
	if format, ok := levelFormats[level]; ok {
		attribute = format.colour
	}
	return color.New(attribute).Sprint(level.String())
}

// ErrLevelNotRecognised is an error returned if the level string is
// not recognised by the ParseLevel function.
var ErrLevelNotRecognised = errors.New("level is not recognised")

// ParseLevel parses a string into a level, and returns an
// error if it fails.
func ParseLevel(s string) (level Level, err error) {
	name := strings.ToUpper(s)
	for level, format := range levelFormats {
		if format.name == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrLevelNotRecognised, s)
}
