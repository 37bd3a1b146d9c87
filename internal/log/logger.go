// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is a levelled logger carrying ordered key value context pairs.
// It is thread safe to use.
type Logger struct {
	settings settings
	mutex    *sync.Mutex // pointer for child loggers
}

type settings struct {
	level   *Level
	writer  io.Writer
	context []contextKeyValues
}

type contextKeyValues struct {
	key    string
	values []string
}

func (s *settings) mergeWith(parent settings) {
	if s.level == nil {
		s.level = parent.level
	}
	if s.writer == nil {
		s.writer = parent.writer
	}
	s.context = append(append([]contextKeyValues{}, parent.context...), s.context...)
}

func (s *settings) setDefaults() {
	if s.level == nil {
		level := Info
		s.level = &level
	}
	if s.writer == nil {
		s.writer = os.Stdout
	}
}

// Option is the type to specify settings modifiers
// for the logger operation.
type Option func(s *settings)

// SetLevel sets the level for the logger.
// The level defaults to info.
func SetLevel(level Level) Option {
	return func(s *settings) {
		s.level = &level
	}
}

// SetWriter sets the writer for the logger.
// The writer defaults to os.Stdout.
func SetWriter(writer io.Writer) Option {
	return func(s *settings) {
		s.writer = writer
	}
}

// AddContext adds the context for the logger as a key values pair.
// It adds them in order. If a key already exists, the value is added
// to the existing values.
func AddContext(key, value string) Option {
	return func(s *settings) {
		for i := range s.context {
			if s.context[i].key == key {
				s.context[i].values = append(s.context[i].values, value)
				return
			}
		}
		newKV := contextKeyValues{key: key, values: []string{value}}
		s.context = append(s.context, newKV)
	}
}

// New creates a new logger. If you want to create more loggers with
// different settings for the same writer, child loggers can be created
// using the New method on the logger, to ensure thread safety on the
// same writer.
func New(options ...Option) *Logger {
	var s settings
	for _, option := range options {
		option(&s)
	}
	s.setDefaults()

	return &Logger{
		settings: s,
		mutex:    new(sync.Mutex),
	}
}

// New creates a new thread safe child logger.
func (l *Logger) New(options ...Option) *Logger {
	var s settings
	for _, option := range options {
		option(&s)
	}
	s.mergeWith(l.settings)
	s.setDefaults()

	return &Logger{
		settings: s,
		mutex:    l.mutex,
	}
}

// Patch patches the existing settings with the options given.
func (l *Logger) Patch(options ...Option) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, option := range options {
		option(&l.settings)
	}
}

func (l *Logger) log(logLevel Level, s string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if *l.settings.level > logLevel {
		return
	}

	line := time.Now().Format("2006-01-02T15:04:05") +
		" " + logLevel.ColouredString() + " " + s
	if len(l.settings.context) > 0 {
		keyValues := make([]string, 0, len(l.settings.context))
		for _, kvs := range l.settings.context {
			keyValues = append(keyValues, kvs.key+"="+strings.Join(kvs.values, ","))
		}
		line += "\t" + strings.Join(keyValues, " ")
	}

	fmt.Fprintln(l.settings.writer, line)
}

// Trace logs with the trce level.
func (l *Logger) Trace(s string) { l.log(Trace, s) }

// Debug logs with the dbug level.
func (l *Logger) Debug(s string) { l.log(Debug, s) }

// Info logs with the info level.
func (l *Logger) Info(s string) { l.log(Info, s) }

// Warn logs with the warn level.
func (l *Logger) Warn(s string) { l.log(Warn, s) }

// Error logs with the eror level.
func (l *Logger) Error(s string) { l.log(Error, s) }

// Critical logs with the crit level.
func (l *Logger) Critical(s string) { l.log(Critical, s) }

// Tracef formats and logs at the trce level.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.log(Trace, fmt.Sprintf(format, args...))
}

// Debugf formats and logs at the dbug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(Debug, fmt.Sprintf(format, args...))
}

// Infof formats and logs at the info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(Info, fmt.Sprintf(format, args...))
}

// Warnf formats and logs at the warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(Warn, fmt.Sprintf(format, args...))
}

// Errorf formats and logs at the eror level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(Error, fmt.Sprintf(format, args...))
}

// Criticalf formats and logs at the crit level.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.log(Critical, fmt.Sprintf(format, args...))
}
