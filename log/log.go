// Package log provides an opiniated logging facility with only 4 log levels.
package log

import (
	"fmt"
	"maps"
	"runtime"
	"strings"
	"time"
)

// Level represents a log level
type Level uint

const (
	Lsilent Level = 0
	Lerror  Level = 1
	Lwarn   Level = 2
	Linfo   Level = 3
	Ldebug  Level = 4
)

// String returns a string representing the log level.
func (level Level) String() string {
	names := []string{
		"SILENT",
		"ERROR",
		"WARN",
		"INFO",
		"DEBUG",
	}

	if level > Ldebug {
		return "UNKNOWN"
	}

	return names[level]
}

// ParseLevel returns the level for a name. Unknown names map to Linfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "silent":
		return Lsilent
	case "error":
		return Lerror
	case "warn":
		return Lwarn
	case "debug":
		return Ldebug
	default:
		return Linfo
	}
}

type Fields map[string]interface{}

// Logger is an interface that provides means for writing log messages.
//
// There are 4 log levels available (debug, info, warn, error) with increasing
// severity. A message will be written to an output if the log level of the
// message has the same or a higher severity than the output. Otherwise it
// will be discarded.
//
// The component is a string that represents who wrote the message, e.g. the
// automation step or function name.
type Logger interface {
	// WithOutput returns a new Logger that writes to the provided writer.
	WithOutput(w Writer) Logger

	// WithComponent returns a new Logger with the given component name.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	WithError(err error) Logger

	// Log writes a message to all registered outputs. The message will be
	// formatted according to fmt.Printf().
	Log(format string, args ...interface{})

	// Debug returns a Logger whose next Log call writes with debug level.
	Debug() Logger

	// Info returns a Logger whose next Log call writes with info level.
	Info() Logger

	// Warn returns a Logger whose next Log call writes with warn level.
	Warn() Logger

	// Error returns a Logger whose next Log call writes with error level.
	Error() Logger

	Close()
}

// logger is an implementation of the Logger interface.
type logger struct {
	output    Writer
	component string
}

// New returns an implementation of the Logger interface.
func New(component string) Logger {
	return &logger{
		component: component,
	}
}

func (l *logger) clone() *logger {
	return &logger{
		output:    l.output,
		component: l.component,
	}
}

func (l *logger) Close() {
	if l.output != nil {
		l.output.Close()
	}
}

func (l *logger) WithOutput(w Writer) Logger {
	clone := l.clone()
	clone.output = w

	return clone
}

func (l *logger) WithComponent(component string) Logger {
	clone := l.clone()
	clone.component = component

	return clone
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return newEvent(l).WithField(key, value)
}

func (l *logger) WithFields(f Fields) Logger {
	return newEvent(l).WithFields(f)
}

func (l *logger) WithError(err error) Logger {
	return newEvent(l).WithError(err)
}

func (l *logger) Log(format string, args ...interface{}) {
	newEvent(l).Log(format, args...)
}

func (l *logger) Debug() Logger { return newEvent(l).Debug() }
func (l *logger) Info() Logger  { return newEvent(l).Info() }
func (l *logger) Warn() Logger  { return newEvent(l).Warn() }
func (l *logger) Error() Logger { return newEvent(l).Error() }

// Event is a single log message on its way to the outputs.
type Event struct {
	logger *logger

	Time      time.Time
	Level     Level
	Component string
	Caller    string
	Message   string

	Data Fields
}

func newEvent(l *logger) Logger {
	return &Event{
		logger:    l,
		Component: l.component,
		Data:      Fields{},
	}
}

func (e *Event) clone() *Event {
	return &Event{
		logger:    e.logger,
		Time:      e.Time,
		Level:     e.Level,
		Component: e.Component,
		Caller:    e.Caller,
		Message:   e.Message,
		Data:      maps.Clone(e.Data),
	}
}

func (e *Event) Close() {
	e.logger.Close()
}

func (e *Event) WithOutput(w Writer) Logger {
	return e.logger.WithOutput(w)
}

func (e *Event) WithComponent(component string) Logger {
	clone := e.clone()
	clone.Component = component

	return clone
}

func (e *Event) WithField(key string, value interface{}) Logger {
	return e.WithFields(Fields{key: value})
}

func (e *Event) WithFields(f Fields) Logger {
	clone := e.clone()

	if clone.Data == nil {
		clone.Data = Fields{}
	}

	for k, v := range f {
		clone.Data[k] = v
	}

	return clone
}

func (e *Event) WithError(err error) Logger {
	if err == nil {
		return e
	}

	return e.WithFields(Fields{"error": err})
}

func (e *Event) Log(format string, args ...interface{}) {
	if e.logger.output == nil {
		return
	}

	_, file, line, _ := runtime.Caller(1)

	n := e.clone()
	n.logger = nil
	n.Time = time.Now()
	n.Caller = fmt.Sprintf("%s:%d", file, line)

	if n.Level == Lsilent {
		n.Level = Ldebug
	}

	if len(format) != 0 {
		if len(args) == 0 {
			n.Message = format
		} else {
			n.Message = fmt.Sprintf(format, args...)
		}
	}

	e.logger.output.Write(n)
}

func (e *Event) Debug() Logger {
	clone := e.clone()
	clone.Level = Ldebug

	return clone
}

func (e *Event) Info() Logger {
	clone := e.clone()
	clone.Level = Linfo

	return clone
}

func (e *Event) Warn() Logger {
	clone := e.clone()
	clone.Level = Lwarn

	return clone
}

func (e *Event) Error() Logger {
	clone := e.clone()
	clone.Level = Lerror

	return clone
}
