package eventlog

import (
	"github.com/sbfi/knimekit/log"
)

// writer captures ambient log events into an event log. Warnings and errors
// are recorded as error entries.
type writer struct {
	log *Log
}

// NewWriter returns a log.Writer that appends every written event to l. It
// can be chained with other writers via log.NewMultiWriter.
func NewWriter(l *Log) log.Writer {
	return &writer{log: l}
}

func (w *writer) Write(e *log.Event) error {
	if e.Level == log.Lsilent {
		return nil
	}

	isError := e.Level == log.Lerror || e.Level == log.Lwarn

	w.log.Record(e.Component, e.Message, isError)

	return nil
}

func (w *writer) Close() {}
