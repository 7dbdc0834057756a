// Package eventlog records a chronological history of automation steps and
// exports it as a table that a workflow engine can ingest.
package eventlog

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Entry is a single recorded automation step. Immutable once appended.
type Entry struct {
	Date     time.Time
	Function string
	Message  string
	IsError  bool
}

// Log is an append-only, insertion-ordered list of entries. Appends are
// serialized, the zero value is ready to use.
type Log struct {
	lock    sync.Mutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

// Record appends an entry with the current timestamp. It never fails and
// performs no validation on the content.
func (l *Log) Record(function, message string, isError bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.entries = append(l.entries, Entry{
		Date:     time.Now(),
		Function: function,
		Message:  message,
		IsError:  isError,
	})
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	return len(l.entries)
}

// Export returns a copy of all entries in insertion order. The caller can't
// mutate the log's history through the returned table.
func (l *Log) Export() Table {
	l.lock.Lock()
	defer l.lock.Unlock()

	rows := make([]Entry, len(l.entries))
	copy(rows, l.entries)

	return Table{Rows: rows}
}

// Table is an exported snapshot of a Log.
type Table struct {
	Rows []Entry
}

// Columns returns the column names in their fixed order.
func (t Table) Columns() []string {
	return []string{"Date", "Function", "Message", "IsError"}
}

const defaultDateFormat = "%Y-%m-%d %H:%M:%S"

// WriteCSV writes the table including a header row. The date column is
// formatted with the given strftime pattern, or a sensible default if the
// pattern is empty.
func (t Table) WriteCSV(w io.Writer, dateFormat string) error {
	if dateFormat == "" {
		dateFormat = defaultDateFormat
	}

	pattern, err := strftime.New(dateFormat)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns()); err != nil {
		return err
	}

	for _, row := range t.Rows {
		record := []string{
			pattern.FormatString(row.Date),
			row.Function,
			row.Message,
			strconv.FormatBool(row.IsError),
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}
