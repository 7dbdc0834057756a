package eventlog

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sbfi/knimekit/log"

	"github.com/stretchr/testify/require"
)

func TestRecordExport(t *testing.T) {
	l := New()

	l.Record("create_session", "session started", false)
	l.Record("collect", "timeout waiting for download", true)

	table := l.Export()

	require.Equal(t, []string{"Date", "Function", "Message", "IsError"}, table.Columns())
	require.Len(t, table.Rows, 2)

	require.Equal(t, "create_session", table.Rows[0].Function)
	require.Equal(t, "session started", table.Rows[0].Message)
	require.False(t, table.Rows[0].IsError)

	require.Equal(t, "collect", table.Rows[1].Function)
	require.True(t, table.Rows[1].IsError)

	require.False(t, table.Rows[0].Date.IsZero())
	require.False(t, table.Rows[1].Date.Before(table.Rows[0].Date))
}

func TestExportEmpty(t *testing.T) {
	l := New()

	table := l.Export()

	require.Len(t, table.Rows, 0)
	require.Equal(t, []string{"Date", "Function", "Message", "IsError"}, table.Columns())
}

func TestExportOrder(t *testing.T) {
	l := New()

	for i := 0; i < 100; i++ {
		l.Record("step", fmt.Sprintf("message %d", i), false)
	}

	table := l.Export()

	require.Len(t, table.Rows, 100)

	for i, row := range table.Rows {
		require.Equal(t, fmt.Sprintf("message %d", i), row.Message)
	}
}

func TestExportIsCopy(t *testing.T) {
	l := New()

	l.Record("step", "original", false)

	table := l.Export()
	table.Rows[0].Message = "mutated"

	require.Equal(t, "original", l.Export().Rows[0].Message)
}

func TestRecordConcurrent(t *testing.T) {
	l := New()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Record("worker", "message", false)
			}
		}()
	}

	wg.Wait()

	require.Equal(t, 1000, l.Len())
}

func TestWriteCSV(t *testing.T) {
	l := New()

	l.Record("collect", `found "a.pdf"`, false)
	l.Record("collect", "timeout", true)

	var buffer bytes.Buffer
	err := l.Export().WriteCSV(&buffer, "%Y-%m-%d")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Date,Function,Message,IsError", lines[0])
	require.Contains(t, lines[1], "collect")
	require.Contains(t, lines[2], "true")
}

func TestWriteCSVBadPattern(t *testing.T) {
	l := New()

	err := l.Export().WriteCSV(&bytes.Buffer{}, "%Q")
	require.Error(t, err)
}

func TestWriter(t *testing.T) {
	l := New()

	logger := log.New("collect").WithOutput(NewWriter(l))

	logger.Info().Log("found files")
	logger.Error().Log("move failed")

	table := l.Export()
	require.Len(t, table.Rows, 2)
	require.Equal(t, "collect", table.Rows[0].Function)
	require.False(t, table.Rows[0].IsError)
	require.True(t, table.Rows[1].IsError)
}
