package knimekit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbfi/knimekit/config"
	"github.com/sbfi/knimekit/watch"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Data {
	conf := config.New()
	conf.WatchDir = t.TempDir()
	conf.Extension = "pdf"
	conf.MaxWait = 2 * time.Second
	conf.Interval = 50 * time.Millisecond
	conf.LogLevel = "silent"
	conf.Storage.Dir = filepath.Join(t.TempDir(), "storage")

	return conf
}

func TestAutomationCollect(t *testing.T) {
	conf := testConfig(t)

	a, err := New(conf)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(conf.WatchDir, "report.pdf"), []byte("payload"), 0644))

	results, err := a.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	data, err := os.ReadFile(results[0].FinalPath)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	// The steps show up in the exported history.
	table := a.History()
	require.NotEmpty(t, table.Rows)
	require.Equal(t, []string{"Date", "Function", "Message", "IsError"}, table.Columns())
}

func TestAutomationTimeout(t *testing.T) {
	conf := testConfig(t)
	conf.MaxWait = 300 * time.Millisecond

	a, err := New(conf)
	require.NoError(t, err)

	_, err = a.Collect(context.Background())
	require.ErrorIs(t, err, watch.ErrTimeout)

	rows := a.History().Rows
	require.NotEmpty(t, rows)
	require.True(t, rows[len(rows)-1].IsError)
}

func TestAutomationInvalidConfig(t *testing.T) {
	conf := config.New()
	// No extension configured.
	conf.WatchDir = t.TempDir()

	_, err := New(conf)
	require.Error(t, err)
}
