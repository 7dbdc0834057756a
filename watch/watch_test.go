package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sbfi/knimekit/event"
	"github.com/sbfi/knimekit/eventlog"
	"github.com/sbfi/knimekit/fs"

	"github.com/stretchr/testify/require"
)

func memStorage(t *testing.T) fs.Filesystem {
	storage, err := fs.NewMemFilesystem(fs.MemConfig{Name: "storage"})
	require.NoError(t, err)

	return storage
}

func writeLater(t *testing.T, delay time.Duration, path, content string) {
	t.Helper()

	timer := time.AfterFunc(delay, func() {
		os.WriteFile(path, []byte(content), 0644)
	})

	t.Cleanup(func() { timer.Stop() })
}

func TestCollectAppearLater(t *testing.T) {
	dir := t.TempDir()
	storage := memStorage(t)

	w, err := New(Config{
		Dir:       dir,
		Extension: ".PDF",
		Storage:   storage,
		MaxWait:   5 * time.Second,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	writeLater(t, 300*time.Millisecond, filepath.Join(dir, "report.pdf"), "payload")

	results, err := w.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Equal(t, "report.pdf", results[0].OriginalName)
	require.Equal(t, "pdf", results[0].Extension)
	require.Equal(t, "/report.pdf", results[0].FinalPath)

	// Moved, not copied.
	_, err = os.Stat(filepath.Join(dir, "report.pdf"))
	require.True(t, os.IsNotExist(err))

	info, err := storage.Stat("/report.pdf")
	require.NoError(t, err)
	require.Equal(t, int64(7), info.Size())
}

func TestCollectTimeout(t *testing.T) {
	dir := t.TempDir()
	storage := memStorage(t)

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   storage,
		MaxWait:   300 * time.Millisecond,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = w.Collect(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	// Storage untouched.
	files, err := storage.List("/", "")
	require.NoError(t, err)
	require.Len(t, files, 0)
}

func TestCollectIgnoresTransient(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft.pdf.crdownload"), []byte("x"), 0644))

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   memStorage(t),
		MaxWait:   300 * time.Millisecond,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = w.Collect(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	// The artifact stays where it is.
	_, err = os.Stat(filepath.Join(dir, "draft.pdf.crdownload"))
	require.NoError(t, err)
}

func TestCollectRename(t *testing.T) {
	dir := t.TempDir()
	storage := memStorage(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("b"), 0644))

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   storage,
		RenameTo:  "report",
		MaxWait:   5 * time.Second,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	results, err := w.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "a.pdf", results[0].OriginalName)
	require.Equal(t, "/report.pdf", results[0].FinalPath)
	require.Equal(t, "b.pdf", results[1].OriginalName)
	require.Equal(t, "/report_1.pdf", results[1].FinalPath)

	_, err = storage.Stat("/report.pdf")
	require.NoError(t, err)
	_, err = storage.Stat("/report_1.pdf")
	require.NoError(t, err)
}

func TestCollectRenameDeconflict(t *testing.T) {
	dir := t.TempDir()
	storage := memStorage(t)

	// Leftover from an earlier run.
	_, err := storage.Store("/report.pdf", strings.NewReader("old"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.pdf"), []byte("new"), 0644))

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   storage,
		RenameTo:  "report",
		MaxWait:   5 * time.Second,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	results, err := w.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "/report_1.pdf", results[0].FinalPath)

	// The earlier file is untouched.
	file, err := storage.Open("/report.pdf")
	require.NoError(t, err)
	defer file.Close()

	buf := make([]byte, 8)
	n, _ := file.Read(buf)
	require.Equal(t, "old", string(buf[:n]))
}

func TestCollectKeepsOriginalName(t *testing.T) {
	dir := t.TempDir()
	storage := memStorage(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Quarterly Numbers.XLSX"), []byte("x"), 0644))

	w, err := New(Config{
		Dir:       dir,
		Extension: "xlsx",
		Storage:   storage,
		MaxWait:   5 * time.Second,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	results, err := w.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The stem keeps its case, the extension is canonical.
	require.Equal(t, "/Quarterly Numbers.xlsx", results[0].FinalPath)
	require.Equal(t, "xlsx", results[0].Extension)
}

func TestCollectDiskStorage(t *testing.T) {
	dir := t.TempDir()

	storage, err := fs.NewDiskFilesystem(fs.DiskConfig{Root: filepath.Join(t.TempDir(), "storage")})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("payload"), 0644))

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   storage,
		MaxWait:   5 * time.Second,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	results, err := w.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	// FinalPath is a real path on disk.
	data, err := os.ReadFile(results[0].FinalPath)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	_, err = os.Stat(filepath.Join(dir, "report.pdf"))
	require.True(t, os.IsNotExist(err))
}

func TestCollectNotify(t *testing.T) {
	dir := t.TempDir()
	storage := memStorage(t)

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   storage,
		MaxWait:   5 * time.Second,
	})
	require.NoError(t, err)

	writeLater(t, 300*time.Millisecond, filepath.Join(dir, "report.pdf"), "payload")

	results, err := w.CollectNotify(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "/report.pdf", results[0].FinalPath)
}

func TestCollectNotifyTimeout(t *testing.T) {
	w, err := New(Config{
		Dir:       t.TempDir(),
		Extension: "pdf",
		Storage:   memStorage(t),
		MaxWait:   300 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = w.CollectNotify(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestCollectCancel(t *testing.T) {
	w, err := New(Config{
		Dir:       t.TempDir(),
		Extension: "pdf",
		Storage:   memStorage(t),
		MaxWait:   time.Minute,
		Interval:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err = w.Collect(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidation(t *testing.T) {
	storage := memStorage(t)

	_, err := New(Config{Dir: "", Extension: "pdf", Storage: storage})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(Config{Dir: t.TempDir(), Extension: "", Storage: storage})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(Config{Dir: t.TempDir(), Extension: "pdf", Storage: nil})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(Config{Dir: filepath.Join(t.TempDir(), "missing"), Extension: "pdf", Storage: storage})
	require.ErrorIs(t, err, ErrInvalidArgument)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err = New(Config{Dir: file, Extension: "pdf", Storage: storage})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	history := eventlog.New()

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   memStorage(t),
		MaxWait:   300 * time.Millisecond,
		Interval:  50 * time.Millisecond,
		History:   history,
	})
	require.NoError(t, err)

	_, err = w.Collect(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	table := history.Export()
	require.GreaterOrEqual(t, len(table.Rows), 2)

	last := table.Rows[len(table.Rows)-1]
	require.Equal(t, "collect", last.Function)
	require.True(t, last.IsError)
	require.Contains(t, last.Message, "timeout")
}

func TestBusEvents(t *testing.T) {
	dir := t.TempDir()
	bus := event.NewPubSub()
	defer bus.Close()

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0644))

	w, err := New(Config{
		Dir:       dir,
		Extension: "pdf",
		Storage:   memStorage(t),
		MaxWait:   5 * time.Second,
		Interval:  50 * time.Millisecond,
		Bus:       bus,
	})
	require.NoError(t, err)

	_, err = w.Collect(context.Background())
	require.NoError(t, err)

	types := []event.DownloadEventType{}

	for len(types) < 3 {
		select {
		case e := <-events:
			types = append(types, e.(event.DownloadEvent).Type)
		case <-time.After(3 * time.Second):
			t.Fatal("missing events")
		}
	}

	require.Equal(t, []event.DownloadEventType{
		event.DownloadWaitStarted,
		event.DownloadFound,
		event.DownloadMoved,
	}, types)
}
