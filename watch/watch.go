// Package watch bridges asynchronous browser downloads and deterministic
// downstream processing. A Watcher waits for files with a given extension to
// appear in a directory and moves them into a storage filesystem.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbfi/knimekit/event"
	"github.com/sbfi/knimekit/eventlog"
	"github.com/sbfi/knimekit/fs"
	"github.com/sbfi/knimekit/log"
	"github.com/sbfi/knimekit/metrics"

	"github.com/fsnotify/fsnotify"
	"github.com/fujiwara/shapeio"
	"github.com/google/uuid"
)

var (
	// ErrInvalidArgument signals a caller logic error. It is returned
	// before any polling begins.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout is returned when no matching file appeared within the
	// wait budget. This is the expected recoverable condition, callers
	// decide whether to retry the whole browser interaction.
	ErrTimeout = errors.New("timeout waiting for download")
)

// Browsers append vendor suffixes to files mid-download. Such artifacts
// never match, the watcher waits for the final name.
var transientSuffixes = []string{".crdownload", ".download", ".part", ".tmp"}

const (
	defaultMaxWait  = 5 * time.Minute
	defaultInterval = time.Second
)

// Result describes one collected file. The file is guaranteed to exist at
// FinalPath when the result is returned.
type Result struct {
	// OriginalName is the file name as it appeared in the watched
	// directory.
	OriginalName string

	// FinalPath is the path of the file inside the storage filesystem,
	// prefixed with the storage base.
	FinalPath string

	// Extension is the canonical extension without the leading dot.
	Extension string
}

// Config is the configuration for a Watcher.
type Config struct {
	// Dir is the watched directory the browser downloads into.
	Dir string

	// Extension of the files to collect, with or without a leading dot.
	// Matching is case-insensitive.
	Extension string

	// Storage receives the collected files. It is never cleared.
	Storage fs.Filesystem

	// RenameTo optionally replaces the file stem of collected files.
	// Multiple matches are disambiguated with numeric suffixes.
	RenameTo string

	// MaxWait bounds the whole wait. Defaults to 5 minutes.
	MaxWait time.Duration

	// Interval between listing passes. Defaults to 1 second.
	Interval time.Duration

	// BytesPerSecond throttles the import into storage. 0 means
	// unlimited.
	BytesPerSecond float64

	// History receives a record per major step, optional.
	History *eventlog.Log

	// Bus receives a DownloadEvent per major step, optional.
	Bus *event.PubSub

	// Metrics counters, optional.
	Metrics *metrics.Metrics

	// For logging, optional.
	Logger log.Logger
}

// Watcher waits for downloads and relocates them. A Watcher is reusable,
// every Collect call is an independent run.
type Watcher struct {
	dir       string
	extension string
	storage   fs.Filesystem
	renameTo  string
	maxWait   time.Duration
	interval  time.Duration
	limit     float64

	history *eventlog.Log
	bus     *event.PubSub
	metrics *metrics.Metrics
	logger  log.Logger
}

// New validates the configuration and returns a Watcher. Validation
// failures are reported here, before any polling begins.
func New(config Config) (*Watcher, error) {
	if len(config.Dir) == 0 {
		return nil, fmt.Errorf("%w: watch directory cannot be empty", ErrInvalidArgument)
	}

	finfo, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: watch directory '%s' is not accessible", ErrInvalidArgument, config.Dir)
	}

	if !finfo.IsDir() {
		return nil, fmt.Errorf("%w: '%s' is not a directory", ErrInvalidArgument, config.Dir)
	}

	extension := strings.ToLower(strings.TrimPrefix(config.Extension, "."))
	if len(extension) == 0 {
		return nil, fmt.Errorf("%w: extension cannot be empty", ErrInvalidArgument)
	}

	if config.Storage == nil {
		return nil, fmt.Errorf("%w: no storage filesystem provided", ErrInvalidArgument)
	}

	w := &Watcher{
		dir:       config.Dir,
		extension: extension,
		storage:   config.Storage,
		renameTo:  config.RenameTo,
		maxWait:   config.MaxWait,
		interval:  config.Interval,
		limit:     config.BytesPerSecond,
		history:   config.History,
		bus:       config.Bus,
		metrics:   config.Metrics,
		logger:    config.Logger,
	}

	if w.maxWait <= 0 {
		w.maxWait = defaultMaxWait
	}

	if w.interval <= 0 {
		w.interval = defaultInterval
	}

	if w.logger == nil {
		w.logger = log.New("")
	}

	w.logger = w.logger.WithComponent("watch").WithFields(log.Fields{
		"dir":       w.dir,
		"extension": w.extension,
	})

	return w, nil
}

// Collect polls the watched directory until at least one matching file is
// found, moves all matches into storage and returns them in processed order.
// It blocks the calling goroutine for up to MaxWait, sleeping between
// listing passes. Cancelling the context aborts the wait early.
func (w *Watcher) Collect(ctx context.Context) ([]Result, error) {
	run := w.startRun()

	deadline := time.NewTimer(w.maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		matches, err := w.scan()
		if err != nil {
			return nil, err
		}

		if len(matches) > 0 {
			return w.process(run, matches)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, w.timeout(run)
		case <-ticker.C:
		}
	}
}

// CollectNotify behaves like Collect but waits on filesystem notifications
// instead of sleeping between listing passes. Match and timeout semantics
// are identical. An initial scan picks up files that appeared before the
// call.
func (w *Watcher) CollectNotify(ctx context.Context) ([]Result, error) {
	run := w.startRun()

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer notify.Close()

	if err := notify.Add(w.dir); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(w.maxWait)
	defer deadline.Stop()

	for {
		matches, err := w.scan()
		if err != nil {
			return nil, err
		}

		if len(matches) > 0 {
			return w.process(run, matches)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, w.timeout(run)
		case err := <-notify.Errors:
			return nil, err
		case <-notify.Events:
			// Rescan instead of trusting the event name. The final
			// file often appears through a rename of a transient
			// artifact.
		}
	}
}

// startRun assigns a run id and reports the start of the wait.
func (w *Watcher) startRun() string {
	run := uuid.NewString()

	w.metrics.CollectStarted()

	logger := w.logger.WithField("run", run)
	logger.Info().Log("Waiting for *.%s downloads", w.extension)

	if free, ok := w.storageFree(); ok {
		logger.Debug().WithField("free_bytes", free).Log("Storage free space")
	}

	w.record("collect", fmt.Sprintf("waiting for .%s files in %s", w.extension, w.dir), false)
	w.publish(event.DownloadEvent{Type: event.DownloadWaitStarted, RunID: run})

	return run
}

// scan lists the watched directory and returns the names of completed
// matching files in lexicographic order.
func (w *Watcher) scan() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("listing watch directory failed: %w", err)
	}

	matches := []string{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := strings.ToLower(entry.Name())

		if transient(name) {
			continue
		}

		if !strings.HasSuffix(name, "."+w.extension) {
			continue
		}

		matches = append(matches, entry.Name())
	}

	// os.ReadDir sorts by name, matches stay lexicographic.
	return matches, nil
}

func transient(name string) bool {
	for _, suffix := range transientSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}

// process moves the matched files into storage, in order. The move is
// atomic from an observer's perspective: the data lands in storage via a
// safe write and the source is removed only afterwards. On failure the
// source is left intact and the error is returned without retry.
func (w *Watcher) process(run string, matches []string) ([]Result, error) {
	logger := w.logger.WithField("run", run)

	logger.Info().WithField("files", matches).Log("Found downloaded files")
	w.record("collect", fmt.Sprintf("found downloaded files: %v", matches), false)

	results := []Result{}

	for i, name := range matches {
		w.publish(event.DownloadEvent{Type: event.DownloadFound, RunID: run, FileName: name})

		stem := name[:len(name)-len(w.extension)-1]

		target := stem
		if len(w.renameTo) != 0 {
			target = w.renameTo
			if i > 0 {
				target = fmt.Sprintf("%s_%d", w.renameTo, i)
			}

			target = w.deconflict(target, i)
		}

		targetName := target + "." + w.extension

		if err := w.move(name, targetName); err != nil {
			w.metrics.MoveFailed()
			logger.Error().WithError(err).WithField("file", name).Log("Moving file failed")
			w.record("collect", fmt.Sprintf("failed to move %s: %v", name, err), true)

			return nil, err
		}

		finalPath := filepath.Join(w.storage.Base(), targetName)

		w.metrics.FileMoved()
		logger.Info().WithFields(log.Fields{"file": name, "target": finalPath}).Log("Moved file")
		w.record("collect", fmt.Sprintf("moved %s to %s", name, finalPath), false)
		w.publish(event.DownloadEvent{Type: event.DownloadMoved, RunID: run, FileName: name, Path: finalPath})

		results = append(results, Result{
			OriginalName: name,
			FinalPath:    finalPath,
			Extension:    w.extension,
		})
	}

	return results, nil
}

// deconflict advances the numeric suffix until the name is free in storage.
// Files from earlier runs are never overwritten when a rename base is used.
func (w *Watcher) deconflict(target string, next int) string {
	for {
		// Any Stat failure counts as free, Store reports the real
		// problem if there is one.
		if _, err := w.storage.Stat("/" + target + "." + w.extension); err != nil {
			return target
		}

		next++
		target = fmt.Sprintf("%s_%d", w.renameTo, next)
	}
}

// move transfers a single file from the watched directory into storage.
func (w *Watcher) move(name, targetName string) error {
	source := filepath.Join(w.dir, name)

	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening downloaded file failed: %w", err)
	}

	var reader io.Reader = f
	if w.limit > 0 {
		shaped := shapeio.NewReader(f)
		shaped.SetRateLimit(w.limit)
		reader = shaped
	}

	if _, err := w.storage.Store("/"+targetName, reader); err != nil {
		f.Close()
		return err
	}

	f.Close()

	if err := os.Remove(source); err != nil {
		return fmt.Errorf("removing source file failed: %w", err)
	}

	return nil
}

// timeout reports the expired wait budget on all observability channels.
func (w *Watcher) timeout(run string) error {
	w.metrics.TimedOut()

	w.logger.WithField("run", run).Warn().Log("No download appeared within %s", w.maxWait)
	w.record("collect", fmt.Sprintf("timeout waiting for download after %s", w.maxWait), true)
	w.publish(event.DownloadEvent{Type: event.DownloadTimeout, RunID: run})

	return fmt.Errorf("%w: no .%s file appeared in %s within %s", ErrTimeout, w.extension, w.dir, w.maxWait)
}

func (w *Watcher) record(function, message string, isError bool) {
	if w.history == nil {
		return
	}

	w.history.Record(function, message, isError)
}

func (w *Watcher) publish(e event.DownloadEvent) {
	if w.bus == nil {
		return
	}

	e.Timestamp = time.Now()

	w.bus.Publish(e)
}

func (w *Watcher) storageFree() (uint64, bool) {
	type freer interface {
		Free() (uint64, error)
	}

	if f, ok := w.storage.(freer); ok {
		if free, err := f.Free(); err == nil {
			return free, true
		}
	}

	return 0, false
}
