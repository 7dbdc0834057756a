// Package knimekit provides utilities for workflow-automation scripts that
// run alongside a visual data-pipeline tool: an exportable event log
// (eventlog), folder helpers and storage filesystems (fs), a download
// watcher (watch), and a headless browser session (browser).
//
// Automation ties them together for the common case: configure a storage
// location, wait for a browser download to complete and move the result
// into storage, with every step recorded in an exportable history.
package knimekit

import (
	"context"
	"os"

	"github.com/sbfi/knimekit/config"
	"github.com/sbfi/knimekit/eventlog"
	"github.com/sbfi/knimekit/fs"
	"github.com/sbfi/knimekit/log"
	"github.com/sbfi/knimekit/watch"
)

// Automation is a configured collect pipeline. The browser session that
// triggers the downloads stays with the caller, including its teardown.
type Automation struct {
	conf    *config.Data
	logger  log.Logger
	history *eventlog.Log
	storage fs.Filesystem
	watcher *watch.Watcher
}

// New builds an Automation from a validated configuration. The storage
// location is created if necessary, the watch directory must exist (the
// browser session creates it).
func New(conf *config.Data) (*Automation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	history := eventlog.New()

	logger := log.New(conf.Name).WithOutput(log.NewMultiWriter(
		log.NewConsoleWriter(os.Stderr, log.ParseLevel(conf.LogLevel), true),
		eventlog.NewWriter(history),
	))

	storage, err := conf.Filesystem(logger)
	if err != nil {
		return nil, err
	}

	watcher, err := watch.New(watch.Config{
		Dir:       conf.WatchDir,
		Extension: conf.Extension,
		Storage:   storage,
		MaxWait:   conf.MaxWait,
		Interval:  conf.Interval,
		History:   history,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Automation{
		conf:    conf,
		logger:  logger,
		history: history,
		storage: storage,
		watcher: watcher,
	}, nil
}

// Collect waits for the next download and moves it into storage.
func (a *Automation) Collect(ctx context.Context) ([]watch.Result, error) {
	return a.watcher.Collect(ctx)
}

// Storage returns the configured storage filesystem.
func (a *Automation) Storage() fs.Filesystem {
	return a.storage
}

// History exports the recorded automation steps.
func (a *Automation) History() eventlog.Table {
	return a.history.Export()
}

// Logger returns the session logger. Everything logged through it lands in
// the history as well.
func (a *Automation) Logger() log.Logger {
	return a.logger
}
