package browser

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sbfi/knimekit/fs"
	"github.com/sbfi/knimekit/log"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// chromeSession drives a headless Chrome through chromedp.
type chromeSession struct {
	downloadDir string

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	logger log.Logger
}

// NewChrome starts a Chrome process configured with the given options and
// returns it as a Session. The download directory is prepared (and cleared,
// if requested) before the browser starts. The caller owns the session and
// must Close it on every exit path.
func NewChrome(opts Options, logger log.Logger) (Session, error) {
	if logger == nil {
		logger = log.New("")
	}
	logger = logger.WithComponent("browser")

	if len(opts.DownloadDir) == 0 {
		opts.DownloadDir = DefaultOptions().DownloadDir
	}

	if err := fs.EnsureDir(opts.DownloadDir, opts.ClearDownloadDir); err != nil {
		return nil, fmt.Errorf("preparing download directory failed: %w", err)
	}

	downloadDir, err := filepath.Abs(opts.DownloadDir)
	if err != nil {
		return nil, err
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
	}

	for name, value := range opts.Flags() {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		downloadDir: downloadDir,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}

	// Start the browser process now so a broken Chrome install surfaces
	// here instead of on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser failed: %w", err)
	}

	if err := s.AllowDownloads(downloadDir); err != nil {
		s.Close()
		return nil, err
	}

	logger.Info().WithField("download_dir", downloadDir).Log("Browser session created")

	return s, nil
}

func (s *chromeSession) AllowDownloads(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	err = chromedp.Run(s.ctx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(abs),
	)
	if err != nil {
		return fmt.Errorf("configuring downloads failed: %w", err)
	}

	s.downloadDir = abs

	s.logger.Debug().WithField("download_dir", abs).Log("Downloads enabled")

	return nil
}

func (s *chromeSession) Navigate(url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s failed: %w", url, err)
	}

	return nil
}

func (s *chromeSession) DownloadDir() string {
	return s.downloadDir
}

func (s *chromeSession) Close() error {
	s.cancel()
	s.allocCancel()

	s.logger.Debug().Log("Browser session closed")

	return nil
}
