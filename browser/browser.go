// Package browser treats the automation driver as an opaque handle with a
// small capability interface. Only the fact that files eventually land in a
// known directory is consumed by the rest of the module, driver internals
// stay with the underlying library.
package browser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Session is a stateful external browser resource. Acquisition and release
// are owned by the caller: Close must run on every exit path (success,
// timeout, or error).
type Session interface {
	// AllowDownloads configures the browser to download into dir without
	// prompting.
	AllowDownloads(dir string) error

	// Navigate loads the given URL, triggering whatever download the page
	// initiates.
	Navigate(url string) error

	// DownloadDir returns the directory the session downloads into.
	DownloadDir() string

	// Close terminates the browser process.
	Close() error
}

// Options mirror the driver factory surface of the automation scripts.
type Options struct {
	// DownloadDir is where downloads land. Created if missing.
	DownloadDir string

	// ClearDownloadDir removes prior contents of DownloadDir on session
	// creation. Destructive.
	ClearDownloadDir bool

	Headless  bool
	Incognito bool

	WindowWidth  int
	WindowHeight int

	// DisableWebSecurity relaxes mixed-content and certificate checks.
	DisableWebSecurity bool

	// InsecureOrigins lists origins treated as secure despite plain HTTP.
	// Only honored together with DisableWebSecurity.
	InsecureOrigins []string
}

// DefaultOptions returns the options the automation scripts run with:
// headless, incognito, downloads into ./data/download which is cleared
// per session.
func DefaultOptions() Options {
	return Options{
		DownloadDir:      filepath.Join("data", "download"),
		ClearDownloadDir: true,
		Headless:         true,
		Incognito:        true,
		WindowWidth:      1920,
		WindowHeight:     1080,
	}
}

// Flags renders the options into browser command line switches. The value
// is true for plain switches and a string for valued ones.
func (o Options) Flags() map[string]interface{} {
	flags := map[string]interface{}{
		// Needed in headless and containerized environments.
		"no-sandbox":             true,
		"disable-dev-shm-usage":  true,
		"disable-gpu":            true,
		"disable-extensions":     true,
		"disable-popup-blocking": true,
		"no-first-run":           true,
		"disable-notifications":  true,
		"disable-sync":           true,
	}

	if o.WindowWidth > 0 && o.WindowHeight > 0 {
		flags["window-size"] = formatWindowSize(o.WindowWidth, o.WindowHeight)
	}

	if o.Headless {
		flags["headless"] = "new"
	}

	if o.Incognito {
		flags["incognito"] = true
	}

	if o.DisableWebSecurity {
		flags["disable-web-security"] = true
		flags["allow-running-insecure-content"] = true
		flags["ignore-certificate-errors"] = true

		if len(o.InsecureOrigins) > 0 {
			origins := make([]string, 0, len(o.InsecureOrigins))
			for _, origin := range o.InsecureOrigins {
				origins = append(origins, normalizeOrigin(origin))
			}

			// Chrome expects a comma-separated origin list.
			flags["unsafely-treat-insecure-origin-as-secure"] = strings.Join(origins, ",")
		}
	}

	return flags
}

func formatWindowSize(width, height int) string {
	return fmt.Sprintf("%d,%d", width, height)
}

func normalizeOrigin(origin string) string {
	if strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://") {
		return origin
	}

	return "http://" + origin
}
