// Package config implements the configuration for collect runs. Values come
// from defaults overlaid with KNIMEKIT_* environment variables. A .env file
// in the working directory is honored.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sbfi/knimekit/browser"
	"github.com/sbfi/knimekit/fs"
	"github.com/sbfi/knimekit/log"

	haikunator "github.com/atrox/haikunatorgo/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Data is the configuration for one automation session.
type Data struct {
	// Name identifies the session in logs. Defaults to a generated
	// human readable name.
	Name string `validate:"required"`

	// WatchDir is the directory the browser downloads into.
	WatchDir string `validate:"required"`

	// Extension of the files to collect.
	Extension string `validate:"required"`

	// MaxWait bounds a collect run.
	MaxWait time.Duration `validate:"gt=0"`

	// Interval between listing passes.
	Interval time.Duration `validate:"gt=0"`

	LogLevel string `validate:"oneof=silent error warn info debug"`

	Storage StorageConfig

	Browser browser.Options
}

// StorageConfig selects and configures the storage location.
type StorageConfig struct {
	// Type is "disk" or "s3".
	Type string `validate:"oneof=disk s3"`

	// Dir is the storage directory for the disk type.
	Dir string

	S3 struct {
		Endpoint        string
		AccessKeyID     string
		SecretAccessKey string
		Region          string
		Bucket          string
		UseSSL          bool
	}
}

// New returns a configuration filled with defaults.
func New() *Data {
	d := &Data{
		Name:      haikunator.New().Haikunate(),
		WatchDir:  browser.DefaultOptions().DownloadDir,
		Extension: "",
		MaxWait:   5 * time.Minute,
		Interval:  time.Second,
		LogLevel:  "info",
		Browser:   browser.DefaultOptions(),
	}

	d.Storage.Type = "disk"
	d.Storage.Dir = "data/storage"

	return d
}

// Load returns the defaults overlaid with the environment and validates the
// result. Variables from a .env file are picked up without overriding the
// process environment.
func Load() (*Data, error) {
	// Missing .env files are fine.
	godotenv.Load()

	d := New()

	d.Merge()

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// Merge overlays the configuration with KNIMEKIT_* environment variables.
// Unset variables leave the current value untouched.
func (d *Data) Merge() {
	mergeString(&d.Name, "KNIMEKIT_NAME")
	mergeString(&d.WatchDir, "KNIMEKIT_WATCH_DIR")
	mergeString(&d.Extension, "KNIMEKIT_EXTENSION")
	mergeDuration(&d.MaxWait, "KNIMEKIT_MAX_WAIT")
	mergeDuration(&d.Interval, "KNIMEKIT_INTERVAL")
	mergeString(&d.LogLevel, "KNIMEKIT_LOG_LEVEL")

	mergeString(&d.Storage.Type, "KNIMEKIT_STORAGE_TYPE")
	mergeString(&d.Storage.Dir, "KNIMEKIT_STORAGE_DIR")
	mergeString(&d.Storage.S3.Endpoint, "KNIMEKIT_S3_ENDPOINT")
	mergeString(&d.Storage.S3.AccessKeyID, "KNIMEKIT_S3_ACCESS_KEY")
	mergeString(&d.Storage.S3.SecretAccessKey, "KNIMEKIT_S3_SECRET_KEY")
	mergeString(&d.Storage.S3.Region, "KNIMEKIT_S3_REGION")
	mergeString(&d.Storage.S3.Bucket, "KNIMEKIT_S3_BUCKET")
	mergeBool(&d.Storage.S3.UseSSL, "KNIMEKIT_S3_USE_SSL")

	mergeString(&d.Browser.DownloadDir, "KNIMEKIT_DOWNLOAD_DIR")
	mergeBool(&d.Browser.ClearDownloadDir, "KNIMEKIT_CLEAR_DOWNLOAD_DIR")
	mergeBool(&d.Browser.Headless, "KNIMEKIT_HEADLESS")
	mergeBool(&d.Browser.Incognito, "KNIMEKIT_INCOGNITO")
	mergeBool(&d.Browser.DisableWebSecurity, "KNIMEKIT_DISABLE_WEB_SECURITY")
}

// Validate checks the configuration for consistency.
func (d *Data) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if d.Storage.Type == "disk" && len(d.Storage.Dir) == 0 {
		return fmt.Errorf("invalid configuration: storage directory is required for disk storage")
	}

	if d.Storage.Type == "s3" {
		if len(d.Storage.S3.Endpoint) == 0 || len(d.Storage.S3.Bucket) == 0 {
			return fmt.Errorf("invalid configuration: s3 storage requires an endpoint and a bucket")
		}
	}

	return nil
}

// Filesystem constructs the storage filesystem the configuration selects.
func (d *Data) Filesystem(logger log.Logger) (fs.Filesystem, error) {
	switch d.Storage.Type {
	case "disk":
		return fs.NewDiskFilesystem(fs.DiskConfig{
			Name:   d.Name,
			Root:   d.Storage.Dir,
			Logger: logger,
		})
	case "s3":
		return fs.NewS3Filesystem(fs.S3Config{
			Name:            d.Name,
			Endpoint:        d.Storage.S3.Endpoint,
			AccessKeyID:     d.Storage.S3.AccessKeyID,
			SecretAccessKey: d.Storage.S3.SecretAccessKey,
			Region:          d.Storage.S3.Region,
			Bucket:          d.Storage.S3.Bucket,
			UseSSL:          d.Storage.S3.UseSSL,
			Logger:          logger,
		})
	}

	return nil, fmt.Errorf("unknown storage type '%s'", d.Storage.Type)
}

func mergeString(target *string, name string) {
	if value, ok := os.LookupEnv(name); ok {
		*target = value
	}
}

func mergeBool(target *bool, name string) {
	if value, ok := os.LookupEnv(name); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func mergeDuration(target *time.Duration, name string) {
	if value, ok := os.LookupEnv(name); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			*target = parsed
		}
	}
}
