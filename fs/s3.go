package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sbfi/knimekit/glob"
	"github.com/sbfi/knimekit/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config is the config required to create a new S3 filesystem. It is used
// to archive collected downloads into a bucket.
type S3Config struct {
	// Name of this filesystem instance, optional.
	Name string

	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	UseSSL          bool

	// For logging, optional.
	Logger log.Logger
}

type s3FileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi *s3FileInfo) Name() string       { return fi.name }
func (fi *s3FileInfo) Size() int64        { return fi.size }
func (fi *s3FileInfo) ModTime() time.Time { return fi.modTime }
func (fi *s3FileInfo) IsDir() bool        { return false }

type s3File struct {
	name   string
	object *minio.Object
}

func (f *s3File) Name() string { return f.name }

func (f *s3File) Stat() (FileInfo, error) {
	stat, err := f.object.Stat()
	if err != nil {
		return nil, err
	}

	return &s3FileInfo{
		name:    f.name,
		size:    stat.Size,
		modTime: stat.LastModified,
	}, nil
}

func (f *s3File) Read(p []byte) (int, error) { return f.object.Read(p) }
func (f *s3File) Close() error               { return f.object.Close() }

// s3Filesystem implements the Filesystem interface on an S3 bucket.
type s3Filesystem struct {
	name   string
	bucket string

	client *minio.Client

	logger log.Logger
}

// NewS3Filesystem returns a new filesystem backed by an S3 bucket. The
// bucket is created if it doesn't exist.
func NewS3Filesystem(config S3Config) (Filesystem, error) {
	fs := &s3Filesystem{
		name:   config.Name,
		bucket: config.Bucket,
		logger: config.Logger,
	}

	if fs.logger == nil {
		fs.logger = log.New("")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Region: config.Region,
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("can't connect to s3 endpoint %s: %w", config.Endpoint, err)
	}

	fs.logger = fs.logger.WithFields(log.Fields{
		"type":     "s3",
		"bucket":   fs.bucket,
		"endpoint": config.Endpoint,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, fs.bucket)
	if err != nil {
		return nil, fmt.Errorf("can't access bucket %s: %w", fs.bucket, err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, fs.bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("can't create bucket %s: %w", fs.bucket, err)
		}

		fs.logger.Debug().Log("Bucket created")
	}

	fs.client = client

	return fs, nil
}

func (fs *s3Filesystem) Name() string { return fs.name }
func (fs *s3Filesystem) Type() string { return "s3" }
func (fs *s3Filesystem) Base() string { return fs.bucket }

// key maps a filesystem path to an object key.
func key(path string) string {
	return strings.TrimPrefix(clean(path), "/")
}

func (fs *s3Filesystem) Stat(path string) (FileInfo, error) {
	ctx := context.Background()

	stat, err := fs.client.StatObject(ctx, fs.bucket, key(path), minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrNotExist
		}

		return nil, err
	}

	return &s3FileInfo{
		name:    clean(path),
		size:    stat.Size,
		modTime: stat.LastModified,
	}, nil
}

func (fs *s3Filesystem) List(path, pattern string) ([]FileInfo, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefix := key(path)
	if len(prefix) != 0 {
		prefix += "/"
	}

	files := []FileInfo{}

	for object := range fs.client.ListObjects(ctx, fs.bucket, minio.ListObjectsOptions{
		Prefix: prefix,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}

		name := filepath.Base(object.Key)

		if len(pattern) != 0 {
			if ok, _ := glob.Match(pattern, name); !ok {
				continue
			}
		}

		files = append(files, &s3FileInfo{
			name:    "/" + object.Key,
			size:    object.Size,
			modTime: object.LastModified,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	return files, nil
}

func (fs *s3Filesystem) Open(path string) (File, error) {
	ctx := context.Background()

	object, err := fs.client.GetObject(ctx, fs.bucket, key(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	// GetObject is lazy, probe so a missing key surfaces here.
	if _, err := object.Stat(); err != nil {
		object.Close()

		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrNotExist
		}

		return nil, err
	}

	return &s3File{name: clean(path), object: object}, nil
}

// Store uploads the contents of r. S3 object puts are atomic per key, a
// reader never observes a partial object.
func (fs *s3Filesystem) Store(path string, r io.Reader) (int64, error) {
	ctx := context.Background()

	info, err := fs.client.PutObject(ctx, fs.bucket, key(path), r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return -1, fmt.Errorf("uploading object failed: %w", err)
	}

	fs.logger.Debug().WithField("path", path).Log("stored %d bytes", info.Size)

	return info.Size, nil
}

func (fs *s3Filesystem) Remove(path string) error {
	ctx := context.Background()

	if _, err := fs.Stat(path); err != nil {
		return err
	}

	return fs.client.RemoveObject(ctx, fs.bucket, key(path), minio.RemoveObjectOptions{})
}

func (fs *s3Filesystem) MkdirAll(path string, perm os.FileMode) error {
	// Buckets have no directories.
	return nil
}
