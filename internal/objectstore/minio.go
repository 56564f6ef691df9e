package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store downloads objects from one bucket into a local cache.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New creates a store for cfg. No request is made until the first download.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hub configuration: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     creds,
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Download copies the objects under prefix, or the listed keys, into dest and
// returns the local file paths. A cached file is reused only while it matches
// the object's size and last-modified time.
func (s *Store) Download(ctx context.Context, prefix string, keys []string, dest string) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("minio store not initialized")
	}

	objects, err := s.resolve(ctx, prefix, keys)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no objects found in bucket %s under %q", s.bucket, prefix)
	}

	files := make([]string, 0, len(objects))
	for _, obj := range objects {
		local, err := LocalPath(dest, prefix, obj.Key)
		if err != nil {
			return nil, err
		}
		if info, err := os.Stat(local); err == nil && upToDate(info, obj) {
			s.logger.Debug("hub object cached", "key", obj.Key, "path", local)
			files = append(files, local)
			continue
		}

		s.logger.Debug("downloading hub object", "bucket", s.bucket, "key", obj.Key, "size", obj.Size)
		if err := s.client.FGetObject(ctx, s.bucket, obj.Key, local, minio.GetObjectOptions{}); err != nil {
			return nil, fmt.Errorf("download %s: %w", obj.Key, err)
		}
		if !obj.LastModified.IsZero() {
			if err := os.Chtimes(local, obj.LastModified, obj.LastModified); err != nil {
				return nil, fmt.Errorf("stamp %s: %w", local, err)
			}
		}
		files = append(files, local)
	}
	return files, nil
}

// upToDate reports whether a cached file still mirrors obj. Downloads are
// stamped with the object's last-modified time, so a same-size edit on the
// remote side shows up as a different mtime.
func upToDate(info fs.FileInfo, obj minio.ObjectInfo) bool {
	if obj.LastModified.IsZero() {
		return false
	}
	return info.Size() == obj.Size && info.ModTime().Unix() == obj.LastModified.Unix()
}

func (s *Store) resolve(ctx context.Context, prefix string, keys []string) ([]minio.ObjectInfo, error) {
	if len(keys) > 0 {
		objects := make([]minio.ObjectInfo, 0, len(keys))
		for _, key := range keys {
			info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", key, err)
			}
			objects = append(objects, info)
		}
		return objects, nil
	}

	var objects []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucket, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// LocalPath maps an object key to a file under dest. Keys below prefix keep
// their relative layout; other keys keep their full path. Keys that would
// escape dest are rejected.
func LocalPath(dest, prefix, key string) (string, error) {
	rel := key
	if p := strings.TrimSuffix(prefix, "/"); p != "" && strings.HasPrefix(key, p+"/") {
		rel = strings.TrimPrefix(key, p+"/")
	}
	rel = path.Clean("/" + rel)[1:]
	if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("object key %q cannot be stored locally", key)
	}
	return filepath.Join(dest, filepath.FromSlash(rel)), nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
