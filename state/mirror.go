package state

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("state object not found")

// Mirror is a remote copy of the state file. Implementations must return
// ErrNotFound (possibly wrapped) from Get when the object does not exist.
type Mirror interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

type MirrorConfig struct {
	// URL selects the backend: gs://bucket/prefix, s3://bucket/prefix, or redis://host:port/db
	URL string
	// S3 only
	Region   string
	Endpoint string
}

// NewMirror builds a Mirror from a URL. An empty URL returns a nil Mirror.
func NewMirror(ctx context.Context, cfg MirrorConfig) (Mirror, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing mirror URL: %w", err)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	switch u.Scheme {
	case "gs", "gcs":
		if u.Host == "" {
			return nil, fmt.Errorf("GCS mirror URL needs a bucket: %s", cfg.URL)
		}
		m, err := NewGCSMirror(ctx, u.Host, prefix)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("S3 mirror URL needs a bucket: %s", cfg.URL)
		}
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		m, err := NewS3Mirror(ctx, S3MirrorConfig{
			Bucket:   u.Host,
			Prefix:   prefix,
			Region:   region,
			Endpoint: cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "redis", "rediss":
		m, err := NewRedisMirror(cfg.URL)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported mirror scheme: %q", u.Scheme)
	}
}

// MemMirror keeps objects in memory.
type MemMirror struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemMirror() *MemMirror {
	return &MemMirror{Objects: make(map[string][]byte)}
}

func (m *MemMirror) Put(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *MemMirror) Get(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}
