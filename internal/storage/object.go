package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/viant/afs"

	"github.com/gosuda/duet/internal/errlog"
)

// formatExt maps artifact format tags to file extensions.
var formatExt = map[string]string{ //nolint:gochecknoglobals // static lookup table
	"text":     "txt",
	"markdown": "md",
	"json":     "json",
	"html":     "html",
}

// ObjectStore writes artifacts to an afs-addressable base URL (s3://, gs://,
// file://, ...) and falls back to a local directory when the primary write
// fails or no base URL is configured.
type ObjectStore struct {
	fs       afs.Service
	baseURL  string // empty disables the primary target
	localDir string
	errs     *errlog.Sink
	now      func() time.Time
}

// Compile-time interface check.
var _ Store = (*ObjectStore)(nil) //nolint:gochecknoglobals // compile-time check

// Option configures optional ObjectStore parameters.
type Option func(*ObjectStore)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ObjectStore) { s.now = now }
}

// NewObjectStore creates an ObjectStore. baseURL may be empty; localDir must
// not be. errs may be nil.
func NewObjectStore(baseURL, localDir string, errs *errlog.Sink, opts ...Option) *ObjectStore {
	s := &ObjectStore{
		fs:       afs.New(),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		localDir: localDir,
		errs:     errs,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists content under user_<id>/<category>_<timestamp>.<ext>.
// Failures are recorded and downgraded, never propagated.
func (s *ObjectStore) Save(ctx context.Context, content []byte, userID, category, format string) Reference {
	name := s.objectName(category, format)
	rel := filepath.Join("user_"+sanitize(userID), name)

	if s.baseURL != "" {
		url := s.baseURL + "/" + filepath.ToSlash(rel)
		err := s.fs.Upload(ctx, url, 0o644, bytes.NewReader(content))
		if err == nil {
			log.Info().Str("url", url).Msg("artifact stored")
			return Reference(url)
		}

		s.record(fmt.Sprintf("primary upload to %s failed: %v", url, err), userID)
	}

	ref, err := s.saveLocal(content, rel)
	if err != nil {
		s.record(fmt.Sprintf("local fallback write failed: %v", err), userID)
		return RefUnavailable
	}

	return ref
}

func (s *ObjectStore) saveLocal(content []byte, rel string) (Reference, error) {
	path := filepath.Join(s.localDir, rel)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("storage.ObjectStore.saveLocal: mkdir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("storage.ObjectStore.saveLocal: write: %w", err)
	}

	log.Info().Str("path", path).Msg("artifact stored on local fallback")
	return Reference("local:" + path), nil
}

func (s *ObjectStore) objectName(category, format string) string {
	ext, ok := formatExt[format]
	if !ok {
		ext = "txt"
	}
	ts := s.now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", sanitize(category), ts, ext)
}

func (s *ObjectStore) record(msg, userID string) {
	if s.errs == nil {
		return
	}
	s.errs.Record("storage", msg, errlog.SeverityWarning, errlog.CategoryStorage, errlog.WithUser(userID))
}

// sanitize keeps key components path-safe.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "..", "_")
	return s
}
