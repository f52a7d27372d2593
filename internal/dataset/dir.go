// Package dataset lists and reads raw transcript objects and resolves their contact ids.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"call-analytics-go/internal/types"
)

// Object is one listed transcript.
type Object struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	// ContactID is set when a manifest names the call explicitly.
	ContactID string `json:"contact_id,omitempty"`
}

// DirSource serves transcripts from a local directory tree. Keys are
// slash-separated paths relative to the root.
type DirSource struct {
	root     string
	within   time.Duration
	now      func() time.Time
	manifest map[string]ManifestEntry
}

// Option configures a DirSource.
type Option func(*DirSource)

// WithModifiedWithin lists only objects modified in the last d (0 = all).
func WithModifiedWithin(d time.Duration) Option {
	return func(s *DirSource) { s.within = d }
}

// WithManifest attaches explicit contact ids and timestamps per key.
func WithManifest(entries []ManifestEntry) Option {
	return func(s *DirSource) {
		for _, e := range entries {
			s.manifest[e.Key] = e
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *DirSource) { s.now = now }
}

// NewDirSource creates a source rooted at root.
func NewDirSource(root string, opts ...Option) *DirSource {
	s := &DirSource{root: root, now: time.Now, manifest: map[string]ManifestEntry{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns up to maxCount .json objects under prefix, newest first
// (0 = no cap). Ties are ordered by key.
func (s *DirSource) List(ctx context.Context, prefix string, maxCount int) ([]Object, error) {
	var cutoff time.Time
	if s.within > 0 {
		cutoff = s.now().Add(-s.within)
	}

	var out []Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".json") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		obj := Object{Key: key, LastModified: info.ModTime().UTC()}
		if m, ok := s.manifest[key]; ok {
			obj.ContactID = m.ContactID
			if !m.LastModified.IsZero() {
				obj.LastModified = m.LastModified
			}
		}
		if !cutoff.IsZero() && obj.LastModified.Before(cutoff) {
			return nil
		}
		out = append(out, obj)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: list %s: %w", types.ErrSource, s.root, err)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Key < out[j].Key
	})
	if maxCount > 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

// Get reads the raw payload for key.
func (s *DirSource) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return nil, fmt.Errorf("%w: invalid key %q", types.ErrSource, key)
	}
	b, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", types.ErrSource, key, err)
	}
	return b, nil
}
