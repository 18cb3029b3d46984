// Package attachments confines bot supplied attachments to one directory.
package attachments

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// ErrOutsideDir is returned when a descriptor points outside the attachments dir.
var ErrOutsideDir = errors.New("attachment path escapes the attachments directory")

// Store resolves attachment descriptors and prunes old files.
type Store struct {
	dir           string
	maxFileBytes  int64
	maxTotalBytes int64
	mu            sync.Mutex
	now           func() time.Time
}

// NewStore roots the store at dir.
func NewStore(dir string, maxFileBytes, maxTotalBytes int64) *Store {
	if maxFileBytes <= 0 {
		maxFileBytes = domain.DefaultMaxAttachmentBytes
	}
	if maxTotalBytes <= 0 {
		maxTotalBytes = domain.DefaultMaxTotalAttachmentBytes
	}
	return &Store{dir: dir, maxFileBytes: maxFileBytes, maxTotalBytes: maxTotalBytes, now: time.Now}
}

// Dir exposes the attachments directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Resolve checks every descriptor. Relative paths are joined to the
// directory; absolute paths must already be inside it.
func (s *Store) Resolve(descriptors []domain.AttachmentDescriptor) ([]ports.ResolvedAttachment, error) {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, err
	}
	var total int64
	resolved := make([]ports.ResolvedAttachment, 0, len(descriptors))
	for _, d := range descriptors {
		if strings.TrimSpace(d.MimeType) == "" {
			return nil, fmt.Errorf("attachment %q has no mime type", d.Path)
		}
		path, err := s.confine(root, d.Path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", d.Path, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("attachment %q is not a regular file", d.Path)
		}
		if info.Size() > s.maxFileBytes {
			return nil, fmt.Errorf("attachment %q is %d bytes (max %d)", d.Path, info.Size(), s.maxFileBytes)
		}
		total += info.Size()
		if total > s.maxTotalBytes {
			return nil, fmt.Errorf("attachments exceed %d bytes in total", s.maxTotalBytes)
		}
		resolved = append(resolved, ports.ResolvedAttachment{Path: path, MimeType: d.MimeType, Size: info.Size()})
	}
	return resolved, nil
}

func (s *Store) confine(root, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("attachment path is empty")
	}
	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, raw)
	}
	// Symlinks must not lead out either.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		realRoot, rootErr := filepath.EvalSymlinks(root)
		if rootErr != nil {
			realRoot = root
		}
		rel, err := filepath.Rel(realRoot, real)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrOutsideDir, raw)
		}
	}
	return path, nil
}

// CleanupResult summarises a Cleanup run.
type CleanupResult struct {
	Removed    int
	FreedBytes int64
}

// Cleanup deletes regular files last modified more than maxAge ago.
func (s *Store) Cleanup(maxAge time.Duration) (CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result CleanupResult
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}
	cutoff := s.now().Add(-maxAge)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, f.Name())); err != nil {
			continue
		}
		result.Removed++
		result.FreedBytes += info.Size()
	}
	return result, nil
}

var _ ports.AttachmentResolver = (*Store)(nil)
