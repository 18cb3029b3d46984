package attachments

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/replybot/internal/domain"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
}

func TestResolveConfinesPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "photo.jpg"), 10)
	writeFile(t, filepath.Join(dir, "nested", "doc.pdf"), 20)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	writeFile(t, outside, 5)

	store := NewStore(dir, 0, 0)

	resolved, err := store.Resolve([]domain.AttachmentDescriptor{
		{Path: "photo.jpg", MimeType: "image/jpeg"},
		{Path: filepath.Join(dir, "nested", "doc.pdf"), MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, int64(10), resolved[0].Size)
	assert.Equal(t, "application/pdf", resolved[1].MimeType)

	for _, path := range []string{outside, "../secret.txt", "nested/../../x", "."} {
		_, err := store.Resolve([]domain.AttachmentDescriptor{{Path: path, MimeType: "text/plain"}})
		assert.ErrorIs(t, err, ErrOutsideDir, path)
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.txt")
	writeFile(t, outside, 5)
	if err := os.Symlink(outside, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := NewStore(dir, 0, 0).Resolve([]domain.AttachmentDescriptor{{Path: "link.txt", MimeType: "text/plain"}})
	assert.ErrorIs(t, err, ErrOutsideDir)
}

func TestResolveEnforcesLimits(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), 60)
	writeFile(t, filepath.Join(dir, "b.bin"), 60)
	writeFile(t, filepath.Join(dir, "big.bin"), 101)

	store := NewStore(dir, 100, 100)

	_, err := store.Resolve([]domain.AttachmentDescriptor{{Path: "big.bin", MimeType: "application/octet-stream"}})
	assert.ErrorContains(t, err, "max 100")

	_, err = store.Resolve([]domain.AttachmentDescriptor{
		{Path: "a.bin", MimeType: "application/octet-stream"},
		{Path: "b.bin", MimeType: "application/octet-stream"},
	})
	assert.ErrorContains(t, err, "in total")

	_, err = store.Resolve([]domain.AttachmentDescriptor{{Path: "a.bin"}})
	assert.ErrorContains(t, err, "mime type")

	_, err = store.Resolve([]domain.AttachmentDescriptor{{Path: "missing.bin", MimeType: "x/y"}})
	assert.Error(t, err)
}

func TestCleanupRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jpg")
	fresh := filepath.Join(dir, "fresh.jpg")
	writeFile(t, old, 30)
	writeFile(t, fresh, 40)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	store := NewStore(dir, 0, 0)
	result, err := store.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, int64(30), result.FreedBytes)

	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sub"))
	assert.NoError(t, err)
}

func TestCleanupMissingDir(t *testing.T) {
	result, err := NewStore(filepath.Join(t.TempDir(), "none"), 0, 0).Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, result.Removed)
}
