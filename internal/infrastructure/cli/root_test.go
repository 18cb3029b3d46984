package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/replybot/internal/infrastructure/dispatch"
)

type harness struct {
	configPath string
	dir        string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  data_dir: "+dir+"\nreply:\n  fallback_text: away\n"), 0o600))
	return harness{configPath: path, dir: dir}
}

func (h harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(context.Background(), Options{LogOutput: &bytes.Buffer{}})
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", h.configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersionAndConfigPathSkipContainer(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "replybot version")

	out, err = h.run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, h.configPath+"\n", out)
}

func TestStorageRoundTrip(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "storage", "set", "greeting", "hello")
	require.NoError(t, err)

	out, err := h.run(t, "storage", "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = h.run(t, "storage", "list")
	require.NoError(t, err)
	assert.Equal(t, "greeting=hello\n", out)

	_, err = h.run(t, "storage", "rm", "greeting")
	require.NoError(t, err)
	_, err = h.run(t, "storage", "get", "greeting")
	assert.ErrorContains(t, err, "not found")
}

func TestBotValidate(t *testing.T) {
	h := newHarness(t)
	good := filepath.Join(h.dir, "good.js")
	bad := filepath.Join(h.dir, "bad.js")
	require.NoError(t, os.WriteFile(good, []byte("function processNotification(n) { return {action: 'KEEP'}; }"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("function processNotification(n) { eval('1'); }"), 0o600))

	out, err := h.run(t, "bot", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "passed")

	out, err = h.run(t, "bot", "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "denylist")
}

func TestRunWithoutBotFallsBack(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "run", "--title", "Ana", "--body", "are you there?", "--id", "9")
	require.NoError(t, err)

	var ev dispatch.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &ev))
	assert.Equal(t, "REPLY", string(ev.Action))
	assert.Equal(t, "away", ev.ReplyText)
	assert.Equal(t, 9, ev.NotificationID)

	out, err = h.run(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback (E_NOT_INSTALLED)")

	export := filepath.Join(h.dir, "history.jsonl")
	out, err = h.run(t, "history", "export", export)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 records")

	_, err = h.run(t, "history", "clear")
	require.NoError(t, err)
	out, err = h.run(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No history recorded yet.")
}

func TestRunRejectsMixedInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "run", "--notification", "n.json", "--title", "x")
	assert.Error(t, err)
}

func TestBotInfoWithoutInstall(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "bot", "info")
	require.NoError(t, err)
	assert.Equal(t, "No bot installed.\n", out)

	out, err = h.run(t, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
}

func TestAttachmentsClean(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "attachments", "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 files")
}

func TestDoctorWarnsWithoutBot(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "[OK   ] Database")
	assert.Contains(t, out, "[WARN ] Bot          not installed")
}

func TestConfigDiff(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "config", "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "FallbackText")
	assert.Contains(t, out, "away")
}
