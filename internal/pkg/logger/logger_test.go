package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogLoggerRespectsVerbosity(t *testing.T) {
	var buf bytes.Buffer
	quiet := New(&buf, false)
	quiet.Debug("hidden", nil)
	quiet.Info("hidden", nil)
	assert.Empty(t, buf.String())

	quiet.Warn("shown", map[string]interface{}{"b": 2, "a": 1})
	assert.Contains(t, buf.String(), "msg=shown a=1 b=2")
}

func TestSlogLoggerErrorAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true).With("bot")
	log.Error("boom", errors.New("bad"), nil)
	out := buf.String()
	assert.Contains(t, out, "component=bot")
	assert.Contains(t, out, "error=bad")
}
