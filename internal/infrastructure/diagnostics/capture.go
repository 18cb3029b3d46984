// Package diagnostics buffers bot debug output for later inspection.
package diagnostics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// Capture is a bounded, in-memory ring of diagnostic entries. Recording is a
// no-op until Enable is called.
type Capture struct {
	mu      sync.Mutex
	enabled bool
	max     int
	entries []domain.DiagnosticEntry
	now     func() time.Time
}

// NewCapture creates a disabled capture holding at most max entries.
func NewCapture(max int) *Capture {
	if max <= 0 {
		max = domain.DefaultDiagnosticsEntries
	}
	return &Capture{max: max, now: time.Now}
}

// Enable starts recording.
func (c *Capture) Enable() {
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
}

// Disable stops recording and drops buffered entries.
func (c *Capture) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.entries = nil
	c.mu.Unlock()
}

func (c *Capture) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Record implements ports.DiagnosticsSink. The oldest entry is evicted when full.
func (c *Capture) Record(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if len(c.entries) >= c.max {
		c.entries = append(c.entries[:0], c.entries[1:]...)
	}
	c.entries = append(c.entries, domain.DiagnosticEntry{
		Time:    c.now(),
		Level:   level,
		Message: message,
	})
}

// Entries returns a copy of the buffer, oldest first.
func (c *Capture) Entries() []domain.DiagnosticEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.DiagnosticEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Capture) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// String renders the buffer one entry per line.
func (c *Capture) String() string {
	var b strings.Builder
	for _, e := range c.Entries() {
		fmt.Fprintf(&b, "%s [%s] %s\n", e.Time.Format(domain.TimestampFormat), strings.ToUpper(e.Level), e.Message)
	}
	return b.String()
}

var _ ports.DiagnosticsSink = (*Capture)(nil)
