// Package helpers formats command output.
package helpers

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/replybot/internal/domain"
)

// Size renders n bytes the way humans read them ("12 kB").
func Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Age renders t relative to now ("3 minutes ago").
func Age(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// RenderBotInfo prints the installed bot metadata.
func RenderBotInfo(out io.Writer, info domain.BotInfo, size int64, path string) {
	fmt.Fprintf(out, "URL:       %s\n", info.URL)
	fmt.Fprintf(out, "SHA-256:   %s\n", info.Hash)
	fmt.Fprintf(out, "Installed: %s (%s)\n", info.Timestamp.Format(domain.TimestampFormat), Age(info.Timestamp))
	fmt.Fprintf(out, "Size:      %s\n", Size(size))
	if path != "" {
		fmt.Fprintf(out, "Path:      %s\n", path)
	}
}

// RenderValidation prints a validator verdict.
func RenderValidation(out io.Writer, outcome domain.ValidationOutcome) {
	if outcome.Valid {
		return
	}
	fmt.Fprintf(out, "rejected: %s\n", outcome.Diagnostic())
}

// RenderRecord prints one history line.
func RenderRecord(out io.Writer, rec domain.ExecutionRecord) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %-7s | %s | %4dms",
		rec.Timestamp.Format(domain.TimestampFormat),
		rec.Action,
		rec.AppPackage,
		rec.DurationMS)
	if rec.Fallback {
		b.WriteString(" | fallback")
		if rec.ErrorCode != "" {
			fmt.Fprintf(&b, " (%s)", rec.ErrorCode)
		}
	}
	fmt.Fprintln(out, b.String())
}
