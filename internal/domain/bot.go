// Package domain defines core business entities and value objects for replybot.
//
// This file contains the persisted bot script and its installation metadata.
// The domain layer is independent of infrastructure concerns and represents pure
// business logic and data structures.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// EntryPoint is the function every bot script must define.
const EntryPoint = "processNotification"

// BotInfo is the metadata record stored next to the installed script.
type BotInfo struct {
	URL       string    `json:"url" yaml:"url"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Hash      string    `json:"hash" yaml:"hash"`
}

// BotScript is an installed guest program together with its metadata.
type BotScript struct {
	Source string
	Info   BotInfo
}

// Size returns the UTF-8 byte length of the source.
func (s BotScript) Size() int {
	return len(s.Source)
}

// HashSource returns the hex encoded SHA-256 digest of raw.
func HashSource(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// HashesEqual compares two hex digests case-insensitively.
func HashesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// RequireHTTPS rejects any URL that does not use the https scheme.
// Both bot downloads and guest HTTP calls go through this check.
func RequireHTTPS(raw string) error {
	if !strings.HasPrefix(strings.ToLower(raw), "https://") {
		return fmt.Errorf("only HTTPS URLs are allowed: %q", raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
