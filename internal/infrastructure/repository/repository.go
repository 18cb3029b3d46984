// Package repository downloads, verifies and persists the active bot script.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/pkg/httpclient"
	"github.com/doeshing/replybot/internal/ports"
)

const (
	// MetadataNamespace holds the installed bot record and the download marker.
	MetadataNamespace = "bot_metadata"

	keyURL              = "url"
	keyTimestamp        = "timestamp"
	keyHash             = "hash"
	keyLastDownloadTime = "last_download_time"

	// BotFileName is the single installed script inside the bots directory.
	BotFileName = "active-bot.js"
)

// Options configures the repository.
type Options struct {
	Dir             string
	RateLimit       time.Duration
	DownloadTimeout time.Duration
	Diagnostics     ports.DiagnosticsSink
	Now             func() time.Time
}

// Repository implements ports.BotRepository. The script file and its metadata
// record form one logical slot, guarded by mu within a process.
type Repository struct {
	mu        sync.Mutex
	store     ports.KeyValueStore
	client    *http.Client
	validator ports.ScriptValidator
	logger    ports.Logger
	opts      Options
}

// New creates a repository storing the script under opts.Dir.
func New(store ports.KeyValueStore, client *http.Client, validator ports.ScriptValidator, logger ports.Logger, opts Options) *Repository {
	if opts.RateLimit <= 0 {
		opts.RateLimit = domain.DefaultDownloadRateLimit
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = domain.DefaultDownloadTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Repository{store: store, client: httpclient.HTTPSOnly(client), validator: validator, logger: logger, opts: opts}
}

// Path returns the location of the installed script.
func (r *Repository) Path() string {
	return filepath.Join(r.opts.Dir, BotFileName)
}

// DownloadBot fetches url, validates and verifies it, and installs it.
// expectedHash may be empty.
func (r *Repository) DownloadBot(ctx context.Context, url string, expectedHash string) (domain.BotInfo, error) {
	if err := domain.RequireHTTPS(url); err != nil {
		return domain.BotInfo{}, domain.NewDownloadError(domain.ReasonScheme, "only HTTPS URLs are allowed", err)
	}

	// Held until the download marker is written so the rate-limit check and
	// its record are one step.
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	if err := r.checkRateLimit(ctx, url, now); err != nil {
		return domain.BotInfo{}, err
	}

	body, err := r.fetch(ctx, url)
	if err != nil {
		return domain.BotInfo{}, err
	}
	source := string(body)
	if strings.TrimSpace(source) == "" {
		return domain.BotInfo{}, domain.NewDownloadError(domain.ReasonEmpty, "downloaded bot code is empty", nil)
	}

	if outcome := r.validator.Check(source); !outcome.Valid {
		if r.opts.Diagnostics != nil {
			r.opts.Diagnostics.Record("error", "downloaded bot rejected: "+outcome.Diagnostic())
		}
		return domain.BotInfo{}, domain.NewDownloadError(domain.ReasonValidation,
			"bot validation failed: "+outcome.Diagnostic(), nil)
	}

	hash := domain.HashSource(body)
	if expectedHash != "" && !domain.HashesEqual(expectedHash, hash) {
		return domain.BotInfo{}, domain.NewDownloadError(domain.ReasonHashMismatch,
			fmt.Sprintf("SHA-256 hash mismatch. Expected: %s, got: %s", expectedHash, hash), nil)
	}

	info := domain.BotInfo{URL: url, Timestamp: now, Hash: hash}
	if err := r.commit(ctx, body, info); err != nil {
		return domain.BotInfo{}, domain.NewDownloadError(domain.ReasonPersist, "failed to install bot", err)
	}

	// Last step: the marker only moves once the bot is installed.
	if err := r.store.Set(ctx, MetadataNamespace, keyLastDownloadTime, formatMillis(now)); err != nil && r.logger != nil {
		r.logger.Warn("failed to record download time", map[string]interface{}{"error": err.Error()})
	}
	if r.logger != nil {
		r.logger.Info("bot installed", map[string]interface{}{"url": url, "hash": hash, "bytes": len(body)})
	}
	return info, nil
}

// checkRateLimit rejects a download of a new URL too soon after the last one.
// Re-downloading the installed URL is always allowed.
func (r *Repository) checkRateLimit(ctx context.Context, url string, now time.Time) error {
	lastURL, _, err := r.store.Get(ctx, MetadataNamespace, keyURL)
	if err != nil {
		return domain.NewDownloadError(domain.ReasonPersist, "read bot metadata", err)
	}
	if lastURL == url {
		return nil
	}
	raw, ok, err := r.store.Get(ctx, MetadataNamespace, keyLastDownloadTime)
	if err != nil {
		return domain.NewDownloadError(domain.ReasonPersist, "read bot metadata", err)
	}
	if !ok {
		return nil
	}
	last, err := parseMillis(raw)
	if err != nil || last.IsZero() {
		return nil
	}
	elapsed := now.Sub(last)
	if elapsed >= r.opts.RateLimit {
		return nil
	}
	remaining := r.opts.RateLimit - elapsed
	return &domain.BotError{
		Code:       domain.EDownload,
		Reason:     domain.ReasonRateLimited,
		Message:    "Rate limit: Please wait " + domain.FormatWait(remaining) + " before downloading again",
		RetryAfter: remaining,
	}
}

func (r *Repository) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewDownloadError(domain.ReasonNetwork, "build request", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewDownloadError(domain.ReasonNetwork, "download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewDownloadError(domain.ReasonHTTPStatus,
			fmt.Sprintf("download failed: HTTP %d", resp.StatusCode), nil)
	}
	// One byte past the limit is enough for the validator to reject oversize bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxScriptBytes+1))
	if err != nil {
		return nil, domain.NewDownloadError(domain.ReasonNetwork, "read response", err)
	}
	return body, nil
}

// commit swaps the script file in place and then writes metadata. If the
// metadata write fails the previous file is restored.
func (r *Repository) commit(ctx context.Context, body []byte, info domain.BotInfo) error {
	if err := os.MkdirAll(r.opts.Dir, domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create bots dir: %w", err)
	}

	tmp, err := os.CreateTemp(r.opts.Dir, BotFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	target := r.Path()
	backup := target + ".bak"
	hadPrevious := false
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("back up previous bot: %w", err)
		}
		hadPrevious = true
	}

	if err := os.Rename(tmpPath, target); err != nil {
		r.restore(backup, target, hadPrevious)
		return fmt.Errorf("install bot file: %w", err)
	}
	cleanupTmp = false

	err = r.store.SetMany(ctx, MetadataNamespace, map[string]string{
		keyURL:       info.URL,
		keyTimestamp: formatMillis(info.Timestamp),
		keyHash:      info.Hash,
	})
	if err != nil {
		r.restore(backup, target, hadPrevious)
		return fmt.Errorf("write bot metadata: %w", err)
	}

	if hadPrevious {
		_ = os.Remove(backup)
	}
	return nil
}

func (r *Repository) restore(backup, target string, hadPrevious bool) {
	if hadPrevious {
		if err := os.Rename(backup, target); err != nil && r.logger != nil {
			r.logger.Error("failed to restore previous bot", err, nil)
		}
		return
	}
	_ = os.Remove(target)
}

// CheckForUpdates reports whether the installed URL now serves different
// content. Any failure is reported as no update.
func (r *Repository) CheckForUpdates(ctx context.Context) bool {
	info, ok, err := r.InstalledBotInfo(ctx)
	if err != nil || !ok {
		return false
	}
	body, err := r.fetch(ctx, info.URL)
	if err != nil {
		if r.logger != nil {
			r.logger.Debug("update check failed", map[string]interface{}{"error": err.Error()})
		}
		return false
	}
	if strings.TrimSpace(string(body)) == "" {
		return false
	}
	return !domain.HashesEqual(domain.HashSource(body), info.Hash)
}

// InstalledBotInfo returns the metadata record; ok is false when nothing is installed.
func (r *Repository) InstalledBotInfo(ctx context.Context) (domain.BotInfo, bool, error) {
	url, ok, err := r.store.Get(ctx, MetadataNamespace, keyURL)
	if err != nil || !ok {
		return domain.BotInfo{}, false, err
	}
	info := domain.BotInfo{URL: url}
	if raw, ok, err := r.store.Get(ctx, MetadataNamespace, keyTimestamp); err != nil {
		return domain.BotInfo{}, false, err
	} else if ok {
		info.Timestamp, _ = parseMillis(raw)
	}
	if info.Hash, _, err = r.store.Get(ctx, MetadataNamespace, keyHash); err != nil {
		return domain.BotInfo{}, false, err
	}
	return info, true, nil
}

// LoadScript reads the installed script and checks it against the stored hash.
func (r *Repository) LoadScript(ctx context.Context) (domain.BotScript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok, err := r.InstalledBotInfo(ctx)
	if err != nil {
		return domain.BotScript{}, fmt.Errorf("read bot metadata: %w", err)
	}
	if !ok {
		return domain.BotScript{}, &domain.BotError{Code: domain.ENotInstalled, Message: "no bot installed"}
	}
	data, err := os.ReadFile(r.Path())
	if errors.Is(err, os.ErrNotExist) {
		return domain.BotScript{}, &domain.BotError{Code: domain.ENotInstalled, Message: "bot file missing", Err: err}
	}
	if err != nil {
		return domain.BotScript{}, fmt.Errorf("read bot file: %w", err)
	}
	if !domain.HashesEqual(domain.HashSource(data), info.Hash) {
		return domain.BotScript{}, domain.NewValidationError("installed bot does not match its recorded hash")
	}
	return domain.BotScript{Source: string(data), Info: info}, nil
}

// DeleteBot removes the script and all metadata. Deleting nothing succeeds.
func (r *Repository) DeleteBot(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, path := range []string{r.Path(), r.Path() + ".bak"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}
	if err := r.store.Clear(ctx, MetadataNamespace); err != nil {
		return fmt.Errorf("clear bot metadata: %w", err)
	}
	if r.logger != nil {
		r.logger.Info("bot deleted", nil)
	}
	return nil
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if ms <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

var _ ports.BotRepository = (*Repository)(nil)
