// Package update keeps the installed bot in sync with its configured URL.
package update

import (
	"context"
	"errors"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// Outcome summarizes one update pass.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeUpdated  Outcome = "updated"
	OutcomeFailed   Outcome = "failed"
	OutcomeDeferred Outcome = "deferred"
)

// Service runs the periodic bot update check.
type Service struct {
	Repository ports.BotRepository
	Logger     ports.Logger
	Enabled    bool
	URL        string
}

// Run performs a single pass: skip when disabled or unconfigured, otherwise
// download the bot when CheckForUpdates reports a change.
func (s *Service) Run(ctx context.Context) (Outcome, domain.BotInfo, error) {
	if s.Repository == nil || s.Logger == nil {
		return OutcomeFailed, domain.BotInfo{}, errors.New("update.Service dependencies not satisfied")
	}
	if !s.Enabled || s.URL == "" {
		s.Logger.Debug("bot update skipped", map[string]interface{}{"enabled": s.Enabled, "url_set": s.URL != ""})
		return OutcomeSkipped, domain.BotInfo{}, nil
	}
	if !s.Repository.CheckForUpdates(ctx) {
		return OutcomeUpToDate, domain.BotInfo{}, nil
	}

	info, err := s.Repository.DownloadBot(ctx, s.URL, "")
	if err != nil {
		fields := map[string]interface{}{"url": s.URL, "code": string(domain.CodeOf(err))}
		// A rate limited download is retried on the next tick.
		if errors.Is(err, &domain.BotError{Code: domain.EDownload, Reason: domain.ReasonRateLimited}) {
			s.Logger.Info("bot update deferred", fields)
			return OutcomeDeferred, domain.BotInfo{}, err
		}
		s.Logger.Error("bot update failed", err, fields)
		return OutcomeFailed, domain.BotInfo{}, err
	}
	s.Logger.Info("bot updated", map[string]interface{}{"url": info.URL, "hash": info.Hash})
	return OutcomeUpdated, info, nil
}

// Watch runs Run immediately and then every interval until ctx ends.
// Failed passes are logged and do not stop the loop.
func (s *Service) Watch(ctx context.Context, interval time.Duration, report func(Outcome, domain.BotInfo, error)) error {
	if interval <= 0 {
		return errors.New("update interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		outcome, info, err := s.Run(ctx)
		if report != nil {
			report(outcome, info, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
