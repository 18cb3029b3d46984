// Package reply turns a notification into a reply decision by running the
// installed bot and falling back to the static reply when it cannot.
package reply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// Settings is the slice of configuration the orchestrator reads.
type Settings struct {
	BotEnabled      bool
	SendAttachments bool
	FallbackText    string
}

// Service orchestrates a single notification end-to-end.
type Service struct {
	Settings    Settings
	Limiter     ports.AdmissionLimiter
	Repository  ports.BotRepository
	Validator   ports.ScriptValidator
	Engine      ports.BotEngine
	Attachments ports.AttachmentResolver
	Dispatcher  ports.ReplyDispatcher
	History     ports.HistoryRepository
	Logger      ports.Logger

	Now   func() time.Time
	NewID func() string
}

// Handle decides what to do with notification and dispatches it. Bot
// failures become fallback decisions; only dispatch errors are returned.
func (s *Service) Handle(ctx context.Context, notification domain.NotificationSnapshot, sink ports.DiagnosticsSink) (domain.Decision, error) {
	if s.Limiter == nil || s.Repository == nil || s.Validator == nil || s.Engine == nil ||
		s.Dispatcher == nil || s.Logger == nil {
		return domain.Decision{}, errors.New("reply.Service dependencies not satisfied")
	}

	start := s.now()
	decision := domain.Decision{ExecutionID: s.newID(), Notification: notification}
	fields := map[string]interface{}{
		"execution_id": decision.ExecutionID,
		"app":          notification.AppPackage,
		"notification": notification.ID,
	}

	var (
		botHash     string
		attachments []ports.ResolvedAttachment
	)
	if s.Settings.BotEnabled {
		result, hash, err := s.runBot(ctx, notification, sink)
		botHash = hash
		if err != nil {
			decision.Fallback = true
			decision.Cause = err
			fields["code"] = string(domain.CodeOf(err))
			s.Logger.Warn("bot failed, using fallback reply", withErr(fields, err))
			record(sink, "warn", "fallback: "+err.Error())
		} else {
			decision.Result = result
			attachments = s.resolveAttachments(result, fields)
		}
	} else {
		decision.Fallback = true
		s.Logger.Debug("bot disabled, using fallback reply", fields)
	}
	if decision.Fallback {
		decision.Result = s.fallback()
	}

	dispatchErr := s.dispatch(ctx, notification, decision.Result, attachments)
	s.saveHistory(ctx, decision, botHash, s.now().Sub(start))
	if dispatchErr != nil {
		s.Logger.Error("dispatch failed", dispatchErr, fields)
		return decision, fmt.Errorf("dispatch %s: %w", decision.Result.Action(), dispatchErr)
	}

	fields["action"] = string(decision.Result.Action())
	fields["fallback"] = decision.Fallback
	s.Logger.Info("notification handled", fields)
	return decision, nil
}

func (s *Service) runBot(ctx context.Context, notification domain.NotificationSnapshot, sink ports.DiagnosticsSink) (domain.ExecutionResult, string, error) {
	if !s.Limiter.TryAcquire() {
		return nil, "", &domain.BotError{
			Code:    domain.ERateLimitExceeded,
			Message: "bot execution rate limit exceeded",
		}
	}

	script, err := s.Repository.LoadScript(ctx)
	if err != nil {
		return nil, "", err
	}

	if outcome := s.Validator.Check(script.Source); !outcome.Valid {
		record(sink, "error", "bot validation failed: "+outcome.Diagnostic())
		return nil, script.Info.Hash, domain.NewValidationError(outcome.Diagnostic())
	}

	raw, err := s.Engine.ExecuteBot(ctx, script.Source, notification, sink)
	if err != nil {
		return nil, script.Info.Hash, err
	}

	if err := checkResultShape(raw); err != nil {
		return nil, script.Info.Hash, err
	}
	result, err := domain.ParseExecutionResult(raw)
	if err != nil {
		return nil, script.Info.Hash, err
	}
	return result, script.Info.Hash, nil
}

// resolveAttachments drops attachments it cannot deliver; the reply text still goes out.
func (s *Service) resolveAttachments(result domain.ExecutionResult, fields map[string]interface{}) []ports.ResolvedAttachment {
	reply, ok := result.(domain.Reply)
	if !ok || len(reply.Attachments) == 0 {
		return nil
	}
	if !s.Settings.SendAttachments || s.Attachments == nil {
		s.Logger.Debug("attachments disabled, sending text only", fields)
		return nil
	}
	resolved, err := s.Attachments.Resolve(reply.Attachments)
	if err != nil {
		s.Logger.Warn("dropping attachments", withErr(fields, err))
		return nil
	}
	return resolved
}

func (s *Service) fallback() domain.ExecutionResult {
	if s.Settings.FallbackText == "" {
		return domain.Keep{Reason: "fallback"}
	}
	return domain.Reply{Text: s.Settings.FallbackText, Reason: "fallback"}
}

func (s *Service) dispatch(ctx context.Context, n domain.NotificationSnapshot, result domain.ExecutionResult, attachments []ports.ResolvedAttachment) error {
	switch r := result.(type) {
	case domain.Reply:
		return s.Dispatcher.Reply(ctx, n, r.Text, attachments)
	case domain.Dismiss:
		return s.Dispatcher.Dismiss(ctx, n)
	case domain.Keep:
		return s.Dispatcher.Keep(ctx, n)
	case domain.Snooze:
		return s.Dispatcher.Snooze(ctx, n, time.Duration(r.Minutes)*time.Minute)
	default:
		return fmt.Errorf("unknown result %T", result)
	}
}

func (s *Service) saveHistory(ctx context.Context, decision domain.Decision, botHash string, elapsed time.Duration) {
	if s.History == nil {
		return
	}
	rec := domain.ExecutionRecord{
		ID:             decision.ExecutionID,
		Timestamp:      s.now(),
		NotificationID: decision.Notification.ID,
		AppPackage:     decision.Notification.AppPackage,
		Action:         decision.Result.Action(),
		Fallback:       decision.Fallback,
		BotHash:        botHash,
		DurationMS:     elapsed.Milliseconds(),
	}
	if decision.Cause != nil {
		rec.ErrorCode = domain.CodeOf(decision.Cause)
		rec.ErrorMessage = decision.Cause.Error()
	}
	if err := s.History.Save(ctx, rec); err != nil {
		s.Logger.Warn("history save failed", map[string]interface{}{"error": err.Error(), "execution_id": rec.ID})
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func withErr(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

func record(sink ports.DiagnosticsSink, level, message string) {
	if sink != nil {
		sink.Record(level, message)
	}
}
