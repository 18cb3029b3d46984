package reply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/infrastructure/diagnostics"
	"github.com/doeshing/replybot/internal/pkg/logger"
	"github.com/doeshing/replybot/internal/ports"
)

type stubLimiter struct{ allow bool }

func (s *stubLimiter) TryAcquire() bool { return s.allow }

type stubRepository struct {
	script domain.BotScript
	err    error
}

func (s *stubRepository) DownloadBot(context.Context, string, string) (domain.BotInfo, error) {
	return domain.BotInfo{}, errors.New("not used")
}
func (s *stubRepository) CheckForUpdates(context.Context) bool { return false }
func (s *stubRepository) DeleteBot(context.Context) error      { return nil }
func (s *stubRepository) InstalledBotInfo(context.Context) (domain.BotInfo, bool, error) {
	return s.script.Info, s.err == nil, nil
}
func (s *stubRepository) LoadScript(context.Context) (domain.BotScript, error) {
	return s.script, s.err
}

type stubValidator struct {
	reject   bool
	checks   int
	validate int
}

func (s *stubValidator) Validate(source string, _ ports.DiagnosticsSink) bool {
	s.validate++
	return s.Check(source).Valid
}
func (s *stubValidator) Check(string) domain.ValidationOutcome {
	s.checks++
	if s.reject {
		return domain.ValidationOutcome{Rule: domain.RuleDenylist, Message: "eval is not allowed", Offset: 4, Snippet: ">>>eval(<<<"}
	}
	return domain.ValidationOutcome{Valid: true, Offset: -1}
}

type stubEngine struct {
	raw   string
	err   error
	calls int
}

func (s *stubEngine) ExecuteBot(context.Context, string, domain.NotificationSnapshot, ports.DiagnosticsSink) (string, error) {
	s.calls++
	return s.raw, s.err
}

type stubResolver struct {
	resolved []ports.ResolvedAttachment
	err      error
}

func (s *stubResolver) Resolve([]domain.AttachmentDescriptor) ([]ports.ResolvedAttachment, error) {
	return s.resolved, s.err
}

type dispatched struct {
	action      domain.Action
	text        string
	attachments []ports.ResolvedAttachment
	snooze      time.Duration
}

type recordingDispatcher struct {
	got []dispatched
	err error
}

func (d *recordingDispatcher) Reply(_ context.Context, _ domain.NotificationSnapshot, text string, atts []ports.ResolvedAttachment) error {
	d.got = append(d.got, dispatched{action: domain.ActionReply, text: text, attachments: atts})
	return d.err
}
func (d *recordingDispatcher) Dismiss(context.Context, domain.NotificationSnapshot) error {
	d.got = append(d.got, dispatched{action: domain.ActionDismiss})
	return d.err
}
func (d *recordingDispatcher) Keep(context.Context, domain.NotificationSnapshot) error {
	d.got = append(d.got, dispatched{action: domain.ActionKeep})
	return d.err
}
func (d *recordingDispatcher) Snooze(_ context.Context, _ domain.NotificationSnapshot, dur time.Duration) error {
	d.got = append(d.got, dispatched{action: domain.ActionSnooze, snooze: dur})
	return d.err
}

type memoryHistory struct{ records []domain.ExecutionRecord }

func (h *memoryHistory) Save(_ context.Context, r domain.ExecutionRecord) error {
	h.records = append(h.records, r)
	return nil
}
func (h *memoryHistory) List(context.Context, int) ([]domain.ExecutionRecord, error) {
	return h.records, nil
}
func (h *memoryHistory) Clear(context.Context) error {
	h.records = nil
	return nil
}
func (h *memoryHistory) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc        *Service
	limiter    *stubLimiter
	repo       *stubRepository
	validator  *stubValidator
	engine     *stubEngine
	resolver   *stubResolver
	dispatcher *recordingDispatcher
	history    *memoryHistory
}

func newFixture(raw string) *fixture {
	f := &fixture{
		limiter:    &stubLimiter{allow: true},
		repo:       &stubRepository{script: domain.BotScript{Source: "function processNotification(n) {}", Info: domain.BotInfo{Hash: "abc"}}},
		validator:  &stubValidator{},
		engine:     &stubEngine{raw: raw},
		resolver:   &stubResolver{},
		dispatcher: &recordingDispatcher{},
		history:    &memoryHistory{},
	}
	f.svc = &Service{
		Settings:    Settings{BotEnabled: true, SendAttachments: true, FallbackText: "away"},
		Limiter:     f.limiter,
		Repository:  f.repo,
		Validator:   f.validator,
		Engine:      f.engine,
		Attachments: f.resolver,
		Dispatcher:  f.dispatcher,
		History:     f.history,
		Logger:      logger.Nop(),
		NewID:       func() string { return "exec-1" },
	}
	return f
}

var notification = domain.NotificationSnapshot{ID: 42, AppPackage: "com.whatsapp", Title: "Ana", Body: "hi"}

func TestHandleDispatchesBotDecisions(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want dispatched
	}{
		"reply":           {`{"action":"REPLY","replyText":"hello"}`, dispatched{action: domain.ActionReply, text: "hello"}},
		"dismiss":         {`{"action":"DISMISS"}`, dispatched{action: domain.ActionDismiss}},
		"keep":            {`{"action":"KEEP","reason":"vip"}`, dispatched{action: domain.ActionKeep}},
		"snooze":          {`{"action":"SNOOZE","snoozeMinutes":5}`, dispatched{action: domain.ActionSnooze, snooze: 5 * time.Minute}},
		"snooze defaults": {`{"action":"SNOOZE"}`, dispatched{action: domain.ActionSnooze, snooze: domain.DefaultSnoozeMinutes * time.Minute}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(tc.raw)
			decision, err := f.svc.Handle(context.Background(), notification, nil)
			require.NoError(t, err)
			assert.False(t, decision.Fallback)
			assert.Equal(t, "exec-1", decision.ExecutionID)
			assert.Equal(t, []dispatched{tc.want}, f.dispatcher.got)

			require.Len(t, f.history.records, 1)
			rec := f.history.records[0]
			assert.Equal(t, tc.want.action, rec.Action)
			assert.Equal(t, "abc", rec.BotHash)
			assert.Equal(t, 42, rec.NotificationID)
			assert.Empty(t, rec.ErrorCode)
		})
	}
}

func TestHandleFallsBackOnBotFailures(t *testing.T) {
	cases := map[string]struct {
		setup func(*fixture)
		code  domain.Code
	}{
		"rate limited":   {func(f *fixture) { f.limiter.allow = false }, domain.ERateLimitExceeded},
		"not installed":  {func(f *fixture) { f.repo.err = &domain.BotError{Code: domain.ENotInstalled, Message: "no bot"} }, domain.ENotInstalled},
		"validation":     {func(f *fixture) { f.validator.reject = true }, domain.EValidation},
		"timeout":        {func(f *fixture) { f.engine.err = domain.NewExecutionTimeout(5 * time.Second) }, domain.EExecutionTimeout},
		"guest error":    {func(f *fixture) { f.engine.err = domain.NewExecutionFailed("boom", "Error: boom", "at x") }, domain.EExecutionFailed},
		"unknown action": {func(f *fixture) { f.engine.raw = `{"action":"FORWARD"}` }, domain.EExecutionFailed},
		"blank reply":    {func(f *fixture) { f.engine.raw = `{"action":"REPLY","replyText":"  "}` }, domain.EExecutionFailed},
		"not an object":  {func(f *fixture) { f.engine.raw = `42` }, domain.EExecutionFailed},
		"wrong type":     {func(f *fixture) { f.engine.raw = `{"action":"SNOOZE","snoozeMinutes":"ten"}` }, domain.EExecutionFailed},
		"bad attachment": {func(f *fixture) { f.engine.raw = `{"action":"REPLY","replyText":"x","attachments":[{"path":"a"}]}` }, domain.EExecutionFailed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(`{"action":"DISMISS"}`)
			tc.setup(f)
			sink := diagnostics.NewCapture(10)
			sink.Enable()

			decision, err := f.svc.Handle(context.Background(), notification, sink)
			require.NoError(t, err)
			assert.True(t, decision.Fallback)
			assert.Equal(t, tc.code, domain.CodeOf(decision.Cause))
			assert.Equal(t, domain.Reply{Text: "away", Reason: "fallback"}, decision.Result)
			assert.Equal(t, []dispatched{{action: domain.ActionReply, text: "away"}}, f.dispatcher.got)

			require.Len(t, f.history.records, 1)
			assert.True(t, f.history.records[0].Fallback)
			assert.Equal(t, tc.code, f.history.records[0].ErrorCode)
			assert.Contains(t, sink.String(), "fallback:")
		})
	}
}

func TestHandleRateLimitSkipsEngine(t *testing.T) {
	f := newFixture(`{"action":"DISMISS"}`)
	f.limiter.allow = false
	_, err := f.svc.Handle(context.Background(), notification, nil)
	require.NoError(t, err)
	assert.Zero(t, f.engine.calls)
}

func TestHandleValidationMessageCarriesDiagnostic(t *testing.T) {
	f := newFixture(`{"action":"DISMISS"}`)
	f.validator.reject = true
	sink := diagnostics.NewCapture(10)
	sink.Enable()
	decision, err := f.svc.Handle(context.Background(), notification, sink)
	require.NoError(t, err)
	assert.ErrorIs(t, decision.Cause, domain.ErrValidation)
	assert.Contains(t, decision.Cause.Error(), ">>>eval(<<<")
	assert.Zero(t, f.engine.calls)

	assert.Equal(t, 1, f.validator.checks, "source is scanned once")
	assert.Zero(t, f.validator.validate)
	entries := sink.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "error", entries[0].Level)
	assert.Contains(t, entries[0].Message, ">>>eval(<<<")
}

func TestHandleWithoutFallbackTextKeeps(t *testing.T) {
	f := newFixture(`{"action":"DISMISS"}`)
	f.svc.Settings.FallbackText = ""
	f.engine.err = domain.NewExecutionTimeout(time.Second)

	decision, err := f.svc.Handle(context.Background(), notification, nil)
	require.NoError(t, err)
	assert.True(t, decision.Fallback)
	assert.Equal(t, domain.ActionKeep, decision.Result.Action())
	assert.Equal(t, domain.ActionKeep, f.dispatcher.got[0].action)
}

func TestHandleDisabledBotUsesStaticReply(t *testing.T) {
	f := newFixture(`{"action":"DISMISS"}`)
	f.svc.Settings.BotEnabled = false

	decision, err := f.svc.Handle(context.Background(), notification, nil)
	require.NoError(t, err)
	assert.True(t, decision.Fallback)
	assert.NoError(t, decision.Cause)
	assert.Zero(t, f.engine.calls)
	assert.Equal(t, "away", f.dispatcher.got[0].text)
}

func TestHandleAttachments(t *testing.T) {
	raw := `{"action":"REPLY","replyText":"see attached","attachments":[{"path":"menu.pdf","mimeType":"application/pdf"}]}`
	menu := ports.ResolvedAttachment{Path: "/data/attachments/menu.pdf", MimeType: "application/pdf", Size: 10}

	t.Run("resolved", func(t *testing.T) {
		f := newFixture(raw)
		f.resolver.resolved = []ports.ResolvedAttachment{menu}
		_, err := f.svc.Handle(context.Background(), notification, nil)
		require.NoError(t, err)
		assert.Equal(t, []ports.ResolvedAttachment{menu}, f.dispatcher.got[0].attachments)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(raw)
		f.resolver.resolved = []ports.ResolvedAttachment{menu}
		f.svc.Settings.SendAttachments = false
		_, err := f.svc.Handle(context.Background(), notification, nil)
		require.NoError(t, err)
		assert.Empty(t, f.dispatcher.got[0].attachments)
		assert.Equal(t, "see attached", f.dispatcher.got[0].text)
	})

	t.Run("resolution failure keeps text", func(t *testing.T) {
		f := newFixture(raw)
		f.resolver.err = errors.New("outside attachments dir")
		decision, err := f.svc.Handle(context.Background(), notification, nil)
		require.NoError(t, err)
		assert.False(t, decision.Fallback)
		assert.Empty(t, f.dispatcher.got[0].attachments)
		assert.Equal(t, "see attached", f.dispatcher.got[0].text)
	})
}

func TestHandleReturnsDispatchErrors(t *testing.T) {
	f := newFixture(`{"action":"DISMISS"}`)
	f.dispatcher.err = errors.New("notification gone")

	decision, err := f.svc.Handle(context.Background(), notification, nil)
	assert.ErrorContains(t, err, "notification gone")
	assert.Equal(t, domain.ActionDismiss, decision.Result.Action())
	assert.Len(t, f.history.records, 1)
}

func TestHandleRequiresDependencies(t *testing.T) {
	_, err := (&Service{}).Handle(context.Background(), notification, nil)
	assert.Error(t, err)
}
