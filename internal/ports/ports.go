// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the reply pipeline and the
// adapters that back it (script repository, JavaScript engine, key-value
// storage, HTTP, history). The application layer depends only on these
// abstractions, never on a concrete adapter.
package ports

import (
	"context"
	"time"

	"github.com/doeshing/replybot/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.replybot/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// DiagnosticsSink receives advisory debug output. It never affects a verdict.
type DiagnosticsSink interface {
	Record(level string, message string)
}

// ScriptValidator is the static pre-execution gate.
type ScriptValidator interface {
	Validate(source string, sink DiagnosticsSink) bool
	Check(source string) domain.ValidationOutcome
}

// KeyValueStore is a flat, namespaced string store. Writes are atomic per key.
type KeyValueStore interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	// SetMany writes every pair or none of them.
	SetMany(ctx context.Context, namespace string, values map[string]string) error
	Delete(ctx context.Context, namespace, key string) error
	Keys(ctx context.Context, namespace string) ([]string, error)
	Clear(ctx context.Context, namespace string) error
}

// HostAPI is the backend behind the capabilities exposed to guest scripts.
type HostAPI interface {
	Log(level, message string)
	StorageGet(ctx context.Context, key string) (string, bool, error)
	StorageSet(ctx context.Context, key, value string) error
	StorageRemove(ctx context.Context, key string) error
	StorageKeys(ctx context.Context) ([]string, error)
	StorageClear(ctx context.Context) error
	HTTPRequest(ctx context.Context, opts domain.HTTPRequestOptions) (string, error)
	CurrentTime() int64
	AppName(packageName string) string
}

// BotEngine evaluates a guest script against one notification and returns the
// entry point's result serialized as JSON.
type BotEngine interface {
	ExecuteBot(ctx context.Context, source string, notification domain.NotificationSnapshot, sink DiagnosticsSink) (string, error)
}

// BotRepository downloads, persists and serves the installed bot.
type BotRepository interface {
	DownloadBot(ctx context.Context, url string, expectedHash string) (domain.BotInfo, error)
	CheckForUpdates(ctx context.Context) bool
	DeleteBot(ctx context.Context) error
	InstalledBotInfo(ctx context.Context) (domain.BotInfo, bool, error)
	LoadScript(ctx context.Context) (domain.BotScript, error)
}

// AdmissionLimiter is a check-and-record admission gate.
type AdmissionLimiter interface {
	TryAcquire() bool
}

// AttachmentResolver turns guest attachment descriptors into deliverable files.
type AttachmentResolver interface {
	Resolve(descriptors []domain.AttachmentDescriptor) ([]ResolvedAttachment, error)
}

// ResolvedAttachment is an attachment confined to the attachments directory.
type ResolvedAttachment struct {
	Path     string
	MimeType string
	Size     int64
}

// ReplyDispatcher performs the platform side effect for a decision.
type ReplyDispatcher interface {
	Reply(ctx context.Context, notification domain.NotificationSnapshot, text string, attachments []ResolvedAttachment) error
	Dismiss(ctx context.Context, notification domain.NotificationSnapshot) error
	Keep(ctx context.Context, notification domain.NotificationSnapshot) error
	Snooze(ctx context.Context, notification domain.NotificationSnapshot, duration time.Duration) error
}

// HistoryRepository persists executed decisions.
type HistoryRepository interface {
	Save(ctx context.Context, record domain.ExecutionRecord) error
	List(ctx context.Context, limit int) ([]domain.ExecutionRecord, error)
	Clear(ctx context.Context) error
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
