package domain

import "time"

// Config mirrors ~/.replybot/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	Bot                 BotSettings        `yaml:"bot"`
	Execution           ExecutionSettings  `yaml:"execution"`
	Download            DownloadSettings   `yaml:"download"`
	Storage             StorageSettings    `yaml:"storage"`
	Reply               ReplySettings      `yaml:"reply"`
	Attachments         AttachmentSettings `yaml:"attachments"`
	Apps                map[string]string  `yaml:"apps"`
	Debug               DebugSettings      `yaml:"debug"`
	Validator           ValidatorSettings  `yaml:"validator"`
	History             HistorySettings    `yaml:"history"`
}

// BotSettings selects the installed bot and how it is kept current.
type BotSettings struct {
	Enabled         bool          `yaml:"enabled"`
	URL             string        `yaml:"url"`
	AutoUpdate      bool          `yaml:"auto_update"`
	UpdateInterval  time.Duration `yaml:"update_interval"`
	SendAttachments bool          `yaml:"send_attachments"`
}

// ExecutionSettings bounds a single bot run.
type ExecutionSettings struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxExecutions    int           `yaml:"max_executions"`
	Window           time.Duration `yaml:"window"`
	MaxFetchRequests int           `yaml:"max_fetch_requests"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

// DownloadSettings controls bot installation.
type DownloadSettings struct {
	RateLimit time.Duration `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StorageSettings locates persistent state.
type StorageSettings struct {
	DataDir string `yaml:"data_dir"`
}

// ReplySettings holds the static fallback reply.
type ReplySettings struct {
	FallbackText string `yaml:"fallback_text"`
}

// AttachmentSettings confines guest supplied attachments.
type AttachmentSettings struct {
	Dir           string        `yaml:"dir"`
	MaxFileBytes  int64         `yaml:"max_file_bytes"`
	MaxTotalBytes int64         `yaml:"max_total_bytes"`
	Retention     time.Duration `yaml:"retention"`
}

// DebugSettings toggles diagnostics capture.
type DebugSettings struct {
	Capture    bool `yaml:"capture"`
	MaxEntries int  `yaml:"max_entries"`
}

// ValidatorSettings extends the built-in denylist.
type ValidatorSettings struct {
	ExtraPatternsFile string `yaml:"extra_patterns_file"`
}

// HistorySettings controls execution history retention.
type HistorySettings struct {
	Enabled    bool `yaml:"enabled"`
	RetainDays int  `yaml:"retain_days"`
}

const (
	DirectoryPermissions  = 0o755
	SecureFilePermissions = 0o600
)

const (
	ConfigFormatVersion = "1"

	DefaultExecutionTimeout = 5 * time.Second
	DefaultMaxExecutions    = 10
	DefaultExecutionWindow  = time.Minute
	DefaultMaxFetchRequests = 5
	DefaultMaxResponseBytes = 512 * 1024

	DefaultDownloadRateLimit = 3 * time.Minute
	DefaultDownloadTimeout   = 30 * time.Second

	DefaultUpdateInterval = 6 * time.Hour

	DefaultMaxAttachmentBytes      = 5 * 1024 * 1024
	DefaultMaxTotalAttachmentBytes = 10 * 1024 * 1024
	DefaultAttachmentRetention     = 24 * time.Hour

	DefaultDiagnosticsEntries = 500

	DefaultHistoryLimit      = 20
	DefaultHistoryRetainDays = 30

	TimestampFormat = time.RFC3339
)

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		ConfigFormatVersion: ConfigFormatVersion,
		Bot: BotSettings{
			Enabled:        true,
			AutoUpdate:     false,
			UpdateInterval: DefaultUpdateInterval,
		},
		Execution: ExecutionSettings{
			Timeout:          DefaultExecutionTimeout,
			MaxExecutions:    DefaultMaxExecutions,
			Window:           DefaultExecutionWindow,
			MaxFetchRequests: DefaultMaxFetchRequests,
			MaxResponseBytes: DefaultMaxResponseBytes,
		},
		Download: DownloadSettings{
			RateLimit: DefaultDownloadRateLimit,
			Timeout:   DefaultDownloadTimeout,
		},
		Reply: ReplySettings{
			FallbackText: "I'm away right now and will get back to you soon.",
		},
		Attachments: AttachmentSettings{
			MaxFileBytes:  DefaultMaxAttachmentBytes,
			MaxTotalBytes: DefaultMaxTotalAttachmentBytes,
			Retention:     DefaultAttachmentRetention,
		},
		Apps: map[string]string{},
		Debug: DebugSettings{
			MaxEntries: DefaultDiagnosticsEntries,
		},
		History: HistorySettings{
			Enabled:    true,
			RetainDays: DefaultHistoryRetainDays,
		},
	}
}
