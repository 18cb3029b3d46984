package domain

import "time"

// ExecutionRecord captures one orchestrated bot run.
type ExecutionRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	NotificationID int       `json:"notification_id"`
	AppPackage     string    `json:"app_package"`
	Action         Action    `json:"action"`
	Fallback       bool      `json:"fallback"`
	ErrorCode      Code      `json:"error_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	BotHash        string    `json:"bot_hash,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
}

// DiagnosticEntry is one line of captured debug output.
type DiagnosticEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// HTTPRequestOptions is the guest's httpRequest argument.
type HTTPRequestOptions struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}
