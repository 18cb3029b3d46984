package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code is a stable error code string.
type Code string

const (
	EValidation         Code = "E_VALIDATION"
	EDownload           Code = "E_DOWNLOAD"
	EExecutionTimeout   Code = "E_EXECUTION_TIMEOUT"
	EExecutionFailed    Code = "E_EXECUTION_FAILED"
	ERateLimitExceeded  Code = "E_RATE_LIMIT_EXCEEDED"
	ENotInstalled       Code = "E_NOT_INSTALLED"
	EEngineState        Code = "E_ENGINE_STATE"
	EExecutionCancelled Code = "E_EXECUTION_CANCELLED"
)

// DownloadReason narrows an E_DOWNLOAD failure.
type DownloadReason string

const (
	ReasonScheme       DownloadReason = "scheme"
	ReasonRateLimited  DownloadReason = "rate_limited"
	ReasonNetwork      DownloadReason = "network"
	ReasonHTTPStatus   DownloadReason = "http_status"
	ReasonEmpty        DownloadReason = "empty"
	ReasonValidation   DownloadReason = "validation"
	ReasonHashMismatch DownloadReason = "hash_mismatch"
	ReasonPersist      DownloadReason = "persist"
)

// Sentinels for errors.Is matching on code.
var (
	ErrValidation         = &BotError{Code: EValidation}
	ErrDownload           = &BotError{Code: EDownload}
	ErrExecutionTimeout   = &BotError{Code: EExecutionTimeout}
	ErrExecutionFailed    = &BotError{Code: EExecutionFailed}
	ErrRateLimitExceeded  = &BotError{Code: ERateLimitExceeded}
	ErrNotInstalled       = &BotError{Code: ENotInstalled}
	ErrEngineState        = &BotError{Code: EEngineState}
	ErrExecutionCancelled = &BotError{Code: EExecutionCancelled}
)

// BotError is the single error type crossing the subsystem boundary.
// GuestError and GuestStack hold text produced by the guest script and are
// surfaced to logs and debug capture only.
type BotError struct {
	Code       Code
	Reason     DownloadReason
	Message    string
	GuestError string
	GuestStack string
	RetryAfter time.Duration
	Err        error
}

func (e *BotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.GuestError != "" {
		return fmt.Sprintf("%s: %s", msg, e.GuestError)
	}
	return msg
}

func (e *BotError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a BotError with the same code.
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok || t == nil || e == nil {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return t.Code == e.Code
}

// DetailedMessage renders the message together with guest diagnostics.
func (e *BotError) DetailedMessage() string {
	var b strings.Builder
	b.WriteString("Bot Error: ")
	b.WriteString(e.Error())
	if e.GuestError != "" {
		b.WriteString("\nJS Error: ")
		b.WriteString(e.GuestError)
	}
	if e.GuestStack != "" {
		b.WriteString("\nStack Trace: ")
		b.WriteString(e.GuestStack)
	}
	return b.String()
}

// NewValidationError builds an E_VALIDATION error.
func NewValidationError(msg string) *BotError {
	return &BotError{Code: EValidation, Message: msg}
}

// NewDownloadError builds an E_DOWNLOAD error with a reason.
func NewDownloadError(reason DownloadReason, msg string, err error) *BotError {
	return &BotError{Code: EDownload, Reason: reason, Message: msg, Err: err}
}

// NewExecutionFailed builds an E_EXECUTION_FAILED error.
func NewExecutionFailed(msg, guestError, guestStack string) *BotError {
	return &BotError{Code: EExecutionFailed, Message: msg, GuestError: guestError, GuestStack: guestStack}
}

// NewExecutionTimeout builds an E_EXECUTION_TIMEOUT error.
func NewExecutionTimeout(limit time.Duration) *BotError {
	return &BotError{
		Code:    EExecutionTimeout,
		Message: fmt.Sprintf("bot execution exceeded %dms", limit.Milliseconds()),
	}
}

// CodeOf extracts the code of a BotError in err's chain, or "" when absent.
func CodeOf(err error) Code {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Code
	}
	return ""
}

// FormatWait renders a wait time as "N minute(s) and M second(s)" or "M second(s)".
func FormatWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	seconds := int64((d % time.Minute) / time.Second)
	if minutes > 0 {
		return fmt.Sprintf("%d minute%s and %d second%s", minutes, plural(minutes), seconds, plural(seconds))
	}
	return fmt.Sprintf("%d second%s", seconds, plural(seconds))
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
