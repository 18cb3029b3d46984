package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the closed set of guest decisions.
type Action string

const (
	ActionReply   Action = "REPLY"
	ActionDismiss Action = "DISMISS"
	ActionKeep    Action = "KEEP"
	ActionSnooze  Action = "SNOOZE"
)

// DefaultSnoozeMinutes is used when a SNOOZE result omits snoozeMinutes.
const DefaultSnoozeMinutes = 15

// AttachmentDescriptor references a file the guest wants sent with a reply.
type AttachmentDescriptor struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
}

// ExecutionResult is implemented by exactly four variants: Reply, Dismiss, Keep, Snooze.
type ExecutionResult interface {
	Action() Action
	isExecutionResult()
}

type Reply struct {
	Text        string
	Attachments []AttachmentDescriptor
	Reason      string
}

type Dismiss struct {
	Reason string
}

type Keep struct {
	Reason string
}

type Snooze struct {
	Minutes int
	Reason  string
}

func (Reply) Action() Action   { return ActionReply }
func (Dismiss) Action() Action { return ActionDismiss }
func (Keep) Action() Action    { return ActionKeep }
func (Snooze) Action() Action  { return ActionSnooze }

func (Reply) isExecutionResult()   {}
func (Dismiss) isExecutionResult() {}
func (Keep) isExecutionResult()    {}
func (Snooze) isExecutionResult()  {}

type rawResult struct {
	Action        *string                `json:"action"`
	ReplyText     *string                `json:"replyText"`
	Attachments   []AttachmentDescriptor `json:"attachments"`
	SnoozeMinutes *int                   `json:"snoozeMinutes"`
	Reason        string                 `json:"reason"`
}

// ParseExecutionResult decodes the guest's JSON result. Unknown or missing
// action tags, a REPLY without text and malformed attachments all fail.
func ParseExecutionResult(raw string) (ExecutionResult, error) {
	var payload rawResult
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&payload); err != nil {
		return nil, NewExecutionFailed("bot result is not a JSON object", err.Error(), "")
	}
	if payload.Action == nil {
		return nil, NewExecutionFailed("bot result has no action", "", "")
	}

	switch Action(*payload.Action) {
	case ActionReply:
		if payload.ReplyText == nil || strings.TrimSpace(*payload.ReplyText) == "" {
			return nil, NewExecutionFailed("REPLY action requires replyText", "", "")
		}
		for i, a := range payload.Attachments {
			if strings.TrimSpace(a.Path) == "" || strings.TrimSpace(a.MimeType) == "" {
				return nil, NewExecutionFailed(fmt.Sprintf("attachment %d requires path and mimeType", i), "", "")
			}
		}
		return Reply{Text: *payload.ReplyText, Attachments: payload.Attachments, Reason: payload.Reason}, nil
	case ActionDismiss:
		return Dismiss{Reason: payload.Reason}, nil
	case ActionKeep:
		return Keep{Reason: payload.Reason}, nil
	case ActionSnooze:
		minutes := DefaultSnoozeMinutes
		if payload.SnoozeMinutes != nil {
			if *payload.SnoozeMinutes <= 0 {
				return nil, NewExecutionFailed("snoozeMinutes must be positive", "", "")
			}
			minutes = *payload.SnoozeMinutes
		}
		return Snooze{Minutes: minutes, Reason: payload.Reason}, nil
	default:
		return nil, NewExecutionFailed(fmt.Sprintf("unknown action %q", *payload.Action), "", "")
	}
}

// Decision is what the orchestrator acted on for one notification.
type Decision struct {
	ExecutionID  string
	Notification NotificationSnapshot
	Result       ExecutionResult
	// Fallback is set when the bot did not produce Result.
	Fallback bool
	Cause    error
}
