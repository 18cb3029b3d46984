// Package dispatch delivers reply decisions outside the process.
package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// Event is one JSON line written per decision.
type Event struct {
	Action         domain.Action     `json:"action"`
	NotificationID int               `json:"notificationId"`
	AppPackage     string            `json:"appPackage"`
	ReplyText      string            `json:"replyText,omitempty"`
	Attachments    []EventAttachment `json:"attachments,omitempty"`
	SnoozeMinutes  int               `json:"snoozeMinutes,omitempty"`
	Time           string            `json:"time"`
}

// EventAttachment describes a resolved file in an Event.
type EventAttachment struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// JSONLines writes every decision as a JSON object followed by a newline.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewJSONLines writes to w.
func NewJSONLines(w io.Writer) *JSONLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLines{enc: enc, now: time.Now}
}

func (d *JSONLines) Reply(_ context.Context, n domain.NotificationSnapshot, text string, attachments []ports.ResolvedAttachment) error {
	ev := d.event(domain.ActionReply, n)
	ev.ReplyText = text
	for _, a := range attachments {
		ev.Attachments = append(ev.Attachments, EventAttachment{Path: a.Path, MimeType: a.MimeType, Size: a.Size})
	}
	return d.write(ev)
}

func (d *JSONLines) Dismiss(_ context.Context, n domain.NotificationSnapshot) error {
	return d.write(d.event(domain.ActionDismiss, n))
}

func (d *JSONLines) Keep(_ context.Context, n domain.NotificationSnapshot) error {
	return d.write(d.event(domain.ActionKeep, n))
}

func (d *JSONLines) Snooze(_ context.Context, n domain.NotificationSnapshot, duration time.Duration) error {
	ev := d.event(domain.ActionSnooze, n)
	ev.SnoozeMinutes = int(duration / time.Minute)
	return d.write(ev)
}

func (d *JSONLines) event(action domain.Action, n domain.NotificationSnapshot) Event {
	return Event{
		Action:         action,
		NotificationID: n.ID,
		AppPackage:     n.AppPackage,
		Time:           d.now().UTC().Format(domain.TimestampFormat),
	}
}

func (d *JSONLines) write(ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enc.Encode(ev)
}

var _ ports.ReplyDispatcher = (*JSONLines)(nil)
