package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// NotificationSnapshot is the immutable notification view handed to a bot.
type NotificationSnapshot struct {
	ID         int       `json:"id"`
	AppPackage string    `json:"appPackage"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	PostedAt   time.Time `json:"-"`
	IsGroup    bool      `json:"isGroup"`
}

// guestNotification is the restricted wire shape; every field is always present.
type guestNotification struct {
	ID         int      `json:"id"`
	AppPackage string   `json:"appPackage"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Timestamp  int64    `json:"timestamp"`
	IsGroup    bool     `json:"isGroup"`
	Actions    []string `json:"actions"`
}

// GuestJSON serializes the snapshot into the JSON object passed to the entry point.
func (n NotificationSnapshot) GuestJSON() (string, error) {
	payload := guestNotification{
		ID:         n.ID,
		AppPackage: n.AppPackage,
		Title:      n.Title,
		Body:       n.Body,
		IsGroup:    n.IsGroup,
		Actions:    []string{},
	}
	if !n.PostedAt.IsZero() {
		payload.Timestamp = n.PostedAt.UnixMilli()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ParseNotificationJSON decodes the guest wire shape back into a snapshot.
// Used by the CLI to feed recorded notifications into a bot.
func ParseNotificationJSON(raw []byte) (NotificationSnapshot, error) {
	var payload guestNotification
	if err := json.Unmarshal(raw, &payload); err != nil {
		return NotificationSnapshot{}, err
	}
	snapshot := NotificationSnapshot{
		ID:         payload.ID,
		AppPackage: payload.AppPackage,
		Title:      payload.Title,
		Body:       payload.Body,
		IsGroup:    payload.IsGroup,
	}
	if payload.Timestamp > 0 {
		snapshot.PostedAt = time.UnixMilli(payload.Timestamp)
	}
	return snapshot, nil
}
