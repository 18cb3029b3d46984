package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExecutionResultVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ExecutionResult
	}{
		{
			name: "reply",
			raw:  `{"action":"REPLY","replyText":"hi","attachments":[{"path":"a.jpg","mimeType":"image/jpeg"}],"reason":"away"}`,
			want: Reply{Text: "hi", Attachments: []AttachmentDescriptor{{Path: "a.jpg", MimeType: "image/jpeg"}}, Reason: "away"},
		},
		{name: "dismiss", raw: `{"action":"DISMISS"}`, want: Dismiss{}},
		{name: "keep", raw: `{"action":"KEEP","reason":"vip"}`, want: Keep{Reason: "vip"}},
		{name: "snooze default", raw: `{"action":"SNOOZE"}`, want: Snooze{Minutes: DefaultSnoozeMinutes}},
		{name: "snooze minutes", raw: `{"action":"SNOOZE","snoozeMinutes":45}`, want: Snooze{Minutes: 45}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExecutionResult(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExecutionResultFailsClosed(t *testing.T) {
	for _, raw := range []string{
		``,
		`"hello"`,
		`{}`,
		`{"action":"reply","replyText":"hi"}`,
		`{"action":"FORWARD"}`,
		`{"action":"REPLY"}`,
		`{"action":"REPLY","replyText":"   "}`,
		`{"action":"REPLY","replyText":"hi","attachments":[{"path":"a.jpg"}]}`,
		`{"action":"SNOOZE","snoozeMinutes":0}`,
	} {
		_, err := ParseExecutionResult(raw)
		assert.ErrorIs(t, err, ErrExecutionFailed, raw)
	}
}

func TestGuestJSONAlwaysCarriesEveryField(t *testing.T) {
	raw, err := NotificationSnapshot{ID: 7, AppPackage: "com.whatsapp", Title: "Ann", Body: "line\n\"quoted\" <b>"}.GuestJSON()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":7,"appPackage":"com.whatsapp","title":"Ann","body":"line\n\"quoted\" <b>","timestamp":0,"isGroup":false,"actions":[]}`,
		raw)
	assert.Contains(t, raw, "<b>")

	back, err := ParseNotificationJSON([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "line\n\"quoted\" <b>", back.Body)
	assert.True(t, back.PostedAt.IsZero())
}
