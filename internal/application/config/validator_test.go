package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/doeshing/replybot/internal/domain"
)

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, Validate(domain.DefaultConfig()))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		mutate func(*domain.Config)
		want   string
	}{
		"http url":        {func(c *domain.Config) { c.Bot.URL = "http://x/bot.js" }, "bot.url"},
		"zero timeout":    {func(c *domain.Config) { c.Execution.Timeout = 0 }, "execution.timeout"},
		"huge timeout":    {func(c *domain.Config) { c.Execution.Timeout = time.Hour }, "execution.timeout"},
		"no executions":   {func(c *domain.Config) { c.Execution.MaxExecutions = 0 }, "max_executions"},
		"negative fetch":  {func(c *domain.Config) { c.Execution.MaxFetchRequests = -1 }, "max_fetch_requests"},
		"file over total": {func(c *domain.Config) { c.Attachments.MaxFileBytes = c.Attachments.MaxTotalBytes + 1 }, "max_file_bytes"},
		"fast updates": {func(c *domain.Config) {
			c.Bot.AutoUpdate = true
			c.Bot.UpdateInterval = time.Second
		}, "update_interval"},
		"version": {func(c *domain.Config) { c.ConfigFormatVersion = "9" }, "config_format_version"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tc.mutate(&cfg)
			assert.ErrorContains(t, Validate(cfg), tc.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Execution.Window = 0
	cfg.Debug.MaxEntries = 0
	err := Validate(cfg)
	assert.ErrorContains(t, err, "execution.window")
	assert.ErrorContains(t, err, "debug.max_entries")
}
