package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/doeshing/replybot/internal/domain"
)

// Validate ensures config values are usable.
func Validate(cfg domain.Config) error {
	if cfg.ConfigFormatVersion != "" && cfg.ConfigFormatVersion != domain.ConfigFormatVersion {
		return fmt.Errorf("unsupported config_format_version %q", cfg.ConfigFormatVersion)
	}
	return errors.Join(
		validateBot(cfg.Bot),
		validateExecution(cfg.Execution),
		validateDownload(cfg.Download),
		validateAttachments(cfg.Attachments),
		validateDebug(cfg.Debug),
		validateHistory(cfg.History),
	)
}

func validateBot(bot domain.BotSettings) error {
	if bot.URL != "" {
		u, err := url.Parse(bot.URL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("bot.url must be an https URL, got %q", bot.URL)
		}
	}
	if bot.AutoUpdate && bot.UpdateInterval < time.Minute {
		return fmt.Errorf("bot.update_interval must be >= 1m when auto_update is on")
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	if exec.Timeout <= 0 || exec.Timeout > time.Minute {
		return fmt.Errorf("execution.timeout must be in (0, 1m], got %s", exec.Timeout)
	}
	if exec.MaxExecutions <= 0 {
		return fmt.Errorf("execution.max_executions must be > 0")
	}
	if exec.Window <= 0 {
		return fmt.Errorf("execution.window must be > 0")
	}
	if exec.MaxFetchRequests < 0 {
		return fmt.Errorf("execution.max_fetch_requests must be >= 0")
	}
	if exec.MaxResponseBytes <= 0 {
		return fmt.Errorf("execution.max_response_bytes must be > 0")
	}
	return nil
}

func validateDownload(dl domain.DownloadSettings) error {
	if dl.RateLimit < 0 {
		return fmt.Errorf("download.rate_limit must be >= 0")
	}
	if dl.Timeout <= 0 {
		return fmt.Errorf("download.timeout must be > 0")
	}
	return nil
}

func validateAttachments(att domain.AttachmentSettings) error {
	if att.MaxFileBytes <= 0 || att.MaxTotalBytes <= 0 {
		return fmt.Errorf("attachments size limits must be > 0")
	}
	if att.MaxFileBytes > att.MaxTotalBytes {
		return fmt.Errorf("attachments.max_file_bytes must not exceed max_total_bytes")
	}
	if att.Retention <= 0 {
		return fmt.Errorf("attachments.retention must be > 0")
	}
	return nil
}

func validateDebug(debug domain.DebugSettings) error {
	if debug.MaxEntries <= 0 {
		return fmt.Errorf("debug.max_entries must be > 0")
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.RetainDays < 0 {
		return fmt.Errorf("history.retain_days must be >= 0")
	}
	return nil
}
