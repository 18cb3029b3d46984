package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"

	appconfig "github.com/doeshing/replybot/internal/application/config"
	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Database       Pinger
	Repository     ports.BotRepository
	Validator      ports.ScriptValidator
	AttachmentsDir string
}

// Run executes checks and returns a report. The error is only set when the
// config cannot be loaded at all.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format version %s", cfg.ConfigFormatVersion)))
	}

	if s.Database != nil {
		if err := s.Database.PingContext(ctx); err != nil {
			checks = append(checks, fail("Database", err.Error()))
		} else {
			checks = append(checks, ok("Database", "reachable"))
		}
	}

	checks = append(checks, s.botCheck(ctx, cfg))

	if cfg.Bot.URL == "" {
		checks = append(checks, warn("Bot URL", "bot.url not configured; updates disabled"))
	} else {
		checks = append(checks, ok("Bot URL", cfg.Bot.URL))
	}

	checks = append(checks, s.attachmentsCheck(cfg))
	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) botCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	if !cfg.Bot.Enabled {
		return warn("Bot", "disabled; static replies only")
	}
	if s.Repository == nil {
		return warn("Bot", "repository not initialized")
	}
	script, err := s.Repository.LoadScript(ctx)
	switch {
	case errors.Is(err, domain.ErrNotInstalled):
		return warn("Bot", "not installed; static replies only")
	case err != nil:
		return fail("Bot", err.Error())
	}
	if s.Validator != nil {
		if outcome := s.Validator.Check(script.Source); !outcome.Valid {
			return fail("Bot", outcome.Diagnostic())
		}
	}
	return ok("Bot", fmt.Sprintf("installed %s", script.Info.Hash))
}

func (s *Service) attachmentsCheck(cfg domain.Config) domain.HealthCheck {
	if !cfg.Bot.SendAttachments {
		return ok("Attachments", "disabled")
	}
	info, err := os.Stat(s.AttachmentsDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return warn("Attachments", s.AttachmentsDir+" does not exist")
	case err != nil:
		return fail("Attachments", err.Error())
	case !info.IsDir():
		return fail("Attachments", s.AttachmentsDir+" is not a directory")
	}
	return ok("Attachments", s.AttachmentsDir)
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
