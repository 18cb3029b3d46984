package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	appconfig "github.com/doeshing/replybot/internal/application/config"
	"github.com/doeshing/replybot/internal/application/doctor"
	"github.com/doeshing/replybot/internal/application/reply"
	"github.com/doeshing/replybot/internal/application/update"
	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/infrastructure/attachments"
	"github.com/doeshing/replybot/internal/infrastructure/config"
	"github.com/doeshing/replybot/internal/infrastructure/diagnostics"
	"github.com/doeshing/replybot/internal/infrastructure/engine"
	"github.com/doeshing/replybot/internal/infrastructure/history"
	"github.com/doeshing/replybot/internal/infrastructure/hostapi"
	"github.com/doeshing/replybot/internal/infrastructure/ratelimit"
	"github.com/doeshing/replybot/internal/infrastructure/repository"
	"github.com/doeshing/replybot/internal/infrastructure/security"
	"github.com/doeshing/replybot/internal/infrastructure/storage"
	"github.com/doeshing/replybot/internal/pkg/httpclient"
	"github.com/doeshing/replybot/internal/pkg/logger"
	"github.com/doeshing/replybot/internal/ports"
)

// DatabaseFile is the SQLite file under the data dir.
const DatabaseFile = "replybot.db"

// Options tunes container construction.
type Options struct {
	ConfigPath string
	Verbose    bool
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Logger       *logger.SlogLogger

	DB          *sql.DB
	Store       *storage.SQLiteStore
	Validator   *security.Validator
	Repository  *repository.Repository
	HostAPI     *hostapi.API
	Engine      *engine.Engine
	Limiter     *ratelimit.SlidingWindow
	Attachments *attachments.Store
	History     *history.SQLiteStore
	Diagnostics *diagnostics.Capture

	UpdateService *update.Service
	DoctorService *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := appconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgLoader.Path(), err)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(out, opts.Verbose)

	db, err := storage.OpenDB(ctx, filepath.Join(cfg.Storage.DataDir, DatabaseFile))
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	historyStore, err := history.NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	validator, err := security.NewValidator(cfg.Validator.ExtraPatternsFile, log.With("validator"))
	if err != nil {
		db.Close()
		return nil, err
	}

	capture := diagnostics.NewCapture(cfg.Debug.MaxEntries)
	if cfg.Debug.Capture || opts.Verbose {
		capture.Enable()
	}

	client := httpclient.New()
	repo := repository.New(store, client, validator, log.With("repository"), repository.Options{
		Dir:             filepath.Join(cfg.Storage.DataDir, "bots"),
		RateLimit:       cfg.Download.RateLimit,
		DownloadTimeout: cfg.Download.Timeout,
		Diagnostics:     capture,
	})

	host := hostapi.New(store, client, log.With("bot"), hostapi.Options{
		MaxResponseBytes: cfg.Execution.MaxResponseBytes,
		Apps:             cfg.Apps,
	})

	eng := engine.New(host, log.With("engine"), engine.Options{
		Timeout:          cfg.Execution.Timeout,
		MaxFetchRequests: cfg.Execution.MaxFetchRequests,
	})
	if err := eng.Initialize(); err != nil {
		db.Close()
		return nil, err
	}

	limiter := ratelimit.NewSlidingWindow(cfg.Execution.MaxExecutions, cfg.Execution.Window)
	attachmentStore := attachments.NewStore(cfg.Attachments.Dir, cfg.Attachments.MaxFileBytes, cfg.Attachments.MaxTotalBytes)

	return &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		DB:           db,
		Store:        store,
		Validator:    validator,
		Repository:   repo,
		HostAPI:      host,
		Engine:       eng,
		Limiter:      limiter,
		Attachments:  attachmentStore,
		History:      historyStore,
		Diagnostics:  capture,
		UpdateService: &update.Service{
			Repository: repo,
			Logger:     log.With("update"),
			Enabled:    cfg.Bot.Enabled && cfg.Bot.AutoUpdate,
			URL:        cfg.Bot.URL,
		},
		DoctorService: &doctor.Service{
			ConfigProvider: cfgLoader,
			Database:       db,
			Repository:     repo,
			Validator:      validator,
			AttachmentsDir: attachmentStore.Dir(),
		},
	}, nil
}

// ReplyService builds the orchestrator around dispatcher.
func (c *Container) ReplyService(dispatcher ports.ReplyDispatcher) *reply.Service {
	svc := &reply.Service{
		Settings: reply.Settings{
			BotEnabled:      c.Config.Bot.Enabled,
			SendAttachments: c.Config.Bot.SendAttachments,
			FallbackText:    c.Config.Reply.FallbackText,
		},
		Limiter:     c.Limiter,
		Repository:  c.Repository,
		Validator:   c.Validator,
		Engine:      c.Engine,
		Attachments: c.Attachments,
		Dispatcher:  dispatcher,
		Logger:      c.Logger.With("reply"),
	}
	if c.Config.History.Enabled {
		svc.History = c.History
	}
	return svc
}

// Close releases the engine and the database.
func (c *Container) Close() error {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
