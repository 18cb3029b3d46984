package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/pkg/filesystem"
	"github.com/doeshing/replybot/internal/ports"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "REPLYBOT_CONFIG"

// FileLoader loads YAML configuration from ~/.replybot/config.yaml (overridable via REPLYBOT_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path falls back to the environment and then the default.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Config{}, fmt.Errorf("create config dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := domain.DefaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return hydrateDefaults(cfg), nil
		}
		return domain.Config{}, err
	}

	// Keys absent from the file keep their defaults.
	cfg := domain.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Path reports the file Load reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.AppDir(), "config.yaml")
}

// Defaults is the configuration Load returns for an empty file.
func Defaults() domain.Config {
	return hydrateDefaults(domain.DefaultConfig())
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

// hydrateDefaults fills zero values so partial files behave like the defaults.
func hydrateDefaults(cfg domain.Config) domain.Config {
	def := domain.DefaultConfig()
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = def.ConfigFormatVersion
	}
	if cfg.Bot.UpdateInterval == 0 {
		cfg.Bot.UpdateInterval = def.Bot.UpdateInterval
	}
	if cfg.Execution.Timeout == 0 {
		cfg.Execution.Timeout = def.Execution.Timeout
	}
	if cfg.Execution.MaxExecutions == 0 {
		cfg.Execution.MaxExecutions = def.Execution.MaxExecutions
	}
	if cfg.Execution.Window == 0 {
		cfg.Execution.Window = def.Execution.Window
	}
	if cfg.Execution.MaxFetchRequests == 0 {
		cfg.Execution.MaxFetchRequests = def.Execution.MaxFetchRequests
	}
	if cfg.Execution.MaxResponseBytes == 0 {
		cfg.Execution.MaxResponseBytes = def.Execution.MaxResponseBytes
	}
	if cfg.Download.RateLimit == 0 {
		cfg.Download.RateLimit = def.Download.RateLimit
	}
	if cfg.Download.Timeout == 0 {
		cfg.Download.Timeout = def.Download.Timeout
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = filesystem.AppDir()
	}
	cfg.Storage.DataDir = filesystem.ExpandPath(cfg.Storage.DataDir)
	if cfg.Attachments.Dir == "" {
		cfg.Attachments.Dir = filepath.Join(cfg.Storage.DataDir, "attachments")
	}
	cfg.Attachments.Dir = filesystem.ExpandPath(cfg.Attachments.Dir)
	if cfg.Attachments.MaxFileBytes == 0 {
		cfg.Attachments.MaxFileBytes = def.Attachments.MaxFileBytes
	}
	if cfg.Attachments.MaxTotalBytes == 0 {
		cfg.Attachments.MaxTotalBytes = def.Attachments.MaxTotalBytes
	}
	if cfg.Attachments.Retention == 0 {
		cfg.Attachments.Retention = def.Attachments.Retention
	}
	if cfg.Apps == nil {
		cfg.Apps = map[string]string{}
	}
	if cfg.Debug.MaxEntries == 0 {
		cfg.Debug.MaxEntries = def.Debug.MaxEntries
	}
	if cfg.History.RetainDays == 0 {
		cfg.History.RetainDays = def.History.RetainDays
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
