// Package common provides shared utilities for the mystery CLI commands.
//
// This package contains helpers used across the standalone binaries
// (vault-server, mystery-demo) to reduce code duplication:
//
//   - YAML configuration loading with flag-friendly defaults
//   - Structured logger setup
//   - Storage backend factory for the vault
package common

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mfrager/mystery/api/httpserver"
	"github.com/mfrager/mystery/protocol"
	"github.com/mfrager/mystery/services"
	"gopkg.in/yaml.v3"
)

// Storage backend selectors for VaultServerConfig.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// VaultServerConfig is the YAML configuration for the vault server binary.
// Flags override individual fields after loading.
type VaultServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"enable_pprof"`
	LogJSON     bool   `yaml:"log_json"`
	LogDebug    bool   `yaml:"log_debug"`

	DrainSeconds            int `yaml:"drain_seconds"`
	GracefulShutdownSeconds int `yaml:"graceful_shutdown_seconds"`
	ReadTimeoutSeconds      int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds     int `yaml:"write_timeout_seconds"`

	// Protocol carries the lattice parameters, segment count and exposed
	// mapping length. Submitters must finalize against the same values.
	Protocol protocol.Config `yaml:"protocol"`

	SessionTimeoutMinutes int `yaml:"session_timeout_minutes"`
	MaxAttempts           int `yaml:"max_attempts"`
	MaxFailedPerHour      int `yaml:"max_failed_per_hour"`

	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects and configures the vault's persistence backend.
type StorageConfig struct {
	Backend  string                  `yaml:"backend"`
	Postgres services.PostgresConfig `yaml:"postgres"`
}

// DefaultVaultServerConfig returns the configuration used when no YAML file
// is given.
func DefaultVaultServerConfig() *VaultServerConfig {
	return &VaultServerConfig{
		ListenAddr:              ":1776",
		MetricsAddr:             ":9090",
		DrainSeconds:            5,
		GracefulShutdownSeconds: 10,
		ReadTimeoutSeconds:      15,
		WriteTimeoutSeconds:     30,
		Protocol:                protocol.DefaultConfig(),
		Storage:                 StorageConfig{Backend: BackendMemory},
	}
}

// LoadVaultServerConfig reads a YAML file over the defaults. An empty path
// returns the defaults unchanged.
func LoadVaultServerConfig(path string) (*VaultServerConfig, error) {
	cfg := DefaultVaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ServerConfig builds the base HTTP server configuration.
func (c *VaultServerConfig) ServerConfig(log *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               c.ListenAddr,
		MetricsAddr:              c.MetricsAddr,
		EnablePprof:              c.EnablePprof,
		Log:                      log,
		DrainDuration:            time.Duration(c.DrainSeconds) * time.Second,
		GracefulShutdownDuration: time.Duration(c.GracefulShutdownSeconds) * time.Second,
		ReadTimeout:              time.Duration(c.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:             time.Duration(c.WriteTimeoutSeconds) * time.Second,
	}
}

// VaultConfig builds the vault service configuration.
func (c *VaultServerConfig) VaultConfig(log *slog.Logger) services.VaultConfig {
	return services.VaultConfig{
		Protocol:         c.Protocol,
		SessionTimeout:   time.Duration(c.SessionTimeoutMinutes) * time.Minute,
		MaxAttempts:      c.MaxAttempts,
		MaxFailedPerHour: c.MaxFailedPerHour,
		Log:              log,
	}
}

// SetupLogger creates the process logger. Text output for interactive use,
// JSON for log collectors.
func SetupLogger(json, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// NewVaultStore creates the configured storage backend. The returned close
// function releases database resources; for the in-memory backend it is a
// no-op.
func NewVaultStore(cfg *StorageConfig) (services.VaultStore, func() error, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return services.NewInMemoryStore(), func() error { return nil }, nil
	case BackendPostgres:
		store, err := services.NewPostgresStore(&cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
