package halo

import (
	"io/fs"
	"log/slog"

	"github.com/halo-intel/halo/internal/blocking"
	"github.com/halo-intel/halo/internal/derive"
	"github.com/halo-intel/halo/internal/patterns"
	"github.com/halo-intel/halo/internal/resolver"
)

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	databaseURL     string
	masterKey       []byte
	logger          *slog.Logger
	version         string
	blockingCapsSet bool
	blockingCaps    blocking.Caps
	thresholds      map[EntityKind]resolver.Thresholds
	deriveConfigSet bool
	deriveConfig    derive.Config
	patternsConfigSet bool
	patternsConfig  patterns.Config
	eventHooks      []EventHook
	extraMigrations []fs.FS
}

// WithDatabaseURL sets the Postgres connection string (DATABASE_URL env var
// when unset).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithMasterKey sets the root key cryptoutil.DeriveKeySet derives the
// PII-encryption, blind-index, and audit-chain keys from. Must be at least
// 32 bytes.
func WithMasterKey(key []byte) Option {
	return func(o *resolvedOptions) { o.masterKey = key }
}

// WithLogger sets the structured logger for the Engine. If not set, the
// default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithBlockingCaps overrides blocking.DefaultCaps.
func WithBlockingCaps(caps blocking.Caps) Option {
	return func(o *resolvedOptions) { o.blockingCaps = caps; o.blockingCapsSet = true }
}

// WithThresholds overrides resolver.DefaultThresholds for one entity kind.
// Call once per kind to override; kinds left unset keep their default.
func WithThresholds(kind EntityKind, t resolver.Thresholds) Option {
	return func(o *resolvedOptions) { o.thresholds[kind] = t }
}

// WithDeriveConfig overrides derive.DefaultConfig.
func WithDeriveConfig(cfg derive.Config) Option {
	return func(o *resolvedOptions) { o.deriveConfig = cfg; o.deriveConfigSet = true }
}

// WithPatternsConfig overrides patterns.DefaultConfig.
func WithPatternsConfig(cfg patterns.Config) Option {
	return func(o *resolvedOptions) { o.patternsConfig = cfg; o.patternsConfigSet = true }
}

// WithEventHook registers an event hook to receive mention-resolution
// notifications (the Engine sends no merge notifications). Multiple hooks
// may be registered; all registered hooks receive every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the core migrations. Multiple filesystems may be registered; they
// are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
