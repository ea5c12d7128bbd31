// Package app provides the application context and dependency management
// for the syncmerge CLI. It centralizes configuration, logging and the
// lazily built reconciliation engine.
package app

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge"
	appcontext "github.com/agentstation/syncmerge/cmd/syncmerge/context"
	"github.com/agentstation/syncmerge/internal/config"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/merge"
)

// Ensure App implements the command context at compile time.
var _ appcontext.Context = (*App)(nil)

// App represents the syncmerge application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Engine instance (lazy-initialized, singleton)
	mu     sync.RWMutex
	engine *syncmerge.Engine
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapConfig("app", "config", err)
	}
	app.config = cfg

	logger := NewLogger(cfg)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Engine returns the reconciliation engine, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Engine() (*syncmerge.Engine, error) {
	a.mu.RLock()
	if a.engine != nil {
		e := a.engine
		a.mu.RUnlock()
		return e, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine != nil {
		return a.engine, nil
	}

	opts, err := a.buildEngineOptions()
	if err != nil {
		return nil, err
	}
	e, err := syncmerge.New(opts...)
	if err != nil {
		return nil, err
	}

	a.engine = e
	return e, nil
}

// buildEngineOptions constructs engine options from the rules file and the
// application configuration. Settings from the configuration are applied
// after the rules file and take precedence.
func (a *App) buildEngineOptions() ([]syncmerge.Option, error) {
	var opts []syncmerge.Option

	if a.config.RulesFile != "" {
		rules, err := config.Load(a.config.RulesFile)
		if err != nil {
			return nil, err
		}
		ruleOpts, err := rules.Options()
		if err != nil {
			return nil, err
		}
		opts = append(opts, ruleOpts...)
	}

	if a.config.TimeWindow > 0 {
		opts = append(opts, syncmerge.WithTimeWindow(a.config.TimeWindow))
	}
	if a.config.AnalysisTimeout > 0 {
		opts = append(opts, syncmerge.WithAnalysisTimeout(a.config.AnalysisTimeout))
	}
	if a.config.PreferLocalOnCollision {
		opts = append(opts, syncmerge.WithMergeOptions(merge.WithPreferLocal(true)))
	}

	return append(opts, syncmerge.WithLogger(a.logger)), nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithEngine sets a custom engine instance (useful for testing).
func WithEngine(e *syncmerge.Engine) Option {
	return func(a *App) error {
		a.engine = e
		return nil
	}
}
