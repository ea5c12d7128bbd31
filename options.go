package syncmerge

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/constants"
	"github.com/agentstation/syncmerge/pkg/errors"
	"github.com/agentstation/syncmerge/pkg/merge"
	"github.com/agentstation/syncmerge/pkg/resolve"
	"github.com/agentstation/syncmerge/pkg/validate"
)

// Option is a function that configures an Engine.
type Option func(*config) error

// config holds the settings an Engine is built from.
type config struct {
	timeWindow      time.Duration
	analysisTimeout time.Duration
	threshold       float64
	historyLimit    int
	preferences     resolve.Context
	compareDefaults *compare.Options
	compareFields   map[string]compare.Options
	mergeOpts       []merge.Option
	validatorOpts   []validate.Option
	logger          *zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		timeWindow:      constants.DefaultTimeWindow,
		analysisTimeout: constants.DefaultAnalysisTimeout,
		threshold:       constants.ConfirmationThreshold,
		historyLimit:    constants.DefaultHistoryLimit,
		compareFields:   make(map[string]compare.Options),
	}
}

// WithTimeWindow sets how close two edits must be to count as concurrent.
// The same window makes the newer side authoritative during analysis.
func WithTimeWindow(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return errors.NewConfigError("engine", "time_window", "must not be negative", nil)
		}
		c.timeWindow = d
		return nil
	}
}

// WithAnalysisTimeout sets the per-field analysis budget.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewConfigError("engine", "analysis_timeout", "must be positive", nil)
		}
		c.analysisTimeout = d
		return nil
	}
}

// WithConfirmationThreshold sets the confidence below which resolutions
// need user confirmation.
func WithConfirmationThreshold(t float64) Option {
	return func(c *config) error {
		if t < 0 || t > 1 {
			return errors.NewConfigError("engine", "confirmation_threshold", "must be between 0 and 1", nil)
		}
		c.threshold = t
		return nil
	}
}

// WithHistoryLimit bounds the detector's per-entity history.
func WithHistoryLimit(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return errors.NewConfigError("engine", "history_limit", "must not be negative", nil)
		}
		c.historyLimit = n
		return nil
	}
}

// WithPreferences sets the caller preferences applied to every analysis.
// The timeout stays governed by WithAnalysisTimeout.
func WithPreferences(p resolve.Context) Option {
	return func(c *config) error {
		c.preferences = p
		return nil
	}
}

// WithCompareOptions sets the default comparison options.
func WithCompareOptions(opts compare.Options) Option {
	return func(c *config) error {
		c.compareDefaults = &opts
		return nil
	}
}

// WithFieldCompareOptions sets comparison options for one field.
func WithFieldCompareOptions(name string, opts compare.Options) Option {
	return func(c *config) error {
		c.compareFields[name] = opts
		return nil
	}
}

// WithMergeOptions passes options to the merge engine.
func WithMergeOptions(opts ...merge.Option) Option {
	return func(c *config) error {
		c.mergeOpts = append(c.mergeOpts, opts...)
		return nil
	}
}

// WithValidatorOptions passes options to the validator.
func WithValidatorOptions(opts ...validate.Option) Option {
	return func(c *config) error {
		c.validatorOpts = append(c.validatorOpts, opts...)
		return nil
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}
