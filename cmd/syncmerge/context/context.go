// Package context provides the application context interface for syncmerge
// commands.
//
// Commands accept this interface rather than the concrete App type so they
// can be tested with MockContext:
//
//	mock := &context.MockContext{
//	    EngineFunc: func() (*syncmerge.Engine, error) {
//	        return syncmerge.New()
//	    },
//	}
//	cmd := reconcile.NewCommand(mock)
package context

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge"
)

// Context provides what commands need from the application.
//
// Thread Safety: All methods must be safe for concurrent access.
type Context interface {
	// Engine returns the reconciliation engine built from the configuration
	// and rules file. It is created once and cached.
	Engine() (*syncmerge.Engine, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string
}
