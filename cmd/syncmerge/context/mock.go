package context

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/syncmerge"
)

// MockContext provides a mock implementation of Context for testing.
// If a function field is nil, the method returns a default value.
type MockContext struct {
	EngineFunc       func() (*syncmerge.Engine, error)
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
}

// Engine returns an engine using the mock function or a default engine.
func (m *MockContext) Engine() (*syncmerge.Engine, error) {
	if m.EngineFunc != nil {
		return m.EngineFunc()
	}
	return syncmerge.New()
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *MockContext) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "json".
func (m *MockContext) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "json"
}

// Version returns version using the mock function or "dev".
func (m *MockContext) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Ensure MockContext implements Context at compile time.
var _ Context = (*MockContext)(nil)
