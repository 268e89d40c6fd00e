package reactive

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger, mirroring the
// component-logger pattern used elsewhere in the pack this module was
// drawn from: a no-op default, a constructor from an existing
// zerolog.Logger, and a test-writer constructor for use inside _test.go
// files.
type Logger struct {
	zerolog.Logger
}

// NewLogger wraps an existing zerolog.Logger for use by this module's
// subscriptions and operators.
func NewLogger(l zerolog.Logger) Logger {
	return Logger{Logger: l}
}

// NopLogger returns a disabled logger; every subscription and operator in
// this module defaults to it so logging stays entirely opt-in.
func NopLogger() Logger {
	return Logger{Logger: zerolog.Nop()}
}

// TestLogger returns a logger that writes to t via zerolog's test writer.
func TestLogger(t testing.TB) Logger {
	return Logger{Logger: zerolog.New(zerolog.NewTestWriter(t))}
}

// WithComponent returns a copy of l tagged with the given component name.
func (l Logger) WithComponent(component string) Logger {
	return Logger{Logger: l.Logger.With().Str("component", component).Logger()}
}
