// Package logger defines the structured logging surface used across the
// disbursement engine.
package logger

// Logger writes structured events. Fields are rendered as key/value pairs.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	// With returns a Logger that adds fields to every event.
	With(fields map[string]any) Logger
	Sync() error
}

type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
func (n NoopLogger) With(map[string]any) Logger { return n }
func (NoopLogger) Sync() error                  { return nil }
