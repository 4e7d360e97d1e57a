// Package logging declares the structured-logging interface the vault
// server is written against. The production implementation wraps zap;
// tests substitute no-op loggers.
package logging

import "context"

// Logger accepts a message plus alternating key and value arguments:
//
//	log.Info(ctx, "server listening", "addr", addr)
//
// Secret material (passwords, derived keys, plaintext content) must
// never be passed as a value.
type Logger interface {
	// Info records routine operational events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn records degraded but survivable conditions, such as a rate
	// limit store being unreachable.
	Warn(ctx context.Context, msg string, args ...any)

	// Error records failures that surfaced to a caller.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that attaches the given key-value pairs to
	// every subsequent entry.
	With(args ...any) Logger
}
