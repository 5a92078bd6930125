// Package logging is the structured logger every vidauth component takes.
// Components add a "module" attribute with With so log lines can be
// filtered per subsystem.
package logging

import "context"

// Logger takes a message followed by alternating keys and values:
//
//	logger.Warn(ctx, "Refresh token reuse", "user_id", id)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)

	// Warn is for security events: rejected credentials, malformed tokens,
	// refresh-token reuse.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger
}
