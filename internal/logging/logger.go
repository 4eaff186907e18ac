// Package logging is the structured logger used by the client and the server.
// Components depend on the Logger interface; SlogLogger backs it with log/slog.
package logging

import "context"

// Logger takes a message plus alternating key/value args:
//
//	log.Info(ctx, "sync finished", "server_wins", 2, "local_wins", 0)
//
// Attributes attached to ctx with ContextWith are added to every line.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes args.
	With(args ...any) Logger
}

type ctxAttrsKey struct{}

// ContextWith returns a copy of ctx carrying extra log attributes, e.g. the
// user a request was authenticated as.
func ContextWith(ctx context.Context, args ...any) context.Context {
	prev := attrsFrom(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]any)
	return attrs
}
