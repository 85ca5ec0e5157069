package tools

import (
	"context"
	"errors"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/client"
	"github.com/loglens/loglens-mcp-server/internal/session"
)

// Fetcher retrieves pages of log records from the upstream store.
// *client.Client implements it; tests substitute an in-memory stub.
type Fetcher interface {
	FetchPage(ctx context.Context, params client.FetchParams) (analysis.ResultSet, error)
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	fetcherContextKey contextKey = "log_fetcher"
	sessionContextKey contextKey = "session_context"
)

// ErrNoFetcherInContext is returned when no log fetcher is found in the context.
var ErrNoFetcherInContext = errors.New("no log fetcher in context")

// WithFetcher adds a log fetcher to the context.
// This allows tools to retrieve the fetcher during execution,
// enabling per-request injection for future HTTP transport support.
func WithFetcher(ctx context.Context, f Fetcher) context.Context {
	return context.WithValue(ctx, fetcherContextKey, f)
}

// GetFetcherFromContext retrieves the log fetcher from the context.
// Returns ErrNoFetcherInContext if no fetcher is present.
func GetFetcherFromContext(ctx context.Context) (Fetcher, error) {
	f, ok := ctx.Value(fetcherContextKey).(Fetcher)
	if !ok || f == nil {
		return nil, ErrNoFetcherInContext
	}
	return f, nil
}

// WithSession adds a session context for cross-call state.
func WithSession(ctx context.Context, s *session.Context) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// GetSessionFromContext retrieves the session context, or nil if absent.
// Tools treat a missing session as a no-op rather than an error.
func GetSessionFromContext(ctx context.Context) *session.Context {
	s, _ := ctx.Value(sessionContextKey).(*session.Context)
	return s
}
