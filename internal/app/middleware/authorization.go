package middleware

import (
	"context"
	"errors"
	"fmt"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/queries"
	"tinyhouse/internal/app/services/auth"
)

var ErrViewerUnavailable = errors.New("middleware: viewer store unavailable")

// Credentialed is implemented by messages sent on behalf of a viewer.
type Credentialed interface {
	ViewerCredentials() policies.Credentials
}

// Authentication resolves the viewer once per message and stores the result
// in ctx. It never rejects: handlers decide whether a viewer is required.
func Authentication(authn policies.Authenticator) CommandMiddleware {
	if authn == nil {
		panic("middleware: authenticator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, err := resolveViewer(ctx, authn, cmd)
			if err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthentication(authn policies.Authenticator) QueryMiddleware {
	if authn == nil {
		panic("middleware: authenticator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, err := resolveViewer(ctx, authn, q)
			if err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

func resolveViewer(ctx context.Context, authn policies.Authenticator, message any) (context.Context, error) {
	c, ok := message.(Credentialed)
	if !ok {
		return ctx, nil
	}
	if _, done := auth.ViewerFromContext(ctx); done {
		return ctx, nil
	}
	viewer, err := authn.Authenticate(ctx, c.ViewerCredentials())
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrViewerUnavailable, err)
	}
	return auth.ContextWithViewer(ctx, viewer), nil
}
