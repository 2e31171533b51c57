package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tinyhouse/internal/app/policies"
	domainuser "tinyhouse/internal/domain/user"
)

var ErrUsersRepositoryMissing = errors.New("auth: users repository missing")

// Service resolves the viewer cookie and CSRF token pair against stored users.
type Service struct {
	Users  domainuser.Repository
	Logger *slog.Logger
}

func (s *Service) Authenticate(ctx context.Context, creds policies.Credentials) (*domainuser.User, error) {
	if s.Users == nil {
		return nil, ErrUsersRepositoryMissing
	}
	creds.ViewerID = strings.TrimSpace(creds.ViewerID)
	creds.Token = strings.TrimSpace(creds.Token)
	if creds.Empty() {
		return nil, nil
	}
	viewer, err := s.Users.ByToken(ctx, domainuser.ID(creds.ViewerID), creds.Token)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			s.logger().Debug("viewer token mismatch", "viewer_id", creds.ViewerID)
			return nil, nil
		}
		return nil, err
	}
	return viewer, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type viewerKey struct{}

// ContextWithViewer stores a resolved viewer, nil included, in ctx.
func ContextWithViewer(ctx context.Context, viewer *domainuser.User) context.Context {
	return context.WithValue(ctx, viewerKey{}, resolvedViewer{user: viewer})
}

// ViewerFromContext reports the viewer resolved earlier in the request, if any.
func ViewerFromContext(ctx context.Context) (*domainuser.User, bool) {
	v, ok := ctx.Value(viewerKey{}).(resolvedViewer)
	if !ok {
		return nil, false
	}
	return v.user, true
}

type resolvedViewer struct {
	user *domainuser.User
}

// Resolve prefers a viewer already stored in ctx and falls back to authn.
func Resolve(ctx context.Context, authn policies.Authenticator, creds policies.Credentials) (*domainuser.User, error) {
	if viewer, ok := ViewerFromContext(ctx); ok {
		return viewer, nil
	}
	if authn == nil {
		return nil, nil
	}
	return authn.Authenticate(ctx, creds)
}

var _ policies.Authenticator = (*Service)(nil)
