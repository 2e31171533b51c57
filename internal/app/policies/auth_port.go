package policies

import (
	"context"

	domainuser "tinyhouse/internal/domain/user"
)

// Credentials identify the caller: the viewer cookie and the CSRF token header.
type Credentials struct {
	ViewerID string
	Token    string
}

func (c Credentials) Empty() bool {
	return c.ViewerID == "" || c.Token == ""
}

// Authenticator resolves credentials to a user. Unknown or mismatched
// credentials yield (nil, nil); errors are store failures.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*domainuser.User, error)
}
