// Package auth resolves a request's raw credential to a persisted user
// identity through exactly one strategy, selected at process startup.
package auth

import (
	"context"

	"github.com/go-buildgate/buildgate/internal/models"
)

// Outcome is a successful resolution: the authenticated user and the
// strategy that verified it. Exactly one Outcome or one denial error is
// produced per request.
type Outcome struct {
	User   *models.User
	Method models.AuthMethod
}

// Authenticator is the strategy interface. Implementations return a typed
// *status.Error denial; they never render responses themselves.
type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential) (*Outcome, error)
}

// LDAPIdentity is the identity an external LDAP verifier reports.
type LDAPIdentity struct {
	Email    string
	Realname string
}

// LDAPVerifier checks (login, password) against a directory and reports the
// directory's identity attributes on success.
type LDAPVerifier interface {
	Verify(ctx context.Context, login, password string) (*LDAPIdentity, error)
	Name() string
}

// Provisioner creates or synchronizes the local shadow record for an
// externally verified identity.
type Provisioner interface {
	FindOrCreateLDAPUser(ctx context.Context, login, email, realname string) (*models.User, error)
}
