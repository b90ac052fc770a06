package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-buildgate/buildgate/internal/models"
	"github.com/go-buildgate/buildgate/internal/status"
	"github.com/go-buildgate/buildgate/internal/store"
)

// PasswordAuthenticator verifies HTTP Basic credentials. When an LDAP
// verifier is configured it runs first and its success provisions a local
// shadow record; on LDAP failure the local store is the canonical fallback.
type PasswordAuthenticator struct {
	store       *store.Store
	ldap        LDAPVerifier // nil when LDAP integration is disabled
	provisioner Provisioner
}

func NewPasswordAuthenticator(
	s *store.Store,
	ldap LDAPVerifier,
	provisioner Provisioner,
) *PasswordAuthenticator {
	return &PasswordAuthenticator{store: s, ldap: ldap, provisioner: provisioner}
}

func (a *PasswordAuthenticator) Authenticate(
	ctx context.Context,
	cred Credential,
) (*Outcome, error) {
	if cred.Kind != CredentialBasic {
		return nil, status.Denied(
			http.StatusUnauthorized, "", "Authentication required")
	}

	// Empty passwords are rejected before any verifier runs, so repeated
	// anonymous binds cannot lock out directory accounts.
	if cred.Password == "" {
		return nil, status.Denied(
			http.StatusUnauthorized, "",
			fmt.Sprintf("User '%s' did not provide a password", cred.Login))
	}

	if a.ldap != nil {
		identity, err := a.ldap.Verify(ctx, cred.Login, cred.Password)
		if err == nil {
			user, perr := a.provisioner.FindOrCreateLDAPUser(
				ctx, cred.Login, identity.Email, identity.Realname)
			if perr != nil {
				return nil, perr
			}
			return &Outcome{User: user, Method: models.MethodPassword}, nil
		}
		log.Printf("[Auth] %s verification failed for %s, falling back to local store: %v",
			a.ldap.Name(), cred.Login, err)
	}

	user, err := a.store.VerifyCredentials(cred.Login, cred.Password)
	if err != nil {
		return nil, status.Denied(
			http.StatusUnauthorized, "",
			fmt.Sprintf("Unknown user '%s' or invalid password", cred.Login))
	}

	return &Outcome{User: user, Method: models.MethodPassword}, nil
}
