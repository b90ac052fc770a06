package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-buildgate/buildgate/internal/models"
	"github.com/go-buildgate/buildgate/internal/status"
	"github.com/go-buildgate/buildgate/internal/store"
)

// TrustedHeaderAuthenticator honors a login asserted by a trusted upstream
// access layer without password verification. The account's state still
// gates access.
type TrustedHeaderAuthenticator struct {
	store *store.Store
}

func NewTrustedHeaderAuthenticator(s *store.Store) *TrustedHeaderAuthenticator {
	return &TrustedHeaderAuthenticator{store: s}
}

func (a *TrustedHeaderAuthenticator) Authenticate(
	ctx context.Context,
	cred Credential,
) (*Outcome, error) {
	if cred.Kind != CredentialTrusted {
		return nil, status.Denied(
			http.StatusUnauthorized, "", "no trusted identity supplied")
	}

	user, err := a.store.GetConfirmedUserByLogin(cred.Login)
	if err == nil {
		if cred.Email != "" && cred.Email != user.Email {
			if serr := a.store.UpdateUserEmail(user, cred.Email); serr != nil {
				log.Printf("[Auth] email sync failed for %s: %v", user.Login, serr)
			}
		}
		return &Outcome{User: user, Method: models.MethodTrustedHeader}, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	// Not confirmed. Distinguish never-registered from waiting-for-approval.
	user, err = a.store.GetUserByLogin(cred.Login)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, status.Denied(
			http.StatusForbidden,
			"unregistered_trusted_user",
			fmt.Sprintf("trusted user %s not yet registered", cred.Login),
		).WithDetails("Please register your account via the web application once.")
	}
	if err != nil {
		return nil, err
	}

	if user.State == models.StatePendingApproval {
		return nil, status.Denied(
			http.StatusForbidden,
			"registered_but_unapproved",
			fmt.Sprintf("trusted user %s is registered but not yet approved", cred.Login),
		).WithDetails("Your account is registered but not yet approved for the build service. " +
			"Please stay tuned until you get the approval message.")
	}

	return nil, status.Denied(
		http.StatusForbidden,
		"unconfirmed_user",
		fmt.Sprintf("your user is either invalid or not yet confirmed (state %s)", user.State),
	).WithDetails("Please contact the administrators.")
}
