package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"

	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/models"
	"github.com/go-buildgate/buildgate/internal/status"
	"github.com/go-buildgate/buildgate/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// placeholderAlphabet and placeholderLength define the random local
	// password generated for LDAP shadow accounts. The directory stays
	// authoritative for verification; the placeholder only satisfies the
	// non-null password invariant and is never disclosed.
	placeholderAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	placeholderLength   = 24
)

// UserService provisions and synchronizes local user records for
// externally verified identities.
type UserService struct {
	store *store.Store
	audit *AuditService
	rec   metrics.Recorder
}

func NewUserService(s *store.Store, audit *AuditService, rec metrics.Recorder) *UserService {
	return &UserService{store: s, audit: audit, rec: rec}
}

// generatePlaceholderPassword returns a random alphanumeric password of
// fixed length.
func generatePlaceholderPassword() (string, error) {
	out := make([]byte, placeholderLength)
	size := big.NewInt(int64(len(placeholderAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = placeholderAlphabet[n.Int64()]
	}
	return string(out), nil
}

// FindOrCreateLDAPUser resolves the local shadow record for a
// directory-verified (login, email, realname). An existing record gets its
// email synced; a missing one is created confirmed with the default User
// role. Creation failures surface as a typed denial carrying the
// persistence layer's validation messages.
func (s *UserService) FindOrCreateLDAPUser(
	ctx context.Context,
	login, email, realname string,
) (*models.User, error) {
	user, err := s.store.GetUserByLogin(login)
	if err == nil {
		if email != "" && email != user.Email {
			if uerr := s.store.UpdateUserEmail(user, email); uerr != nil {
				return nil, uerr
			}
			s.audit.Log(ctx, AuditLogEntry{
				EventType:  models.EventUserEmailSynced,
				Severity:   models.SeverityInfo,
				ActorLogin: login,
				Action:     "ldap_email_sync",
				Success:    true,
			})
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	log.Printf("[Provision] no local user for %s, creating from LDAP", login)

	placeholder, err := generatePlaceholderPassword()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(placeholder), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user = &models.User{
		ID:           uuid.New().String(),
		Login:        login,
		Email:        email,
		PasswordHash: string(hash),
		State:        models.StateConfirmed,
		Realname:     realname,
		AdminNote:    "User created via LDAP",
	}

	if err := s.store.CreateUser(user, store.RoleUser); err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			return nil, status.Denied(
				http.StatusUnauthorized,
				"cannot_create_user",
				fmt.Sprintf("cannot create LDAP userid '%s'", login),
			).WithDetails(verr.Error())
		}
		return nil, err
	}

	s.rec.RecordUserProvisioned()
	s.audit.Log(ctx, AuditLogEntry{
		EventType:  models.EventUserProvisioned,
		Severity:   models.SeverityInfo,
		ActorLogin: login,
		Action:     "ldap_user_created",
		Details:    models.AuditDetails{"email": email, "realname": realname},
		Success:    true,
	})
	log.Printf("[Provision] new LDAP user created: %s", login)

	return user, nil
}

// GetUserByLogin resolves a user for role checks.
func (s *UserService) GetUserByLogin(login string) (*models.User, error) {
	return s.store.GetUserByLogin(login)
}
