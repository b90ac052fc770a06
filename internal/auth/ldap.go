package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
)

var (
	ErrLDAPConnection   = errors.New("failed to connect to LDAP server")
	ErrLDAPUserNotFound = errors.New("user not found in directory")
	ErrLDAPBindRejected = errors.New("directory rejected credentials")
)

// LDAPConfig holds the directory connection settings.
type LDAPConfig struct {
	URL          string
	BaseDN       string
	BindDN       string // search account; empty means anonymous search
	BindPassword string
	UserFilter   string // must contain one %s placeholder for the login
	Timeout      time.Duration
	SkipVerify   bool
}

// LDAPProvider verifies credentials with a search-then-bind against the
// configured directory. Each verification uses a fresh connection; the
// directory is authoritative for the password, never stored locally.
type LDAPProvider struct {
	config LDAPConfig
}

func NewLDAPProvider(cfg LDAPConfig) *LDAPProvider {
	return &LDAPProvider{config: cfg}
}

func (p *LDAPProvider) Verify(
	ctx context.Context,
	login, password string,
) (*LDAPIdentity, error) {
	// #nosec G402 -- InsecureSkipVerify is user-configurable for development/testing
	conn, err := ldap.DialURL(
		p.config.URL,
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: p.config.SkipVerify}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLDAPConnection, err)
	}
	defer conn.Close()
	conn.SetTimeout(p.config.Timeout)

	if p.config.BindDN != "" {
		if err := conn.Bind(p.config.BindDN, p.config.BindPassword); err != nil {
			return nil, fmt.Errorf("%w: search bind failed: %v", ErrLDAPConnection, err)
		}
	} else if err := conn.UnauthenticatedBind(""); err != nil {
		return nil, fmt.Errorf("%w: anonymous bind failed: %v", ErrLDAPConnection, err)
	}

	filter := fmt.Sprintf(p.config.UserFilter, ldap.EscapeFilter(login))
	result, err := conn.Search(ldap.NewSearchRequest(
		p.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		filter,
		[]string{"mail", "cn"},
		nil,
	))
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", ErrLDAPConnection, err)
	}
	if len(result.Entries) == 0 {
		return nil, ErrLDAPUserNotFound
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLDAPBindRejected, err)
	}

	return &LDAPIdentity{
		Email:    entry.GetAttributeValue("mail"),
		Realname: entry.GetAttributeValue("cn"),
	}, nil
}

// Name returns provider name for logging
func (p *LDAPProvider) Name() string {
	return "ldap"
}
