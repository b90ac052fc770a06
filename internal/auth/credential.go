package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// CredentialKind tags the transient request credential union.
type CredentialKind int

const (
	CredentialAbsent CredentialKind = iota
	CredentialTrusted
	CredentialBasic
)

// Credential is the request-scoped raw credential. It is never persisted and
// never shared across requests.
type Credential struct {
	Kind     CredentialKind
	Login    string
	Password string

	// Email carries the upstream access manager's email assertion for
	// trusted credentials; empty otherwise.
	Email string
}

// Basic-auth carriers, checked in strict precedence order: where a rewrite
// rule may have stashed the header, the standard location, and a fallback
// used by proxies that strip Authorization.
var basicCarriers = []string{
	"X-HTTP-Authorization",
	"Authorization",
	"X-Authorization",
}

// Extractor parses request headers into a Credential. It performs no
// validation; the authenticator produces all user-facing errors.
type Extractor struct {
	trustedHeader string
	emailHeader   string
	simulate      bool
	testLogin     string
}

// NewExtractor builds an extractor. simulate substitutes testLogin when the
// trusted header is absent; it exists for test deployments only.
func NewExtractor(trustedHeader, emailHeader string, simulate bool, testLogin string) *Extractor {
	return &Extractor{
		trustedHeader: trustedHeader,
		emailHeader:   emailHeader,
		simulate:      simulate,
		testLogin:     testLogin,
	}
}

// Extract produces the request's raw credential.
func (e *Extractor) Extract(r *http.Request) Credential {
	if login := r.Header.Get(e.trustedHeader); login != "" {
		return Credential{
			Kind:  CredentialTrusted,
			Login: login,
			Email: r.Header.Get(e.emailHeader),
		}
	}
	if e.simulate && e.testLogin != "" {
		return Credential{
			Kind:  CredentialTrusted,
			Login: e.testLogin,
			Email: r.Header.Get(e.emailHeader),
		}
	}

	for _, carrier := range basicCarriers {
		value := r.Header.Get(carrier)
		if value == "" {
			continue
		}
		return parseBasic(value)
	}
	return Credential{Kind: CredentialAbsent}
}

// parseBasic decodes one "Basic <base64>" header value. Any malformation is
// Absent, never an error.
func parseBasic(value string) Credential {
	scheme, encoded, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return Credential{Kind: CredentialAbsent}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Credential{Kind: CredentialAbsent}
	}

	login, password, found := strings.Cut(string(decoded), ":")
	if !found || login == "" {
		return Credential{Kind: CredentialAbsent}
	}

	return Credential{Kind: CredentialBasic, Login: login, Password: password}
}
