// Package backend routes and forwards proxied operations to the source
// server.
package backend

import (
	"fmt"

	"github.com/go-buildgate/buildgate/internal/models"
)

// Target is the backend host:port one request's proxied calls go to. It is
// resolved once per authenticated request and immutable afterwards; the
// process-wide default is never mutated.
type Target struct {
	Host string
	Port int
}

// URL returns the base URL for the target.
func (t Target) URL() string {
	return fmt.Sprintf("http://%s:%d", t.Host, t.Port)
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Resolve applies the user's per-account overrides to the process default.
// Host and port are overridden independently.
func Resolve(defaults Target, user *models.User) Target {
	target := defaults
	if user == nil {
		return target
	}
	if user.SourceHost != "" {
		target.Host = user.SourceHost
	}
	if user.SourcePort != 0 {
		target.Port = user.SourcePort
	}
	return target
}
