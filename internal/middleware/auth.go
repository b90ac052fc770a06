package middleware

import (
	"net/http"
	"time"

	"github.com/go-buildgate/buildgate/internal/auth"
	"github.com/go-buildgate/buildgate/internal/backend"
	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/models"
	"github.com/go-buildgate/buildgate/internal/services"
	"github.com/go-buildgate/buildgate/internal/status"
	"github.com/go-buildgate/buildgate/internal/util"

	"github.com/gin-gonic/gin"
)

// Authenticate resolves the request identity before any other per-request
// logic. A denial renders the envelope immediately and no further handlers
// execute. On success the user, method, and the request's resolved backend
// target are stored in the request context.
func Authenticate(
	extractor *auth.Extractor,
	authenticator auth.Authenticator,
	defaults backend.Target,
	rec metrics.Recorder,
	audit *services.AuditService,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		cred := extractor.Extract(c.Request)

		outcome, err := authenticator.Authenticate(c.Request.Context(), cred)
		if err != nil {
			rec.RecordAuthAttempt(string(methodLabel(cred)), false, time.Since(start))
			audit.Log(c, services.AuditLogEntry{
				EventType:     models.EventAuthenticationDenied,
				Severity:      models.SeverityWarning,
				ActorLogin:    cred.Login,
				Action:        "authenticate",
				Success:       false,
				ErrorMessage:  err.Error(),
				RequestPath:   c.Request.URL.Path,
				RequestMethod: c.Request.Method,
			})
			// Hand off to ErrorTranslator so auth failures share its
			// rendering and notification path.
			_ = c.Error(err)
			c.Abort()
			return
		}

		rec.RecordAuthAttempt(string(outcome.Method), true, time.Since(start))

		c.Set(util.ContextUser, outcome.User)
		c.Set(util.ContextAuthMethod, outcome.Method)
		c.Set(util.ContextBackendTarget, backend.Resolve(defaults, outcome.User))

		c.Next()
	}
}

func methodLabel(cred auth.Credential) models.AuthMethod {
	if cred.Kind == auth.CredentialTrusted {
		return models.MethodTrustedHeader
	}
	return models.MethodPassword
}

// RequireAdmin gates a route group on the Admin role. It must run after
// Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil || !user.IsAdmin() {
			_ = c.Error(status.Denied(
				http.StatusForbidden, "", "Requires admin privileges"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// User returns the authenticated user stored by Authenticate.
func User(c *gin.Context) *models.User {
	return util.GetUserFromContext(c)
}

// TargetFromContext returns the request's resolved backend target.
func TargetFromContext(c *gin.Context) (backend.Target, bool) {
	v, ok := c.Get(util.ContextBackendTarget)
	if !ok {
		return backend.Target{}, false
	}
	target, ok := v.(backend.Target)
	return target, ok
}
