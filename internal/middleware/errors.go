package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/status"

	"github.com/gin-gonic/gin"
)

// RenderError writes the envelope for err and aborts the request. It is the
// single place response error headers are produced: X-Api-Errorcode on every
// error, WWW-Authenticate on every 401 regardless of origin.
func RenderError(c *gin.Context, err error, rec metrics.Recorder) {
	resp := status.Translate(err)

	if resp.HTTPStatus == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `basic realm="API login"`)
	}
	c.Header("X-Api-Errorcode", resp.Code)

	log.Printf("errorcode '%s' - %s", resp.Code, err.Error())
	rec.RecordErrorResponse(resp.Code)

	c.Abort()
	c.Data(resp.HTTPStatus, status.ContentType, resp.Body)
}

// ErrorTranslator is the top-level translator: it recovers panics, renders
// the first typed error a handler attached, and emits a notification for
// unclassified failures when a sink is configured and the environment is not
// development. Notification is fire-and-forget.
func ErrorTranslator(
	notifier status.Notifier,
	isProduction bool,
	environment string,
	rec metrics.Recorder,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := status.Unclassified(fmt.Errorf("%v", r))
				maybeNotify(c, notifier, isProduction, environment, err)
				RenderError(c, err, rec)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors[0].Err
		var serr *status.Error
		if !errors.As(err, &serr) {
			serr = status.Unclassified(err)
		}

		if serr.Kind == status.KindUnclassified {
			maybeNotify(c, notifier, isProduction, environment, serr)
		}
		RenderError(c, serr, rec)
	}
}

func maybeNotify(
	c *gin.Context,
	notifier status.Notifier,
	isProduction bool,
	environment string,
	serr *status.Error,
) {
	if notifier == nil || !isProduction {
		return
	}

	n := status.Notification{
		Summary:       serr.Summary,
		Errorcode:     "uncaught_exception",
		RequestPath:   c.Request.URL.Path,
		RequestMethod: c.Request.Method,
		Environment:   environment,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}

	// Detached context: the notification outlives the request and a slow
	// sink must never delay the error response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		notifier.Notify(ctx, n)
	}()
}
