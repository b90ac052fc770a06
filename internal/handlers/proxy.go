package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-buildgate/buildgate/internal/backend"
	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/middleware"
	"github.com/go-buildgate/buildgate/internal/status"

	"github.com/gin-gonic/gin"
)

// ProxyHandler forwards build/package operations to the request's resolved
// backend target.
type ProxyHandler struct {
	client *backend.Client
	rec    metrics.Recorder
}

func NewProxyHandler(client *backend.Client, rec metrics.Recorder) *ProxyHandler {
	return &ProxyHandler{client: client, rec: rec}
}

// requestPathWithQuery reproduces the inbound path plus query string.
func requestPathWithQuery(c *gin.Context) string {
	path := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		path += "?" + raw
	}
	return path
}

// forward issues one backend call for the current request and records proxy
// metrics. The caller decides how a fault is rendered.
func (h *ProxyHandler) forward(
	c *gin.Context,
	method, pathAndQuery string,
	body io.Reader,
) (*backend.Response, error) {
	target, ok := middleware.TargetFromContext(c)
	if !ok {
		return nil, status.Unclassified(
			errors.New("no backend target resolved for request"))
	}

	start := time.Now()
	resp, err := h.client.Forward(c.Request.Context(), target, method, pathAndQuery, body)
	elapsed := time.Since(start)

	if err != nil {
		statusCode := 0
		var serr *status.Error
		if errors.As(err, &serr) {
			statusCode = serr.HTTPStatus
		}
		h.rec.RecordProxyRequest(method, statusCode, elapsed)
		return nil, err
	}

	h.rec.RecordProxyRequest(method, resp.StatusCode, elapsed)
	return resp, nil
}

// ForwardData proxies method+path with the inbound body and passes the
// backend's answer through unmodified. Backend faults propagate to the
// translator, which stamps origin="backend".
func (h *ProxyHandler) ForwardData(c *gin.Context, method, pathAndQuery string) {
	var body io.Reader
	if method == http.MethodPost || method == http.MethodPut {
		body = c.Request.Body
	}

	resp, err := h.forward(c, method, pathAndQuery, body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

// PassToBackend is the default action: proxy the current request's
// path+query verbatim. A backend fault here renders as a local 404 rather
// than the raw fault body.
func (h *ProxyHandler) PassToBackend(c *gin.Context) {
	method := c.Request.Method
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		_ = c.Error(status.InvalidMethod(method))
		return
	}

	var body io.Reader
	if method == http.MethodPost || method == http.MethodPut {
		body = c.Request.Body
	}

	resp, err := h.forward(c, method, requestPathWithQuery(c), body)
	if err != nil {
		var serr *status.Error
		if errors.As(err, &serr) && serr.Kind == status.KindBackendFault {
			_ = c.Error(status.NotFound(
				fmt.Sprintf("%s not found", c.Request.URL.Path)))
			return
		}
		_ = c.Error(err)
		return
	}

	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}
