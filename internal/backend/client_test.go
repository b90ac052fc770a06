package backend

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-buildgate/buildgate/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targetFor(t *testing.T, srv *httptest.Server) Target {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Target{Host: host, Port: port}
}

func TestForward_Passthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/source/home:alice/tool?cmd=branch", r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<directory/>"))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	resp, err := c.Forward(context.Background(), targetFor(t, srv),
		http.MethodGet, "/source/home:alice/tool?cmd=branch", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.ContentType)
	assert.Equal(t, "<directory/>", string(resp.Body))
}

func TestForward_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "<package/>", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.Forward(context.Background(), targetFor(t, srv),
		http.MethodPost, "/source/p/q", strings.NewReader("<package/>"))
	require.NoError(t, err)
}

func TestForward_GetDropsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.Forward(context.Background(), targetFor(t, srv),
		http.MethodGet, "/source", strings.NewReader("ignored"))
	require.NoError(t, err)
}

func TestForward_BackendFault(t *testing.T) {
	fault := `<status code="not_found"><summary>no such project</summary></status>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, fault, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.Forward(context.Background(), targetFor(t, srv),
		http.MethodGet, "/source/missing", nil)
	require.Error(t, err)

	var serr *status.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, status.KindBackendFault, serr.Kind)
	assert.Equal(t, http.StatusNotFound, serr.HTTPStatus)
	assert.Contains(t, string(serr.Fault), "no such project")
}

func TestForward_InvalidMethod(t *testing.T) {
	c := NewClient(5 * time.Second)
	_, err := c.Forward(context.Background(), Target{Host: "localhost", Port: 5352},
		http.MethodPatch, "/source", nil)
	require.Error(t, err)

	var serr *status.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "invalid_http_method", serr.Code)
}

func TestForward_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := targetFor(t, srv)
	srv.Close()

	c := NewClient(1 * time.Second)
	_, err := c.Forward(context.Background(), target, http.MethodGet, "/source", nil)
	require.Error(t, err)

	var serr *status.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, status.KindUnclassified, serr.Kind)
}

func TestForward_LeadingSlashAdded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.Forward(context.Background(), targetFor(t, srv), http.MethodGet, "about", nil)
	require.NoError(t, err)
}
