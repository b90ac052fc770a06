package main

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-buildgate/buildgate/internal/backend"
	"github.com/go-buildgate/buildgate/internal/handlers"
	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/middleware"
	"github.com/go-buildgate/buildgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/home:alice/tool/_meta", []string{"home:alice", "tool", "_meta"}},
		{"/home:alice", []string{"home:alice"}},
		{"//home:alice//tool", []string{"home:alice", "tool"}},
		{"/", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitPath(tt.path), tt.path)
	}
}

// newSourceEngine wires the wildcard source route against a fake backend the
// way runServer does.
func newSourceEngine(t *testing.T, srv *httptest.Server) *gin.Engine {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	target := backend.Target{Host: host, Port: port}

	proxy := handlers.NewProxyHandler(backend.NewClient(5*time.Second), metrics.NewNoopMetrics())
	source := handlers.NewSourceHandler(proxy)
	table := handlers.NewCommandTable()
	source.RegisterCommands(table)

	r := gin.New()
	r.Use(
		middleware.ErrorTranslator(nil, false, "test", metrics.NewNoopMetrics()),
		func(c *gin.Context) {
			c.Set(util.ContextBackendTarget, target)
			c.Next()
		},
	)
	r.Any("/source/*path", sourceRoute(proxy, source, table))
	return r
}

func TestSourceRoute_ProjectMetaPut(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`<status code="ok"><summary>Ok</summary></status>`))
	}))
	defer srv.Close()

	r := newSourceEngine(t, srv)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/source/home:alice/_meta",
		strings.NewReader(`<project name="home:alice"/>`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/source/home:alice/_meta", gotPath)
}

func TestSourceRoute_PackageMetaPut(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`<status code="ok"><summary>Ok</summary></status>`))
	}))
	defer srv.Close()

	r := newSourceEngine(t, srv)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/source/home:alice/tool/_meta",
		strings.NewReader(`<package name="tool"/>`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/source/home:alice/tool/_meta", gotPath)
}

func TestSourceRoute_PackageCommandDispatch(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte(`<status code="ok"><summary>Ok</summary></status>`))
	}))
	defer srv.Close()

	r := newSourceEngine(t, srv)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/source/home:alice/tool?cmd=branch", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/source/home:alice/tool?cmd=branch", gotURI)
}

func TestSourceRoute_UnknownProjectCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be reached")
	}))
	defer srv.Close()

	r := newSourceEngine(t, srv)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/source/home:alice?cmd=release", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_command", w.Header().Get("X-Api-Errorcode"))
}

func TestSourceRoute_GetPassesThrough(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte("<directory/>"))
	}))
	defer srv.Close()

	r := newSourceEngine(t, srv)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/source/home:alice/tool?rev=latest", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/source/home:alice/tool?rev=latest", gotURI)
	assert.Equal(t, "<directory/>", w.Body.String())
}

func TestSourceRoute_BackendFaultIsLocalNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<status code="unknown_package"><summary>gone</summary></status>`))
	}))
	defer srv.Close()

	r := newSourceEngine(t, srv)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/source/home:alice/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", w.Header().Get("X-Api-Errorcode"))
	assert.NotContains(t, w.Body.String(), "unknown_package")
}
