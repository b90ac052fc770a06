package handlers

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/middleware"
	"github.com/go-buildgate/buildgate/internal/status"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newDispatchRouter wires a dispatch route behind the error translator the
// way the server does, so typed errors render as envelopes.
func newDispatchRouter(table *CommandTable, action string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorTranslator(nil, false, "test", metrics.NewNoopMetrics()))
	r.POST("/dispatch", table.Dispatch(action))
	return r
}

func decodeEnvelope(t *testing.T, body []byte) status.Document {
	t.Helper()
	var doc status.Document
	require.NoError(t, xml.Unmarshal(body, &doc))
	return doc
}

func TestCommandTable_Register(t *testing.T) {
	nop := func(c *gin.Context) {}

	table := NewCommandTable()
	require.NoError(t, table.Register("package", "branch", nop))

	assert.Error(t, table.Register("", "branch", nop))
	assert.Error(t, table.Register("package", "", nop))
	assert.Error(t, table.Register("package", "copy", nil))
	assert.Error(t, table.Register("package", "branch", nop), "duplicate registration")
}

func TestCommandTable_MustRegisterPanics(t *testing.T) {
	table := NewCommandTable()
	table.MustRegister("package", "branch", func(c *gin.Context) {})
	assert.Panics(t, func() {
		table.MustRegister("package", "branch", func(c *gin.Context) {})
	})
}

func TestDispatch_RoutesToHandler(t *testing.T) {
	table := NewCommandTable()
	called := ""
	table.MustRegister("package", "branch", func(c *gin.Context) {
		called = c.Query("cmd")
		c.Status(http.StatusOK)
	})

	r := newDispatchRouter(table, "package")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dispatch?cmd=branch", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "branch", called)
}

func TestDispatch_MissingCmd(t *testing.T) {
	r := newDispatchRouter(NewCommandTable(), "package")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dispatch", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_parameter", w.Header().Get("X-Api-Errorcode"))
	doc := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "missing_parameter", doc.Code)
	assert.Contains(t, doc.Summary, "cmd")
}

func TestDispatch_UnknownAction(t *testing.T) {
	r := newDispatchRouter(NewCommandTable(), "repository")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dispatch?cmd=branch", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "unknown_action", w.Header().Get("X-Api-Errorcode"))
}

func TestDispatch_UnknownCommand(t *testing.T) {
	table := NewCommandTable()
	table.MustRegister("package", "branch", func(c *gin.Context) {})

	r := newDispatchRouter(table, "package")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dispatch?cmd=frobnicate", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	doc := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "unknown_command", doc.Code)
	assert.Contains(t, doc.Summary, "frobnicate")
}

func TestBuildQuery(t *testing.T) {
	values := url.Values{
		"cmd":      {"copy"},
		"oproject": {"home:alice"},
		"ignored":  {"x"},
	}

	assert.Equal(t, "?cmd=copy&oproject=home%3Aalice",
		BuildQuery(values, "cmd", "oproject"))
	assert.Equal(t, "?oproject=home%3Aalice&cmd=copy",
		BuildQuery(values, "oproject", "cmd"), "key order is caller-defined")
	assert.Equal(t, "", BuildQuery(values, "opackage"))
	assert.Equal(t, "", BuildQuery(url.Values{}))
}

func TestQueryParamsMissing(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ErrorTranslator(nil, false, "test", metrics.NewNoopMetrics()))
	r.POST("/check", func(c *gin.Context) {
		if QueryParamsMissing(c, "oproject", "opackage") {
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/check?oproject=home:alice", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	doc := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "missing_query_parameters", doc.Code)
	assert.Contains(t, doc.Summary, "opackage")
	assert.NotContains(t, doc.Summary, "oproject")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/check?oproject=home:alice&opackage=tool", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
