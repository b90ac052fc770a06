package handlers

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-buildgate/buildgate/internal/status"

	"github.com/gin-gonic/gin"
)

// SourceHandler implements the source-server actions that need more than the
// verbatim pass-through: meta writes and ?cmd= sub-commands.
type SourceHandler struct {
	proxy *ProxyHandler
}

func NewSourceHandler(proxy *ProxyHandler) *SourceHandler {
	return &SourceHandler{proxy: proxy}
}

// RegisterCommands binds the source sub-commands into the dispatch table.
func (h *SourceHandler) RegisterCommands(table *CommandTable) {
	table.MustRegister("package", "branch", h.packageBranch)
	table.MustRegister("package", "copy", h.packageCopy)
	table.MustRegister("package", "showlinked", h.packageShowLinked)
	table.MustRegister("project", "copy", h.projectCopy)
}

// validateXMLBody reads the request body and rejects payloads that are not
// well-formed XML. Returns the body bytes for forwarding.
func validateXMLBody(c *gin.Context) ([]byte, error) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, status.Unclassified(fmt.Errorf("reading request body: %w", err))
	}

	decoder := xml.NewDecoder(bytes.NewReader(payload))
	for {
		_, derr := decoder.Token()
		if derr == io.EOF {
			break
		}
		if derr != nil {
			return nil, status.Validation(derr.Error())
		}
	}
	return payload, nil
}

// PutProjectMeta validates and stores a project description. A backend
// rejection of the write is a project save failure, not a raw fault.
func (h *SourceHandler) PutProjectMeta(c *gin.Context) {
	h.putMeta(c, "project", fmt.Sprintf("/source/%s/_meta", c.Param("project")))
}

// PutPackageMeta validates and stores a package description.
func (h *SourceHandler) PutPackageMeta(c *gin.Context) {
	h.putMeta(c, "package", fmt.Sprintf("/source/%s/%s/_meta",
		c.Param("project"), c.Param("package")))
}

func (h *SourceHandler) putMeta(c *gin.Context, object, path string) {
	payload, err := validateXMLBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp, err := h.proxy.forward(c, http.MethodPut, path, bytes.NewReader(payload))
	if err != nil {
		var serr *status.Error
		if errors.As(err, &serr) && serr.Kind == status.KindBackendFault &&
			serr.HTTPStatus == http.StatusBadRequest {
			_ = c.Error(status.SaveError(object, errors.New(faultSummary(serr.Fault))))
			return
		}
		_ = c.Error(err)
		return
	}

	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

// faultSummary pulls the summary text out of a backend fault body, falling
// back to the raw body.
func faultSummary(fault []byte) string {
	var doc status.Document
	if err := xml.Unmarshal(fault, &doc); err == nil && doc.Summary != "" {
		return doc.Summary
	}
	return string(fault)
}

// packageBranch forwards "cmd=branch" for a package, carrying over the
// branch-relevant query parameters.
func (h *SourceHandler) packageBranch(c *gin.Context) {
	path := fmt.Sprintf("/source/%s/%s", c.Param("project"), c.Param("package"))
	query := BuildQuery(c.Request.URL.Query(), "cmd", "target_project", "target_package")
	h.proxy.ForwardData(c, http.MethodPost, path+query)
}

// packageCopy requires an origin and forwards the copy command.
func (h *SourceHandler) packageCopy(c *gin.Context) {
	if QueryParamsMissing(c, "oproject", "opackage") {
		return
	}
	path := fmt.Sprintf("/source/%s/%s", c.Param("project"), c.Param("package"))
	query := BuildQuery(c.Request.URL.Query(), "cmd", "oproject", "opackage", "expand")
	h.proxy.ForwardData(c, http.MethodPost, path+query)
}

// packageShowLinked asks the backend for the packages linking to this one.
func (h *SourceHandler) packageShowLinked(c *gin.Context) {
	path := fmt.Sprintf("/source/%s/%s", c.Param("project"), c.Param("package"))
	query := BuildQuery(c.Request.URL.Query(), "cmd")
	h.proxy.ForwardData(c, http.MethodPost, path+query)
}

// projectCopy requires an origin project and forwards the copy command.
func (h *SourceHandler) projectCopy(c *gin.Context) {
	if QueryParamsMissing(c, "oproject") {
		return
	}
	path := fmt.Sprintf("/source/%s", c.Param("project"))
	query := BuildQuery(c.Request.URL.Query(), "cmd", "oproject", "withbinaries", "withhistory")
	h.proxy.ForwardData(c, http.MethodPost, path+query)
}
