// Package status renders the uniform error and success envelopes of the API
// and translates pipeline failures into them.
package status

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
)

// Document is the status envelope rendered for every error and for
// command-style success responses.
type Document struct {
	XMLName xml.Name `xml:"status"`
	Code    string   `xml:"code,attr"`
	Summary string   `xml:"summary"`
	Details string   `xml:"details,omitempty"`
}

// ContentType is the media type of every rendered envelope and fault body.
const ContentType = "application/xml; charset=utf-8"

// Response is a fully translated failure, ready to write.
type Response struct {
	HTTPStatus int
	Code       string
	Body       []byte
}

// Ok renders the success envelope used by command endpoints.
func Ok(details string) []byte {
	doc := Document{Code: "ok", Summary: "Ok", Details: details}
	out, _ := xml.Marshal(doc)
	return append([]byte(xml.Header), out...)
}

// Translate maps any error raised in the pipeline to a Response. Errors that
// are not a *Error are folded into the unclassified catch-all.
func Translate(err error) *Response {
	var serr *Error
	if !errors.As(err, &serr) {
		serr = Unclassified(err)
	}

	if serr.Kind == KindBackendFault {
		return translateFault(serr)
	}

	code := serr.Code
	switch {
	case code == "" && serr.Kind == KindUnclassified:
		code = "uncaught_exception"
	case code == "":
		code = "unknown"
	}

	doc := Document{Code: code, Summary: serr.Summary, Details: serr.Details}
	if doc.Summary == "" {
		doc.Summary = "Internal Server Error"
	}
	body, _ := xml.Marshal(doc)

	return &Response{
		HTTPStatus: serr.HTTPStatus,
		Code:       code,
		Body:       append([]byte(xml.Header), body...),
	}
}

// faultNode captures an arbitrary backend fault root element so its
// attributes can be rewritten without touching the payload.
type faultNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// translateFault passes a backend XML fault through, stamping
// origin="backend" if the fault does not already carry an origin, so clients
// can tell backend faults from gateway ones. The fault's own code attribute
// wins as the HTTP status when it parses as one.
func translateFault(serr *Error) *Response {
	var node faultNode
	if err := xml.Unmarshal(serr.Fault, &node); err != nil {
		// Fault body is not XML; fall back to a gateway envelope.
		return Translate(&Error{
			Kind:       KindUnclassified,
			HTTPStatus: serr.HTTPStatus,
			Code:       "uncaught_exception",
			Summary:    fmt.Sprintf("backend error (status %d)", serr.HTTPStatus),
			Details:    string(serr.Fault),
		})
	}

	httpStatus := serr.HTTPStatus
	code := ""
	hasOrigin := false
	for _, attr := range node.Attrs {
		switch attr.Name.Local {
		case "code":
			code = attr.Value
			if n, err := strconv.Atoi(attr.Value); err == nil && n >= 100 && n < 600 {
				httpStatus = n
			}
		case "origin":
			hasOrigin = true
		}
	}
	if !hasOrigin {
		node.Attrs = append(node.Attrs, xml.Attr{
			Name:  xml.Name{Local: "origin"},
			Value: "backend",
		})
	}

	body, err := xml.Marshal(node)
	if err != nil {
		body = serr.Fault
	}

	return &Response{
		HTTPStatus: httpStatus,
		Code:       code,
		Body:       append([]byte(xml.Header), body...),
	}
}
