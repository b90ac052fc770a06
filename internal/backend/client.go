package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-buildgate/buildgate/internal/status"
)

// Response is the backend's raw answer, passed through to the caller
// unmodified.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client forwards requests to a resolved Target. The underlying transport
// deliberately carries no auth or retry wrapping: proxied bodies must reach
// the backend exactly once and unmodified.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Forward issues one call against the target and returns the raw response.
// Backend responses with status >= 400 surface as a typed backend fault
// carrying the fault body; transport failures surface through the
// unclassified path.
func (c *Client) Forward(
	ctx context.Context,
	target Target,
	method, pathAndQuery string,
	body io.Reader,
) (*Response, error) {
	switch method {
	case http.MethodGet, http.MethodDelete:
		body = nil
	case http.MethodPost, http.MethodPut:
	default:
		return nil, status.InvalidMethod(method)
	}

	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL()+pathAndQuery, body)
	if err != nil {
		return nil, status.Unclassified(fmt.Errorf("building backend request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, status.Unclassified(fmt.Errorf("backend call failed: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status.Unclassified(fmt.Errorf("reading backend response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return nil, status.BackendError(resp.StatusCode, payload)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}
