// Package transport turns request snapshots into response snapshots over
// HTTP. It is the external collaborator the engine's callers use between the
// pre-script and the post-script; nothing in the engine depends on it.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/apiflow/pkg/snapshot"
)

// DefaultTimeout bounds a single request round-trip unless overridden.
const DefaultTimeout = 30 * time.Second

// Client executes request snapshots.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a transport client. A non-positive timeout falls back to
// DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Do sends the request and captures the response as an immutable snapshot:
// status, status text, first-value headers, raw body, elapsed time and body
// size. The input snapshot is not mutated.
func (c *Client) Do(ctx context.Context, req *snapshot.RequestSnapshot) (*snapshot.ResponseSnapshot, error) {
	if req == nil {
		return nil, fmt.Errorf("cannot send nil request")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" && req.BodyType != snapshot.BodyNone {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for _, h := range req.Headers {
		if h.Enabled {
			httpReq.Header.Set(h.Key, h.Value)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		switch req.BodyType {
		case snapshot.BodyJSON:
			httpReq.Header.Set("Content-Type", "application/json")
		case snapshot.BodyForm:
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		case snapshot.BodyText:
			httpReq.Header.Set("Content-Type", "text/plain")
		}
	}
	applyAuth(httpReq, req.Auth)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k, v := range httpResp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &snapshot.ResponseSnapshot{
		Status:     httpResp.StatusCode,
		StatusText: statusText(httpResp),
		Headers:    headers,
		Body:       string(respBody),
		TimeMS:     elapsed.Milliseconds(),
		SizeBytes:  int64(len(respBody)),
	}, nil
}

// applyAuth fills in the authentication headers the snapshot asks for.
func applyAuth(req *http.Request, auth *snapshot.Auth) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case snapshot.AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	case snapshot.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case snapshot.AuthAPIKey:
		name := auth.HeaderName
		if name == "" {
			name = "X-API-Key"
		}
		req.Header.Set(name, auth.Token)
	}
}

// statusText prefers the textual reason phrase without the numeric prefix.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
