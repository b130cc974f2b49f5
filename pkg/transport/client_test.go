package transport

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/apiflow/internal/testutil"
	"github.com/dshills/apiflow/pkg/snapshot"
)

func TestClientDoCapturesResponse(t *testing.T) {
	server, cleanup := testutil.StartJSONServer(map[string]testutil.JSONRoute{
		"/users": {Status: http.StatusOK, Body: map[string]interface{}{"total": 2}},
	})
	defer cleanup()

	client := NewClient(0)
	resp, err := client.Do(context.Background(), &snapshot.RequestSnapshot{
		Method: "GET",
		URL:    server.URL + "/users",
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "OK", resp.StatusText)
	assert.JSONEq(t, `{"total":2}`, resp.Body)
	v, ok := resp.HeaderValue("content-type")
	assert.True(t, ok)
	assert.Equal(t, "application/json", v)
	assert.Equal(t, int64(len(resp.Body)), resp.SizeBytes)
	assert.GreaterOrEqual(t, resp.TimeMS, int64(0))
}

func TestClientDoNotFound(t *testing.T) {
	server, cleanup := testutil.StartJSONServer(map[string]testutil.JSONRoute{})
	defer cleanup()

	client := NewClient(0)
	resp, err := client.Do(context.Background(), &snapshot.RequestSnapshot{URL: server.URL + "/ghost"})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "Not Found", resp.StatusText)
}

func TestClientDoSendsHeadersAndMethod(t *testing.T) {
	server, cleanup := testutil.StartEchoServer("X-On", "X-Off")
	defer cleanup()

	client := NewClient(0)
	resp, err := client.Do(context.Background(), &snapshot.RequestSnapshot{
		Method: "DELETE",
		URL:    server.URL + "/items/1",
		Headers: []snapshot.Header{
			{Key: "X-On", Value: "sent", Enabled: true},
			{Key: "X-Off", Value: "dropped", Enabled: false},
		},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"method":"DELETE","path":"/items/1","headers":{"X-On":"sent","X-Off":""}}`, resp.Body)
}

func TestClientDoSendsBodyWithDefaultContentType(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(0)
	resp, err := client.Do(context.Background(), &snapshot.RequestSnapshot{
		Method:   "POST",
		URL:      server.URL,
		Body:     `{"name":"Ada"}`,
		BodyType: snapshot.BodyJSON,
	})
	require.NoError(t, err)

	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, `{"name":"Ada"}`, string(gotBody))
	assert.Equal(t, "application/json", gotContentType)
}

func TestClientDoExplicitContentTypeWins(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	client := NewClient(0)
	_, err := client.Do(context.Background(), &snapshot.RequestSnapshot{
		Method:   "POST",
		URL:      server.URL,
		Headers:  []snapshot.Header{{Key: "Content-Type", Value: "application/vnd.custom+json", Enabled: true}},
		Body:     `{}`,
		BodyType: snapshot.BodyJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.custom+json", gotContentType)
}

func TestClientDoAppliesAuth(t *testing.T) {
	tests := []struct {
		name       string
		auth       *snapshot.Auth
		wantHeader string
		wantValue  string
	}{
		{
			name:       "bearer",
			auth:       &snapshot.Auth{Type: snapshot.AuthBearer, Token: "tok-1"},
			wantHeader: "Authorization",
			wantValue:  "Bearer tok-1",
		},
		{
			name:       "basic",
			auth:       &snapshot.Auth{Type: snapshot.AuthBasic, Username: "ada", Password: "pw"},
			wantHeader: "Authorization",
			wantValue:  "Basic " + base64.StdEncoding.EncodeToString([]byte("ada:pw")),
		},
		{
			name:       "api key default header",
			auth:       &snapshot.Auth{Type: snapshot.AuthAPIKey, Token: "key-1"},
			wantHeader: "X-API-Key",
			wantValue:  "key-1",
		},
		{
			name:       "api key custom header",
			auth:       &snapshot.Auth{Type: snapshot.AuthAPIKey, Token: "key-2", HeaderName: "X-Custom"},
			wantHeader: "X-Custom",
			wantValue:  "key-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotValue string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotValue = r.Header.Get(tt.wantHeader)
			}))
			defer server.Close()

			client := NewClient(0)
			_, err := client.Do(context.Background(), &snapshot.RequestSnapshot{URL: server.URL, Auth: tt.auth})
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, gotValue)
		})
	}
}

func TestClientDoNilRequest(t *testing.T) {
	client := NewClient(0)
	_, err := client.Do(context.Background(), nil)
	assert.Error(t, err)
}

func TestClientDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server, cleanup := testutil.StartJSONServer(nil)
	defer cleanup()

	client := NewClient(0)
	_, err := client.Do(ctx, &snapshot.RequestSnapshot{URL: server.URL})
	assert.Error(t, err)
}
