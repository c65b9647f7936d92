package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		"g-test-key",
		WithEndpoint(srv.URL+"/v1beta/models/gemini-2.0-flash:generateContent"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("g-test-key", WithEndpoint("  "))
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint, c.endpoint)
}

func TestRequestURL_AddsKeyQueryParam(t *testing.T) {
	c, err := NewClient("g-test-key")
	require.NoError(t, err)
	u, err := c.requestURL()
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint+"?key=g-test-key", u)
}

func TestClient_GenerateContent_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		require.Equal(t, "g-test-key", r.URL.Query().Get("key"))
		require.Empty(t, r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"contents":[{"parts":[{"text":"hi\nthere"}]}]}`, string(body))

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello"}],"role":"model"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.GenerateContent(context.Background(), "hi\nthere")
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestClient_GenerateContent_MissingPathYieldsEmpty(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{}}]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":42}]}}]}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := newTestClient(t, srv)
		out, err := c.GenerateContent(context.Background(), "p")
		require.NoError(t, err, "body=%s", body)
		require.Equal(t, "", out, "body=%s", body)
		srv.Close()
	}
}

func TestClient_GenerateContent_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GenerateContent(context.Background(), "p")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.HTTPStatusCode())
	require.Equal(t, `{"error":{"message":"API key not valid"}}`, statusErr.UpstreamBody())
	require.NotContains(t, err.Error(), "g-test-key")
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_GenerateContent_UnreadableErrorBody(t *testing.T) {
	c, err := NewClient("g-test-key", WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: failingBody{}, Header: http.Header{}, Request: r}, nil
		}),
	}))
	require.NoError(t, err)

	_, err = c.GenerateContent(context.Background(), "p")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, "Failed to read error response body", statusErr.Body)
}

func TestClient_GenerateContent_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GenerateContent(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_GenerateContent_NetworkErrorRedactsKey(t *testing.T) {
	c, err := NewClient("g-test-key",
		WithEndpoint("http://127.0.0.1:1/generate"),
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}),
	)
	require.NoError(t, err)

	_, err = c.GenerateContent(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
	require.False(t, strings.Contains(err.Error(), "g-test-key"))
}

func TestClient_GenerateContent_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GenerateContent(ctx, "p")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
