// Package httpserver serves the Lambda handler over plain HTTP for local
// development and non-Lambda deployments.
package httpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chat-dispatch/handler"
)

const maxBodyBytes = 1 << 20

type ProxyHandler interface {
	Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// SetMode applies the GIN_MODE value, defaulting to release mode.
func SetMode(mode string) {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
}

// NewRouter returns a gin engine that converts every request into an API
// Gateway proxy event for h.
func NewRouter(h ProxyHandler) (*gin.Engine, error) {
	if h == nil {
		return nil, errors.New("httpserver: handler must not be nil")
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS())

	p := proxy(h)
	r.Any(handler.RouteChat, p)
	r.Any(handler.RouteTestEnv, p)
	r.NoRoute(p)
	return r, nil
}

// CORS allows the browser client to call the API from any origin.
func CORS() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	config.AllowHeaders = []string{"Origin", "Content-Type", "X-Correlation-Id"}
	config.ExposeHeaders = []string{"X-Correlation-Id"}
	return cors.New(config)
}

func proxy(h ProxyHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}

		resp, err := h.Handle(c.Request.Context(), toEvent(c, body))
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "proxy handler failed", "path", c.Request.URL.Path, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process request"})
			return
		}
		writeResponse(c, resp)
	}
}

func toEvent(c *gin.Context, body []byte) events.APIGatewayProxyRequest {
	headers := make(map[string]string, len(c.Request.Header))
	multi := make(map[string][]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
		multi[k] = v
	}
	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return events.APIGatewayProxyRequest{
		Path:                  c.Request.URL.Path,
		HTTPMethod:            c.Request.Method,
		Headers:               headers,
		MultiValueHeaders:     multi,
		QueryStringParameters: query,
		Body:                  string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			HTTPMethod: c.Request.Method,
			Path:       c.Request.URL.Path,
			Identity:   events.APIGatewayRequestIdentity{SourceIP: c.ClientIP()},
		},
	}
}

func writeResponse(c *gin.Context, resp events.APIGatewayProxyResponse) {
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process request"})
			return
		}
		body = decoded
	}
	contentType := ""
	for k, v := range resp.Headers {
		if http.CanonicalHeaderKey(k) == "Content-Type" {
			contentType = v
			continue
		}
		c.Header(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, contentType, body)
}

// Run serves router on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, router http.Handler, upstreamTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      upstreamTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpserver: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return nil
}
