package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chat-dispatch/internal/domain"
	"chat-dispatch/internal/usecase"
)

const (
	RouteChat    = "/api/chat"
	RouteTestEnv = "/test-env"

	headerCorrelationID = "X-Correlation-Id"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, in usecase.DispatchInput) (usecase.DispatchOutput, error)
}

// EnvStatus describes one configured secret without carrying its value.
type EnvStatus struct {
	Name    string
	Present bool
	Length  int
}

// NewEnvStatus reports on secret without retaining it.
func NewEnvStatus(name, secret string) EnvStatus {
	return EnvStatus{Name: name, Present: secret != "", Length: len(secret)}
}

type Handler struct {
	dispatcher Dispatcher
	env        EnvStatus
}

func NewHandler(d Dispatcher, env EnvStatus) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	return &Handler{dispatcher: d, env: env}, nil
}

type chatRequest struct {
	Messages domain.Messages `json:"messages"`
	Model    modelField      `json:"model"`
}

// modelField keeps non-string JSON (null, numbers, objects) as raw text so it
// fails model validation instead of decoding to the default.
type modelField string

func (m *modelField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = modelField(s)
		return nil
	}
	*m = modelField(data)
	return nil
}

type chatResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// Handle routes an API Gateway proxy event. It never returns a non-nil error;
// every failure is rendered as an HTTP response.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}

	path := strings.TrimRight(event.Path, "/")
	switch path {
	case RouteChat:
		if event.HTTPMethod != http.MethodPost {
			resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}, correlationID)
			resp.Headers["Allow"] = http.MethodPost
			return resp, nil
		}
		return h.chat(ctx, event, correlationID), nil
	case RouteTestEnv:
		if event.HTTPMethod != http.MethodGet && event.HTTPMethod != http.MethodHead {
			resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}, correlationID)
			resp.Headers["Allow"] = http.MethodGet
			return resp, nil
		}
		return h.testEnv(ctx, correlationID), nil
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "Not found"}, correlationID), nil
	}
}

func (h *Handler) chat(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return h.unexpected(ctx, fmt.Errorf("handler: decode base64 body: %w", err), err, correlationID)
		}
		body = decoded
	}

	req, err := decodeChatRequest(body)
	if err != nil {
		return h.unexpected(ctx, fmt.Errorf("handler: decode request body: %w", err), err, correlationID)
	}

	out, err := h.dispatcher.Dispatch(ctx, usecase.DispatchInput{
		Messages: req.Messages,
		Model:    string(req.Model),
	})
	if err != nil {
		return h.dispatchError(ctx, err, correlationID)
	}
	return jsonResponse(http.StatusOK, chatResponse{Result: out.Result}, correlationID)
}

var errNullBody = errors.New("request body is null")

// decodeChatRequest fails only on malformed JSON or a null body. Any other
// non-object document carries no fields and decodes to an empty request.
func decodeChatRequest(body []byte) (chatRequest, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return chatRequest{}, err
	}
	raw = bytes.TrimSpace(raw)
	var req chatRequest
	switch {
	case bytes.Equal(raw, []byte("null")):
		return chatRequest{}, errNullBody
	case raw[0] != '{':
		return req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return chatRequest{}, err
	}
	return req, nil
}

func (h *Handler) dispatchError(ctx context.Context, err error, correlationID string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return h.unexpected(ctx, err, err, correlationID)
	}

	switch ucErr.Code {
	case usecase.ErrorInvalidModel, usecase.ErrorInvalidMessages:
		slog.WarnContext(ctx, "chat request rejected",
			"correlation_id", correlationID,
			"code", ucErr.Code,
			"reason", ucErr.Reason,
		)
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: ucErr.Message}, correlationID)
	case usecase.ErrorUpstream:
		slog.ErrorContext(ctx, ucErr.Message,
			"correlation_id", correlationID,
			"reason", ucErr.Reason,
			"status", ucErr.UpstreamStatus,
			"details", ucErr.Details,
		)
		details := ucErr.Details
		return jsonResponse(ucErr.UpstreamStatus, errorResponse{Error: ucErr.Message, Details: &details}, correlationID)
	default:
		slog.ErrorContext(ctx, "chat dispatch failed",
			"correlation_id", correlationID,
			"code", ucErr.Code,
			"reason", ucErr.Reason,
			"err", ucErr.Err,
		)
		details := ucErr.Details
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: ucErr.Message, Details: &details}, correlationID)
	}
}

// unexpected renders a 500 whose error field is cause's message and whose
// details field is the full error chain.
func (h *Handler) unexpected(ctx context.Context, err, cause error, correlationID string) events.APIGatewayProxyResponse {
	slog.ErrorContext(ctx, "chat request failed", "correlation_id", correlationID, "err", err)
	msg := usecase.MessageFallback
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	details := err.Error()
	return jsonResponse(http.StatusInternalServerError, errorResponse{Error: msg, Details: &details}, correlationID)
}

var testEnvPage = template.Must(template.New("test-env").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Environment Variable Test</title></head>
<body>
<div class="p-4">
<h1>Environment Variable Test</h1>
<div>
<p>API Key exists: {{if .Present}}✅ Yes{{else}}❌ No{{end}}</p>
<p>API Key length: {{.Length}} characters</p>
<p>Note: The actual API key is not displayed for security reasons</p>
</div>
</div>
</body>
</html>
`))

func (h *Handler) testEnv(ctx context.Context, correlationID string) events.APIGatewayProxyResponse {
	var buf bytes.Buffer
	if err := testEnvPage.Execute(&buf, h.env); err != nil {
		return h.unexpected(ctx, fmt.Errorf("handler: render test-env page: %w", err), err, correlationID)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"content-type":      "text/html; charset=utf-8",
			"cache-control":     "no-store",
			headerCorrelationID: correlationID,
		},
		Body: buf.String(),
	}
}

func jsonResponse(status int, v any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Failed to process request"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(body),
	}
}

// headerValue looks up key case-insensitively; API Gateway preserves the
// client's casing.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
