// Package handler adapts API Gateway proxy events onto the chat and admin
// use cases. It owns routing, CORS, auth-header plumbing and the mapping
// from use-case errors to HTTP statuses; all behavior lives below it.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"assistant-agent/internal/auth"
	"assistant-agent/internal/domain"
	"assistant-agent/internal/usecase"
)

// Fixed client-facing error strings. Internal detail never leaves the
// handler; the log line carries it instead.
const (
	msgNoMessage     = "No message provided"
	msgUnauthorized  = "Unauthorized"
	msgForbidden     = "Forbidden"
	msgNotFound      = "Not found"
	msgInvalid       = "Invalid request"
	msgInternalError = "Internal server error"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type, Authorization, X-Admin-Secret",
	"Access-Control-Allow-Methods": "GET, POST, DELETE, OPTIONS",
}

type chatUseCase interface {
	Handle(ctx context.Context, in usecase.ChatInput) (*usecase.ChatOutput, error)
}

type adminUseCase interface {
	Status(ctx context.Context, token string) (usecase.Status, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	UpsertUser(ctx context.Context, user domain.User) (domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
	ListKnowledge(ctx context.Context) ([]domain.AdminKnowledge, error)
	AddKnowledge(ctx context.Context, knowledge, createdBy string) (domain.AdminKnowledge, error)
	DeleteKnowledge(ctx context.Context, knowledgeID string) error
	Stats(ctx context.Context) (usecase.TableStats, error)
	Cleanup(ctx context.Context) (usecase.CleanupResult, error)
}

// Handler routes one API Gateway event per invocation.
type Handler struct {
	chat  chatUseCase
	admin adminUseCase

	// adminSecret guards the operator endpoints. Empty disables them.
	adminSecret string
}

// NewHandler wires the transport layer. chat and admin are required.
func NewHandler(chat chatUseCase, admin adminUseCase, adminSecret string) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if admin == nil {
		return nil, errors.New("handler: admin use case must not be nil")
	}
	return &Handler{chat: chat, admin: admin, adminSecret: adminSecret}, nil
}

type chatRequest struct {
	Message   string `json:"message"`
	Topic     string `json:"topic"`
	NewThread bool   `json:"start_new_thread"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handle is the Lambda entrypoint.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(event.Headers, "x-correlation-id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic", "panic", r, "path", event.Path, "correlation_id", correlationID)
			resp = respond(http.StatusInternalServerError, errorResponse{Error: msgInternalError}, correlationID)
			err = nil
		}
	}()

	if event.HTTPMethod == http.MethodOptions {
		return respond(http.StatusOK, nil, correlationID), nil
	}

	route := event.HTTPMethod + " " + event.Path
	switch {
	case route == "POST /chat":
		return h.handleChat(ctx, event, correlationID), nil
	case route == "GET /admin/status":
		return h.handleStatus(ctx, event, correlationID), nil
	case strings.HasPrefix(event.Path, "/admin/"):
		return h.handleAdmin(ctx, event, correlationID), nil
	default:
		return respond(http.StatusNotFound, errorResponse{Error: msgNotFound}, correlationID), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	var req chatRequest
	if event.Body != "" {
		if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
			return respond(http.StatusBadRequest, errorResponse{Error: msgInvalid}, correlationID)
		}
	}
	// Message presence is checked before anything else runs, token
	// verification included.
	if strings.TrimSpace(req.Message) == "" {
		return respond(http.StatusBadRequest, errorResponse{Error: msgNoMessage}, correlationID)
	}

	token := auth.BearerToken(headerValue(event.Headers, "authorization"))
	if token == "" {
		return respond(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized}, correlationID)
	}

	out, err := h.chat.Handle(ctx, usecase.ChatInput{
		Token:     token,
		Message:   req.Message,
		Topic:     req.Topic,
		NewThread: req.NewThread,
	})
	if err != nil {
		return errorFor(err, correlationID)
	}
	return respond(http.StatusOK, out, correlationID)
}

func (h *Handler) handleStatus(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	token := auth.BearerToken(headerValue(event.Headers, "authorization"))
	if token == "" {
		return respond(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized}, correlationID)
	}
	status, err := h.admin.Status(ctx, token)
	if err != nil {
		return errorFor(err, correlationID)
	}
	return respond(http.StatusOK, status, correlationID)
}

// handleAdmin dispatches the operator endpoints, all guarded by the shared
// secret header.
func (h *Handler) handleAdmin(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	if h.adminSecret == "" || headerValue(event.Headers, "x-admin-secret") != h.adminSecret {
		return respond(http.StatusForbidden, errorResponse{Error: msgForbidden}, correlationID)
	}

	route := event.HTTPMethod + " " + event.Path
	switch {
	case route == "GET /admin/users":
		users, err := h.admin.ListUsers(ctx)
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, map[string][]domain.User{"users": users}, correlationID)

	case route == "POST /admin/users":
		var user domain.User
		if err := json.Unmarshal([]byte(event.Body), &user); err != nil {
			return respond(http.StatusBadRequest, errorResponse{Error: msgInvalid}, correlationID)
		}
		saved, err := h.admin.UpsertUser(ctx, user)
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, saved, correlationID)

	case event.HTTPMethod == http.MethodGet && strings.HasPrefix(event.Path, "/admin/users/"):
		user, err := h.admin.GetUser(ctx, strings.TrimPrefix(event.Path, "/admin/users/"))
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, user, correlationID)

	case event.HTTPMethod == http.MethodDelete && strings.HasPrefix(event.Path, "/admin/users/"):
		userID := strings.TrimPrefix(event.Path, "/admin/users/")
		if err := h.admin.DeleteUser(ctx, userID); err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, map[string]string{"deleted": userID}, correlationID)

	case route == "GET /admin/knowledge":
		knowledge, err := h.admin.ListKnowledge(ctx)
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, map[string][]domain.AdminKnowledge{"knowledge": knowledge}, correlationID)

	case route == "POST /admin/knowledge":
		var req struct {
			Knowledge string `json:"knowledge"`
			CreatedBy string `json:"created_by"`
		}
		if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
			return respond(http.StatusBadRequest, errorResponse{Error: msgInvalid}, correlationID)
		}
		saved, err := h.admin.AddKnowledge(ctx, req.Knowledge, req.CreatedBy)
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, saved, correlationID)

	case event.HTTPMethod == http.MethodDelete && strings.HasPrefix(event.Path, "/admin/knowledge/"):
		knowledgeID := strings.TrimPrefix(event.Path, "/admin/knowledge/")
		if err := h.admin.DeleteKnowledge(ctx, knowledgeID); err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, map[string]string{"deleted": knowledgeID}, correlationID)

	case route == "GET /admin/stats":
		stats, err := h.admin.Stats(ctx)
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, stats, correlationID)

	case route == "POST /admin/cleanup":
		result, err := h.admin.Cleanup(ctx)
		if err != nil {
			return errorFor(err, correlationID)
		}
		return respond(http.StatusOK, result, correlationID)

	default:
		return respond(http.StatusNotFound, errorResponse{Error: msgNotFound}, correlationID)
	}
}

// errorFor maps use-case errors onto statuses and fixed client strings.
func errorFor(err error, correlationID string) events.APIGatewayProxyResponse {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		slog.Error("unexpected handler error", "err", err, "correlation_id", correlationID)
		return respond(http.StatusInternalServerError, errorResponse{Error: msgInternalError}, correlationID)
	}
	slog.Warn("request failed", "code", ue.Code, "reason", ue.Reason, "err", ue.Err, "correlation_id", correlationID)
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		return respond(http.StatusBadRequest, errorResponse{Error: msgInvalid}, correlationID)
	case usecase.ErrorUnauthenticated:
		return respond(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized}, correlationID)
	case usecase.ErrorForbidden:
		return respond(http.StatusForbidden, errorResponse{Error: msgForbidden}, correlationID)
	case usecase.ErrorNotFound:
		return respond(http.StatusNotFound, errorResponse{Error: msgNotFound}, correlationID)
	default:
		return respond(http.StatusInternalServerError, errorResponse{Error: msgInternalError}, correlationID)
	}
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	headers := map[string]string{"X-Correlation-Id": correlationID}
	for k, v := range corsHeaders {
		headers[k] = v
	}
	var payload string
	if body != nil {
		headers["Content-Type"] = "application/json"
		raw, err := json.Marshal(body)
		if err != nil {
			slog.Error("response marshal failed", "err", err)
			raw = []byte(`{"error":"` + msgInternalError + `"}`)
		}
		payload = string(raw)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       payload,
	}
}

// headerValue does a case-insensitive header lookup; API Gateway preserves
// the client's original casing.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
