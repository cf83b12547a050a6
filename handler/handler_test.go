package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"assistant-agent/internal/domain"
	"assistant-agent/internal/usecase"
)

type stubChat struct {
	out   *usecase.ChatOutput
	err   error
	in    usecase.ChatInput
	calls int
}

func (s *stubChat) Handle(_ context.Context, in usecase.ChatInput) (*usecase.ChatOutput, error) {
	s.calls++
	s.in = in
	return s.out, s.err
}

type stubAdmin struct {
	status       usecase.Status
	statusErr    error
	users        []domain.User
	upserted     []domain.User
	deletedUsers []string
	knowledge    []domain.AdminKnowledge
	stats        usecase.TableStats
	cleanup      usecase.CleanupResult
}

func (s *stubAdmin) Status(_ context.Context, _ string) (usecase.Status, error) {
	return s.status, s.statusErr
}

func (s *stubAdmin) ListUsers(_ context.Context) ([]domain.User, error) {
	return s.users, nil
}

func (s *stubAdmin) GetUser(_ context.Context, userID string) (domain.User, error) {
	for _, u := range s.users {
		if u.UserID == userID {
			return u, nil
		}
	}
	return domain.User{}, &usecase.Error{Code: usecase.ErrorNotFound, Reason: "no such user"}
}

func (s *stubAdmin) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	s.upserted = append(s.upserted, user)
	return user, nil
}

func (s *stubAdmin) DeleteUser(_ context.Context, userID string) error {
	s.deletedUsers = append(s.deletedUsers, userID)
	return nil
}

func (s *stubAdmin) ListKnowledge(_ context.Context) ([]domain.AdminKnowledge, error) {
	return s.knowledge, nil
}

func (s *stubAdmin) AddKnowledge(_ context.Context, knowledge, createdBy string) (domain.AdminKnowledge, error) {
	return domain.AdminKnowledge{KnowledgeID: "k-1", Knowledge: knowledge, CreatedBy: createdBy}, nil
}

func (s *stubAdmin) DeleteKnowledge(_ context.Context, _ string) error { return nil }

func (s *stubAdmin) Stats(_ context.Context) (usecase.TableStats, error) {
	return s.stats, nil
}

func (s *stubAdmin) Cleanup(_ context.Context) (usecase.CleanupResult, error) {
	return s.cleanup, nil
}

const testSecret = "operator-secret"

func newTestHandler(t *testing.T, chat *stubChat, admin *stubAdmin) *Handler {
	t.Helper()
	h, err := NewHandler(chat, admin, testSecret)
	require.NoError(t, err)
	return h
}

func chatEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer token-123",
		},
		Body: body,
	}
}

func adminEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"X-Admin-Secret": testSecret},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubAdmin{}, testSecret)
	require.Error(t, err)
	_, err = NewHandler(&stubChat{}, nil, testSecret)
	require.Error(t, err)
}

func TestHandle_CORSPreflight(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubAdmin{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodOptions,
		Path:       "/chat",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Contains(t, resp.Headers["Access-Control-Allow-Headers"], "Authorization")
	require.Empty(t, resp.Body)
}

func TestChat_HappyPath(t *testing.T) {
	chat := &stubChat{out: &usecase.ChatOutput{
		Response: "hello there",
		UserID:   "user-1",
		ThreadID: "thread-1",
		Topic:    "general",
	}}
	h := newTestHandler(t, chat, &stubAdmin{})

	resp, err := h.Handle(context.Background(), chatEvent(`{"message":"hi","topic":"general"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ChatInput{Token: "token-123", Message: "hi", Topic: "general"}, chat.in)

	out := parseBody[usecase.ChatOutput](t, resp.Body)
	require.Equal(t, "hello there", out.Response)
	require.Equal(t, "thread-1", out.ThreadID)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestChat_WireContract(t *testing.T) {
	chat := &stubChat{out: &usecase.ChatOutput{
		Response:          "hello there",
		UserID:            "user-1",
		ThreadID:          "thread-1",
		Topic:             "general",
		DueRemindersCount: 2,
		NextReminder:      &domain.Reminder{ReminderID: "rem-3", ReminderText: "pay rent"},
	}}
	h := newTestHandler(t, chat, &stubAdmin{})

	resp, err := h.Handle(context.Background(), chatEvent(`{"message":"hi","start_new_thread":true}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, chat.in.NewThread)

	// The envelope carries a reminder count and the soonest reminder, not
	// the full due list.
	body := parseBody[map[string]json.RawMessage](t, resp.Body)
	require.Contains(t, body, "due_reminders_count")
	require.Contains(t, body, "next_reminder")
	require.NotContains(t, body, "due_reminders")
	require.Equal(t, "2", string(body["due_reminders_count"]))
}

func TestChat_EmptyMessage_NothingRuns(t *testing.T) {
	chat := &stubChat{}
	h := newTestHandler(t, chat, &stubAdmin{})

	for _, body := range []string{``, `{}`, `{"message":""}`, `{"message":"   "}`} {
		resp, err := h.Handle(context.Background(), chatEvent(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

		out := parseBody[errorResponse](t, resp.Body)
		require.Equal(t, "No message provided", out.Error)
	}
	require.Zero(t, chat.calls)
}

func TestChat_MissingBearerToken(t *testing.T) {
	chat := &stubChat{}
	h := newTestHandler(t, chat, &stubAdmin{})

	event := chatEvent(`{"message":"hi"}`)
	delete(event.Headers, "Authorization")
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, chat.calls)
}

func TestChat_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unauthenticated", &usecase.Error{Code: usecase.ErrorUnauthenticated, Reason: "bad token"}, http.StatusUnauthorized, "Unauthorized"},
		{"invalid input", &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "bad field"}, http.StatusBadRequest, "Invalid request"},
		{"upstream", &usecase.Error{Code: usecase.ErrorUpstream, Reason: "dynamo"}, http.StatusInternalServerError, "Internal server error"},
		{"internal", &usecase.Error{Code: usecase.ErrorInternal, Reason: "boom"}, http.StatusInternalServerError, "Internal server error"},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubChat{err: tc.err}, &stubAdmin{})

			resp, err := h.Handle(context.Background(), chatEvent(`{"message":"hi"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.msg, out.Error)
		})
	}
}

type panickingChat struct{}

func (panickingChat) Handle(context.Context, usecase.ChatInput) (*usecase.ChatOutput, error) {
	panic("nil map write")
}

func TestChat_PanicBecomesInternalError(t *testing.T) {
	h, err := NewHandler(panickingChat{}, &stubAdmin{}, testSecret)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), chatEvent(`{"message":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, "Internal server error", out.Error)
}

func TestAdminStatus(t *testing.T) {
	admin := &stubAdmin{status: usecase.Status{UserID: "user-1", IsAdmin: true}}
	h := newTestHandler(t, &stubChat{}, admin)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/admin/status",
		Headers:    map[string]string{"authorization": "Bearer token-123"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[usecase.Status](t, resp.Body)
	require.True(t, out.IsAdmin)
	require.Equal(t, "user-1", out.UserID)
}

func TestAdminStatus_NoToken(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubAdmin{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/admin/status",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_SecretRequired(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubAdmin{})

	event := adminEvent(http.MethodGet, "/admin/users", "")
	event.Headers["X-Admin-Secret"] = "wrong"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	delete(event.Headers, "X-Admin-Secret")
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdmin_SecretDisabledWhenUnset(t *testing.T) {
	h, err := NewHandler(&stubChat{}, &stubAdmin{}, "")
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), adminEvent(http.MethodGet, "/admin/users", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdmin_UserManagement(t *testing.T) {
	admin := &stubAdmin{users: []domain.User{{UserID: "user-1", Role: domain.RoleAdmin}}}
	h := newTestHandler(t, &stubChat{}, admin)

	resp, err := h.Handle(context.Background(), adminEvent(http.MethodGet, "/admin/users", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := parseBody[map[string][]domain.User](t, resp.Body)
	require.Len(t, out["users"], 1)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodPost, "/admin/users",
		`{"user_id":"user-2","email":"bob@example.com","role":"user"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, admin.upserted, 1)
	require.Equal(t, "user-2", admin.upserted[0].UserID)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodGet, "/admin/users/user-1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := parseBody[domain.User](t, resp.Body)
	require.Equal(t, domain.RoleAdmin, got.Role)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodGet, "/admin/users/ghost", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodDelete, "/admin/users/user-2", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"user-2"}, admin.deletedUsers)
}

func TestAdmin_KnowledgeEndpoints(t *testing.T) {
	admin := &stubAdmin{knowledge: []domain.AdminKnowledge{{KnowledgeID: "k-1", Knowledge: "fact"}}}
	h := newTestHandler(t, &stubChat{}, admin)

	resp, err := h.Handle(context.Background(), adminEvent(http.MethodGet, "/admin/knowledge", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := parseBody[map[string][]domain.AdminKnowledge](t, resp.Body)
	require.Len(t, out["knowledge"], 1)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodPost, "/admin/knowledge",
		`{"knowledge":"the vendor is Acme","created_by":"op"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := parseBody[domain.AdminKnowledge](t, resp.Body)
	require.Equal(t, "the vendor is Acme", saved.Knowledge)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodDelete, "/admin/knowledge/k-1", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_StatsAndCleanup(t *testing.T) {
	admin := &stubAdmin{
		stats:   usecase.TableStats{Users: 2, Conversations: 9},
		cleanup: usecase.CleanupResult{RemindersDeleted: 3},
	}
	h := newTestHandler(t, &stubChat{}, admin)

	resp, err := h.Handle(context.Background(), adminEvent(http.MethodGet, "/admin/stats", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := parseBody[usecase.TableStats](t, resp.Body)
	require.Equal(t, 2, stats.Users)

	resp, err = h.Handle(context.Background(), adminEvent(http.MethodPost, "/admin/cleanup", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleanup := parseBody[usecase.CleanupResult](t, resp.Body)
	require.Equal(t, 3, cleanup.RemindersDeleted)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubAdmin{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/nope",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	chat := &stubChat{out: &usecase.ChatOutput{Response: "ok"}}
	h := newTestHandler(t, chat, &stubAdmin{})

	event := chatEvent(`{"message":"hi"}`)
	delete(event.Headers, "Authorization")
	event.Headers["AUTHORIZATION"] = "Bearer token-456"
	event.Headers["x-correlation-id"] = "corr-9"

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "token-456", chat.in.Token)
	require.Equal(t, "corr-9", resp.Headers["X-Correlation-Id"])
}
