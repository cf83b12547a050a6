package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"assistant-agent/internal/auth"
	"assistant-agent/internal/domain"
	"assistant-agent/internal/integrations/bedrock"
	"assistant-agent/internal/intent"
	"assistant-agent/internal/repository"
)

// DefaultTopic groups turns that arrive without an explicit topic.
const DefaultTopic = "general"

// Fixed responses substituted when the model call degrades. The request
// still succeeds; the caller never sees the upstream failure.
const (
	fallbackNoCompletion = "Sorry, I could not generate a response."
	fallbackModelFailure = "I apologize, but I'm having trouble generating a response right now. Please try again in a moment."
)

// TokenVerifier checks a raw access token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Researcher runs the web research pipeline. It degrades internally and
// never fails the request.
type Researcher interface {
	Research(ctx context.Context, userID, topic, message string) []domain.SearchResult
}

// Completer produces the model's reply for an assembled prompt.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// stateStore is the slice of repository.Store the chat flow needs.
type stateStore interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
	ResolveThreadID(ctx context.Context, userID, topic string, forceNew bool) (string, error)
	GetConversationHistory(ctx context.Context, userID, topic string, limit int) ([]domain.ConversationTurn, error)
	SaveTurn(ctx context.Context, turn domain.ConversationTurn) error
	CreateReminder(ctx context.Context, userID, text string, due time.Time) (domain.Reminder, error)
	DueReminders(ctx context.Context, userID string, now time.Time) ([]domain.Reminder, error)
	AddKnowledge(ctx context.Context, knowledge, createdBy string) (domain.AdminKnowledge, error)
	ListKnowledge(ctx context.Context) ([]domain.AdminKnowledge, error)
	AddBudgetEntry(ctx context.Context, entry domain.BudgetEntry) (domain.BudgetEntry, error)
	SummarizeBudget(ctx context.Context) (repository.BudgetSummary, error)
}

// ChatInput is one inbound chat request.
type ChatInput struct {
	Token   string
	Message string
	Topic   string

	// NewThread forces a fresh thread id regardless of the recency window.
	NewThread bool
}

// ChatOutput is the completed turn.
type ChatOutput struct {
	Response  string `json:"response"`
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	Topic     string `json:"topic"`
	Timestamp string `json:"timestamp"`

	ReminderCreated   *domain.Reminder `json:"reminder_created,omitempty"`
	DueRemindersCount int              `json:"due_reminders_count"`
	NextReminder      *domain.Reminder `json:"next_reminder,omitempty"`
}

// ChatService orchestrates one chat turn: authentication, intent handling,
// context gathering, research, completion and persistence. Only missing
// input and failed authentication abort a request; every downstream failure
// degrades to a poorer but successful response.
type ChatService struct {
	verifier TokenVerifier
	store    stateStore
	research Researcher
	complete Completer

	// now is swappable in tests.
	now func() time.Time
}

// NewChatService wires the chat flow. All dependencies are required.
func NewChatService(verifier TokenVerifier, store stateStore, research Researcher, complete Completer) (*ChatService, error) {
	if verifier == nil {
		return nil, errors.New("usecase: verifier must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if research == nil {
		return nil, errors.New("usecase: researcher must not be nil")
	}
	if complete == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	return &ChatService{
		verifier: verifier,
		store:    store,
		research: research,
		complete: complete,
		now:      time.Now,
	}, nil
}

// Handle runs one chat turn end to end.
func (s *ChatService) Handle(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, newError(ErrorInvalidInput, "message is required", nil)
	}

	claims, err := s.verifier.Verify(in.Token)
	if err != nil {
		return nil, newError(ErrorUnauthenticated, "token verification failed", err)
	}
	userID := claims.Sub

	role, err := s.store.GetUserRole(ctx, userID)
	if err != nil {
		slog.Warn("role lookup failed, treating as regular user", "user_id", userID, "err", err)
		role = domain.RoleUser
	}

	now := s.now().UTC()
	intents := intent.Detect(message, now)

	var reminderCreated *domain.Reminder
	if intents.ReminderCreate {
		reminder, err := s.store.CreateReminder(ctx, userID, intents.ReminderText, intents.ReminderDue)
		if err != nil {
			slog.Warn("reminder create failed", "user_id", userID, "err", err)
		} else {
			reminderCreated = &reminder
		}
	}

	// Knowledge and budget writes are admin commands. For other roles the
	// intent is dropped without comment and the message flows through as
	// plain conversation.
	if intents.KnowledgeWrite && role == domain.RoleAdmin {
		if _, err := s.store.AddKnowledge(ctx, intents.Knowledge, userID); err != nil {
			slog.Warn("knowledge write failed", "user_id", userID, "err", err)
		}
	}

	var savedEntry *domain.BudgetEntry
	if intents.BudgetEntry && role == domain.RoleAdmin {
		entry, err := s.store.AddBudgetEntry(ctx, domain.BudgetEntry{
			UserID:       userID,
			Amount:       intents.Budget.Amount,
			Category:     intents.Budget.Category,
			Description:  intents.Budget.Description,
			Duration:     intents.Budget.Duration,
			DurationUnit: intents.Budget.DurationUnit,
		})
		if err != nil {
			slog.Warn("budget entry write failed", "user_id", userID, "err", err)
		} else {
			savedEntry = &entry
		}
	}

	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		topic = DefaultTopic
	}

	threadID, err := s.store.ResolveThreadID(ctx, userID, topic, in.NewThread)
	if err != nil {
		slog.Warn("thread resolution failed, starting fresh thread", "user_id", userID, "err", err)
		threadID = uuid.NewString()
	}

	history, err := s.store.GetConversationHistory(ctx, userID, topic, historyTurns)
	if err != nil {
		slog.Warn("history fetch failed", "user_id", userID, "err", err)
		history = nil
	}

	knowledge, err := s.store.ListKnowledge(ctx)
	if err != nil {
		slog.Warn("knowledge fetch failed", "err", err)
		knowledge = nil
	}

	var summary *repository.BudgetSummary
	if intents.BudgetQuery {
		got, err := s.store.SummarizeBudget(ctx)
		if err != nil {
			slog.Warn("budget summary failed", "err", err)
		} else {
			summary = &got
		}
	}

	due, err := s.store.DueReminders(ctx, userID, now)
	if err != nil {
		slog.Warn("due reminder fetch failed", "user_id", userID, "err", err)
		due = nil
	}

	results := s.research.Research(ctx, userID, topic, message)

	messages := BuildPrompt(PromptInput{
		Now:           now,
		Knowledge:     knowledge,
		BudgetEntry:   savedEntry,
		BudgetSummary: summary,
		DueReminders:  due,
		SearchResults: results,
		History:       history,
		Message:       message,
	})

	response := s.completeWithFallback(ctx, messages)

	timestamp := now.Format(time.RFC3339Nano)
	turn := domain.ConversationTurn{
		UserID:         userID,
		ConversationID: repository.NewConversationID(now),
		ThreadID:       threadID,
		Topic:          topic,
		Timestamp:      timestamp,
		UserMessage:    message,
		AIResponse:     response,
	}
	if err := s.store.SaveTurn(ctx, turn); err != nil {
		slog.Warn("turn persistence failed", "user_id", userID, "err", err)
	}

	return &ChatOutput{
		Response:          response,
		UserID:            userID,
		ThreadID:          threadID,
		Topic:             topic,
		Timestamp:         timestamp,
		ReminderCreated:   reminderCreated,
		DueRemindersCount: len(due),
		NextReminder:      earliestDue(due),
	}, nil
}

// earliestDue picks the due reminder with the soonest due date, or nil when
// none is due.
func earliestDue(due []domain.Reminder) *domain.Reminder {
	if len(due) == 0 {
		return nil
	}
	next := due[0]
	for _, r := range due[1:] {
		if r.DueDate < next.DueDate {
			next = r
		}
	}
	return &next
}

// completeWithFallback maps model failures onto fixed substitute strings. A
// missing completion field and an outright call failure read differently to
// the user, matching what each actually means.
func (s *ChatService) completeWithFallback(ctx context.Context, messages []domain.ChatMessage) string {
	response, err := s.complete.Complete(ctx, messages)
	if err != nil {
		if errors.Is(err, bedrock.ErrMissingCompletion) {
			return fallbackNoCompletion
		}
		slog.Warn("model invocation failed", "err", err)
		return fallbackModelFailure
	}
	if strings.TrimSpace(response) == "" {
		return fallbackNoCompletion
	}
	return response
}
