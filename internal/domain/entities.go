package domain

// User is an account profile. Identity comes from Cognito; the role is
// looked up here per request because it is not embedded in access tokens.
type User struct {
	UserID    string `dynamodbav:"user_id" json:"user_id"`
	Email     string `dynamodbav:"email" json:"email"`
	Role      string `dynamodbav:"role" json:"role"`
	CreatedAt string `dynamodbav:"created_at" json:"created_at"`
	Status    string `dynamodbav:"status" json:"status"`
}

// Roles a User may carry.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ConversationTurn is one persisted request/response pair. Turns are
// immutable once written and expire via TTL.
type ConversationTurn struct {
	UserID         string `dynamodbav:"user_id" json:"user_id"`
	ConversationID string `dynamodbav:"conversation_id" json:"conversation_id"`
	ThreadID       string `dynamodbav:"thread_id" json:"thread_id"`
	Topic          string `dynamodbav:"topic" json:"topic"`
	Timestamp      string `dynamodbav:"timestamp" json:"timestamp"`
	UserMessage    string `dynamodbav:"user_message" json:"user_message"`
	AIResponse     string `dynamodbav:"ai_response" json:"ai_response"`
	TTL            int64  `dynamodbav:"ttl" json:"-"`
}

// Reminder statuses.
const (
	ReminderPending   = "pending"
	ReminderCompleted = "completed"
)

// Reminder is a user-scoped reminder. DueDate is epoch milliseconds.
type Reminder struct {
	UserID       string `dynamodbav:"user_id" json:"user_id"`
	ReminderID   string `dynamodbav:"reminder_id" json:"reminder_id"`
	ReminderText string `dynamodbav:"reminder_text" json:"reminder_text"`
	DueDate      int64  `dynamodbav:"due_date" json:"due_date"`
	Status       string `dynamodbav:"status" json:"status"`
	CreatedAt    string `dynamodbav:"created_at" json:"created_at"`
	TTL          int64  `dynamodbav:"ttl" json:"-"`
}

// AdminKnowledge is an operator-curated fact. The table is keyed by
// knowledge_id alone: the knowledge base is account-wide, not per user.
type AdminKnowledge struct {
	KnowledgeID string `dynamodbav:"knowledge_id" json:"knowledge_id"`
	Knowledge   string `dynamodbav:"knowledge" json:"knowledge"`
	CreatedAt   string `dynamodbav:"created_at" json:"created_at"`
	CreatedBy   string `dynamodbav:"created_by" json:"created_by"`
	TTL         int64  `dynamodbav:"ttl" json:"-"`
}

// BudgetEntry is one appended spending record. Keyed by budget_id alone;
// user_id is carried as a plain attribute on the shared ledger.
type BudgetEntry struct {
	BudgetID     string  `dynamodbav:"budget_id" json:"budget_id"`
	UserID       string  `dynamodbav:"user_id" json:"user_id"`
	Amount       float64 `dynamodbav:"amount" json:"amount"`
	Category     string  `dynamodbav:"category" json:"category"`
	Description  string  `dynamodbav:"description" json:"description"`
	Duration     int     `dynamodbav:"duration" json:"duration"`
	DurationUnit string  `dynamodbav:"duration_unit" json:"duration_unit"`
	Date         string  `dynamodbav:"date" json:"date"`
	Organization string  `dynamodbav:"organization" json:"organization"`
	CreatedAt    string  `dynamodbav:"created_at" json:"created_at"`
	TTL          int64   `dynamodbav:"ttl" json:"-"`
}

// SearchHistoryRecord is one surfaced search result, persisted so repeat
// searches on the same topic can prefer fresh material.
type SearchHistoryRecord struct {
	UserID       string `dynamodbav:"user_id" json:"user_id"`
	SearchID     string `dynamodbav:"search_id" json:"search_id"`
	Topic        string `dynamodbav:"topic" json:"topic"`
	SearchQuery  string `dynamodbav:"search_query" json:"search_query"`
	ResultTitle  string `dynamodbav:"result_title" json:"result_title"`
	ResultURL    string `dynamodbav:"result_url" json:"result_url"`
	ResultSource string `dynamodbav:"result_source" json:"result_source"`
	SearchedAt   string `dynamodbav:"searched_at" json:"searched_at"`
	TTL          int64  `dynamodbav:"ttl" json:"-"`
}
