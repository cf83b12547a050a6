package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"assistant-agent/internal/domain"
	"assistant-agent/internal/repository"
)

// historyTurns is how many prior turns feed the prompt.
const historyTurns = 5

const persona = "You are a capable personal assistant. Be concise, accurate " +
	"and direct. When you rely on the reference material below, cite it by " +
	"its entry number."

// PromptInput is everything the context assembler folds into one prompt.
// Empty slices and nil pointers contribute nothing: a request with no due
// reminders simply has no reminder section.
type PromptInput struct {
	Now time.Time

	Knowledge     []domain.AdminKnowledge
	BudgetEntry   *domain.BudgetEntry
	BudgetSummary *repository.BudgetSummary
	DueReminders  []domain.Reminder
	SearchResults []domain.SearchResult
	History       []domain.ConversationTurn

	Message string
}

// BuildPrompt renders the system preamble and context sections into a single
// system message, then replays the most recent conversation turns as
// user/assistant pairs and appends the current message last.
func BuildPrompt(in PromptInput) []domain.ChatMessage {
	var system strings.Builder
	system.WriteString(persona)
	system.WriteString("\n\n")
	system.WriteString(dateTimeSection(in.Now))

	if s := knowledgeSection(in.Knowledge); s != "" {
		system.WriteString("\n\n")
		system.WriteString(s)
	}
	if s := budgetSection(in.BudgetEntry, in.BudgetSummary); s != "" {
		system.WriteString("\n\n")
		system.WriteString(s)
	}
	if s := remindersSection(in.DueReminders); s != "" {
		system.WriteString("\n\n")
		system.WriteString(s)
	}
	if s := referenceSection(in.SearchResults); s != "" {
		system.WriteString("\n\n")
		system.WriteString(s)
	}

	messages := []domain.ChatMessage{{Role: "system", Content: system.String()}}

	history := in.History
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	for _, turn := range history {
		messages = append(messages,
			domain.ChatMessage{Role: "user", Content: turn.UserMessage},
			domain.ChatMessage{Role: "assistant", Content: turn.AIResponse},
		)
	}

	return append(messages, domain.ChatMessage{Role: "user", Content: in.Message})
}

// dateTimeSection renders the current moment both as labelled fields and as
// one human sentence, so the model can answer "what day is it" style
// questions without arithmetic.
func dateTimeSection(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf(
		"Current date and time:\n"+
			"Date: %s\nTime: %s UTC\nWeekday: %s\nMonth: %s\nYear: %d\n"+
			"It is %s, %s %d, %d at %s UTC.",
		now.Format("2006-01-02"),
		now.Format("15:04"),
		now.Weekday(),
		now.Month(),
		now.Year(),
		now.Weekday(), now.Month(), now.Day(), now.Year(), now.Format("15:04"),
	)
}

func knowledgeSection(knowledge []domain.AdminKnowledge) string {
	if len(knowledge) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Important facts you must treat as authoritative, even over your own knowledge:")
	for _, k := range knowledge {
		b.WriteString("\n- ")
		b.WriteString(k.Knowledge)
	}
	return b.String()
}

func budgetSection(entry *domain.BudgetEntry, summary *repository.BudgetSummary) string {
	var parts []string
	if entry != nil {
		line := fmt.Sprintf("A spending entry was just recorded: $%.2f on %s", entry.Amount, orText(entry.Category, "uncategorized"))
		if entry.Duration > 0 {
			line += fmt.Sprintf(" covering %d %s(s)", entry.Duration, entry.DurationUnit)
		}
		line += ". Acknowledge it in your reply."
		parts = append(parts, line)
	}
	if summary != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Budget summary: %d entries totalling $%.2f.", summary.Entries, summary.Total)
		categories := make([]string, 0, len(summary.ByCategory))
		for category := range summary.ByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Fprintf(&b, "\n- %s: $%.2f", category, summary.ByCategory[category])
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

func remindersSection(due []domain.Reminder) string {
	if len(due) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Reminders now due; mention them to the user:")
	for _, r := range due {
		fmt.Fprintf(&b, "\n- %s (due %s)", r.ReminderText,
			time.UnixMilli(r.DueDate).UTC().Format("2006-01-02 15:04"))
	}
	return b.String()
}

// referenceSection enumerates search results as numbered entries. Entries
// keep their originating engine so citations can name it.
func referenceSection(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Web reference material. Cite entries by number when you use them:")
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, orText(r.Title, "(untitled)"))
		if r.Snippet != "" {
			b.WriteString(": ")
			b.WriteString(r.Snippet)
		}
		if r.URL != "" {
			b.WriteString(" (")
			b.WriteString(r.URL)
			b.WriteString(")")
		}
		if r.Source != "" {
			b.WriteString(" [via ")
			b.WriteString(r.Source)
			b.WriteString("]")
		}
	}
	return b.String()
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
