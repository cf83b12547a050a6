// Package intent classifies raw chat messages into assistant commands using
// case-insensitive keyword and regex matching. Everything here is a pure
// function over the message text: persistence and privilege checks belong to
// the caller.
package intent

import (
	"strings"
	"time"
)

// Intents is the set of commands detected in one message. Multiple flags may
// be set at once; none being set means the message is plain conversation.
type Intents struct {
	ReminderCreate bool
	KnowledgeWrite bool
	BudgetEntry    bool
	BudgetQuery    bool

	// ReminderText and ReminderDue are populated when ReminderCreate is set.
	ReminderText string
	ReminderDue  time.Time

	// Knowledge is the payload to store when KnowledgeWrite is set.
	Knowledge string

	// Budget holds extracted spending fields; BudgetEntry is only set when
	// an amount could be extracted.
	Budget BudgetInfo
}

var reminderPhrases = []string{
	"remind me to",
	"don't forget to",
	"i need to remember",
	"set a reminder for",
}

var knowledgePhrases = []string{
	"permanently remember",
	"remember that",
	"admin knowledge",
}

var budgetQueryWords = []string{
	"budget", "spending", "expenses", "total", "summary", "tally",
}

// Detect classifies message. now anchors relative due-date parsing so the
// function stays deterministic under test.
func Detect(message string, now time.Time) Intents {
	var out Intents
	lower := strings.ToLower(message)

	if text, due, ok := detectReminder(message, lower, now); ok {
		out.ReminderCreate = true
		out.ReminderText = text
		out.ReminderDue = due
	}

	if payload, ok := detectKnowledge(message, lower); ok {
		out.KnowledgeWrite = true
		out.Knowledge = payload
	}

	if info, ok := ExtractBudgetInfo(message); ok {
		out.BudgetEntry = true
		out.Budget = info
	}

	for _, w := range budgetQueryWords {
		if strings.Contains(lower, w) {
			out.BudgetQuery = true
			break
		}
	}

	return out
}

func detectReminder(message, lower string, now time.Time) (string, time.Time, bool) {
	idx, phrase := firstPhrase(lower, reminderPhrases)
	if idx < 0 {
		return "", time.Time{}, false
	}
	text := strings.TrimSpace(message[idx+len(phrase):])
	text = strings.Trim(text, ":,. ")
	if text == "" {
		text = strings.TrimSpace(message)
	}
	return text, parseDueDate(lower, now), true
}

func detectKnowledge(message, lower string) (string, bool) {
	idx, phrase := firstPhrase(lower, knowledgePhrases)
	if idx < 0 {
		return "", false
	}
	payload := strings.TrimSpace(message[idx+len(phrase):])
	payload = strings.TrimLeft(payload, ":,. ")
	if payload == "" {
		// Command phrase with nothing after it: fall back to everything
		// following the first bare "remember".
		if r := strings.Index(lower, "remember"); r >= 0 {
			payload = strings.TrimSpace(message[r+len("remember"):])
			payload = strings.TrimLeft(payload, ":,. ")
		}
	}
	if payload == "" {
		return "", false
	}
	return payload, true
}

// firstPhrase returns the earliest occurrence of any phrase in lower, along
// with the phrase that matched there.
func firstPhrase(lower string, phrases []string) (int, string) {
	best := -1
	matched := ""
	for _, p := range phrases {
		if i := strings.Index(lower, p); i >= 0 && (best < 0 || i < best) {
			best = i
			matched = p
		}
	}
	return best, matched
}
