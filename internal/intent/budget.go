package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// BudgetInfo is the structured spending information pulled out of a message.
type BudgetInfo struct {
	Amount       float64
	Category     string
	Description  string
	Duration     int
	DurationUnit string
}

var spendingWords = []string{
	"spent", "budget", "paid", "bought", "purchased", "expense", "cost",
}

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$(\d+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)\b(\d+(?:\.\d{1,2})?)\s*dollars\b`),
		regexp.MustCompile(`(?i)\b(\d+(?:\.\d{1,2})?)\s*bucks\b`),
	}

	categoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bon\s+((?:[a-zA-Z]+\s+){0,2}[a-zA-Z]+)`),
		regexp.MustCompile(`(?i)\bfor\s+((?:[a-zA-Z]+\s+){0,2}[a-zA-Z]+)`),
		regexp.MustCompile(`(?i)\b([a-zA-Z]+)\s+expense\b`),
		regexp.MustCompile(`(?i)\b([a-zA-Z]+)\s+cost\b`),
	}

	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfor\s+(\d+)\s+(month|week|day|year)s?\b`),
		regexp.MustCompile(`(?i)\bwill\s+last\s+(\d+)\s+(month|week|day|year)s?\b`),
		regexp.MustCompile(`(?i)\b(\d+)\s+(month|week|day|year)s?\s+(?:of|worth)\b`),
	}
)

// Filler words stripped from extracted categories.
var categoryFillers = map[string]bool{
	"today": true, "this": true, "that": true, "the": true, "a": true, "an": true,
}

// Words that terminate a category capture: anything matched past them
// belongs to a duration or another clause.
var categoryStops = map[string]bool{
	"for": true, "will": true, "last": true, "worth": true,
	"and": true, "of": true, "with": true,
}

// ExtractBudgetInfo returns spending information extracted from message and
// whether it qualifies as a budget entry. A message qualifies when it carries
// spending vocabulary or a money pattern, and an amount could be extracted.
func ExtractBudgetInfo(message string) (BudgetInfo, bool) {
	lower := strings.ToLower(message)
	if !hasSpendingVocabulary(lower) && !hasMoneyPattern(message) {
		return BudgetInfo{}, false
	}

	var info BudgetInfo
	amountText := ""
	for _, p := range amountPatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			info.Amount = v
			amountText = m[0]
			break
		}
	}
	if amountText == "" {
		// No amount means no entry, regardless of vocabulary.
		return BudgetInfo{}, false
	}

	categoryText := ""
	for _, p := range categoryPatterns {
		m := p.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		if cat := cleanCategory(m[1]); cat != "" {
			info.Category = cat
			categoryText = cat
			break
		}
	}

	for _, p := range durationPatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			info.Duration = n
			info.DurationUnit = strings.ToLower(m[2])
			break
		}
	}

	desc := strings.Replace(message, amountText, "", 1)
	if categoryText != "" {
		desc = replaceFold(desc, categoryText)
	}
	info.Description = strings.Join(strings.Fields(desc), " ")

	return info, true
}

func hasSpendingVocabulary(lower string) bool {
	for _, w := range spendingWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

var moneyPattern = regexp.MustCompile(`(?i)\$\d|\d+(?:\.\d{1,2})?\s*(?:dollars|bucks)\b`)

func hasMoneyPattern(message string) bool {
	return moneyPattern.MatchString(message)
}

// cleanCategory drops filler words and truncates at the first stop word, so
// a capture like "coffee for" becomes "coffee".
func cleanCategory(raw string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(raw)) {
		if categoryStops[w] {
			break
		}
		if categoryFillers[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// replaceFold removes the first case-insensitive occurrence of sub from s.
func replaceFold(s, sub string) string {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(sub))
	if idx < 0 {
		return s
	}
	return s[:idx] + s[idx+len(sub):]
}
