// Package research plans search terms from a chat message, queries multiple
// search backends, de-duplicates against per-user search history, and
// optionally crawls top links for full text. Failures at any point degrade
// to fewer results, never to a request error.
package research

import (
	"strings"
)

// topicBucket maps message keywords to a curated term expansion. Buckets are
// additive configuration: new subjects get a new row, not new control flow.
type topicBucket struct {
	keywords []string
	terms    []string
}

var topicBuckets = []topicBucket{
	{
		keywords: []string{"quantum computing", "quantum computer", "qubit"},
		terms:    []string{"quantum computing breakthrough", "quantum computing explained", "quantum computer applications"},
	},
	{
		keywords: []string{"artificial intelligence", "machine learning", " ai ", "neural network", "llm"},
		terms:    []string{"artificial intelligence latest developments", "machine learning advances", "AI industry news"},
	},
	{
		keywords: []string{"blockchain", "cryptocurrency", "bitcoin", "ethereum"},
		terms:    []string{"blockchain technology news", "cryptocurrency market analysis"},
	},
	{
		keywords: []string{"slate truck", "slate pickup", "slate auto", "slate ev"},
		terms:    []string{"Slate truck specifications", "Slate electric pickup price", "Slate Auto reviews"},
	},
	{
		keywords: []string{"loan", "financing", "mortgage", "interest rate"},
		terms:    []string{"current loan interest rates", "financing options comparison"},
	},
	{
		keywords: []string{"what time", "what day", "current date", "today's date"},
		terms:    []string{"current date and time", "world clock"},
	},
}

// Stop phrases excluded from two-word phrase extraction: conversational
// scaffolding that never makes a useful query.
var stopPhrases = map[string]bool{
	"can you":   true,
	"could you": true,
	"tell me":   true,
	"do you":    true,
	"what is":   true,
	"what are":  true,
	"how do":    true,
	"i want":    true,
	"i need":    true,
	"give me":   true,
	"is the":    true,
	"are the":   true,
	"about the": true,
	"for the":   true,
}

// Stop words excluded from single-word extraction: English function words
// plus chat-UI noise.
var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "been": true,
	"before": true, "being": true, "between": true, "both": true, "cannot": true,
	"could": true, "does": true, "doing": true, "down": true, "during": true,
	"each": true, "from": true, "further": true, "have": true, "having": true,
	"here": true, "into": true, "just": true, "know": true, "like": true,
	"more": true, "most": true, "need": true, "only": true, "other": true,
	"over": true, "please": true, "same": true, "should": true, "some": true,
	"something": true, "such": true, "tell": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "under": true,
	"until": true, "very": true, "want": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true, "yours": true,
	"hello": true, "thanks": true, "okay": true, "yeah": true,
}

// PlanSearchTerms turns a raw message into search terms. Known subject
// buckets win; otherwise a generic extractor pulls adjacent two-word phrases
// and salient single words, and as a last resort the raw message itself is
// the sole term.
func PlanSearchTerms(message string) []string {
	lower := " " + strings.ToLower(message) + " "
	for _, b := range topicBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return append([]string(nil), b.terms...)
			}
		}
	}
	if terms := genericTerms(message); len(terms) > 0 {
		return terms
	}
	return []string{strings.TrimSpace(message)}
}

func genericTerms(message string) []string {
	words := strings.Fields(strings.ToLower(strings.Map(stripPunct, message)))

	var terms []string
	// Up to two adjacent two-word phrases.
	for i := 0; i+1 < len(words) && len(terms) < 2; i++ {
		phrase := words[i] + " " + words[i+1]
		if len(phrase) > 5 && !stopPhrases[phrase] && !stopWords[words[i]] && !stopWords[words[i+1]] {
			terms = append(terms, phrase)
			i++ // don't overlap phrases
		}
	}
	// Up to three salient single words.
	singles := 0
	for _, w := range words {
		if singles >= 3 {
			break
		}
		if len(w) > 3 && !stopWords[w] && !containedInAny(terms, w) {
			terms = append(terms, w)
			singles++
		}
	}
	return terms
}

func containedInAny(terms []string, w string) bool {
	for _, t := range terms {
		for _, part := range strings.Fields(t) {
			if part == w {
				return true
			}
		}
	}
	return false
}

func stripPunct(r rune) rune {
	switch r {
	case '?', '!', '.', ',', ';', ':', '"', '(', ')':
		return ' '
	}
	return r
}
