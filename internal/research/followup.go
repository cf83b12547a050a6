package research

import (
	"fmt"
	"strings"
)

// followupTemplates produce deep-research query candidates for a seed term.
// Each template family yields five candidates; the top three are searched.
type followupTemplates struct {
	keywords  []string
	templates []string
}

var followupFamilies = []followupTemplates{
	{
		keywords: []string{"technology", "software", "computer", " ai ", "artificial intelligence", "quantum", "machine learning", "robot"},
		templates: []string{
			"%s latest research",
			"%s industry applications",
			"%s future predictions",
			"%s technical challenges",
			"%s market leaders",
		},
	},
	{
		keywords: []string{"science", "physics", "biology", "chemistry", "space", "climate", "medicine"},
		templates: []string{
			"%s recent discoveries",
			"%s peer reviewed studies",
			"%s scientific consensus",
			"%s open questions",
			"%s research institutions",
		},
	},
	{
		keywords: []string{"business", "finance", "market", "economy", "investment", "loan", "budget", "startup"},
		templates: []string{
			"%s market trends",
			"%s expert analysis",
			"%s risks and benefits",
			"%s cost comparison",
			"%s regulatory outlook",
		},
	},
}

var genericFollowups = []string{
	"%s explained",
	"%s overview",
	"%s pros and cons",
	"%s recent news",
	"%s comparison",
}

// followupQueries derives up to max follow-up queries for the message's
// leading search term, choosing the template family whose keywords appear in
// the message.
func followupQueries(message, seedTerm string, max int) []string {
	if seedTerm == "" || max <= 0 {
		return nil
	}
	lower := " " + strings.ToLower(message) + " "
	templates := genericFollowups
	for _, family := range followupFamilies {
		if containsAny(lower, family.keywords) {
			templates = family.templates
			break
		}
	}
	if max > len(templates) {
		max = len(templates)
	}
	queries := make([]string, 0, max)
	for _, tpl := range templates[:max] {
		queries = append(queries, fmt.Sprintf(tpl, seedTerm))
	}
	return queries
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
