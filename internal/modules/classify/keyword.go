package classify

import (
	"strings"

	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
)

// keywordClassify is the local fallback used when the completion service is
// unreachable or unparsable: score every specialty/topic pair by substring
// hits of its name tokens in the question text, pick the best.
func keywordClassify(entries []taxonomy.SpecialtyEntry, text string) (specialty, topic string, ok bool) {
	haystack := strings.ToLower(text)
	bestScore := 0
	for _, e := range entries {
		specialtyScore := tokenHits(haystack, e.Name)
		for _, t := range e.Topics {
			score := specialtyScore + 2*tokenHits(haystack, t)
			if score > bestScore {
				bestScore = score
				specialty = e.Name
				topic = t
			}
		}
	}
	return specialty, topic, bestScore > 0
}

func tokenHits(haystack, name string) int {
	hits := 0
	for _, token := range strings.Fields(strings.ToLower(name)) {
		if len(token) < 4 {
			continue
		}
		if strings.Contains(haystack, token) {
			hits++
		}
	}
	return hits
}
