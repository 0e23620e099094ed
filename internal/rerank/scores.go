package rerank

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var integerPattern = regexp.MustCompile(`-?\d+`)

// parseScores parses the judge response as a strict JSON array of numbers.
// Judges wrap JSON in markdown fences often enough that stripping them is
// part of the strict path, not recovery.
func parseScores(raw string, want int) ([]float64, bool) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var scores []float64
	if err := json.Unmarshal([]byte(trimmed), &scores); err != nil {
		return nil, false
	}
	if len(scores) != want {
		return nil, false
	}
	return clampScores(scores), true
}

// recoverScores extracts integer tokens from a response that failed strict
// parsing. It succeeds only when the response yields exactly one score per
// candidate; anything else is ambiguous and treated as no recovery.
func recoverScores(raw string, want int) ([]float64, bool) {
	matches := integerPattern.FindAllString(raw, want+1)
	if len(matches) != want {
		return nil, false
	}
	scores := make([]float64, want)
	for n, match := range matches {
		value, err := strconv.Atoi(match)
		if err != nil {
			return nil, false
		}
		scores[n] = float64(value)
	}
	return clampScores(scores), true
}

func clampScores(scores []float64) []float64 {
	for n, score := range scores {
		if score < 0 {
			scores[n] = 0
		} else if score > 10 {
			scores[n] = 10
		}
	}
	return scores
}
