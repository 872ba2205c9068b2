package usecase

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/kitbuilder/backend/internal/domain"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// Suggestion fields
const (
	FieldName     = "name"
	FieldBrand    = "brand"
	FieldCategory = "category"
	FieldFeatures = "features"
)

// DefaultSuggestFields are used when the caller does not name any field
var DefaultSuggestFields = []string{FieldName, FieldBrand, FieldCategory}

// Match quality scores, highest first
const (
	scoreExact     = 100.0
	scorePrefix    = 80.0
	scoreWordStart = 65.0
	scoreSubstring = 50.0
	scoreFuzzyMax  = 40.0 // fuzzy token matches scale down from here
)

// SuggestConfig holds configuration for the suggestion service
type SuggestConfig struct {
	FuzzyEditDistance int
	MaxResults        int
	// Translator renders category values as display names. Defaults to the built-in table.
	Translator *CategoryTranslator
}

// SuggestionService produces search-as-you-type suggestions from product fields
type SuggestionService struct {
	fuzzyEditDistance int
	maxResults        int
	translator        *CategoryTranslator
	logger            *zap.Logger
}

// NewSuggestionService creates a new suggestion service with the given configuration
func NewSuggestionService(config SuggestConfig, logger *zap.Logger) *SuggestionService {
	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1 // Default edit distance of 1
	}
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	translator := config.Translator
	if translator == nil {
		translator = DefaultCategoryTranslator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{
		fuzzyEditDistance: fuzzyDist,
		maxResults:        maxResults,
		translator:        translator,
		logger:            logger,
	}
}

type suggestionCandidate struct {
	value string
	score float64
	order int
}

// Suggest returns up to maxResults distinct field values matching queryText,
// ordered by match quality and then by first appearance.
// Values are compared case-insensitively for de-duplication; the first spelling seen is kept.
func (s *SuggestionService) Suggest(products []domain.Product, queryText string, fields []string, maxResults int) []string {
	folder := cases.Fold()
	query := strings.TrimSpace(folder.String(queryText))
	if query == "" {
		return []string{}
	}
	if len(fields) == 0 {
		fields = DefaultSuggestFields
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	queryTokens := tokenize(query)
	seen := make(map[string]bool)
	var candidates []suggestionCandidate

	for _, p := range products {
		for _, value := range s.fieldValues(p, fields) {
			key := folder.String(strings.TrimSpace(value))
			if key == "" || seen[key] {
				continue
			}
			score := s.calculateMatchScore(query, queryTokens, key)
			if score <= 0 {
				continue
			}
			seen[key] = true
			candidates = append(candidates, suggestionCandidate{
				value: strings.TrimSpace(value),
				score: score,
				order: len(candidates),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.value
	}

	s.logger.Debug("suggestions computed",
		zap.String("query", queryText),
		zap.Int("results", len(out)))

	return out
}

// calculateMatchScore scores a folded candidate against a folded query.
// Returns 0 when the candidate does not match at all.
func (s *SuggestionService) calculateMatchScore(query string, queryTokens []string, candidate string) float64 {
	switch {
	case candidate == query:
		return scoreExact
	case strings.HasPrefix(candidate, query):
		return scorePrefix
	case strings.Contains(candidate, " "+query):
		return scoreWordStart
	case strings.Contains(candidate, query):
		return scoreSubstring
	}

	candidateTokens := tokenize(candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return 0
	}

	// Every query token must match some candidate token within the edit distance
	var totalDistance int
	for _, qt := range queryTokens {
		best := -1
		for _, ct := range candidateTokens {
			if strings.HasPrefix(ct, qt) {
				best = 0
				break
			}
			if fuzzyTokenMatch(qt, ct, s.fuzzyEditDistance) {
				d := levenshteinDistance(qt, ct)
				if best < 0 || d < best {
					best = d
				}
			}
		}
		if best < 0 {
			return 0
		}
		totalDistance += best
	}

	score := scoreFuzzyMax - float64(totalDistance)*5
	if score < 1 {
		score = 1
	}
	return score
}

// fieldValues returns the values of the named fields of p. Categories are returned as display names.
func (s *SuggestionService) fieldValues(p domain.Product, fields []string) []string {
	var values []string
	for _, field := range fields {
		switch field {
		case FieldName:
			values = append(values, p.Name)
		case FieldBrand:
			values = append(values, p.Brand)
		case FieldCategory:
			values = append(values, s.translator.ToDisplay(p.Category))
		case FieldFeatures:
			values = append(values, p.Features...)
		}
	}
	return values
}

// tokenize splits a string into normalized lowercase tokens, dropping punctuation and 1-char words
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Only apply fuzzy matching to tokens >= 4 chars to avoid false positives
	if len(token1) < 4 || len(token2) < 4 {
		return false
	}

	// Quick length check - if lengths differ by more than threshold, can't match
	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
