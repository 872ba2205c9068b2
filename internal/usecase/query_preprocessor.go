package usecase

import (
	"strings"

	"go.uber.org/zap"
)

const defaultMaxQueryLength = 100

// QueryPreprocessor cleans free-text search input before it reaches the filters
type QueryPreprocessor struct {
	maxLength int
	logger    *zap.Logger
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(maxLength int, logger *zap.Logger) *QueryPreprocessor {
	if maxLength <= 0 {
		maxLength = defaultMaxQueryLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPreprocessor{
		maxLength: maxLength,
		logger:    logger,
	}
}

// PreprocessQuery trims surrounding whitespace and caps the length.
// Inner text is kept verbatim so the search stays a literal containment match.
// Letter case is preserved; matching is case-insensitive downstream.
func (p *QueryPreprocessor) PreprocessQuery(text string) string {
	if text == "" {
		return ""
	}

	cleaned := strings.TrimSpace(text)

	// Cut at a word boundary when possible
	if len(cleaned) > p.maxLength {
		cut := cleaned[:p.maxLength]
		if lastSpace := strings.LastIndex(cut, " "); lastSpace > p.maxLength/2 {
			cut = cut[:lastSpace]
		}
		cleaned = strings.TrimSpace(strings.ToValidUTF8(cut, ""))
	}

	if cleaned != text {
		p.logger.Debug("search text preprocessed",
			zap.String("input", text),
			zap.String("output", cleaned))
	}

	return cleaned
}

// Tokens splits preprocessed text into lowercase words
func (p *QueryPreprocessor) Tokens(text string) []string {
	return strings.Fields(strings.ToLower(p.PreprocessQuery(text)))
}
