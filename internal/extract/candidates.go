package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimroot/internal/model"
)

// addressTokenLength is "0x" plus 20 hex-encoded bytes
const addressTokenLength = 42

// DefaultNameSuffix is the naming-service suffix matched when none is configured
const DefaultNameSuffix = ".eth"

var lineBreaks = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

// CandidateExtractor pulls at most one address or name token out of a record
type CandidateExtractor struct {
	patterns []*regexp.Regexp
}

// NewCandidateExtractor builds an extractor for names ending in suffix.
// With hexAddresses set, raw 0x tokens are matched before names.
func NewCandidateExtractor(suffix string, hexAddresses bool) *CandidateExtractor {
	if suffix == "" {
		suffix = DefaultNameSuffix
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}

	var patterns []*regexp.Regexp
	if hexAddresses {
		patterns = append(patterns, regexp.MustCompile(`0x[a-zA-Z0-9]\w+`))
	}
	patterns = append(patterns, regexp.MustCompile(`(?i)[^ ]+`+regexp.QuoteMeta(suffix)))

	return &CandidateExtractor{patterns: patterns}
}

// Extract returns the first candidate token found in the record
func (e *CandidateExtractor) Extract(record model.EngagementRecord) (model.Candidate, bool) {
	text := lineBreaks.Replace(record.Text)

	for _, pattern := range e.patterns {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}

		// Trailing garbage after a hex address is cut off
		if strings.HasPrefix(match, "0x") && len(match) > addressTokenLength {
			match = match[:addressTokenLength]
		}

		return model.Candidate{
			AuthorHandle: record.AuthorHandle,
			Token:        match,
		}, true
	}

	return model.Candidate{}, false
}

// ExtractAll runs Extract over records, preserving their order
func (e *CandidateExtractor) ExtractAll(records []model.EngagementRecord) []model.Candidate {
	candidates := make([]model.Candidate, 0, len(records))
	for _, record := range records {
		if candidate, ok := e.Extract(record); ok {
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}
