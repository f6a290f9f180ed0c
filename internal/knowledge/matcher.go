// Package knowledge provides read access to the medicine catalog and the
// interaction rule table, plus the text matcher that scores a request's
// diagnosis and symptoms against catalog indications.
package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// Match strategy names accepted in configuration.
const (
	StrategyTokenOverlap = "token_overlap"
	StrategySubstring    = "substring"
)

// MatchStrategy scores clinical text against a medicine's indications and
// returns the normalized score in [0,1] together with the indications that
// matched. The strategy is injectable so the matching policy is explicit
// and testable rather than implicit string-method behavior.
type MatchStrategy interface {
	Name() string
	Score(text string, indications []string) (float64, []string)
}

// NewStrategy resolves a configured strategy name, defaulting to token
// overlap for unknown names.
func NewStrategy(name string) MatchStrategy {
	switch name {
	case StrategySubstring:
		return &SubstringStrategy{}
	default:
		return &TokenOverlapStrategy{}
	}
}

// stopwords excluded from token matching; they carry no clinical signal.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "in": true,
	"of": true, "or": true, "the": true, "to": true, "with": true,
}

// tokenize lower-cases the text and splits it into non-stopword tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !stopwords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// TokenOverlapStrategy scores by token overlap between the request text
// and each indication, boosting exact phrase containment. This is the
// default policy.
type TokenOverlapStrategy struct{}

// Name returns the configuration name of the strategy.
func (s *TokenOverlapStrategy) Name() string { return StrategyTokenOverlap }

// Score computes the normalized overlap score and matched indications.
// A phrase match scores near-exact; partial token overlap scores lower.
func (s *TokenOverlapStrategy) Score(text string, indications []string) (float64, []string) {
	textLower := strings.ToLower(strings.TrimSpace(text))
	if textLower == "" || len(indications) == 0 {
		return 0, nil
	}

	textTokens := map[string]bool{}
	for _, tok := range tokenize(textLower) {
		textTokens[tok] = true
	}

	var best float64
	var matched []string
	for _, indication := range indications {
		indLower := strings.ToLower(strings.TrimSpace(indication))
		if indLower == "" {
			continue
		}

		var score float64
		if strings.Contains(textLower, indLower) || strings.Contains(indLower, textLower) {
			score = 0.95
		} else {
			indTokens := tokenize(indLower)
			if len(indTokens) == 0 {
				continue
			}
			shared := 0
			for _, tok := range indTokens {
				if textTokens[tok] {
					shared++
				}
			}
			score = 0.8 * float64(shared) / float64(len(indTokens))
		}

		if score >= 0.25 {
			matched = append(matched, indication)
		}
		if score > best {
			best = score
		}
	}

	// Additional matched indications nudge the score up without ever
	// leaving [0,1].
	if len(matched) > 1 {
		best += 0.05 * float64(len(matched)-1)
	}
	if best > 1.0 {
		best = 1.0
	}

	sort.Strings(matched)
	return best, matched
}

// SubstringStrategy reproduces the legacy free-text scanning policy:
// case-insensitive substring containment only.
type SubstringStrategy struct{}

// Name returns the configuration name of the strategy.
func (s *SubstringStrategy) Name() string { return StrategySubstring }

// Score returns 0.9 on phrase containment and a reduced score when only
// individual indication tokens appear in the text.
func (s *SubstringStrategy) Score(text string, indications []string) (float64, []string) {
	textLower := strings.ToLower(strings.TrimSpace(text))
	if textLower == "" {
		return 0, nil
	}

	var best float64
	var matched []string
	for _, indication := range indications {
		indLower := strings.ToLower(strings.TrimSpace(indication))
		if indLower == "" {
			continue
		}

		var score float64
		if strings.Contains(textLower, indLower) || strings.Contains(indLower, textLower) {
			score = 0.9
		} else {
			indTokens := tokenize(indLower)
			if len(indTokens) == 0 {
				continue
			}
			shared := 0
			for _, tok := range indTokens {
				if strings.Contains(textLower, tok) {
					shared++
				}
			}
			score = 0.6 * float64(shared) / float64(len(indTokens))
		}

		if score >= 0.25 {
			matched = append(matched, indication)
		}
		if score > best {
			best = score
		}
	}

	sort.Strings(matched)
	return best, matched
}

type matchResult struct {
	score   float64
	matched []string
}

// IndicationMatcher scores medicines against clinical text using the
// configured strategy, memoizing per text/medicine pair. Safe for
// concurrent use; the LRU cache carries its own locking.
type IndicationMatcher struct {
	strategy MatchStrategy
	cache    *lru.Cache[string, matchResult]
}

// NewIndicationMatcher creates a matcher with the given strategy and memo
// cache size.
func NewIndicationMatcher(strategy MatchStrategy, cacheSize int) (*IndicationMatcher, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, matchResult](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating matcher cache: %w", err)
	}
	return &IndicationMatcher{strategy: strategy, cache: cache}, nil
}

// Match scores the clinical text against the medicine's indications.
func (m *IndicationMatcher) Match(text string, medicine *domain.MedicineRecord) (float64, []string) {
	key := m.strategy.Name() + "|" + medicine.ID + "|" + medicine.Name + "|" + strings.ToLower(text)
	if cached, ok := m.cache.Get(key); ok {
		return cached.score, cached.matched
	}

	score, matched := m.strategy.Score(text, medicine.Indications)
	m.cache.Add(key, matchResult{score: score, matched: matched})
	return score, matched
}
