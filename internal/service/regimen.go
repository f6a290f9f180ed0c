package service

import (
	"regexp"
	"strings"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// parsedRegimen is one dosing regimen extracted from a catalog record's
// free-text dosage column.
type parsedRegimen struct {
	Audience  domain.RegimenAudience
	Dose      string
	Frequency string
	Duration  string
	Raw       string
}

var (
	doseRegex      = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml|units?)(?:/kg)?(?:/day)?\b`)
	frequencyRegex = regexp.MustCompile(`(?i)\b(?:every\s+\d+(?:-\d+)?\s+hours?|once\s+daily|twice\s+daily|three\s+times\s+daily|four\s+times\s+daily|\d+\s+times?\s+daily|at\s+bedtime|with\s+meals|as\s+needed|divided\s+every\s+\d+\s+hours?)\b`)
	durationRegex  = regexp.MustCompile(`(?i)\bfor\s+\d+(?:-\d+)?\s+(?:days?|weeks?|months?)\b`)
)

// audiencePrefixes maps the leading population labels used in catalog
// dosage text to regimen audiences.
var audiencePrefixes = []struct {
	prefix   string
	audience domain.RegimenAudience
}{
	{"adults", domain.AUDIENCE_ADULT},
	{"adult", domain.AUDIENCE_ADULT},
	{"children", domain.AUDIENCE_PEDIATRIC},
	{"child", domain.AUDIENCE_PEDIATRIC},
	{"pediatric", domain.AUDIENCE_PEDIATRIC},
	{"infants", domain.AUDIENCE_PEDIATRIC},
	{"elderly", domain.AUDIENCE_GERIATRIC},
	{"geriatric", domain.AUDIENCE_GERIATRIC},
	{"seniors", domain.AUDIENCE_GERIATRIC},
}

// parseRegimens extracts structured regimens from the catalog's free-text
// dosage column. Each sentence is treated as one candidate regimen; a
// leading population label sets the audience, otherwise the regimen
// applies to anyone. Text without a recognizable dose yields nothing,
// never an error: unparseable catalog text is a data-quality issue, not
// a request failure.
func parseRegimens(text string) []parsedRegimen {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var regimens []parsedRegimen
	for _, sentence := range splitSentences(text) {
		audience, body := detectAudience(sentence)

		dose := doseRegex.FindString(body)
		if dose == "" {
			continue
		}

		regimens = append(regimens, parsedRegimen{
			Audience:  audience,
			Dose:      strings.TrimSpace(dose),
			Frequency: strings.ToLower(strings.TrimSpace(frequencyRegex.FindString(body))),
			Duration:  strings.TrimSpace(strings.TrimPrefix(strings.ToLower(durationRegex.FindString(body)), "for ")),
			Raw:       strings.TrimSpace(sentence),
		})
	}
	return regimens
}

var sentenceBoundary = regexp.MustCompile(`\.\s+|\.$|[\n;]`)

// splitSentences splits dosage text on sentence boundaries, newlines and
// semicolons. A period inside a decimal dose like 2.5mg is not a boundary.
func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// detectAudience strips a leading population label and returns the
// audience it names, defaulting to any.
func detectAudience(sentence string) (domain.RegimenAudience, string) {
	lower := strings.ToLower(strings.TrimSpace(sentence))
	for _, ap := range audiencePrefixes {
		if strings.HasPrefix(lower, ap.prefix) {
			rest := strings.TrimSpace(sentence[len(ap.prefix):])
			rest = strings.TrimLeft(rest, ": ")
			return ap.audience, rest
		}
	}
	return domain.AUDIENCE_ANY, sentence
}
