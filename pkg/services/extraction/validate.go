package extraction

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
)

// Validate re-checks every candidate against the extraction contract. Malformed
// candidates are dropped and reported as rejections; the rest keep extraction order.
// Items whose confidence is below reviewThreshold are flagged for manual review.
func Validate(rawText string, candidates []Candidate, reviewThreshold float64) ([]domain.LineItem, []domain.Rejection) {
	items := make([]domain.LineItem, 0, len(candidates))
	var rejections []domain.Rejection

	for i, c := range candidates {
		item, reason := validateCandidate(rawText, c)
		if reason != "" {
			rejections = append(rejections, domain.Rejection{Index: i, Name: c.Name, Reason: reason})
			continue
		}
		item.NeedsReview = item.Confidence < reviewThreshold
		items = append(items, item)
	}

	return items, rejections
}

func validateCandidate(rawText string, c Candidate) (domain.LineItem, string) {
	if c.DecodeError != "" {
		return domain.LineItem{}, "undecodable: " + c.DecodeError
	}
	name := strings.Join(strings.Fields(c.Name), " ")
	if name == "" {
		return domain.LineItem{}, "empty name"
	}
	if math.IsNaN(c.Quantity) || math.IsInf(c.Quantity, 0) {
		return domain.LineItem{}, "quantity is not a finite number"
	}
	if c.Quantity < 0 {
		return domain.LineItem{}, "negative quantity"
	}
	if c.Quantity == 0 {
		return domain.LineItem{}, "zero quantity"
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return domain.LineItem{}, "confidence outside [0,1]"
	}
	category, err := domain.ParseCategory(c.Category)
	if err != nil {
		return domain.LineItem{}, err.Error()
	}
	relevance, err := domain.ParseRelevance(c.CarbonRelevance)
	if err != nil {
		return domain.LineItem{}, err.Error()
	}
	evidence := strings.TrimSpace(c.Evidence)
	if evidence == "" {
		return domain.LineItem{}, "empty evidence"
	}

	return domain.LineItem{
		Name:            name,
		Quantity:        c.Quantity,
		Unit:            strings.TrimSpace(c.Unit),
		Category:        category,
		CarbonRelevance: relevance,
		Evidence:        evidence,
		EvidenceSpan:    LocateEvidence(rawText, evidence),
		Confidence:      c.Confidence,
	}, ""
}

// LocateEvidence finds evidence in text ignoring case and runs of whitespace, and
// returns the byte span of the match in the original text.
func LocateEvidence(text, evidence string) domain.EvidenceSpan {
	needle := strings.ToLower(strings.Join(strings.Fields(evidence), " "))
	if needle == "" {
		return domain.EvidenceSpan{}
	}

	// offsets[i] is the byte offset in text of the i-th byte of the normalized form
	var b strings.Builder
	offsets := make([]int, 0, len(text))
	pendingSpace := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			offsets = append(offsets, i)
			pendingSpace = false
		}
		lower := string(unicode.ToLower(r))
		b.WriteString(lower)
		for range len(lower) {
			offsets = append(offsets, i)
		}
	}

	idx := strings.Index(b.String(), needle)
	if idx < 0 {
		return domain.EvidenceSpan{}
	}
	last := offsets[idx+len(needle)-1]
	_, size := utf8.DecodeRuneInString(text[last:])
	return domain.EvidenceSpan{Start: offsets[idx], End: last + size, Located: true}
}
