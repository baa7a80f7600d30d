package extraction

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
)

const RulesStrategy = "rules"

// Pattern maps a keyword match on an invoice line to a line item identity.
type Pattern struct {
	Keywords  *regexp.Regexp
	Name      string
	Category  domain.Category
	Relevance domain.Relevance
	// Units lists the normalized units this item is normally billed in
	Units []string
}

var quantityRe = regexp.MustCompile(
	`(?i)(\d+(?:[.,]\d+)*)\s*(kwh|mwh|litres|liters|litre|liter|ltrs|ltr|lt|l|kilograms|kgs|kg|tonnes|tonne|t|m3)\b`,
)

var thousandsRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

var skipLineRe = regexp.MustCompile(`(?i)^\s*(sub)?total\b`)

// thousands separators carry no whitespace, so "1,200 kWh" stays in one segment
var segmentRe = regexp.MustCompile(`\s*;\s*|,\s+`)

var displayUnits = map[string]string{
	"l":   "L",
	"kwh": "kWh",
	"mwh": "MWh",
	"kg":  "kg",
	"t":   "t",
	"m3":  "m3",
}

// DefaultPatterns covers the consumption lines commonly found on utility, fuel and
// supplier invoices. Order matters: the first matching pattern wins.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{regexp.MustCompile(`(?i)\b(diesel|gasoil|gas oil)\b`), "Diesel Fuel", domain.CategoryFuel, domain.RelevanceHigh, []string{"l"}},
		{regexp.MustCompile(`(?i)\b(petrol|gasoline|unleaded)\b`), "Petrol", domain.CategoryFuel, domain.RelevanceHigh, []string{"l"}},
		{regexp.MustCompile(`(?i)\b(lpg|propane)\b`), "LPG", domain.CategoryFuel, domain.RelevanceHigh, []string{"l"}},
		{regexp.MustCompile(`(?i)\bnatural gas\b|\bgas supply\b`), "Natural Gas", domain.CategoryEnergy, domain.RelevanceHigh, []string{"kwh", "m3"}},
		{regexp.MustCompile(`(?i)\b(electric\w*|grid|power|kwh)\b`), "Electricity Bill", domain.CategoryEnergy, domain.RelevanceHigh, []string{"kwh", "mwh"}},
		{regexp.MustCompile(`(?i)\b(paper|a4|a3)\b`), "Printer Paper", domain.CategoryOfficeSupplies, domain.RelevanceLow, []string{"kg"}},
		{regexp.MustCompile(`(?i)\bsteel\b`), "Steel", domain.CategoryMaterials, domain.RelevanceMedium, []string{"kg", "t"}},
		{regexp.MustCompile(`(?i)\b(concrete|cement)\b`), "Concrete", domain.CategoryMaterials, domain.RelevanceMedium, []string{"kg", "t"}},
		{regexp.MustCompile(`(?i)\bwater\b`), "Water Supply", domain.CategoryOther, domain.RelevanceLow, []string{"m3"}},
	}
}

// RulesExtractor is a deterministic, line-oriented keyword matcher.
type RulesExtractor struct {
	patterns []Pattern
}

func NewRulesExtractor(patterns []Pattern) *RulesExtractor {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &RulesExtractor{patterns: patterns}
}

func RulesFactory(_ Settings) (Extractor, error) {
	return NewRulesExtractor(nil), nil
}

func (r *RulesExtractor) Name() string {
	return RulesStrategy
}

// Extract emits one candidate per comma or semicolon separated segment that
// names a known item next to a quantity with a unit. A line whose segments yield
// nothing is matched as a whole, so "Diesel fuel, 500 L" still counts once.
func (r *RulesExtractor) Extract(ctx context.Context, rawText string) ([]Candidate, error) {
	var candidates []Candidate

	scanner := bufio.NewScanner(strings.NewReader(rawText))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || skipLineRe.MatchString(line) {
			continue
		}
		candidates = append(candidates, r.matchLine(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

func (r *RulesExtractor) matchLine(line string) []Candidate {
	var candidates []Candidate
	if segments := segmentRe.Split(line, -1); len(segments) > 1 {
		for _, segment := range segments {
			if c, ok := r.match(strings.TrimSpace(segment)); ok {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			return candidates
		}
	}
	if c, ok := r.match(line); ok {
		return []Candidate{c}
	}
	return nil
}

// match applies the first pattern whose keywords appear in text.
func (r *RulesExtractor) match(text string) (Candidate, bool) {
	if text == "" || skipLineRe.MatchString(text) {
		return Candidate{}, false
	}
	quantities := quantityRe.FindAllStringSubmatch(text, -1)
	if len(quantities) == 0 {
		return Candidate{}, false
	}
	for _, p := range r.patterns {
		if p.Keywords.MatchString(text) {
			return p.candidate(text, quantities), true
		}
	}
	return Candidate{}, false
}

func (p Pattern) candidate(text string, quantities [][]string) Candidate {
	// prefer the first quantity billed in one of the pattern's units
	chosen := quantities[0]
	unitMatched := false
	for _, q := range quantities {
		if p.acceptsUnit(factors.NormalizeUnit(q[2])) {
			chosen = q
			unitMatched = true
			break
		}
	}

	unit := factors.NormalizeUnit(chosen[2])
	if display, ok := displayUnits[unit]; ok {
		unit = display
	}

	confidence := 0.9
	if !unitMatched {
		confidence = 0.6
	} else if len(quantities) > 1 {
		confidence = 0.75
	}

	return Candidate{
		Name:            p.Name,
		Quantity:        parseQuantity(chosen[1]),
		Unit:            unit,
		Category:        string(p.Category),
		CarbonRelevance: string(p.Relevance),
		Evidence:        text,
		Confidence:      confidence,
	}
}

func (p Pattern) acceptsUnit(unit string) bool {
	for _, u := range p.Units {
		if u == unit {
			return true
		}
	}
	return false
}

// parseQuantity accepts "1200", "1,200", "1,200.5" and "12,5". Unparseable input
// yields 0, which validation rejects.
func parseQuantity(s string) float64 {
	if thousandsRe.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
