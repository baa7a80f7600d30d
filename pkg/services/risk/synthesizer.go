package risk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/shopspring/decimal"
)

const DefaultTopK = 3

const noEmissionsSummary = "No measurable emissions were identified in this document."

var hundred = decimal.NewFromInt(100)

type Synthesizer interface {
	// Synthesize ranks drivers against total, which must be the report total.
	Synthesize(ctx context.Context, items []domain.PricedItem, total decimal.Decimal) domain.RiskReport
}

type Option func(*synthesizer)

func WithTopK(k int) Option {
	return func(s *synthesizer) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *synthesizer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

type synthesizer struct {
	rules *RuleSet
	topK  int
	clock func() time.Time
}

func NewSynthesizer(rules *RuleSet, opts ...Option) Synthesizer {
	s := &synthesizer{
		rules: rules,
		topK:  DefaultTopK,
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *synthesizer) Synthesize(ctx context.Context, items []domain.PricedItem, total decimal.Decimal) domain.RiskReport {
	drivers := RankDrivers(items, total, s.topK)

	report := domain.RiskReport{
		Summary:         Summarize(drivers),
		TopDrivers:      drivers,
		Recommendations: []domain.Recommendation{},
		GeneratedAt:     s.clock(),
	}
	if s.rules != nil {
		report.Recommendations = s.rules.Evaluate(ctx, BuildFacts(items, drivers, total))
	}
	return report
}

type group struct {
	driver domain.Driver
	order  int
}

// RankDrivers groups items by normalized name, keeps groups with a positive total
// and returns the k largest. Ties keep first-appearance order. Percentages are
// rounded half up and never sum to more than 100.
func RankDrivers(items []domain.PricedItem, total decimal.Decimal, k int) []domain.Driver {
	drivers := []domain.Driver{}
	if !total.IsPositive() {
		return drivers
	}
	if k <= 0 {
		k = DefaultTopK
	}

	groups := make(map[string]*group)
	var ordered []*group
	for _, item := range items {
		key := factors.NormalizeName(item.Name)
		g, ok := groups[key]
		if !ok {
			g = &group{
				driver: domain.Driver{
					Label:      item.Name,
					Category:   item.Category,
					Relevance:  item.CarbonRelevance,
					TotalCO2Kg: decimal.Zero,
				},
				order: len(ordered),
			}
			groups[key] = g
			ordered = append(ordered, g)
		}
		if item.CarbonRelevance.Rank() > g.driver.Relevance.Rank() {
			g.driver.Relevance = item.CarbonRelevance
		}
		g.driver.TotalCO2Kg = g.driver.TotalCO2Kg.Add(item.Emission.TotalCO2Kg)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].driver.TotalCO2Kg.GreaterThan(ordered[j].driver.TotalCO2Kg)
	})

	sum := 0
	for _, g := range ordered {
		if len(drivers) == k || !g.driver.TotalCO2Kg.IsPositive() {
			break
		}
		d := g.driver
		d.Percent = int(d.TotalCO2Kg.Mul(hundred).Div(total).Round(0).IntPart())
		sum += d.Percent
		drivers = append(drivers, d)
	}

	for i := len(drivers) - 1; sum > 100 && i >= 0; i-- {
		for sum > 100 && drivers[i].Percent > 0 {
			drivers[i].Percent--
			sum--
		}
	}

	return drivers
}

// Summarize renders the summary sentence from the drivers alone.
func Summarize(drivers []domain.Driver) string {
	if len(drivers) == 0 {
		return noEmissionsSummary
	}

	top := drivers[0]
	summary := fmt.Sprintf("%s is the largest emission driver at %d%% of the reported footprint", top.Label, top.Percent)

	rest := make([]string, 0, len(drivers)-1)
	for _, d := range drivers[1:] {
		rest = append(rest, d.String())
	}
	switch len(rest) {
	case 0:
	case 1:
		summary += ", followed by " + rest[0]
	default:
		summary += ", followed by " + strings.Join(rest[:len(rest)-1], ", ") + " and " + rest[len(rest)-1]
	}

	return summary + "."
}

// BuildFacts derives the rule inputs. Shares are percentages of total.
func BuildFacts(items []domain.PricedItem, drivers []domain.Driver, total decimal.Decimal) Facts {
	facts := Facts{
		CategoryShare:     make(map[string]float64),
		CategoryRelevance: make(map[string]int64),
	}

	if len(drivers) > 0 {
		facts.TopCategory = string(drivers[0].Category)
		facts.TopRelevance = string(drivers[0].Relevance)
		facts.TopShare = float64(drivers[0].Percent)
	}

	byCategory := make(map[string]decimal.Decimal)
	for _, item := range items {
		category := string(item.Category)
		if rank := int64(item.CarbonRelevance.Rank()); rank > facts.CategoryRelevance[category] {
			facts.CategoryRelevance[category] = rank
		}
		if item.CarbonRelevance == domain.RelevanceHigh {
			facts.HighCount++
		}
		if item.Emission.Unresolved() {
			facts.UnresolvedCount++
		}
		byCategory[category] = byCategory[category].Add(item.Emission.TotalCO2Kg)
	}

	if total.IsPositive() {
		for category, sum := range byCategory {
			facts.CategoryShare[category] = sum.Mul(hundred).Div(total).InexactFloat64()
		}
	}

	return facts
}
