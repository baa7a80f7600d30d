package calculator

import (
	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/shopspring/decimal"
)

// Calculation is the priced item list for one document together with the totals.
type Calculation struct {
	Items              []domain.PricedItem
	TotalCO2Kg         decimal.Decimal
	UnresolvedCount    int
	FactorTableVersion string
}

type Calculator interface {
	// Calculate prices every item against a single registry snapshot. It never drops
	// items: an item without a usable factor is priced at zero and flagged.
	Calculate(items []domain.LineItem) Calculation
}

type calculator struct {
	registry factors.Registry
}

func NewCalculator(registry factors.Registry) Calculator {
	return &calculator{registry: registry}
}

func (c *calculator) Calculate(items []domain.LineItem) Calculation {
	snapshot := c.registry.Snapshot()

	result := Calculation{
		Items:              make([]domain.PricedItem, 0, len(items)),
		TotalCO2Kg:         decimal.Zero,
		FactorTableVersion: snapshot.Version(),
	}

	for _, item := range items {
		emission := Price(snapshot, item)
		if emission.Unresolved() {
			result.UnresolvedCount++
		}
		result.TotalCO2Kg = result.TotalCO2Kg.Add(emission.TotalCO2Kg)
		result.Items = append(result.Items, domain.PricedItem{LineItem: item, Emission: emission})
	}

	return result
}

// Price resolves the factor for one item. A factor recorded in a different unit
// than the item is not applied.
func Price(snapshot *factors.Snapshot, item domain.LineItem) domain.EmissionResult {
	match, ok := snapshot.Lookup(item.Name, item.Category)
	if !ok {
		return domain.EmissionResult{
			EmissionFactor: decimal.Zero,
			TotalCO2Kg:     decimal.Zero,
			FactorStatus:   domain.FactorNotFound,
		}
	}

	if match.Factor.Unit != "" && factors.NormalizeUnit(match.Factor.Unit) != factors.NormalizeUnit(item.Unit) {
		return domain.EmissionResult{
			EmissionFactor: decimal.Zero,
			TotalCO2Kg:     decimal.Zero,
			FactorStatus:   domain.FactorUnitMismatch,
			FactorSource:   match.Factor.Name,
		}
	}

	status := domain.FactorResolved
	if match.Fallback {
		status = domain.FactorCategoryDefault
	}

	source := match.Factor.Source
	if source == "" {
		source = match.Factor.Name
	}

	return domain.EmissionResult{
		EmissionFactor: match.Factor.KgCO2ePerUnit,
		TotalCO2Kg:     decimal.NewFromFloat(item.Quantity).Mul(match.Factor.KgCO2ePerUnit),
		FactorStatus:   status,
		FactorSource:   source,
	}
}
