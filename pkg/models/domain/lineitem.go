package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryEnergy         Category = "Energy"
	CategoryFuel           Category = "Fuel"
	CategoryMaterials      Category = "Materials"
	CategoryOfficeSupplies Category = "Office Supplies"
	CategoryOther          Category = "Other"
)

// Categories lists the known category tags in presentation order.
var Categories = []Category{
	CategoryEnergy,
	CategoryFuel,
	CategoryMaterials,
	CategoryOfficeSupplies,
	CategoryOther,
}

// ParseCategory matches a tag case-insensitively against the known set.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Relevance string

const (
	RelevanceHigh   Relevance = "High"
	RelevanceMedium Relevance = "Medium"
	RelevanceLow    Relevance = "Low"
)

func ParseRelevance(s string) (Relevance, error) {
	for _, r := range []Relevance{RelevanceHigh, RelevanceMedium, RelevanceLow} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown carbon relevance %q", s)
}

// Rank orders relevance tags: High=3, Medium=2, Low=1, unknown=0.
func (r Relevance) Rank() int {
	switch r {
	case RelevanceHigh:
		return 3
	case RelevanceMedium:
		return 2
	case RelevanceLow:
		return 1
	default:
		return 0
	}
}

// EvidenceSpan locates the evidence text inside the source document (byte offsets).
type EvidenceSpan struct {
	Start   int
	End     int
	Located bool
}

// LineItem is a validated consumption record produced from an extraction candidate.
type LineItem struct {
	Name            string
	Quantity        float64
	Unit            string
	Category        Category
	CarbonRelevance Relevance
	Evidence        string
	EvidenceSpan    EvidenceSpan
	Confidence      float64
	NeedsReview     bool
}

type FactorStatus string

const (
	FactorResolved        FactorStatus = "resolved"
	FactorCategoryDefault FactorStatus = "category_default"
	FactorNotFound        FactorStatus = "not_found"
	FactorUnitMismatch    FactorStatus = "unit_mismatch"
)

// EmissionResult is attached to a line item by the calculator.
type EmissionResult struct {
	EmissionFactor decimal.Decimal // kg CO2e per unit
	TotalCO2Kg     decimal.Decimal // Quantity * EmissionFactor
	FactorStatus   FactorStatus
	FactorSource   string
}

// Unresolved reports whether the zero factor stands for missing data rather than
// a genuinely zero-emission item.
func (e EmissionResult) Unresolved() bool {
	return e.FactorStatus == FactorNotFound || e.FactorStatus == FactorUnitMismatch
}

type PricedItem struct {
	LineItem
	Emission EmissionResult
}

// Rejection records a candidate dropped during validation.
type Rejection struct {
	Index  int
	Name   string
	Reason string
}
