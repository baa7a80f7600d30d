package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pricedItem(name string, qty float64, factor string) domain.PricedItem {
	f := decimal.RequireFromString(factor)
	return domain.PricedItem{
		LineItem: domain.LineItem{
			Name:            name,
			Quantity:        qty,
			Unit:            "L",
			Category:        domain.CategoryFuel,
			CarbonRelevance: domain.RelevanceHigh,
			Evidence:        name,
			Confidence:      0.9,
		},
		Emission: domain.EmissionResult{
			EmissionFactor: f,
			TotalCO2Kg:     decimal.NewFromFloat(qty).Mul(f),
			FactorStatus:   domain.FactorResolved,
		},
	}
}

func validInput() AssembleInput {
	return AssembleInput{
		SourceReference: "invoice-001.txt",
		Items: []domain.PricedItem{
			pricedItem("Diesel Fuel", 500, "2.6"),
			pricedItem("Petrol", 100, "2.31"),
		},
		TotalCO2Kg: decimal.NewFromInt(1531),
		RiskReport: domain.RiskReport{
			Summary: "Diesel Fuel is the largest emission driver at 85% of the reported footprint, followed by Petrol (15%).",
			TopDrivers: []domain.Driver{
				{Label: "Diesel Fuel", TotalCO2Kg: decimal.NewFromInt(1300), Percent: 85},
				{Label: "Petrol", TotalCO2Kg: decimal.NewFromInt(231), Percent: 15},
			},
			Recommendations: []domain.Recommendation{{RuleID: "fuel_substitution", Text: "Switch."}},
			GeneratedAt:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		FactorTableVersion: "builtin-2024.1",
		Extractor:          "replay",
	}
}

func TestAssembler_Assemble(t *testing.T) {
	// Given
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAssembler(WithIDGenerator(func() string { return "report-1" }), WithClock(func() time.Time { return now }))
	input := validInput()
	input.Items[1].NeedsReview = true

	// When
	report, err := a.Assemble(context.Background(), input)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "report-1", report.ID)
	assert.Equal(t, now, report.CreatedAt)
	assert.Equal(t, 1, report.ReviewCount)
	assert.Zero(t, report.UnresolvedCount)
	assert.Len(t, report.Fingerprint, 64)

	// the report owns its items
	input.Items[0].Name = "changed"
	input.RiskReport.TopDrivers[0].Label = "changed"
	assert.Equal(t, "Diesel Fuel", report.Items[0].Name)
	assert.Equal(t, "Diesel Fuel", report.RiskReport.TopDrivers[0].Label)
}

func TestAssembler_FingerprintIgnoresIdentity(t *testing.T) {
	first, err := NewAssembler(WithIDGenerator(func() string { return "a" })).Assemble(context.Background(), validInput())
	require.NoError(t, err)

	later := validInput()
	later.RiskReport.GeneratedAt = later.RiskReport.GeneratedAt.Add(time.Hour)
	second, err := NewAssembler(WithIDGenerator(func() string { return "b" })).Assemble(context.Background(), later)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	changed := validInput()
	changed.Items[0].Evidence = "other evidence"
	third, err := NewAssembler().Assemble(context.Background(), changed)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestAssembler_EmptyReport(t *testing.T) {
	report, err := NewAssembler().Assemble(context.Background(), AssembleInput{
		SourceReference: "blank.txt",
		TotalCO2Kg:      decimal.Zero,
		RiskReport:      domain.RiskReport{Summary: "No measurable emissions were identified in this document."},
	})

	require.NoError(t, err)
	assert.Empty(t, report.Items)
	assert.NotNil(t, report.Items)
	assert.True(t, report.TotalCO2Kg.IsZero())
	assert.Empty(t, report.RiskReport.TopDrivers)
}

func TestAssembler_Inconsistent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *AssembleInput)
		reason string
	}{
		{
			name:   "total does not reconcile",
			mutate: func(in *AssembleInput) { in.TotalCO2Kg = decimal.RequireFromString("1531.0001") },
			reason: "sum of item totals",
		},
		{
			name: "item total is not quantity times factor",
			mutate: func(in *AssembleInput) {
				in.Items[0].Emission.TotalCO2Kg = decimal.NewFromInt(1200)
				in.TotalCO2Kg = decimal.NewFromInt(1431)
			},
			reason: "quantity x factor",
		},
		{
			name: "unresolved item with emissions",
			mutate: func(in *AssembleInput) {
				in.Items[1].Emission.FactorStatus = domain.FactorNotFound
			},
			reason: "unresolved but carries emissions",
		},
		{
			name:   "drivers out of order",
			mutate: func(in *AssembleInput) { in.RiskReport.TopDrivers[0], in.RiskReport.TopDrivers[1] = in.RiskReport.TopDrivers[1], in.RiskReport.TopDrivers[0] },
			reason: "out of order",
		},
		{
			name:   "percentages above 100",
			mutate: func(in *AssembleInput) { in.RiskReport.TopDrivers[1].Percent = 16 },
			reason: "sum to 101",
		},
		{
			name:   "missing summary",
			mutate: func(in *AssembleInput) { in.RiskReport.Summary = "" },
			reason: "no summary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := zerolog.New(&buf).WithContext(context.Background())
			input := validInput()
			tt.mutate(&input)

			report, err := NewAssembler().Assemble(ctx, input)

			assert.Nil(t, report)
			var inconsistent *InconsistentReportError
			require.True(t, errors.As(err, &inconsistent))
			assert.Contains(t, inconsistent.Reason, tt.reason)
			assert.Equal(t, "invoice-001.txt", inconsistent.SourceReference)

			assert.Contains(t, buf.String(), `"message":"inconsistent report"`)
			assert.Contains(t, buf.String(), `"items":[`)
		})
	}
}
