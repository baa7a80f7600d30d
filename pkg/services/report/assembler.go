package report

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InconsistentReportError means the assembled report violates an accounting
// invariant. The report is never corrected, only rejected.
type InconsistentReportError struct {
	SourceReference string
	Reason          string
}

func (e *InconsistentReportError) Error() string {
	return fmt.Sprintf("inconsistent report for %q: %s", e.SourceReference, e.Reason)
}

type AssembleInput struct {
	SourceReference    string
	Items              []domain.PricedItem
	TotalCO2Kg         decimal.Decimal
	RiskReport         domain.RiskReport
	Rejections         []domain.Rejection
	FactorTableVersion string
	Extractor          string
}

type Assembler interface {
	Assemble(ctx context.Context, input AssembleInput) (*domain.Report, error)
}

type Option func(*assembler)

func WithIDGenerator(newID func() string) Option {
	return func(a *assembler) {
		if newID != nil {
			a.newID = newID
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(a *assembler) {
		if clock != nil {
			a.clock = clock
		}
	}
}

type assembler struct {
	newID func() string
	clock func() time.Time
}

func NewAssembler(opts ...Option) Assembler {
	a := &assembler{
		newID: uuid.NewString,
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *assembler) Assemble(ctx context.Context, input AssembleInput) (*domain.Report, error) {
	items := make([]domain.PricedItem, len(input.Items))
	copy(items, input.Items)

	drivers := make([]domain.Driver, len(input.RiskReport.TopDrivers))
	copy(drivers, input.RiskReport.TopDrivers)
	recommendations := make([]domain.Recommendation, len(input.RiskReport.Recommendations))
	copy(recommendations, input.RiskReport.Recommendations)

	rejections := make([]domain.Rejection, len(input.Rejections))
	copy(rejections, input.Rejections)

	report := &domain.Report{
		ID:              a.newID(),
		SourceReference: input.SourceReference,
		Items:           items,
		RiskReport: domain.RiskReport{
			Summary:         input.RiskReport.Summary,
			TopDrivers:      drivers,
			Recommendations: recommendations,
			GeneratedAt:     input.RiskReport.GeneratedAt,
		},
		TotalCO2Kg:         input.TotalCO2Kg,
		Rejections:         rejections,
		FactorTableVersion: input.FactorTableVersion,
		Extractor:          input.Extractor,
		CreatedAt:          a.clock(),
	}
	for _, item := range items {
		if item.Emission.Unresolved() {
			report.UnresolvedCount++
		}
		if item.NeedsReview {
			report.ReviewCount++
		}
	}

	if reason := Check(report); reason != "" {
		logInconsistent(ctx, report, reason)
		return nil, &InconsistentReportError{SourceReference: input.SourceReference, Reason: reason}
	}

	fingerprint, err := Fingerprint(report)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint report: %w", err)
	}
	report.Fingerprint = fingerprint

	return report, nil
}

// Check returns the first violated invariant, or "" when the report is consistent.
func Check(r *domain.Report) string {
	sum := decimal.Zero
	for i, item := range r.Items {
		e := item.Emission
		if e.TotalCO2Kg.IsNegative() || e.EmissionFactor.IsNegative() {
			return fmt.Sprintf("item %d (%s) has a negative emission", i, item.Name)
		}
		if e.Unresolved() && (!e.EmissionFactor.IsZero() || !e.TotalCO2Kg.IsZero()) {
			return fmt.Sprintf("item %d (%s) is unresolved but carries emissions", i, item.Name)
		}
		expected := decimal.NewFromFloat(item.Quantity).Mul(e.EmissionFactor)
		if !expected.Equal(e.TotalCO2Kg) {
			return fmt.Sprintf("item %d (%s) total %s != quantity x factor %s", i, item.Name, e.TotalCO2Kg, expected)
		}
		sum = sum.Add(e.TotalCO2Kg)
	}
	if !sum.Equal(r.TotalCO2Kg) {
		return fmt.Sprintf("total %s != sum of item totals %s", r.TotalCO2Kg, sum)
	}

	if r.RiskReport.Summary == "" {
		return "risk report has no summary"
	}

	drivers := r.RiskReport.TopDrivers
	if !r.TotalCO2Kg.IsPositive() && len(drivers) > 0 {
		return "drivers present for a zero total"
	}
	percentSum := 0
	for i, d := range drivers {
		if d.Percent < 0 || d.Percent > 100 {
			return fmt.Sprintf("driver %s percent %d outside [0,100]", d.Label, d.Percent)
		}
		if i > 0 && d.TotalCO2Kg.GreaterThan(drivers[i-1].TotalCO2Kg) {
			return fmt.Sprintf("driver %s is out of order", d.Label)
		}
		if d.TotalCO2Kg.GreaterThan(r.TotalCO2Kg) {
			return fmt.Sprintf("driver %s exceeds the report total", d.Label)
		}
		percentSum += d.Percent
	}
	if percentSum > 100 {
		return fmt.Sprintf("driver percentages sum to %d", percentSum)
	}

	return ""
}

func logInconsistent(ctx context.Context, r *domain.Report, reason string) {
	logger := zerolog.Ctx(ctx)

	items := zerolog.Arr()
	for _, item := range r.Items {
		items.Dict(zerolog.Dict().
			Str("name", item.Name).
			Float64("quantity", item.Quantity).
			Str("unit", item.Unit).
			Str("category", string(item.Category)).
			Str("factor", item.Emission.EmissionFactor.String()).
			Str("total_co2_kg", item.Emission.TotalCO2Kg.String()).
			Str("factor_status", string(item.Emission.FactorStatus)))
	}
	drivers := zerolog.Arr()
	for _, d := range r.RiskReport.TopDrivers {
		drivers.Dict(zerolog.Dict().
			Str("label", d.Label).
			Str("total_co2_kg", d.TotalCO2Kg.String()).
			Int("percent", d.Percent))
	}

	logger.Error().
		Str("source", r.SourceReference).
		Str("reason", reason).
		Str("total_co2_kg", r.TotalCO2Kg.String()).
		Str("factor_table_version", r.FactorTableVersion).
		Str("extractor", r.Extractor).
		Array("items", items).
		Array("drivers", drivers).
		Str("summary", r.RiskReport.Summary).
		Msg("inconsistent report")
}
