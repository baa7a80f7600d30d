package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Driver is a group of items ranked by its share of the report total.
type Driver struct {
	Label      string
	Category   Category
	Relevance  Relevance
	TotalCO2Kg decimal.Decimal
	Percent    int
}

func (d Driver) String() string {
	return fmt.Sprintf("%s (%d%%)", d.Label, d.Percent)
}

type Recommendation struct {
	RuleID string
	Text   string
}

// RiskReport is always present on a Report, even when it carries no drivers.
type RiskReport struct {
	Summary         string
	TopDrivers      []Driver
	Recommendations []Recommendation
	GeneratedAt     time.Time
}

// Report is the root aggregate handed to persistence and presentation.
type Report struct {
	ID                 string
	SourceReference    string
	Items              []PricedItem
	RiskReport         RiskReport
	TotalCO2Kg         decimal.Decimal
	UnresolvedCount    int
	ReviewCount        int
	Rejections         []Rejection
	FactorTableVersion string
	Extractor          string
	Fingerprint        string
	CreatedAt          time.Time
}

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "PENDING"
	ReportStatusProcessed ReportStatus = "PROCESSED"
	ReportStatusFailed    ReportStatus = "FAILED"
)

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID              string
	SourceReference string
	Status          ReportStatus
	TotalCO2Kg      decimal.Decimal
	ItemCount       int
	Fingerprint     string
	CreatedAt       time.Time
}
