package api

import "time"

type EvidenceSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type LineItem struct {
	Name            string        `json:"name"`
	Quantity        float64       `json:"quantity"`
	Unit            string        `json:"unit"`
	Category        string        `json:"category"`
	CarbonRelevance string        `json:"carbon_relevance"`
	Evidence        string        `json:"evidence"`
	EvidenceSpan    *EvidenceSpan `json:"evidence_span,omitempty"`
	Confidence      float64       `json:"confidence"`
	EmissionFactor  Decimal       `json:"emission_factor"`
	TotalCO2Kg      Decimal       `json:"total_co2_kg"`
	FactorStatus    string        `json:"factor_status"`
	NeedsReview     bool          `json:"needs_review"`
}

type RiskReport struct {
	Summary         string    `json:"summary"`
	TopDrivers      []string  `json:"top_drivers"`
	Recommendations []string  `json:"recommendations"`
	GeneratedAt     time.Time `json:"generated_at"`
}

type Rejection struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type Report struct {
	ID                 string      `json:"id"`
	Source             string      `json:"source"`
	Items              []LineItem  `json:"items"`
	RiskReport         RiskReport  `json:"risk_report"`
	TotalCO2Kg         Decimal     `json:"total_co2_kg"`
	UnresolvedCount    int         `json:"unresolved_count"`
	ReviewCount        int         `json:"review_count"`
	Rejections         []Rejection `json:"rejections"`
	FactorTableVersion string      `json:"factor_table_version"`
	Extractor          string      `json:"extractor"`
	Fingerprint        string      `json:"fingerprint"`
	CreatedAt          time.Time   `json:"created_at"`
}

type ReportSummary struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	TotalCO2Kg  Decimal   `json:"total_co2_kg"`
	ItemCount   int       `json:"item_count"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

type AnalyzeInvoiceRequest struct {
	Filename string `json:"filename"`
	OCRText  string `json:"ocrText"`
}

type AnalyzeInvoiceResponse struct {
	Success    bool       `json:"success"`
	InvoiceID  string     `json:"invoice_id"`
	Items      []LineItem `json:"items"`
	RiskReport RiskReport `json:"risk_report"`
	TotalCO2Kg Decimal    `json:"total_co2_kg"`
	Report     *Report    `json:"report,omitempty"`
}

// DashboardItem is a line item in the browser dashboard's envelope, with the
// item total repeated as co2.
type DashboardItem struct {
	LineItem
	ID  string  `json:"id"`
	CO2 Decimal `json:"co2"`
}

// DashboardResponse is the envelope the browser dashboard reads from
// POST /api/analyze-invoice.
type DashboardResponse struct {
	Success   bool            `json:"success"`
	InvoiceID string          `json:"invoiceId"`
	Data      []DashboardItem `json:"data"`
	Risk      RiskReport      `json:"risk"`
	Total     Decimal         `json:"total"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Factor struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Unit            string  `json:"unit"`
	KgCO2ePerUnit   Decimal `json:"kg_co2e_per_unit"`
	Source          string  `json:"source,omitempty"`
	CategoryDefault bool    `json:"category_default"`
}

type FactorTable struct {
	Version string   `json:"version"`
	Factors []Factor `json:"factors"`
}
