package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/de-tools/carbon-atlas/pkg/models/api"
	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/models/store"
	"github.com/shopspring/decimal"
)

func MapLineItemDomainToApi(p domain.PricedItem) api.LineItem {
	item := api.LineItem{
		Name:            p.Name,
		Quantity:        p.Quantity,
		Unit:            p.Unit,
		Category:        string(p.Category),
		CarbonRelevance: string(p.CarbonRelevance),
		Evidence:        p.Evidence,
		Confidence:      p.Confidence,
		EmissionFactor:  api.NewDecimal(p.Emission.EmissionFactor),
		TotalCO2Kg:      api.NewDecimal(p.Emission.TotalCO2Kg),
		FactorStatus:    string(p.Emission.FactorStatus),
		NeedsReview:     p.NeedsReview,
	}
	if p.EvidenceSpan.Located {
		item.EvidenceSpan = &api.EvidenceSpan{Start: p.EvidenceSpan.Start, End: p.EvidenceSpan.End}
	}
	return item
}

func MapRiskReportDomainToApi(r domain.RiskReport) api.RiskReport {
	res := api.RiskReport{
		Summary:         r.Summary,
		TopDrivers:      make([]string, 0, len(r.TopDrivers)),
		Recommendations: make([]string, 0, len(r.Recommendations)),
		GeneratedAt:     r.GeneratedAt,
	}
	for _, d := range r.TopDrivers {
		res.TopDrivers = append(res.TopDrivers, d.String())
	}
	for _, rec := range r.Recommendations {
		res.Recommendations = append(res.Recommendations, rec.Text)
	}
	return res
}

func MapReportDomainToApi(r *domain.Report) api.Report {
	res := api.Report{
		ID:                 r.ID,
		Source:             r.SourceReference,
		Items:              make([]api.LineItem, 0, len(r.Items)),
		RiskReport:         MapRiskReportDomainToApi(r.RiskReport),
		TotalCO2Kg:         api.NewDecimal(r.TotalCO2Kg),
		UnresolvedCount:    r.UnresolvedCount,
		ReviewCount:        r.ReviewCount,
		Rejections:         make([]api.Rejection, 0, len(r.Rejections)),
		FactorTableVersion: r.FactorTableVersion,
		Extractor:          r.Extractor,
		Fingerprint:        r.Fingerprint,
		CreatedAt:          r.CreatedAt,
	}
	for _, item := range r.Items {
		res.Items = append(res.Items, MapLineItemDomainToApi(item))
	}
	for _, rej := range r.Rejections {
		res.Rejections = append(res.Rejections, api.Rejection{Index: rej.Index, Name: rej.Name, Reason: rej.Reason})
	}
	return res
}

// MapReportDomainToAnalyzeResponse keeps the flat invoice response shape and
// attaches the full report alongside it.
func MapReportDomainToAnalyzeResponse(r *domain.Report) api.AnalyzeInvoiceResponse {
	report := MapReportDomainToApi(r)
	return api.AnalyzeInvoiceResponse{
		Success:    true,
		InvoiceID:  r.ID,
		Items:      report.Items,
		RiskReport: report.RiskReport,
		TotalCO2Kg: report.TotalCO2Kg,
		Report:     &report,
	}
}

func MapReportDomainToDashboardResponse(r *domain.Report) api.DashboardResponse {
	res := api.DashboardResponse{
		Success:   true,
		InvoiceID: r.ID,
		Data:      make([]api.DashboardItem, 0, len(r.Items)),
		Risk:      MapRiskReportDomainToApi(r.RiskReport),
		Total:     api.NewDecimal(r.TotalCO2Kg),
	}
	for i, item := range r.Items {
		res.Data = append(res.Data, api.DashboardItem{
			LineItem: MapLineItemDomainToApi(item),
			ID:       fmt.Sprintf("%s-%d", r.ID, i+1),
			CO2:      api.NewDecimal(item.Emission.TotalCO2Kg),
		})
	}
	return res
}

func MapReportDomainToStore(r *domain.Report, rawText string) (store.ReportRecord, error) {
	payload, err := json.Marshal(MapReportDomainToApi(r))
	if err != nil {
		return store.ReportRecord{}, fmt.Errorf("marshal report: %w", err)
	}
	return store.ReportRecord{
		ID:                 r.ID,
		SourceReference:    r.SourceReference,
		Status:             string(domain.ReportStatusProcessed),
		RawText:            rawText,
		TotalCO2Kg:         r.TotalCO2Kg.String(),
		ItemCount:          len(r.Items),
		FactorTableVersion: r.FactorTableVersion,
		Extractor:          r.Extractor,
		Fingerprint:        r.Fingerprint,
		Payload:            payload,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.CreatedAt,
	}, nil
}

func MapStoreReportToApi(rec store.ReportRecord) (api.Report, error) {
	var res api.Report
	if len(rec.Payload) == 0 {
		return res, fmt.Errorf("report %s has no payload (status %s)", rec.SourceReference, rec.Status)
	}
	if err := json.Unmarshal(rec.Payload, &res); err != nil {
		return res, fmt.Errorf("unmarshal report: %w", err)
	}
	return res, nil
}

func MapStoreReportToDomainSummary(rec store.ReportRecord) (domain.ReportSummary, error) {
	total := decimal.Zero
	if rec.TotalCO2Kg != "" {
		var err error
		total, err = decimal.NewFromString(rec.TotalCO2Kg)
		if err != nil {
			return domain.ReportSummary{}, fmt.Errorf("parse total for %s: %w", rec.SourceReference, err)
		}
	}
	return domain.ReportSummary{
		ID:              rec.ID,
		SourceReference: rec.SourceReference,
		Status:          domain.ReportStatus(rec.Status),
		TotalCO2Kg:      total,
		ItemCount:       rec.ItemCount,
		Fingerprint:     rec.Fingerprint,
		CreatedAt:       rec.CreatedAt,
	}, nil
}

func MapReportSummaryDomainToApi(s domain.ReportSummary) api.ReportSummary {
	return api.ReportSummary{
		ID:          s.ID,
		Source:      s.SourceReference,
		Status:      string(s.Status),
		TotalCO2Kg:  api.NewDecimal(s.TotalCO2Kg),
		ItemCount:   s.ItemCount,
		Fingerprint: s.Fingerprint,
		CreatedAt:   s.CreatedAt,
	}
}
