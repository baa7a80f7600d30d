package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/gowebpki/jcs"
)

type fingerprintItem struct {
	Name            string  `json:"name"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	Category        string  `json:"category"`
	CarbonRelevance string  `json:"carbon_relevance"`
	Evidence        string  `json:"evidence"`
	Confidence      float64 `json:"confidence"`
	NeedsReview     bool    `json:"needs_review"`
	EmissionFactor  string  `json:"emission_factor"`
	TotalCO2Kg      string  `json:"total_co2_kg"`
	FactorStatus    string  `json:"factor_status"`
}

type fingerprintDoc struct {
	Source             string            `json:"source"`
	Items              []fingerprintItem `json:"items"`
	TotalCO2Kg         string            `json:"total_co2_kg"`
	Summary            string            `json:"summary"`
	TopDrivers         []string          `json:"top_drivers"`
	Recommendations    []string          `json:"recommendations"`
	FactorTableVersion string            `json:"factor_table_version"`
}

// Fingerprint is the sha256 of the RFC 8785 canonical JSON of the report content.
// Identifiers and timestamps are excluded, so identical inputs give identical
// fingerprints across runs.
func Fingerprint(r *domain.Report) (string, error) {
	doc := fingerprintDoc{
		Source:             r.SourceReference,
		Items:              make([]fingerprintItem, 0, len(r.Items)),
		TotalCO2Kg:         r.TotalCO2Kg.String(),
		Summary:            r.RiskReport.Summary,
		TopDrivers:         make([]string, 0, len(r.RiskReport.TopDrivers)),
		Recommendations:    make([]string, 0, len(r.RiskReport.Recommendations)),
		FactorTableVersion: r.FactorTableVersion,
	}
	for _, item := range r.Items {
		doc.Items = append(doc.Items, fingerprintItem{
			Name:            item.Name,
			Quantity:        item.Quantity,
			Unit:            item.Unit,
			Category:        string(item.Category),
			CarbonRelevance: string(item.CarbonRelevance),
			Evidence:        item.Evidence,
			Confidence:      item.Confidence,
			NeedsReview:     item.NeedsReview,
			EmissionFactor:  item.Emission.EmissionFactor.String(),
			TotalCO2Kg:      item.Emission.TotalCO2Kg.String(),
			FactorStatus:    string(item.Emission.FactorStatus),
		})
	}
	for _, d := range r.RiskReport.TopDrivers {
		doc.TopDrivers = append(doc.TopDrivers, d.String())
	}
	for _, rec := range r.RiskReport.Recommendations {
		doc.Recommendations = append(doc.Recommendations, rec.Text)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
