package store

import "time"

// ReportRecord is one analyzed document. Payload holds the full report as JSON;
// the remaining columns exist for listing and lookups.
type ReportRecord struct {
	ID                 string
	SourceReference    string
	Status             string
	RawText            string
	TotalCO2Kg         string
	ItemCount          int
	FactorTableVersion string
	Extractor          string
	Fingerprint        string
	Error              *string
	Payload            []byte
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
