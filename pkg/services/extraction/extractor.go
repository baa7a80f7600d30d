package extraction

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is an unvalidated line item as reported by an extraction strategy.
type Candidate struct {
	Name            string  `json:"name"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	Category        string  `json:"category"`
	CarbonRelevance string  `json:"carbon_relevance"`
	Evidence        string  `json:"evidence"`
	Confidence      float64 `json:"confidence"`

	// DecodeError is set when the strategy could not decode this item
	DecodeError string `json:"-"`
}

// Extractor turns raw invoice text into candidate line items.
type Extractor interface {
	// Name identifies the strategy, e.g. "rules", "model", "replay"
	Name() string
	Extract(ctx context.Context, rawText string) ([]Candidate, error)
}

var ErrExtractionUnavailable = errors.New("extraction unavailable")

// ExtractionUnavailableError means the backing capability could not be reached or
// timed out. It is fatal for the request.
type ExtractionUnavailableError struct {
	Strategy string
	Cause    error
}

func (e *ExtractionUnavailableError) Error() string {
	return fmt.Sprintf("extraction unavailable (%s): %v", e.Strategy, e.Cause)
}

func (e *ExtractionUnavailableError) Unwrap() []error {
	return []error{ErrExtractionUnavailable, e.Cause}
}

// Unavailable wraps cause as an ExtractionUnavailableError for the given strategy.
func Unavailable(strategy string, cause error) error {
	return &ExtractionUnavailableError{Strategy: strategy, Cause: cause}
}
