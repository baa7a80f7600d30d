package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/kaptinlin/jsonschema"
)

const (
	ModelStrategy = "model"

	defaultModelTimeout = 30 * time.Second
	maxResponseBytes    = 4 << 20
)

// responseSchema constrains only the envelope. Individual items are checked by
// Validate so that one bad item cannot fail the whole response.
const responseSchema = `{
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {
			"type": "array",
			"items": {"type": "object"}
		}
	}
}`

type modelRequest struct {
	Text          string   `json:"text"`
	Categories    []string `json:"categories"`
	Relevance     []string `json:"carbon_relevance"`
	ResponseShape string   `json:"response_shape"`
}

type modelResponse struct {
	Items []json.RawMessage `json:"items"`
}

// ModelExtractor delegates extraction to an external model service over HTTP.
type ModelExtractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
	schema   *jsonschema.Schema
}

func NewModelExtractor(endpoint, apiKey string, timeout time.Duration, client *http.Client) (*ModelExtractor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("model endpoint is required")
	}
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(responseSchema))
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}

	return &ModelExtractor{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		schema:   schema,
	}, nil
}

func ModelFactory(settings Settings) (Extractor, error) {
	return NewModelExtractor(settings.Endpoint, settings.APIKey, settings.Timeout, nil)
}

func (m *ModelExtractor) Name() string {
	return ModelStrategy
}

func (m *ModelExtractor) Extract(ctx context.Context, rawText string) ([]Candidate, error) {
	categories := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		categories = append(categories, string(c))
	}

	body, err := json.Marshal(modelRequest{
		Text:          rawText,
		Categories:    categories,
		Relevance:     []string{string(domain.RelevanceHigh), string(domain.RelevanceMedium), string(domain.RelevanceLow)},
		ResponseShape: "items[]{name,quantity,unit,category,carbon_relevance,evidence,confidence}",
	})
	if err != nil {
		return nil, fmt.Errorf("encode model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, Unavailable(ModelStrategy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Unavailable(ModelStrategy, fmt.Errorf("model service returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, Unavailable(ModelStrategy, fmt.Errorf("read model response: %w", err))
	}

	if result := m.schema.ValidateJSON(data); !result.IsValid() {
		return nil, Unavailable(ModelStrategy, fmt.Errorf("model response failed schema validation: %v", result.Errors))
	}

	var envelope modelResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, Unavailable(ModelStrategy, fmt.Errorf("decode model response: %w", err))
	}

	return decodeCandidates(envelope.Items), nil
}

// decodeCandidates keeps undecodable items as marked candidates so validation can
// reject them individually.
func decodeCandidates(raw []json.RawMessage) []Candidate {
	candidates := make([]Candidate, 0, len(raw))
	for _, item := range raw {
		var c Candidate
		if err := json.Unmarshal(item, &c); err != nil {
			c = Candidate{DecodeError: err.Error()}
		}
		candidates = append(candidates, c)
	}
	return candidates
}
