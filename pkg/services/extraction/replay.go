package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const ReplayStrategy = "replay"

// ReplayExtractor returns a fixed candidate list, e.g. a previously recorded
// model response.
type ReplayExtractor struct {
	candidates []Candidate
}

func NewReplayExtractor(candidates []Candidate) *ReplayExtractor {
	return &ReplayExtractor{candidates: append([]Candidate(nil), candidates...)}
}

// LoadReplay reads either a bare JSON array of candidates or an {"items": [...]} envelope.
func LoadReplay(path string) (*ReplayExtractor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay fixture: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	var raw []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &raw)
	} else {
		var envelope modelResponse
		err = json.Unmarshal(trimmed, &envelope)
		raw = envelope.Items
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse replay fixture: %w", err)
	}

	return NewReplayExtractor(decodeCandidates(raw)), nil
}

func ReplayFactory(settings Settings) (Extractor, error) {
	if settings.ReplayPath == "" {
		return nil, fmt.Errorf("replay strategy requires a fixture path")
	}
	return LoadReplay(settings.ReplayPath)
}

func (r *ReplayExtractor) Name() string {
	return ReplayStrategy
}

func (r *ReplayExtractor) Extract(ctx context.Context, _ string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Candidate(nil), r.candidates...), nil
}
