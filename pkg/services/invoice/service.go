package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/adapters"
	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/models/store"
	"github.com/de-tools/carbon-atlas/pkg/services/pipeline"
	"github.com/de-tools/carbon-atlas/pkg/store/sqlite/reports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrReportNotFound = errors.New("report not found")

// Archive receives a copy of every processed report.
type Archive interface {
	Put(ctx context.Context, sourceReference, fingerprint string, payload []byte) (string, error)
}

type Service interface {
	// Process analyzes the document and persists the outcome under its source reference.
	Process(ctx context.Context, sourceReference, rawText string) (*domain.Report, error)
	Get(ctx context.Context, sourceReference string) (*store.ReportRecord, error)
	List(ctx context.Context, limit int) ([]domain.ReportSummary, error)
}

type service struct {
	analyzer pipeline.Analyzer
	store    reports.Store
	archive  Archive
	clock    func() time.Time
}

// NewService wires the pipeline to persistence. archive may be nil.
func NewService(analyzer pipeline.Analyzer, store reports.Store, archive Archive) Service {
	return &service{
		analyzer: analyzer,
		store:    store,
		archive:  archive,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Process(ctx context.Context, sourceReference, rawText string) (*domain.Report, error) {
	logger := zerolog.Ctx(ctx)

	report, err := s.analyzer.Analyze(ctx, sourceReference, rawText)
	if err != nil {
		s.saveFailure(ctx, sourceReference, rawText, err)
		return nil, err
	}

	record, err := adapters.MapReportDomainToStore(report, rawText)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	if s.archive != nil {
		key, err := s.archive.Put(ctx, report.SourceReference, report.Fingerprint, record.Payload)
		if err != nil {
			// the stored copy is authoritative
			logger.Warn().Err(err).Str("source", sourceReference).Msg("failed to archive report")
		} else {
			logger.Debug().Str("key", key).Msg("report archived")
		}
	}

	return report, nil
}

// saveFailure records a failed attempt. A processed report under the same source
// reference is kept, since extraction failures are usually transient.
func (s *service) saveFailure(ctx context.Context, sourceReference, rawText string, cause error) {
	logger := zerolog.Ctx(ctx)
	now := s.clock()
	msg := cause.Error()
	written, err := s.store.RecordFailure(ctx, store.ReportRecord{
		ID:              uuid.NewString(),
		SourceReference: sourceReference,
		Status:          string(domain.ReportStatusFailed),
		RawText:         rawText,
		TotalCO2Kg:      "0",
		Error:           &msg,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		logger.Error().Err(err).Str("source", sourceReference).Msg("failed to record failed report")
		return
	}
	if !written {
		logger.Warn().Err(cause).Str("source", sourceReference).Msg("analysis failed, keeping the processed report")
	}
}

func (s *service) Get(ctx context.Context, sourceReference string) (*store.ReportRecord, error) {
	record, err := s.store.Get(ctx, sourceReference)
	if errors.Is(err, reports.ErrNotFound) {
		return nil, ErrReportNotFound
	}
	return record, err
}

func (s *service) List(ctx context.Context, limit int) ([]domain.ReportSummary, error) {
	records, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ReportSummary, 0, len(records))
	for _, rec := range records {
		summary, err := adapters.MapStoreReportToDomainSummary(rec)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
