package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/calculator"
	"github.com/de-tools/carbon-atlas/pkg/services/extraction"
	"github.com/de-tools/carbon-atlas/pkg/services/report"
	"github.com/de-tools/carbon-atlas/pkg/services/risk"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultExtractionTimeout = 30 * time.Second
	// DefaultReviewThreshold applies when Config.ReviewThreshold is zero or outside
	// [0,1]. Zero means unset, so review flagging cannot be switched off here.
	DefaultReviewThreshold = 0.5
)

// Analyzer turns raw invoice text into a carbon report.
type Analyzer interface {
	// Analyze fails only with *extraction.ExtractionUnavailableError or
	// *report.InconsistentReportError. Everything else is reported as data.
	Analyze(ctx context.Context, sourceReference, rawText string) (*domain.Report, error)
}

type Config struct {
	ExtractionTimeout time.Duration
	ReviewThreshold   float64
}

type Pipeline struct {
	extractor   extraction.Extractor
	calculator  calculator.Calculator
	synthesizer risk.Synthesizer
	assembler   report.Assembler
	config      Config
	tracer      trace.Tracer
}

func New(
	extractor extraction.Extractor,
	calc calculator.Calculator,
	synthesizer risk.Synthesizer,
	assembler report.Assembler,
	config Config,
) *Pipeline {
	if config.ExtractionTimeout <= 0 {
		config.ExtractionTimeout = DefaultExtractionTimeout
	}
	if config.ReviewThreshold <= 0 || config.ReviewThreshold > 1 {
		config.ReviewThreshold = DefaultReviewThreshold
	}
	return &Pipeline{
		extractor:   extractor,
		calculator:  calc,
		synthesizer: synthesizer,
		assembler:   assembler,
		config:      config,
		tracer:      otel.Tracer("carbon-atlas/pipeline"),
	}
}

func (p *Pipeline) Analyze(ctx context.Context, sourceReference, rawText string) (*domain.Report, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Analyze", trace.WithAttributes(
		attribute.String("source", sourceReference),
		attribute.String("extractor", p.extractor.Name()),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx).With().
		Str("source", sourceReference).
		Str("extractor", p.extractor.Name()).
		Logger()
	ctx = logger.WithContext(ctx)

	var candidates []extraction.Candidate
	if strings.TrimSpace(rawText) == "" {
		logger.Info().Msg("document has no text, skipping extraction")
	} else {
		var err error
		candidates, err = p.extract(ctx, rawText)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "extraction unavailable")
			logger.Error().Err(err).Msg("extraction failed")
			return nil, err
		}
	}

	items, rejections := extraction.Validate(rawText, candidates, p.config.ReviewThreshold)
	for _, r := range rejections {
		logger.Warn().Int("index", r.Index).Str("name", r.Name).Str("reason", r.Reason).Msg("candidate rejected")
	}

	_, calcSpan := p.tracer.Start(ctx, "Pipeline.Calculate")
	calculation := p.calculator.Calculate(items)
	calcSpan.SetAttributes(
		attribute.Int("items", len(calculation.Items)),
		attribute.Int("unresolved", calculation.UnresolvedCount),
		attribute.String("factor_table_version", calculation.FactorTableVersion),
	)
	calcSpan.End()

	riskCtx, riskSpan := p.tracer.Start(ctx, "Pipeline.Synthesize")
	riskReport := p.synthesizer.Synthesize(riskCtx, calculation.Items, calculation.TotalCO2Kg)
	riskSpan.SetAttributes(attribute.Int("drivers", len(riskReport.TopDrivers)))
	riskSpan.End()

	result, err := p.assembler.Assemble(ctx, report.AssembleInput{
		SourceReference:    sourceReference,
		Items:              calculation.Items,
		TotalCO2Kg:         calculation.TotalCO2Kg,
		RiskReport:         riskReport,
		Rejections:         rejections,
		FactorTableVersion: calculation.FactorTableVersion,
		Extractor:          p.extractor.Name(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inconsistent report")
		return nil, err
	}

	span.SetAttributes(attribute.String("total_co2_kg", result.TotalCO2Kg.String()))
	logger.Info().
		Int("items", len(result.Items)).
		Int("rejected", len(result.Rejections)).
		Int("unresolved", result.UnresolvedCount).
		Int("needs_review", result.ReviewCount).
		Str("total_co2_kg", result.TotalCO2Kg.String()).
		Msg("invoice analyzed")

	return result, nil
}

// extract runs the extractor under the configured timeout. Any failure, including
// the timeout, is reported as extraction unavailable.
func (p *Pipeline) extract(ctx context.Context, rawText string) ([]extraction.Candidate, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Extract")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.config.ExtractionTimeout)
	defer cancel()

	candidates, err := p.extractor.Extract(ctx, rawText)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		var unavailable *extraction.ExtractionUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, extraction.Unavailable(p.extractor.Name(), err)
	}

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}
