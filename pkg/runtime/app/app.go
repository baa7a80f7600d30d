package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/carbon-atlas/pkg/services/calculator"
	"github.com/de-tools/carbon-atlas/pkg/services/config"
	"github.com/de-tools/carbon-atlas/pkg/services/extraction"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/de-tools/carbon-atlas/pkg/services/invoice"
	"github.com/de-tools/carbon-atlas/pkg/services/pipeline"
	"github.com/de-tools/carbon-atlas/pkg/services/report"
	"github.com/de-tools/carbon-atlas/pkg/services/risk"
	"github.com/de-tools/carbon-atlas/pkg/store/s3archive"
	"github.com/de-tools/carbon-atlas/pkg/store/sqlite"
	"github.com/de-tools/carbon-atlas/pkg/store/sqlite/reports"
	"github.com/rs/zerolog"
)

// App holds the wired services shared by the CLI and the web server.
type App struct {
	Settings config.Settings
	Invoices invoice.Service
	Factors  factors.Registry
	Pipeline *pipeline.Pipeline

	db *sql.DB
}

func Build(ctx context.Context, settings config.Settings) (*App, error) {
	logger := zerolog.Ctx(ctx)

	table, err := loadFactorTable(settings.Factors.Path)
	if err != nil {
		return nil, err
	}
	registry, err := factors.NewRegistry(table, settings.Factors.CategoryFallback)
	if err != nil {
		return nil, fmt.Errorf("failed to create factor registry: %w", err)
	}

	extractor, err := extraction.DefaultRegistry().Create(settings.Extractor.Strategy, extraction.Settings{
		Endpoint:   settings.Extractor.Endpoint,
		APIKey:     settings.Extractor.APIKey,
		Timeout:    settings.Extractor.Timeout,
		ReplayPath: settings.Extractor.ReplayPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	rules, err := loadRuleSet(settings.Risk.RulesPath)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(
		extractor,
		calculator.NewCalculator(registry),
		risk.NewSynthesizer(rules, risk.WithTopK(settings.Risk.TopK)),
		report.NewAssembler(),
		pipeline.Config{
			ExtractionTimeout: settings.Extractor.Timeout,
			ReviewThreshold:   settings.Extractor.ReviewThreshold,
		},
	)

	db, err := sqlite.NewDB(sqlite.Settings{DbPath: settings.Store.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite instance: %w", err)
	}
	reportStore, err := reports.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create report store: %w", err)
	}

	var archive invoice.Archive
	if settings.Archive.Bucket != "" {
		s3, err := s3archive.New(ctx, s3archive.Settings{
			Bucket: settings.Archive.Bucket,
			Prefix: settings.Archive.Prefix,
			Region: settings.Archive.Region,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create report archive: %w", err)
		}
		archive = s3
	}

	logger.Info().
		Str("factor_table_version", registry.Version()).
		Str("extractor", extractor.Name()).
		Strs("rules", rules.IDs()).
		Str("store", settings.Store.Path).
		Bool("archive", archive != nil).
		Msg("carbon atlas initialized")

	return &App{
		Settings: settings,
		Invoices: invoice.NewService(p, reportStore, archive),
		Factors:  registry,
		Pipeline: p,
		db:       db,
	}, nil
}

// ReloadFactors re-reads the configured factor table and publishes it. Analyses in
// flight finish with the table they started with.
func (a *App) ReloadFactors(ctx context.Context) (string, error) {
	table, err := loadFactorTable(a.Settings.Factors.Path)
	if err != nil {
		return "", err
	}
	if err := a.Factors.Replace(table); err != nil {
		return "", fmt.Errorf("failed to replace factor table: %w", err)
	}
	zerolog.Ctx(ctx).Info().
		Str("factor_table_version", table.Version).
		Str("path", a.Settings.Factors.Path).
		Msg("factor table reloaded")
	return table.Version, nil
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func loadFactorTable(path string) (factors.Table, error) {
	table, err := factors.LoadTable(path)
	if err != nil {
		return factors.Table{}, fmt.Errorf("failed to load factor table: %w", err)
	}
	return table, nil
}

func loadRuleSet(path string) (*risk.RuleSet, error) {
	rules, err := risk.LoadRuleSet(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk rules: %w", err)
	}
	return rules, nil
}
