package commands

import (
	"context"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/runtime/app"
)

// Loader builds the application from the CLI's configuration.
type Loader func(ctx context.Context) (*app.App, error)

type Reporter interface {
	Handle(report *domain.Report) error
}
