package main

import (
	"context"
	"fmt"
	"os"

	"github.com/de-tools/carbon-atlas/pkg/runtime/terminal"
	"github.com/de-tools/carbon-atlas/pkg/telemetry"
	"github.com/rs/zerolog"
)

var version = "dev"

func main() {
	level := zerolog.WarnLevel
	if os.Getenv("CARBON_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	shutdown, err := telemetry.Init(ctx, "carbon-atlas-cli", version, "")
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	cli := terminal.NewCLI(terminal.Options{
		Output: os.Stdout,
	})

	if err := cli.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
