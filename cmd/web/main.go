package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/carbon-atlas/pkg/runtime/app"
	"github.com/de-tools/carbon-atlas/pkg/server"
	"github.com/de-tools/carbon-atlas/pkg/services/config"
	"github.com/de-tools/carbon-atlas/pkg/telemetry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	version = "dev"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for Carbon Atlas",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a YAML settings file (environment variables override it)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	settings, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	shutdown, err := telemetry.Init(ctx, settings.Telemetry.ServiceName, version, settings.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	a, err := app.Build(ctx, *settings)
	if err != nil {
		return err
	}
	defer a.Close()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go reloadFactorsOnHangup(ctx, a, reload)

	webAPI := server.NewWebAPI(logger, server.Config{
		Addr:           net.JoinHostPort(settings.Server.Host, settings.Server.Port),
		APIKey:         settings.Server.APIKey,
		AllowedOrigins: settings.Server.AllowedOrigins,
		Dependencies: server.Dependencies{
			Invoices: a.Invoices,
			Factors:  a.Factors,
		},
	})

	return webAPI.Start()
}

// reloadFactorsOnHangup re-reads factors.path on every SIGHUP. A bad table is
// logged and the current one stays in place.
func reloadFactorsOnHangup(ctx context.Context, a *app.App, signals <-chan os.Signal) {
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if _, err := a.ReloadFactors(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to reload factor table")
			}
		}
	}
}
