package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/carbon-atlas/pkg/handlers/invoice"
	carbonmiddleware "github.com/de-tools/carbon-atlas/pkg/server/middleware"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/de-tools/carbon-atlas/pkg/services/invoice"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Invoices invoice.Service
	Factors  factors.Registry
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// APIKey, when set, is required in the x-api-key header of every API request.
	APIKey string
	// AllowedOrigins lists the browser origins allowed to call the API. Empty allows any.
	AllowedOrigins []string
	Dependencies   Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	invoiceHandler := handlers.NewHandler(config.Dependencies.Invoices, config.Dependencies.Factors)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(carbonmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", carbonmiddleware.APIKeyHeader},
	}).Handler)

	router.Route("/api", func(r chi.Router) {
		r.Use(carbonmiddleware.APIKey(config.APIKey))

		// envelope read by the browser dashboard
		r.Post("/analyze-invoice", invoiceHandler.AnalyzeInvoiceDashboard)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/invoices/analyze", invoiceHandler.AnalyzeInvoice)
			r.Get("/reports", invoiceHandler.ListReports)
			r.Get("/reports/*", invoiceHandler.GetReport)
			r.Get("/factors", invoiceHandler.ListFactors)
			r.Put("/factors", invoiceHandler.ReplaceFactors)
		})
	})

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

func (w *WebAPI) Handler() http.Handler {
	return w.router
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
