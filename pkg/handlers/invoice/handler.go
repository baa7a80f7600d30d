package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/de-tools/carbon-atlas/pkg/adapters"
	"github.com/de-tools/carbon-atlas/pkg/models/api"
	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/extraction"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/de-tools/carbon-atlas/pkg/services/invoice"
	"github.com/de-tools/carbon-atlas/pkg/services/report"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxRequestBytes = 5 << 20

type Handler struct {
	invoices invoice.Service
	factors  factors.Registry
}

func NewHandler(invoices invoice.Service, registry factors.Registry) *Handler {
	return &Handler{
		invoices: invoices,
		factors:  registry,
	}
}

func (h *Handler) AnalyzeInvoice(w http.ResponseWriter, r *http.Request) {
	if result, ok := h.analyze(w, r); ok {
		writeJSON(w, r, http.StatusOK, adapters.MapReportDomainToAnalyzeResponse(result))
	}
}

// AnalyzeInvoiceDashboard serves the browser dashboard's envelope.
func (h *Handler) AnalyzeInvoiceDashboard(w http.ResponseWriter, r *http.Request) {
	if result, ok := h.analyze(w, r); ok {
		writeJSON(w, r, http.StatusOK, adapters.MapReportDomainToDashboardResponse(result))
	}
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) (*domain.Report, bool) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.AnalyzeInvoiceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.Filename == "" {
		writeError(w, r, http.StatusBadRequest, "filename is required")
		return nil, false
	}

	result, err := h.invoices.Process(ctx, req.Filename, req.OCRText)
	if err != nil {
		var unavailable *extraction.ExtractionUnavailableError
		var inconsistent *report.InconsistentReportError
		switch {
		case errors.As(err, &unavailable):
			logger.Warn().Err(err).Str("filename", req.Filename).Msg("extraction unavailable")
			writeError(w, r, http.StatusServiceUnavailable, "extraction service unavailable")
		case errors.As(err, &inconsistent):
			writeError(w, r, http.StatusInternalServerError, "report failed consistency checks")
		default:
			logger.Error().Err(err).Str("filename", req.Filename).Msg("failed to process invoice")
			writeError(w, r, http.StatusInternalServerError, "failed to process invoice")
		}
		return nil, false
	}
	return result, true
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := h.invoices.List(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list reports")
		writeError(w, r, http.StatusInternalServerError, "failed to list reports")
		return
	}

	response := make([]api.ReportSummary, 0, len(summaries))
	for _, s := range summaries {
		response = append(response, adapters.MapReportSummaryDomainToApi(s))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	source := sourceParam(r)

	record, err := h.invoices.Get(ctx, source)
	if errors.Is(err, invoice.ErrReportNotFound) {
		writeError(w, r, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("source", source).Msg("failed to get report")
		writeError(w, r, http.StatusInternalServerError, "failed to get report")
		return
	}

	response, err := adapters.MapStoreReportToApi(*record)
	if err != nil {
		// failed analyses are stored without a report body
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListFactors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, adapters.MapFactorSnapshotToApi(h.factors.Snapshot()))
}

// ReplaceFactors swaps in a new factor table, given as YAML or JSON in the
// layout of the factor table file. Analyses in flight keep the table they started with.
func (h *Handler) ReplaceFactors(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	table, err := factors.ParseYAML(data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if table.Version == "" {
		writeError(w, r, http.StatusBadRequest, "factor table version is required")
		return
	}
	if err := h.factors.Replace(table); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	logger.Info().
		Str("factor_table_version", table.Version).
		Int("factors", len(table.Factors)).
		Msg("factor table replaced")
	writeJSON(w, r, http.StatusOK, adapters.MapFactorSnapshotToApi(h.factors.Snapshot()))
}

// sourceParam returns the wildcard tail of the route, so source references may
// contain slashes.
func sourceParam(r *http.Request) string {
	source := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return source
	}
	if unescaped, err := url.PathUnescape(source); err == nil {
		return unescaped
	}
	return source
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, api.ErrorResponse{Success: false, Error: msg})
}
