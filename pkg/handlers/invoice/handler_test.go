package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/api"
	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/models/store"
	"github.com/de-tools/carbon-atlas/pkg/services/extraction"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/de-tools/carbon-atlas/pkg/services/invoice"
	"github.com/de-tools/carbon-atlas/pkg/services/report"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInvoiceService struct {
	mock.Mock
}

func (m *mockInvoiceService) Process(ctx context.Context, sourceReference, rawText string) (*domain.Report, error) {
	args := m.Called(ctx, sourceReference, rawText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}

func (m *mockInvoiceService) Get(ctx context.Context, sourceReference string) (*store.ReportRecord, error) {
	args := m.Called(ctx, sourceReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ReportRecord), args.Error(1)
}

func (m *mockInvoiceService) List(ctx context.Context, limit int) ([]domain.ReportSummary, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.ReportSummary), args.Error(1)
}

func newRouter(t *testing.T, svc invoice.Service) http.Handler {
	t.Helper()
	table, err := factors.Builtin()
	require.NoError(t, err)
	registry, err := factors.NewRegistry(table, true)
	require.NoError(t, err)

	return newRouterWithRegistry(svc, registry)
}

func newRouterWithRegistry(svc invoice.Service, registry factors.Registry) http.Handler {
	h := NewHandler(svc, registry)
	r := chi.NewRouter()
	r.Post("/invoices/analyze", h.AnalyzeInvoice)
	r.Post("/analyze-invoice", h.AnalyzeInvoiceDashboard)
	r.Get("/reports", h.ListReports)
	r.Get("/reports/*", h.GetReport)
	r.Get("/factors", h.ListFactors)
	r.Put("/factors", h.ReplaceFactors)
	return r
}

func sampleReport() *domain.Report {
	return &domain.Report{
		ID:              "report-1",
		SourceReference: "invoice.pdf",
		Items: []domain.PricedItem{{
			LineItem: domain.LineItem{
				Name: "Diesel Fuel", Quantity: 500, Unit: "L",
				Category: domain.CategoryFuel, CarbonRelevance: domain.RelevanceHigh,
				Evidence: "500 L Diesel", EvidenceSpan: domain.EvidenceSpan{Start: 0, End: 12, Located: true},
				Confidence: 0.98,
			},
			Emission: domain.EmissionResult{
				EmissionFactor: decimal.RequireFromString("2.6"),
				TotalCO2Kg:     decimal.NewFromInt(1300),
				FactorStatus:   domain.FactorResolved,
			},
		}},
		TotalCO2Kg: decimal.NewFromInt(1300),
		RiskReport: domain.RiskReport{
			Summary:         "Diesel Fuel is the largest emission driver at 100% of the reported footprint.",
			TopDrivers:      []domain.Driver{{Label: "Diesel Fuel", TotalCO2Kg: decimal.NewFromInt(1300), Percent: 100}},
			Recommendations: []domain.Recommendation{{RuleID: "fuel_substitution", Text: "Switch to solar hybrid generators."}},
		},
	}
}

func TestHandler_AnalyzeInvoice(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		// Given
		svc := new(mockInvoiceService)
		svc.On("Process", mock.Anything, "invoice.pdf", "500 L Diesel").Return(sampleReport(), nil)
		body := `{"filename":"invoice.pdf","ocrText":"500 L Diesel"}`

		// When
		rec := httptest.NewRecorder()
		newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/analyze", strings.NewReader(body)))

		// Then
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp api.AnalyzeInvoiceResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "report-1", resp.InvoiceID)
		assert.Equal(t, "1300", resp.TotalCO2Kg.String())
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "2.6", resp.Items[0].EmissionFactor.String())
		assert.Equal(t, "resolved", resp.Items[0].FactorStatus)
		assert.Equal(t, []string{"Diesel Fuel (100%)"}, resp.RiskReport.TopDrivers)
		assert.Equal(t, []string{"Switch to solar hybrid generators."}, resp.RiskReport.Recommendations)
		svc.AssertExpectations(t)
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"extraction unavailable", extraction.Unavailable("model", errors.New("timeout")), http.StatusServiceUnavailable},
		{"inconsistent report", &report.InconsistentReportError{SourceReference: "invoice.pdf", Reason: "total"}, http.StatusInternalServerError},
		{"storage failure", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockInvoiceService)
			svc.On("Process", mock.Anything, "invoice.pdf", "text").Return(nil, tt.err)

			rec := httptest.NewRecorder()
			newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/analyze",
				strings.NewReader(`{"filename":"invoice.pdf","ocrText":"text"}`)))

			assert.Equal(t, tt.status, rec.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}

	t.Run("bad requests", func(t *testing.T) {
		svc := new(mockInvoiceService)
		router := newRouter(t, svc)

		for _, body := range []string{`not json`, `{"ocrText":"500 L Diesel"}`} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/analyze", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_AnalyzeInvoiceDashboard(t *testing.T) {
	svc := new(mockInvoiceService)
	svc.On("Process", mock.Anything, "uploaded_invoice_demo.pdf", "500 L Diesel").Return(sampleReport(), nil)
	body := `{"filename":"uploaded_invoice_demo.pdf","ocrText":"500 L Diesel"}`

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-invoice", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "report-1", resp["invoiceId"])
	assert.Equal(t, 1300.0, resp["total"])
	data, ok := resp["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.Equal(t, 1300.0, first["co2"])
	assert.Equal(t, "report-1-1", first["id"])
	assert.Equal(t, "Diesel Fuel", first["name"])
	risk := resp["risk"].(map[string]any)
	assert.Equal(t, []any{"Diesel Fuel (100%)"}, risk["top_drivers"])

	bad := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(bad, httptest.NewRequest(http.MethodPost, "/analyze-invoice", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestHandler_ListReports(t *testing.T) {
	svc := new(mockInvoiceService)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.On("List", mock.Anything, 5).Return([]domain.ReportSummary{{
		ID: "report-1", SourceReference: "invoice.pdf", Status: domain.ReportStatusProcessed,
		TotalCO2Kg: decimal.NewFromInt(2349), ItemCount: 3, CreatedAt: created,
	}}, nil)

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []api.ReportSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "PROCESSED", resp[0].Status)
	assert.Equal(t, "2349", resp[0].TotalCO2Kg.String())

	bad := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/reports?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestHandler_GetReport(t *testing.T) {
	svc := new(mockInvoiceService)
	svc.On("Get", mock.Anything, "invoice.pdf").Return(&store.ReportRecord{
		SourceReference: "invoice.pdf",
		Status:          "PROCESSED",
		Payload:         []byte(`{"id":"report-1","source":"invoice.pdf","total_co2_kg":1300}`),
	}, nil)
	svc.On("Get", mock.Anything, "failed.pdf").Return(&store.ReportRecord{SourceReference: "failed.pdf", Status: "FAILED"}, nil)
	svc.On("Get", mock.Anything, "missing.pdf").Return(nil, invoice.ErrReportNotFound)
	router := newRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/invoice.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "report-1", resp.ID)
	assert.Equal(t, "1300", resp.TotalCO2Kg.String())

	failed := httptest.NewRecorder()
	router.ServeHTTP(failed, httptest.NewRequest(http.MethodGet, "/reports/failed.pdf", nil))
	assert.Equal(t, http.StatusConflict, failed.Code)

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/reports/missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHandler_GetReport_NestedSource(t *testing.T) {
	svc := new(mockInvoiceService)
	svc.On("Get", mock.Anything, "2024/03/invoice.pdf").Return(&store.ReportRecord{
		SourceReference: "2024/03/invoice.pdf",
		Status:          "PROCESSED",
		Payload:         []byte(`{"id":"report-1","source":"2024/03/invoice.pdf"}`),
	}, nil)
	router := newRouter(t, svc)

	for _, path := range []string{"/reports/2024/03/invoice.pdf", "/reports/2024%2F03%2Finvoice.pdf"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		var resp api.Report
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "2024/03/invoice.pdf", resp.Source)
	}
	svc.AssertExpectations(t)
}

func TestHandler_ListFactors(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t, new(mockInvoiceService)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/factors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.FactorTable
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "builtin-2024.1", resp.Version)

	var diesel *api.Factor
	defaults := 0
	for i := range resp.Factors {
		if resp.Factors[i].Name == "Diesel Fuel" {
			diesel = &resp.Factors[i]
		}
		if resp.Factors[i].CategoryDefault {
			defaults++
		}
	}
	require.NotNil(t, diesel)
	assert.Equal(t, "2.6", diesel.KgCO2ePerUnit.String())
	assert.Equal(t, 2, defaults)
}

func TestHandler_ReplaceFactors(t *testing.T) {
	table, err := factors.Builtin()
	require.NoError(t, err)
	registry, err := factors.NewRegistry(table, true)
	require.NoError(t, err)
	router := newRouterWithRegistry(new(mockInvoiceService), registry)

	t.Run("publishes a valid table", func(t *testing.T) {
		body := `{"version":"supplier-2025.1","factors":[{"name":"Diesel Fuel","category":"Fuel","unit":"L","kg_co2e_per_unit":2.7}]}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/factors", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp api.FactorTable
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "supplier-2025.1", resp.Version)
		assert.Equal(t, "supplier-2025.1", registry.Version())
		match, ok := registry.Lookup("diesel fuel", domain.CategoryFuel)
		require.True(t, ok)
		assert.Equal(t, "2.7", match.Factor.KgCO2ePerUnit.String())
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unparseable", "factors: [", http.StatusBadRequest},
		{"missing version", "factors: []", http.StatusBadRequest},
		{"unknown category", "version: v2\nfactors:\n  - {name: Diesel, category: Plasma, unit: L, kg_co2e_per_unit: 1}", http.StatusBadRequest},
		{"negative factor", "version: v2\nfactors:\n  - {name: Diesel, category: Fuel, unit: L, kg_co2e_per_unit: -1}", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/factors", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "supplier-2025.1", registry.Version())
		})
	}
}
