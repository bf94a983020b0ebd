package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/ingest-sentinel/internal/config"
	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/usecase"
)

func testDataset() *domain.Dataset {
	return &domain.Dataset{
		ExecutionDate: "2025-09-08",
		Sources: map[string]*domain.SourceRecord{
			"220504": {
				SourceID:     "220504",
				ContractText: "# Acme Payments\n\nDaily shop exports.",
				DailyFiles: []domain.FileRecord{
					{Filename: "ab12__Shop_2025_09_08.csv", UploadedAt: "2025-09-08T08:10:00Z", Rows: 1200, Status: "processed"},
				},
				LastWeekFiles: []domain.FileRecord{
					{Filename: "cd34__Shop_2025_09_01.csv", UploadedAt: "2025-09-01T08:12:00Z", Rows: 1100, Status: "processed"},
				},
			},
		},
	}
}

func newTestHandler(t *testing.T, cfg config.Config, dataset *domain.Dataset) http.Handler {
	t.Helper()
	if dataset == nil {
		dataset = testDataset()
	}
	router := NewRouter(cfg, usecase.NewDatasetQueryUseCase(dataset), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	handler, err := router.Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func TestHealthzSetsRequestID(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req2.Header.Set("X-Request-Id", "req-42")
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Header().Get("X-Request-Id") != "req-42" {
		t.Fatalf("expected echoed request id, got %q", res2.Header().Get("X-Request-Id"))
	}
}

func TestListSourcesPayload(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var list domain.SourceList
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.ExecutionDate != "2025-09-08" {
		t.Fatalf("unexpected execution date: %s", list.ExecutionDate)
	}
	if len(list.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(list.Sources))
	}
	overview := list.Sources[0]
	if overview.SourceID != "220504" || overview.DisplayName != "Acme Payments" {
		t.Fatalf("unexpected overview: %+v", overview)
	}
	if overview.FilesToday != 1 || overview.FilesLastWeekday != 1 {
		t.Fatalf("unexpected file counts: %+v", overview)
	}
}

func TestGetSourceDetail(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources/220504", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var detail domain.SourceDetail
	if err := json.NewDecoder(res.Body).Decode(&detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.SourceID != "220504" {
		t.Fatalf("unexpected source id: %s", detail.SourceID)
	}
	if detail.ContractText == "" {
		t.Fatalf("expected contract text in detail")
	}
	if detail.AnalysisContext.TotalDailyRecords != 1200 {
		t.Fatalf("unexpected analysis context: %+v", detail.AnalysisContext)
	}
}

func TestGetSourceDetailUnknownReturnsMarker(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources/999999", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	var marker domain.SourceNotFound
	if err := json.NewDecoder(res.Body).Decode(&marker); err != nil {
		t.Fatalf("decode marker: %v", err)
	}
	if marker.SourceID != "999999" || marker.Error != domain.SourceNotFoundMarker {
		t.Fatalf("unexpected marker payload: %+v", marker)
	}
}

func TestExecutionDateInfoPayload(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/execution-date", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var info domain.ExecutionDateInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Weekday != "Monday" || info.WeekdayAbbr != "Mon" {
		t.Fatalf("unexpected weekday labels: %+v", info)
	}
}

func TestExecutionDateMapsInvalidInputTo400(t *testing.T) {
	dataset := testDataset()
	dataset.ExecutionDate = "09/08/2025"
	handler := newTestHandler(t, config.Config{}, dataset)

	req := httptest.NewRequest(http.MethodGet, "/v1/execution-date", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUndefinedRouteReturns404(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for undefined route, got %d", res.Code)
	}
}

func TestWrongMethodReturns405(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sources", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMalformedSourceIDReturns400(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources/ab%20cd", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed source id, got %d", res.Code)
	}
}
