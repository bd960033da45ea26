package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitalsentry/vitalsentry-backend/internal/advisor"
	"github.com/vitalsentry/vitalsentry-backend/internal/detector"
	"github.com/vitalsentry/vitalsentry-backend/internal/ingest"
	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/logger"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/trendcache"
	"github.com/vitalsentry/vitalsentry-backend/internal/repository"
	"github.com/vitalsentry/vitalsentry-backend/internal/service"
	"github.com/vitalsentry/vitalsentry-backend/internal/trends"
	"github.com/vitalsentry/vitalsentry-backend/migrations"
)

func setupTestRouter(t *testing.T) (*mux.Router, repository.Repository) {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if err := repo.RunMigrations(migrations.Schema(migrations.SQLiteSchema)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	log := logger.StdLogger()
	sel := detector.NewSelector(
		detector.NewRangeDetector(log),
		detector.NewBaselineDetector(repo, detector.DefaultMinSamples, detector.DefaultZThreshold, log),
	)
	pipeline := ingest.NewPipeline(repo, sel, ingest.NewBroker(), log)
	svc := service.NewMonitorService(repo, pipeline, sel, trends.NewAggregator(repo, log), trendcache.New(time.Second), nil, log)

	adv := advisor.NewClient("", "", "", advisor.DefaultTemperature, log)
	h := NewHandler(svc, adv)
	router := mux.NewRouter()
	SetupRoutes(router.PathPrefix("/api/v1").Subrouter(), h)
	return router, repo
}

func ingestBody(hr float64, activity int, userID string) *bytes.Buffer {
	body, _ := json.Marshal(map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"activity":   activity,
		"heart_rate": hr,
		"user_id":    userID,
	})
	return bytes.NewBuffer(body)
}

func TestIngestEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/ingest", ingestBody(95, 30, "alice"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status    string           `json:"status"`
		Anomalies []models.Anomaly `json:"anomalies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if len(resp.Anomalies) != 1 {
		t.Fatalf("Expected 1 anomaly, got %d", len(resp.Anomalies))
	}
	if resp.Anomalies[0].Severity != models.SeverityHigh {
		t.Errorf("Severity = %s, want high", resp.Anomalies[0].Severity)
	}
}

func TestIngestRejectsInvalidSample(t *testing.T) {
	router, _ := setupTestRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"activity":   -1,
		"heart_rate": 70,
		"user_id":    "alice",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	req := httptest.NewRequest("POST", "/api/v1/ingest", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestAlertHistoryEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	// Seed one alert through the ingest path.
	req := httptest.NewRequest("POST", "/api/v1/ingest", ingestBody(95, 30, "alice"))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/api/v1/alerts/history?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	var alerts []models.Anomaly
	if err := json.Unmarshal(w.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("Expected 1 alert, got %d", len(alerts))
	}

	// user_id filter
	req = httptest.NewRequest("GET", "/api/v1/alerts/history?user_id=bob", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("Expected no alerts for bob, got %d", len(alerts))
	}

	// Bad limit
	req = httptest.NewRequest("GET", "/api/v1/alerts/history?limit=abc", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for non-numeric limit", w.Code)
	}
}

func TestDetectorEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/detector", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	var sel models.DetectorSelection
	if err := json.Unmarshal(w.Body.Bytes(), &sel); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if sel.Kind != models.DetectorRangeBased {
		t.Errorf("Default detector = %s, want range_based", sel.Kind)
	}

	body := bytes.NewBufferString(`{"detector_type":"user_baseline","user_id":"alice"}`)
	req = httptest.NewRequest("POST", "/api/v1/detector", body)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sel); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if sel.Kind != models.DetectorUserBaseline || sel.UserID != "alice" {
		t.Errorf("Selection = %+v, want user_baseline/alice", sel)
	}

	// Unknown kind is rejected and the prior selection survives.
	body = bytes.NewBufferString(`{"detector_type":"neural_net"}`)
	req = httptest.NewRequest("POST", "/api/v1/detector", body)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for unknown kind", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/detector", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &sel)
	if sel.Kind != models.DetectorUserBaseline || sel.UserID != "alice" {
		t.Errorf("Selection after rejected switch = %+v", sel)
	}
}

func TestTrendsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/ingest", ingestBody(72, 30, "alice"))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/api/v1/trends", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	var result models.TrendMap
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if len(result) != 5 {
		t.Errorf("Expected 5 windows, got %d", len(result))
	}
	if got := result["1min"][models.ParamHeartRate]; len(got.Values) != 1 {
		t.Errorf("1min heart_rate series = %+v, want one bucket", got)
	}
}

func TestTrendAdviceUnconfigured(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := bytes.NewBufferString(`{"parameter":"heart_rate","time_scale":"1h","unit":"bpm","timestamps":["09:00:00"],"values":[72]}`)
	req := httptest.NewRequest("POST", "/api/v1/trends/advice", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503 when advisor is unconfigured", w.Code)
	}
}

func TestTrendAdviceValidation(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := bytes.NewBufferString(`{"parameter":"heart_rate"}`)
	req := httptest.NewRequest("POST", "/api/v1/trends/advice", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for incomplete request", w.Code)
	}
}

func TestBaselineEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	// Learn one baseline through ingest with the adaptive detector.
	body := bytes.NewBufferString(`{"detector_type":"user_baseline","user_id":"alice"}`)
	req := httptest.NewRequest("POST", "/api/v1/detector", body)
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("POST", "/api/v1/ingest", ingestBody(72, 30, "alice"))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/api/v1/baselines?user_id=alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	var stats models.BaselineStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if stats.ActivityLevels["low"] == nil || stats.ActivityLevels["low"].TotalSamples != 1 {
		t.Errorf("Stats = %+v, want one low-tier sample", stats.ActivityLevels)
	}

	req = httptest.NewRequest("POST", "/api/v1/baselines/reset", bytes.NewBufferString(`{"user_id":"alice"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/baselines?user_id=alice", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	stats = models.BaselineStats{}
	json.Unmarshal(w.Body.Bytes(), &stats)
	if len(stats.ActivityLevels) != 0 {
		t.Errorf("Expected empty stats after reset, got %+v", stats.ActivityLevels)
	}
}

func TestHealthzEndpoints(t *testing.T) {
	_, repo := setupTestRouter(t)
	h := NewHealthzHandler(repo)

	w := httptest.NewRecorder()
	h.Live(w, httptest.NewRequest("GET", "/healthz/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Live status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest("GET", "/healthz/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Ready status = %d, want 200", w.Code)
	}
}
