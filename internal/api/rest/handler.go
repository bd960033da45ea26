package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vitalsentry/vitalsentry-backend/internal/advisor"
	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	monitor service.MonitorService
	advisor *advisor.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(ms service.MonitorService, adv *advisor.Client) *Handler {
	return &Handler{
		monitor: ms,
		advisor: adv,
	}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	// Telemetry ingress
	router.HandleFunc("/ingest", h.Ingest).Methods("POST")

	// Alerts and trends
	router.HandleFunc("/alerts/history", h.GetAlertHistory).Methods("GET")
	router.HandleFunc("/trends", h.GetTrends).Methods("GET")
	router.HandleFunc("/trends/advice", h.TrendAdvice).Methods("POST")

	// Detector control plane
	router.HandleFunc("/detector", h.GetDetector).Methods("GET")
	router.HandleFunc("/detector", h.SetDetector).Methods("POST")

	// Baseline observability
	router.HandleFunc("/baselines", h.GetBaselines).Methods("GET")
	router.HandleFunc("/baselines/reset", h.ResetBaselines).Methods("POST")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")
}

// Ingest handles POST /ingest
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var sample models.VitalSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	anomalies, err := h.monitor.ProcessSample(r.Context(), &sample)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":    "accepted",
		"anomalies": anomalies,
	})
}

// GetAlertHistory handles GET /alerts/history?limit=N&user_id=U
func (h *Handler) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = n
	}
	userID := r.URL.Query().Get("user_id")

	alerts, err := h.monitor.AlertHistory(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

// GetTrends handles GET /trends
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	result, err := h.monitor.AnalyzeTrends(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// TrendAdvice handles POST /trends/advice
func (h *Handler) TrendAdvice(w http.ResponseWriter, r *http.Request) {
	var req advisor.AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	markdown, err := h.advisor.Analyze(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, models.ErrConfig):
			respondError(w, http.StatusServiceUnavailable, "Trend advisor is not configured")
		default:
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"markdown": markdown})
}

// GetDetector handles GET /detector
func (h *Handler) GetDetector(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.CurrentDetector())
}

// SetDetector handles POST /detector
func (h *Handler) SetDetector(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DetectorType string `json:"detector_type"`
		UserID       string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sel, err := h.monitor.SelectDetector(r.Context(), req.DetectorType, req.UserID)
	if err != nil {
		if errors.Is(err, models.ErrConfig) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sel)
}

// GetBaselines handles GET /baselines?user_id=U
func (h *Handler) GetBaselines(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.GetStatistics(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ResetBaselines handles POST /baselines/reset
func (h *Handler) ResetBaselines(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil {
		// Body is optional; an empty one resets the active subject.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.monitor.ResetBaselines(r.Context(), req.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
