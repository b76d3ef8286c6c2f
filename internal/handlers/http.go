package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"procsight/internal/anomaly"
	"procsight/internal/metrics"
	"procsight/internal/models"
	"procsight/internal/pipeline"
)

// Ограничения параметра limit
const (
	DefaultLimit = 30
	MaxLimit     = 200
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler обработчик HTTP запросов
type Handler struct {
	engine *pipeline.Engine
	pinger Pinger
}

// NewHandler создает новый обработчик. pinger может быть nil,
// если хранилище не поддерживает проверку
func NewHandler(engine *pipeline.Engine, pinger Pinger) *Handler {
	return &Handler{
		engine: engine,
		pinger: pinger,
	}
}

// Register регистрирует маршруты API
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/processes", h.ClassifyProcesses)
	mux.HandleFunc("/api/anomalies", h.DetectAnomalies)
	mux.HandleFunc("/api/labels", h.Labels)
	mux.HandleFunc("/api/labels/search", h.SearchLabels)
	mux.HandleFunc("/api/tags", h.Tags)
	mux.HandleFunc("/api/tags/stats", h.TagStats)
	mux.HandleFunc("/api/history", h.GetHistory)
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/stats", h.GetStats)
}

// observe фиксирует метрики запроса
func observe(r *http.Request, endpoint, status string, start time.Time) {
	metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
	metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
}

// writeJSON пишет JSON ответ
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseLimit читает limit из запроса с ограничением диапазона
func parseLimit(r *http.Request) int {
	limit := DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

// parsePID читает pid из строки запроса
func parsePID(r *http.Request) (int32, bool) {
	raw := r.URL.Query().Get("pid")
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int32(v), true
}

// ClassifyProcesses обрабатывает GET /api/processes
func (h *Handler) ClassifyProcesses(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		observe(r, "/api/processes", "405", start)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.engine.Run(r.Context(), parseLimit(r))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, anomaly.ErrModelUnavailable) {
			status = http.StatusBadGateway
		}
		observe(r, "/api/processes", strconv.Itoa(status), start)
		writeJSON(w, status, map[string]any{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	observe(r, "/api/processes", "200", start)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"timestamp":       report.Timestamp,
		"total_processes": len(report.Views),
		"statistics":      report.Statistics,
		"processes":       report.Views,
	})
}

// DetectAnomalies обрабатывает GET /api/anomalies
func (h *Handler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		observe(r, "/api/anomalies", "405", start)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	samples, anomalies, err := h.engine.Detect(r.Context(), parseLimit(r))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, anomaly.ErrModelUnavailable) {
			status = http.StatusBadGateway
		}
		observe(r, "/api/anomalies", strconv.Itoa(status), start)
		writeJSON(w, status, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	type entry struct {
		models.ProcessSample
		Anomaly models.AnomalyResult `json:"anomaly"`
	}
	entries := make([]entry, 0, len(samples))
	for i, sample := range samples {
		entries = append(entries, entry{ProcessSample: sample, Anomaly: anomalies[i]})
	}

	observe(r, "/api/anomalies", "200", start)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": time.Now(),
		"processes": entries,
	})
}

// Labels обрабатывает GET/POST/DELETE /api/labels
func (h *Handler) Labels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	labels := h.engine.Labels()

	switch r.Method {
	case http.MethodGet:
		pid, ok := parsePID(r)
		if !ok {
			observe(r, "/api/labels", "400", start)
			http.Error(w, "pid parameter is required", http.StatusBadRequest)
			return
		}

		observe(r, "/api/labels", "200", start)
		writeJSON(w, http.StatusOK, map[string]any{
			"pid":    pid,
			"labels": labels.GetLabels(pid),
		})

	case http.MethodPost:
		var req struct {
			PID  int32  `json:"pid"`
			Tag  string `json:"tag"`
			Note string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			observe(r, "/api/labels", "400", start)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.PID <= 0 || req.Tag == "" {
			observe(r, "/api/labels", "400", start)
			http.Error(w, "pid and tag are required", http.StatusBadRequest)
			return
		}

		if err := labels.AddLabel(r.Context(), req.PID, req.Tag, req.Note); err != nil {
			metrics.StoreOperations.WithLabelValues("add_label", "error").Inc()
			observe(r, "/api/labels", "500", start)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		metrics.StoreOperations.WithLabelValues("add_label", "success").Inc()
		observe(r, "/api/labels", "200", start)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"pid":     req.PID,
			"labels":  labels.GetLabels(req.PID),
		})

	case http.MethodDelete:
		pid, ok := parsePID(r)
		tag := r.URL.Query().Get("tag")
		if !ok || tag == "" {
			observe(r, "/api/labels", "400", start)
			http.Error(w, "pid and tag parameters are required", http.StatusBadRequest)
			return
		}

		removed, err := labels.RemoveLabel(r.Context(), pid, tag)
		if err != nil {
			metrics.StoreOperations.WithLabelValues("remove_label", "error").Inc()
			observe(r, "/api/labels", "500", start)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		metrics.StoreOperations.WithLabelValues("remove_label", "success").Inc()
		observe(r, "/api/labels", "200", start)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"removed": removed,
		})

	default:
		observe(r, "/api/labels", "405", start)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SearchLabels обрабатывает GET /api/labels/search
func (h *Handler) SearchLabels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tag := r.URL.Query().Get("tag")
	if tag == "" {
		observe(r, "/api/labels/search", "400", start)
		http.Error(w, "tag parameter is required", http.StatusBadRequest)
		return
	}

	pids := h.engine.Labels().SearchByTag(tag)
	observe(r, "/api/labels/search", "200", start)
	writeJSON(w, http.StatusOK, map[string]any{
		"tag":  tag,
		"pids": pids,
	})
}

// Tags обрабатывает GET/POST /api/tags
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	labels := h.engine.Labels()

	switch r.Method {
	case http.MethodGet:
		observe(r, "/api/tags", "200", start)
		writeJSON(w, http.StatusOK, labels.TagDefinitions())

	case http.MethodPost:
		var req struct {
			Tag         string `json:"tag"`
			Color       string `json:"color"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
			observe(r, "/api/tags", "400", start)
			http.Error(w, "tag is required", http.StatusBadRequest)
			return
		}

		def := models.TagDefinition{Color: req.Color, Description: req.Description}
		if err := labels.AddTagDefinition(r.Context(), req.Tag, def); err != nil {
			metrics.StoreOperations.WithLabelValues("add_tag_definition", "error").Inc()
			observe(r, "/api/tags", "500", start)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		metrics.StoreOperations.WithLabelValues("add_tag_definition", "success").Inc()
		observe(r, "/api/tags", "200", start)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		observe(r, "/api/tags", "405", start)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// TagStats обрабатывает GET /api/tags/stats
func (h *Handler) TagStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	observe(r, "/api/tags/stats", "200", start)
	writeJSON(w, http.StatusOK, h.engine.Labels().TagStatistics())
}

// GetHistory обрабатывает GET /api/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}

	observe(r, "/api/history", "200", start)
	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": h.engine.History().Recent(n),
	})
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if h.pinger != nil {
		storeOK = h.pinger.Ping(r.Context()) == nil
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !storeOK {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"store":     storeOK,
		"timestamp": time.Now(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	observe(r, "/stats", "200", start)
	writeJSON(w, http.StatusOK, map[string]any{
		"labeled_processes": h.engine.Labels().Count(),
		"tag_statistics":    h.engine.Labels().TagStatistics(),
		"history_cycles":    h.engine.History().Len(),
		"timestamp":         time.Now(),
	})
}
