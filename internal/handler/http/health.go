package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReporter отдает внутреннюю статистику компонента
type StatsReporter interface {
	GetStats() map[string]interface{}
}

// HealthHandler обработчик health checks
type HealthHandler struct {
	storage   Pinger
	processor StatsReporter
	log       *zap.Logger
	started   time.Time
}

// NewHealthHandler создает новый health handler. processor может быть nil.
func NewHealthHandler(storage Pinger, processor StatsReporter, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		storage:   storage,
		processor: processor,
		log:       log,
		started:   time.Now(),
	}
}

// HealthResponse структура ответа health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// ReadyResponse структура ответа readiness probe
type ReadyResponse struct {
	Status         string                 `json:"status"`
	Timestamp      time.Time              `json:"timestamp"`
	DatabaseStatus string                 `json:"databaseStatus"`
	Uptime         string                 `json:"uptime"`
	Analytics      map[string]interface{} `json:"analytics,omitempty"`
}

// Health liveness endpoint
//
//	@Summary	Liveness probe
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Service:   "URL Shortener API",
	}, http.StatusOK)
}

// Ready readiness probe: проверяет хранилище
//
//	@Summary	Readiness probe
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	ReadyResponse
//	@Failure	503	{object}	ReadyResponse
//	@Router		/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{
		Status:         "ready",
		Timestamp:      time.Now().UTC(),
		DatabaseStatus: "healthy",
		Uptime:         time.Since(h.started).Round(time.Second).String(),
	}
	statusCode := http.StatusOK

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Error("storage health check failed", zap.Error(err))
		resp.Status = "unavailable"
		resp.DatabaseStatus = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	if h.processor != nil {
		resp.Analytics = h.processor.GetStats()
	}

	writeJSON(w, h.log, resp, statusCode)
}
