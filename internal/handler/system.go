package handler

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type SystemHandler struct {
	db          *sqlx.DB
	redisClient *redis.Client
	logger      Logger
	startTime   time.Time
}

// NewSystemHandler builds the health surface. redisClient may be nil when
// the deployment allocates sequences in postgres.
func NewSystemHandler(db *sqlx.DB, redisClient *redis.Client, log Logger) *SystemHandler {
	return &SystemHandler{
		db:          db,
		redisClient: redisClient,
		logger:      log,
		startTime:   time.Now(),
	}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
}

// Readiness pings the backing stores. A slow database is degraded, an
// unreachable one is an outage and fails readiness.
func (h *SystemHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	deps := []dependencyStatus{}
	healthy := true

	dbStart := time.Now()
	err := h.db.PingContext(r.Context())
	dbLatency := time.Since(dbStart).Milliseconds()
	dbStatus := "operational"
	if err != nil {
		dbStatus = "outage"
		healthy = false
		h.logger.Error("Database ping failed", map[string]interface{}{"error": err.Error()})
	} else if dbLatency > 200 {
		dbStatus = "degraded"
	}
	deps = append(deps, dependencyStatus{Name: "postgres", Status: dbStatus, LatencyMs: dbLatency})

	if h.redisClient != nil {
		redisStart := time.Now()
		err := h.redisClient.Ping(r.Context()).Err()
		redisLatency := time.Since(redisStart).Milliseconds()
		redisStatus := "operational"
		if err != nil {
			redisStatus = "outage"
			healthy = false
			h.logger.Error("Redis ping failed", map[string]interface{}{"error": err.Error()})
		} else if redisLatency > 50 {
			redisStatus = "degraded"
		}
		deps = append(deps, dependencyStatus{Name: "redis", Status: redisStatus, LatencyMs: redisLatency})
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]interface{}{
		"healthy":      healthy,
		"dependencies": deps,
	})
}
