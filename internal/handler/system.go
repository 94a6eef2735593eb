package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger wraps a redis ping so the handler does not depend on the client type.
type RedisPinger func(ctx context.Context) error

type SystemHandler struct {
	db        Pinger
	redis     RedisPinger
	source    string
	logger    Logger
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler. db is nil when the dashboard reads
// from the upstream API instead of postgres.
func NewSystemHandler(db Pinger, redis RedisPinger, source string, log Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		redis:     redis,
		source:    source,
		logger:    log,
		startTime: time.Now(),
	}
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
}

// Health reports liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"source":         h.source,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready pings the backing stores and answers 503 when any is down.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var deps []dependencyStatus
	ready := true

	if h.db != nil {
		dep := h.check(ctx, "database", 200*time.Millisecond, h.db.PingContext)
		ready = ready && dep.Status != "outage"
		deps = append(deps, dep)
	}
	if h.redis != nil {
		dep := h.check(ctx, "redis", 50*time.Millisecond, h.redis)
		ready = ready && dep.Status != "outage"
		deps = append(deps, dep)
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]interface{}{
		"ready":        ready,
		"dependencies": deps,
	})
}

func (h *SystemHandler) check(ctx context.Context, name string, slow time.Duration, ping func(context.Context) error) dependencyStatus {
	start := time.Now()
	err := ping(ctx)
	latency := time.Since(start)

	dep := dependencyStatus{Name: name, Status: "operational", LatencyMs: latency.Milliseconds()}
	if err != nil {
		dep.Status = "outage"
		h.logger.Error("Dependency ping failed", map[string]interface{}{
			"dependency": name,
			"error":      err.Error(),
		})
	} else if latency > slow {
		dep.Status = "degraded"
	}
	return dep
}
