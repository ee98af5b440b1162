package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/exp/slog"
)

const checkTimeout = 3 * time.Second

type HealthCheck func(ctx context.Context) error

// HealthAPI serves /health/live, which only tells the process is up, and
// /health/ready, which runs every registered check.
type HealthAPI struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

func NewHealthAPI(logger *slog.Logger) *HealthAPI {
	return &HealthAPI{
		checks: map[string]HealthCheck{},
		logger: logger.With(slog.String("component", "health")),
	}
}

func (h *HealthAPI) Add(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *HealthAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	head, tail := ShiftPath(r.URL.Path)
	switch {
	case r.Method == http.MethodGet && head == "live" && tail == "/":
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.Method == http.MethodGet && head == "ready" && tail == "/":
		h.Ready(w, r)
	default:
		Error(w, http.StatusNotFound, "Not found")
	}
}

func (h *HealthAPI) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, overall := http.StatusOK, "ok"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.String("error", err.Error()))
			results[name] = "unavailable"
			status, overall = http.StatusServiceUnavailable, "unavailable"
			continue
		}
		results[name] = "ok"
	}

	JSON(w, status, struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}{
		Status: overall,
		Checks: results,
	})
}
