package handler

import (
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/conceptube/metrics"
	"golang.org/x/exp/slog"
)

type Server struct {
	apis    map[string]http.Handler
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewServer routes /api/videos to videoAPI, /health to healthAPI and
// /metrics to metricsHandler.
func NewServer(videoAPI, healthAPI, metricsHandler http.Handler, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		apis: map[string]http.Handler{
			"videos":  videoAPI,
			"health":  healthAPI,
			"metrics": metricsHandler,
		},
		metrics: m,
		logger:  logger.With(slog.String("component", "http")),
		now:     time.Now,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	originalPath := r.URL.Path
	rec := httptest.NewRecorder() // records the response to be able to mix writing headers and content

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if s.metrics != nil {
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()
	}

	s.route(rec, r)
	returnResponse(w, rec)

	s.observe(r.Method, originalPath, rec.Code, time.Since(start))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	head, tail := ShiftPath(r.URL.Path)
	switch head {
	case "":
		Index(w)
		return
	case "test":
		if tail != "/" || r.Method != http.MethodGet {
			Error(w, http.StatusNotFound, "Not found")
			return
		}
		Test(w, s.now())
		return
	case "api":
		head, tail = ShiftPath(tail)
		if head != "videos" {
			Error(w, http.StatusNotFound, "Not found")
			return
		}
	case "videos":
		// only reachable under /api
		Error(w, http.StatusNotFound, "Not found")
		return
	}

	api, ok := s.apis[head]
	if !ok {
		Error(w, http.StatusNotFound, "Not found")
		return
	}
	r.URL.Path = tail
	api.ServeHTTP(w, r)
}

func (s *Server) observe(method, p string, status int, d time.Duration) {
	fields := []any{
		slog.String("method", method),
		slog.String("path", p),
		slog.Int("status", status),
		slog.Int64("duration_ms", d.Milliseconds()),
	}
	switch {
	case status >= 500:
		s.logger.Error("request served", fields...)
	case status >= 400:
		s.logger.Warn("request served", fields...)
	default:
		s.logger.Info("request served", fields...)
	}

	if s.metrics != nil {
		route := routeLabel(p)
		s.metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

func returnResponse(w http.ResponseWriter, rec *httptest.ResponseRecorder) {
	for k, v := range rec.Header() {
		w.Header()[k] = v
	}
	w.WriteHeader(rec.Code)
	w.Write(rec.Body.Bytes())
}

// routeLabel collapses video ids so metrics do not get a label per video.
func routeLabel(p string) string {
	p = path.Clean("/" + p)
	const prefix = "/api/videos/"
	if !strings.HasPrefix(p, prefix) {
		return p
	}
	parts := strings.Split(strings.TrimPrefix(p, prefix), "/")
	if parts[0] != "search" {
		parts[0] = ":id"
	}

	return prefix + strings.Join(parts, "/")
}

// ShiftPath splits off the first component of p, which will be cleaned of
// relative components before processing. head will never contain a slash and
// tail will always be a rooted path without trailing slash.
// See https://blog.merovius.de/posts/2017-06-18-how-not-to-use-an-http-router/
func ShiftPath(p string) (string, string) {
	p = path.Clean("/" + p)

	i := strings.Index(p[1:], "/") + 1
	if i <= 0 {
		return p[1:], "/"
	}
	return p[1:i], p[i:]
}
