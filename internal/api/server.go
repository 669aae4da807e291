// Package api exposes the scan engine as a REST job service: scans are
// started asynchronously, polled for progress, streamed as server-sent
// events, and downloaded as rendered reports.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/securescan/internal/api/middleware"
	"github.com/khanhnv2901/securescan/internal/report"
	"github.com/khanhnv2901/securescan/internal/scanner"
	"github.com/khanhnv2901/securescan/internal/validate"
)

// ScanRequest is the wire form of a scan submission.
type ScanRequest struct {
	Target string   `json:"target"`
	Depth  string   `json:"depth"`
	Stages []string `json:"stages"`
}

// Config wires the server's collaborators and policy knobs.
type Config struct {
	Jobs        *JobManager
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string     // empty = allow all
	RateLimit   int          // requests per second per IP (0 = disabled)
	RateBurst   int          // burst size for the per-IP limiter
	Metrics     http.Handler // optional /metrics handler
}

// Server is the HTTP front of the scan service.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

// NewServer builds the route table. The returned server is an http.Handler.
func NewServer(cfg Config) *Server {
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Middleware chain: RequestID -> Logging -> RateLimit -> CORS -> Handler
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Handle("/api/v1/health", http.HandlerFunc(s.handleHealth))
	s.mux.Handle("/api/v1/ready", http.HandlerFunc(s.handleReady))
	s.mux.Handle("/api/v1/scans", s.withAuth(http.HandlerFunc(s.handleScans)))
	s.mux.Handle("/api/v1/scans/", s.withAuth(http.HandlerFunc(s.handleScanByID)))
	s.mux.Handle("/api/v1/scans-stream", s.withAuth(http.HandlerFunc(s.handleScanStream)))
	if s.cfg.Metrics != nil {
		s.mux.Handle("/metrics", s.cfg.Metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("job manager not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 25
		if q := r.URL.Query().Get("limit"); q != "" {
			if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		writeJSON(w, http.StatusOK, s.cfg.Jobs.ListJobs(limit))
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 1048576) // 1MB limit
		var req ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		scanReq, err := buildScanRequest(req)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		job, err := s.cfg.Jobs.StartScan(scanReq)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	default:
		s.methodNotAllowed(w, r)
	}
}

// buildScanRequest validates the wire request into an engine request. The
// engine itself never validates input syntax.
func buildScanRequest(req ScanRequest) (scanner.Request, error) {
	target, err := validate.Target(req.Target)
	if err != nil {
		return scanner.Request{}, err
	}
	depth, err := scanner.ParseDepth(req.Depth)
	if err != nil {
		return scanner.Request{}, err
	}
	stages, err := validate.Stages(req.Stages)
	if err != nil {
		return scanner.Request{}, err
	}
	return scanner.Request{Target: target, Depth: depth, Stages: stages}, nil
}

func (s *Server) handleScanByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")
	if rest == "" {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan ID required"))
		return
	}

	// /api/v1/scans/{id}/report.{format}
	if id, suffix, ok := strings.Cut(rest, "/"); ok {
		s.handleReport(w, r, id, suffix)
		return
	}

	switch r.Method {
	case http.MethodGet:
		job := s.cfg.Jobs.GetJob(rest)
		if job == nil {
			s.writeError(w, r, http.StatusNotFound, errors.New("scan not found"))
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if !s.cfg.Jobs.Cancel(rest) {
			s.writeError(w, r, http.StatusNotFound, errors.New("no cancelable scan with that ID"))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id, suffix string) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	format, ok := strings.CutPrefix(suffix, "report.")
	if !ok {
		s.writeError(w, r, http.StatusNotFound, errors.New("unknown scan resource"))
		return
	}

	job := s.cfg.Jobs.GetJob(id)
	if job == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan not found"))
		return
	}
	if job.Status != StatusCompleted || job.Result == nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("scan not completed"))
		return
	}

	switch strings.ToLower(format) {
	case "json":
		data, err := report.RenderJSON(job.Result)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=scan_report_"+id+".json")
		_, _ = w.Write(data)
	case "pdf":
		data, err := report.RenderPDF(job.Result)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=scan_report_"+id+".pdf")
		_, _ = w.Write(data)
	default:
		s.writeError(w, r, http.StatusBadRequest, errors.New("invalid format, use 'json' or 'pdf'"))
	}
}

func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				s.logger().Error("failed to marshal job", zap.Error(err))
				continue
			}
			if _, err := w.Write([]byte("event: scan\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}
		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddr(r)
		limiter := s.limiters.get(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr extracts the caller's IP, honoring the first entry of an
// X-Forwarded-For chain for proxied requests.
func clientAddr(r *http.Request) string {
	ip := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = forwarded
		if i := strings.Index(forwarded, ","); i > 0 {
			ip = forwarded[:i]
		}
		return strings.TrimSpace(ip)
	}
	if i := strings.LastIndex(ip, ":"); i > 0 {
		ip = ip[:i]
	}
	return ip
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		s.logger().Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

// loggingResponseWriter captures the status code and byte count for the
// request log.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		// Log the detail server-side, return a generic message.
		s.requestLogger(r).Error("internal_server_error", zap.Error(err), zap.Int("status", status))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) logger() *zap.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return zap.NewNop()
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.logger().With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

// rateLimiterMap keeps one limiter per client IP, evicting idle entries.
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{limiters: make(map[string]*ipLimiter)}
	go m.cleanupLoop()
	return m
}

func (m *rateLimiterMap) get(ip string, rps, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = rps
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (m *rateLimiterMap) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		for ip, entry := range m.limiters {
			if time.Since(entry.lastSeen) > 5*time.Minute {
				delete(m.limiters, ip)
			}
		}
		m.mu.Unlock()
	}
}
