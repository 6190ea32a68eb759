// Package http exposes the budgeting engine as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budgeteer/internal/cache"
	"budgeteer/internal/core"
	"budgeteer/internal/services"
)

// ReportExporter appends a summary report to an external destination.
type ReportExporter interface {
	Export(ctx context.Context, userID string, space core.Space, from, to time.Time, sum services.Summary) (string, error)
}

// Services groups the application services the server dispatches to.
// Reports is optional; the export endpoint answers 503 when it is nil.
type Services struct {
	Budgets    *services.BudgetService
	Ledger     *services.Ledger
	Reconciler *services.Reconciler
	BankLinks  *services.BankLinks
	Analytics  *services.Analytics
	Reports    ReportExporter
}

type Server struct {
	http.Server
	svc         Services
	summaries   cache.Cache
	rateLimiter *rateLimiter

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// summaries may be nil; summary responses are then computed on every request.
func NewServer(addr string, svc Services, summaries cache.Cache) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:              svc,
		summaries:        summaries,
		rateLimiter:      newRateLimiter(),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /budgets", s.withRequest(s.handleCreateBudget))
	mux.HandleFunc("GET /budgets", s.withRequest(s.handleListBudgets))
	mux.HandleFunc("GET /budgets/{id}", s.withRequest(s.handleGetBudget))
	mux.HandleFunc("PATCH /budgets/{id}", s.withRequest(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /budgets/{id}", s.withRequest(s.handleDeleteBudget))
	mux.HandleFunc("POST /budgets/validate-range", s.withRequest(s.handleValidateRange))
	mux.HandleFunc("POST /budgets/{id}/mini-budgets", s.withRequest(s.handleCreateMiniBudget))
	mux.HandleFunc("GET /budgets/{id}/mini-budgets", s.withRequest(s.handleListMiniBudgets))

	mux.HandleFunc("POST /transactions", s.withRequest(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions", s.withRequest(s.handleListTransactions))
	mux.HandleFunc("DELETE /transactions/{id}", s.withRequest(s.handleDeleteTransaction))

	mux.HandleFunc("POST /bank-links", s.withRequest(s.handleCreateBankLink))
	mux.HandleFunc("GET /imports", s.withRequest(s.handleListImports))
	mux.HandleFunc("POST /imports/{id}/reconcile", s.withRequest(s.handleReconcile))
	mux.HandleFunc("POST /imports/{id}/ignore", s.withRequest(s.handleIgnore))

	mux.HandleFunc("GET /summary", s.withRequest(s.handleSummary))
	mux.HandleFunc("POST /reports/export", s.withRequest(s.handleExportReport))

	return s
}

// withRequest adds request logging, rate limiting and a request ID for tracing.
func (s *Server) withRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// startCacheCleanup periodically evicts expired summary entries when the
// in-process cache is in use. Redis expires its own keys.
func (s *Server) startCacheCleanup() {
	lru, ok := s.summaries.(*cache.LRUCache)
	if !ok {
		return
	}

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := lru.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
