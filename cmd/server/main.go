package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/toricodesthings/paper-ingestion-service/internal/config"
	"github.com/toricodesthings/paper-ingestion-service/internal/entity"
	"github.com/toricodesthings/paper-ingestion-service/internal/ingest"
	"github.com/toricodesthings/paper-ingestion-service/internal/pdf"
	"github.com/toricodesthings/paper-ingestion-service/internal/store"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	cfg config.Config

	requestSem *semaphore.Weighted
	pipeline   *ingest.Pipeline
	records    *store.Store

	// Per-IP rate limiters
	limiters = &sync.Map{}

	metrics = &serverMetrics{}
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	ingested      int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) incIngested() {
	m.mu.Lock()
	m.ingested++
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active, ingested int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs, m.ingested
}

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)

	records, err = store.Open(context.Background(), cfg.DatabasePath)
	if err != nil {
		panic(err)
	}
	defer records.Close()

	pipeline = &ingest.Pipeline{
		Decoder: pdf.New(pdf.Config{
			PDFInfoTimeout:   cfg.PDFInfoTimeout,
			PDFToTextTimeout: cfg.PDFToTextTimeout,
		}),
		Recognizer: entity.ProseRecognizer{},
		Store:      records,
		UploadDir:  cfg.UploadDir,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/metrics", withInternalAuth(handleMetrics))

	// Ingestion endpoint: one synchronous pipeline run per request
	mux.HandleFunc("/documents",
		withRateLimit(
			withMethod("POST",
				withConcurrencyLimit(func(w http.ResponseWriter, r *http.Request) {
					handleUploadDocument(w, r)
				}))))

	mux.HandleFunc("/documents/",
		withMethod("GET", handleGetDocument))

	mux.HandleFunc("/text/",
		withMethod("GET", handleGetText))

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withLogging(withRecovery(mux)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	go cleanupRateLimiters()

	fmt.Printf("paperingest listening on %s (max concurrent: %d, uploads: %s, db: %s)\n",
		srv.Addr, cfg.MaxConcurrentRequests, cfg.UploadDir, cfg.DatabasePath)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func cleanupRateLimiters() {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active, ingested := metrics.get()
		fmt.Printf("[stats] active=%d total=%d ingested=%d goroutines=%d mem=%dMB\n",
			active, total, ingested, runtime.NumGoroutine(), m.Alloc/(1<<20))

		limiters = &sync.Map{}
	}
}

// ---------- Handlers ----------

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active, _ := metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"active":     active,
		"storeEmpty": records.FileEmpty(),
		"version":    "1.0.0",
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active, ingested := metrics.get()

	count, err := records.Count(r.Context())
	if err != nil {
		count = -1
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"ingestedDocs":   ingested,
		"storedRecords":  count,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(cfg.MaxMultipartMem); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", `multipart form with a "file" field required`)
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", `missing "file" field`)
		return
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(r.Context(), cfg.IngestTimeout)
	defer cancel()

	rec, err := pipeline.Ingest(ctx, f)
	if err != nil {
		status, code := classifyIngestErr(err)
		writeErr(w, status, code, sanitizeError(err))
		return
	}
	metrics.incIngested()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     rec.ID,
		"fileId": rec.FileID,
	})
}

func handleGetDocument(w http.ResponseWriter, r *http.Request) {
	candidate, ok := parseDocumentPath(r.URL.Path)
	if !ok {
		writeErr(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	rec, found := lookupDocument(w, r, candidate)
	if !found {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func handleGetText(w http.ResponseWriter, r *http.Request) {
	candidate, ok := parseTextPath(r.URL.Path)
	if !ok {
		writeErr(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	rec, found := lookupDocument(w, r, candidate)
	if !found {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": rec.Text})
}

// lookupDocument resolves a caller-supplied id string to a record, writing
// the error response itself when the id is malformed or unknown. Malformed
// ids are "not found", never a server error.
func lookupDocument(w http.ResponseWriter, r *http.Request, candidate string) (store.Record, bool) {
	exists, err := records.HasDocumentID(r.Context(), candidate)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", sanitizeError(err))
		return store.Record{}, false
	}
	if !exists {
		writeErr(w, http.StatusNotFound, "not_found", "document not found")
		return store.Record{}, false
	}

	id, _ := strconv.ParseInt(candidate, 10, 64)
	rec, found, err := records.GetByID(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", sanitizeError(err))
		return store.Record{}, false
	}
	if !found {
		writeErr(w, http.StatusNotFound, "not_found", "document not found")
		return store.Record{}, false
	}
	return rec, true
}

// parseDocumentPath extracts the id segment of /documents/{id}.
func parseDocumentPath(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/documents/")
	if rest == "" || rest == path || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// parseTextPath extracts the id segment of /text/{id}.txt.
func parseTextPath(path string) (string, bool) {
	rest := strings.TrimPrefix(path, "/text/")
	if rest == "" || rest == path || strings.Contains(rest, "/") {
		return "", false
	}
	id := strings.TrimSuffix(rest, ".txt")
	if id == rest || id == "" {
		return "", false
	}
	return id, true
}

func classifyIngestErr(err error) (status int, code string) {
	if errors.Is(err, ingest.ErrNotPDF) {
		return http.StatusBadRequest, "not_pdf"
	}

	var stage *ingest.StageError
	if errors.As(err, &stage) {
		switch stage.Stage {
		case ingest.StageDecode:
			return http.StatusUnprocessableEntity, "decode_failed"
		case ingest.StageSave:
			return http.StatusBadRequest, "save_failed"
		default:
			return http.StatusInternalServerError, stage.Stage + "_failed"
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// ---------- Middleware ----------

func withMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method must be "+method)
			return
		}
		next(w, r)
	}
}

func withInternalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shared := cfg.InternalSharedSecret
		if shared == "" {
			next(w, r)
			return
		}
		got := r.Header.Get("X-Internal-Auth")
		if subtle.ConstantTimeCompare([]byte(got), []byte(shared)) != 1 {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "Invalid authentication")
			return
		}
		next(w, r)
	}
}

func withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer requestSem.Release(1)

		metrics.incActive()
		defer metrics.decActive()

		next(w, r)
	}
}

func withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		limiter := getRateLimiter(ip)

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Fprintf(os.Stderr, "panic: %v\n", err)
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := ulid.Make().String()
		ww := &wrapWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		fmt.Printf("[%s] %s %s -> %d (%s)\n",
			reqID, r.Method, sanitizeLogString(r.URL.Path), ww.status, time.Since(start))
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ---------- Helpers ----------

func getRateLimiter(ip string) *rate.Limiter {
	if v, ok := limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}

	every := cfg.RateLimitEvery
	if every <= 0 {
		every = 600 * time.Millisecond // ~100/min
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	limiter := rate.NewLimiter(rate.Every(every), burst)
	limiters.Store(ip, limiter)
	return limiter
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
