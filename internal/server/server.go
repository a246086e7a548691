// Package server exposes the tariff evaluation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/tariff-cli/internal/duty"
	"github.com/sells-group/tariff-cli/internal/metrics"
	"github.com/sells-group/tariff-cli/internal/report"
	"github.com/sells-group/tariff-cli/internal/tariff"
	"github.com/sells-group/tariff-cli/pkg/hts"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Server handles tariff evaluation requests.
type Server struct {
	client   hts.Client
	analyzer *tariff.Analyzer
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New builds the HTTP handler. The prometheus gatherer backs /metrics; pass
// prometheus.DefaultGatherer in production.
func New(client hts.Client, log *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		client:   client,
		analyzer: tariff.NewAnalyzer(log),
		log:      log,
		metrics:  m,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.logMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/v1/calculate-tariff", s.handleCalculateTariff)

	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r)),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CalculateRequest is the body of POST /v1/calculate-tariff.
type CalculateRequest struct {
	HTSCode         string  `json:"hts_code"`
	Country         string  `json:"country"`
	EntryDate       string  `json:"entry_date"`
	LoadingDate     string  `json:"loading_date,omitempty"`
	ModeOfTransport string  `json:"mode_of_transport"`
	BaseCost        float64 `json:"base_cost"`
}

// CalculateResponse is the success body of POST /v1/calculate-tariff.
type CalculateResponse struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      *report.Report  `json:"data"`
	TotalRate duty.Aggregated `json:"total_rate"`
}

func (s *Server) handleCalculateTariff(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.calculateTariff(w, r)
	if s.metrics != nil {
		s.metrics.EvaluationsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		s.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}
}

// calculateTariff runs the full evaluation and returns the HTTP status it
// wrote. The service boundary is strict: any invalid input is rejected, never
// defaulted.
func (s *Server) calculateTariff(w http.ResponseWriter, r *http.Request) int {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return writeError(w, http.StatusBadRequest, "invalid request body")
	}

	req.HTSCode = strings.TrimSpace(req.HTSCode)
	if req.HTSCode == "" {
		return writeError(w, http.StatusBadRequest, "hts_code is required")
	}

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		return writeError(w, http.StatusBadRequest, "country is required")
	}

	transport, err := tariff.ParseTransport(req.ModeOfTransport)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err.Error())
	}

	if req.BaseCost < 0 {
		return writeError(w, http.StatusBadRequest, "base_cost must be non-negative")
	}

	entryDate, err := time.Parse("2006-01-02", req.EntryDate)
	if err != nil {
		return writeError(w, http.StatusBadRequest, "entry_date must be a YYYY-MM-DD date")
	}

	var loadingDate *time.Time
	if req.LoadingDate != "" {
		ld, err := time.Parse("2006-01-02", req.LoadingDate)
		if err != nil {
			return writeError(w, http.StatusBadRequest, "loading_date must be a YYYY-MM-DD date")
		}
		loadingDate = &ld
	}

	codes, err := s.client.CandidateCodes(r.Context(), req.HTSCode)
	if err != nil {
		if errors.Is(err, hts.ErrNotFound) {
			s.countFetch("not_found")
			return writeError(w, http.StatusNotFound, "no tariff data found for HTS code "+req.HTSCode)
		}
		s.countFetch("error")
		s.log.Error("candidate codes fetch failed",
			zap.String("hts_code", req.HTSCode),
			zap.String("request_id", requestIDFrom(r)),
			zap.Error(err),
		)
		return writeError(w, http.StatusBadGateway, "tariff data source unavailable")
	}
	s.countFetch("ok")

	analysis, err := s.analyzer.Analyze(tariff.FromCandidates(codes), tariff.Shipment{
		Country:     country,
		Transport:   transport,
		EntryDate:   entryDate,
		LoadingDate: loadingDate,
	})
	if err != nil {
		// Only ErrMissingPrimary reaches here; the snapshot is unusable.
		return writeError(w, http.StatusBadRequest, err.Error())
	}

	rep := report.Build(analysis, country)
	agg := duty.Aggregate(rep, decimal.NewFromFloat(req.BaseCost))

	writeJSON(w, http.StatusOK, CalculateResponse{
		Status:    "success",
		RequestID: requestIDFrom(r),
		Data:      rep,
		TotalRate: agg,
	})
	return http.StatusOK
}

func (s *Server) countFetch(outcome string) {
	if s.metrics != nil {
		s.metrics.UpstreamFetchTotal.WithLabelValues(outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) int {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
	return status
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
