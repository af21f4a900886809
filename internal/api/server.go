package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"engine-health-monitor/internal/db"
	"engine-health-monitor/internal/metrics"
	"engine-health-monitor/internal/models"
	"engine-health-monitor/internal/parser"
	"engine-health-monitor/internal/report"
	"engine-health-monitor/internal/sensor"
)

// Store persists assembled reports
type Store interface {
	InsertReport(r *models.HealthReport) error
	InsertReportBatch(reports []models.HealthReport) (int64, error)
	GetReport(id string) (*models.HealthReport, error)
	GetLatestReport(vehicleID string) (*models.HealthReport, error)
	QueryReports(q models.ReportQuery) ([]models.HealthReport, error)
	GetReportSummary(vehicleID string) (*models.ReportSummary, error)
	GetFaultCounts(vehicleID string, limit int) ([]models.SystemFaultCount, error)
	GetStats() (map[string]interface{}, error)
}

// Publisher broadcasts assembled reports
type Publisher interface {
	Publish(ctx context.Context, r models.HealthReport) error
}

// Server represents the API server
type Server struct {
	store     Store
	assembler *report.Assembler
	provider  sensor.Provider
	publisher Publisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	router    *mux.Router
}

// Option configures optional server collaborators
type Option func(*Server)

// WithProvider enables the live sensor endpoint
func WithProvider(p sensor.Provider) Option {
	return func(s *Server) { s.provider = p }
}

// WithPublisher fans every stored report out to p
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithMetrics records request metrics and serves /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new API server
func NewServer(store Store, assembler *report.Assembler, log logrus.FieldLogger, opts ...Option) *Server {
	s := &Server{
		store:     store,
		assembler: assembler,
		log:       log,
		router:    mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Evaluation endpoints
	v1.HandleFunc("/assess", s.handleAssess).Methods("POST")
	v1.HandleFunc("/assess/batch", s.handleAssessBatch).Methods("POST")
	v1.HandleFunc("/sensor/assess", s.handleSensorAssess).Methods("GET")

	// Report endpoints
	v1.HandleFunc("/reports", s.handleQueryReports).Methods("GET")
	v1.HandleFunc("/reports/latest/{vehicle_id}", s.handleLatestReport).Methods("GET")
	v1.HandleFunc("/reports/{id}", s.handleGetReport).Methods("GET")
	v1.HandleFunc("/reports/{id}/pdf", s.handleReportPDF).Methods("GET")
	v1.HandleFunc("/vehicles/{vehicle_id}/summary", s.handleVehicleSummary).Methods("GET")

	// Diagnostics endpoints
	v1.HandleFunc("/diagnostics", s.handleFaultCounts).Methods("GET")
	v1.HandleFunc("/diagnostics/{vehicle_id}", s.handleFaultCounts).Methods("GET")

	v1.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped with CORS and panic recovery
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))
	return recovery(cors(s.router))
}

// Middleware
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveHTTP(route, rec.status)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("request")
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int    `json:"total,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	QueryMs int64  `json:"query_ms,omitempty"`
	Source  string `json:"source,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, status int, data interface{}, m *meta) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// modelWarning is surfaced alongside reports produced without a classifier
func (s *Server) modelWarning() string {
	if s.assembler.ModelPresent() {
		return ""
	}
	return "Model not loaded. Classifier verdict is Unknown."
}

// persist stores and publishes a report; publish failures are not fatal
func (s *Server) persist(ctx context.Context, rep models.HealthReport) error {
	if err := s.store.InsertReport(&rep); err != nil {
		return err
	}
	s.publish(ctx, rep)
	return nil
}

func (s *Server) publish(ctx context.Context, rep models.HealthReport) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, rep); err != nil {
		s.log.WithError(err).WithField("report_id", rep.ID).Warn("Failed to publish report")
	}
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	model := "absent"
	if s.assembler.ModelPresent() {
		model = "present"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"model":      model,
		"thresholds": s.assembler.Thresholds(),
	})
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	rec, err := parser.DecodeReading(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep := s.assembler.AssembleFor(rec.VehicleID, rec.Reading)
	if err := s.persist(r.Context(), rep); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithMeta(w, http.StatusCreated, rep, &meta{Warning: s.modelWarning()})
}

func (s *Server) handleAssessBatch(w http.ResponseWriter, r *http.Request) {
	var payloads []parser.ReadingPayload
	if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON array")
		return
	}

	if len(payloads) == 0 {
		respondError(w, http.StatusBadRequest, "empty array")
		return
	}

	// reject the whole batch before evaluating anything
	records := make([]parser.Record, 0, len(payloads))
	for i, p := range payloads {
		rec, err := p.Record()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("reading %d: %v", i, err))
			return
		}
		records = append(records, rec)
	}

	reports := make([]models.HealthReport, 0, len(records))
	for _, rec := range records {
		reports = append(reports, s.assembler.AssembleFor(rec.VehicleID, rec.Reading))
	}

	count, err := s.store.InsertReportBatch(reports)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, rep := range reports {
		s.publish(r.Context(), rep)
	}

	respondWithMeta(w, http.StatusCreated, reports, &meta{Total: int(count), Warning: s.modelWarning()})
}

func (s *Server) handleSensorAssess(w http.ResponseWriter, r *http.Request) {
	rec, live := sensor.ReadOrDefault(r.Context(), s.provider, s.log)
	source := "sensor"
	if !live {
		source = "manual"
		if s.provider != nil {
			s.metrics.SensorError()
		}
	}

	if vehicleID := r.URL.Query().Get("vehicle_id"); vehicleID != "" {
		rec.VehicleID = vehicleID
	}

	rep := s.assembler.AssembleFor(rec.VehicleID, rec.Reading)
	if err := s.persist(r.Context(), rep); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithMeta(w, http.StatusOK, rep, &meta{Source: source, Warning: s.modelWarning()})
}

func (s *Server) handleQueryReports(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := models.ReportQuery{
		VehicleID: r.URL.Query().Get("vehicle_id"),
		Label:     models.HealthLabel(r.URL.Query().Get("label")),
		Limit:     100,
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		q.Offset = n
	}
	if v := r.URL.Query().Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "start_time must be RFC3339")
			return
		}
		q.StartTime = t
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_time must be RFC3339")
			return
		}
		q.EndTime = t
	}

	results, err := s.store.QueryReports(q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithMeta(w, http.StatusOK, results, &meta{
		Total:   len(results),
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFound)
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(mux.Vars(r)["id"])
	if err != nil {
		s.respondLookupError(w, err, "report not found")
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rep, err := s.store.GetReport(id)
	if err != nil {
		s.respondLookupError(w, err, "report not found")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vehicle_health_report_%s.pdf"`, id))
	if err := report.WritePDF(w, *rep); err != nil {
		s.log.WithError(err).WithField("report_id", id).Error("PDF export failed")
	}
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rep, err := s.store.GetLatestReport(mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondLookupError(w, err, "no reports found for vehicle")
		return
	}
	respondWithMeta(w, http.StatusOK, rep, &meta{QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleVehicleSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := s.store.GetReportSummary(mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondLookupError(w, err, "no data found for vehicle")
		return
	}
	respondWithMeta(w, http.StatusOK, summary, &meta{QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleFaultCounts(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	counts, err := s.store.GetFaultCounts(mux.Vars(r)["vehicle_id"], limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
