package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine-health-monitor/internal/classifier"
	"engine-health-monitor/internal/db"
	"engine-health-monitor/internal/diagnostics"
	"engine-health-monitor/internal/metrics"
	"engine-health-monitor/internal/models"
	"engine-health-monitor/internal/parser"
	"engine-health-monitor/internal/report"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []models.HealthReport
}

func (p *fakePublisher) Publish(_ context.Context, r models.HealthReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, r)
	return nil
}

type fixedProvider struct {
	rec parser.Record
	err error
}

func (p fixedProvider) Read(context.Context) (parser.Record, error) {
	return p.rec, p.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T, h classifier.Handle, opts ...Option) (*Server, *db.Database) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log, _ := test.NewNullLogger()
	assembler := report.NewAssembler(diagnostics.NewEngine(diagnostics.DefaultThresholds()), classifier.NewAdapter(h))
	return NewServer(database, assembler, log, opts...), database
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

const nominalJSON = `{"vehicle_id":"VEH-001","engine_rpm":1100,"lub_oil_pressure":3.6,"fuel_pressure":10.5,
"coolant_pressure":3.7,"lub_oil_temp":86,"coolant_temp":84,"battery_voltage":12.6}`

func TestHealthReportsModelState(t *testing.T) {
	s, _ := newTestServer(t, classifier.Absent())
	for _, path := range []string{"/api/v1/health", "/health"} {
		rec, env := do(t, s, "GET", path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &body))
		assert.Equal(t, "absent", body["model"])
		assert.Equal(t, "healthy", body["status"])
	}
}

func TestAssessStoresAndPublishes(t *testing.T) {
	forest, err := classifier.LoadForest("../classifier/testdata/forest.json")
	require.NoError(t, err)
	pub := &fakePublisher{}
	s, database := newTestServer(t, classifier.Present(forest), WithPublisher(pub))

	rec, env := do(t, s, "POST", "/api/v1/assess", nominalJSON)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var rep models.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "VEH-001", rep.VehicleID)
	assert.Equal(t, models.BatteryHealthy, rep.Battery.Status)
	assert.True(t, rep.Diagnostics.Nominal())
	assert.Equal(t, models.LabelHealthy, rep.Classifier.PredictedLabel)
	assert.Empty(t, env.Meta.Warning)

	stored, err := database.GetReport(rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Reading, stored.Reading)

	require.Len(t, pub.published, 1)
	assert.Equal(t, rep.ID, pub.published[0].ID)
}

func TestAssessRejectsInvalidReading(t *testing.T) {
	s, database := newTestServer(t, classifier.Absent())

	rec, env := do(t, s, "POST", "/api/v1/assess", `{"engine_rpm":1100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "invalid sensor reading")

	rec, _ = do(t, s, "POST", "/api/v1/assess", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats["total_reports"])
}

func TestAssessBatchIsAllOrNothing(t *testing.T) {
	s, database := newTestServer(t, classifier.Absent())

	bad := `[` + nominalJSON + `,{"engine_rpm":-5,"lub_oil_pressure":1,"fuel_pressure":1,"coolant_pressure":1,
"lub_oil_temp":1,"coolant_temp":1,"battery_voltage":12}]`
	rec, env := do(t, s, "POST", "/api/v1/assess/batch", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "reading 1")

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats["total_reports"])

	rec, env = do(t, s, "POST", "/api/v1/assess/batch", `[`+nominalJSON+`,`+nominalJSON+`]`)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	assert.Equal(t, 2, env.Meta.Total)
	assert.NotEmpty(t, env.Meta.Warning)

	rec, _ = do(t, s, "POST", "/api/v1/assess/batch", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSensorAssessFallsBackToManualReading(t *testing.T) {
	m := metrics.New()
	s, _ := newTestServer(t, classifier.Absent(),
		WithProvider(fixedProvider{err: assert.AnError}),
		WithMetrics(m))

	rec, env := do(t, s, "GET", "/api/v1/sensor/assess?vehicle_id=VEH-009", "")
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.Equal(t, "manual", env.Meta.Source)

	var rep models.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "VEH-009", rep.VehicleID)
	assert.Equal(t, models.BatteryCritical, rep.Battery.Status)
	assert.Equal(t, models.LabelUnknown, rep.Classifier.PredictedLabel)
	assert.Contains(t, rep.Diagnostics.AffectedSystems, diagnostics.SystemCoolantTemp)
}

func TestSensorAssessUsesProvider(t *testing.T) {
	live := parser.Record{
		VehicleID: "VEH-002",
		Reading: models.SensorReading{
			EngineRPM: 900, LubOilPressure: 3, FuelPressure: 9, CoolantPressure: 2.5,
			LubOilTemp: 80, CoolantTemp: 82, BatteryVoltage: 12.7,
		},
	}
	s, _ := newTestServer(t, classifier.Absent(), WithProvider(fixedProvider{rec: live}))

	rec, env := do(t, s, "GET", "/api/v1/sensor/assess", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sensor", env.Meta.Source)

	var rep models.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, live.Reading, rep.Reading)
}

func TestReportLookups(t *testing.T) {
	s, _ := newTestServer(t, classifier.Absent())

	_, env := do(t, s, "POST", "/api/v1/assess", nominalJSON)
	var rep models.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))

	rec, env := do(t, s, "GET", "/api/v1/reports/"+rep.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, rep.ID, got.ID)

	rec, _ = do(t, s, "GET", "/api/v1/reports/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/reports/latest/VEH-001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, rep.ID, got.ID)

	rec, _ = do(t, s, "GET", "/api/v1/reports/latest/VEH-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/reports?vehicle_id=VEH-001&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.Total)
	assert.Equal(t, 5, env.Meta.Limit)

	rec, _ = do(t, s, "GET", "/api/v1/reports?start_time=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, "GET", "/api/v1/vehicles/VEH-001/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReportPDF(t *testing.T) {
	s, _ := newTestServer(t, classifier.Absent())

	_, env := do(t, s, "POST", "/api/v1/assess", nominalJSON)
	var rep models.HealthReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))

	rec, _ := do(t, s, "GET", "/api/v1/reports/"+rep.ID+"/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestDiagnosticsAndStats(t *testing.T) {
	s, _ := newTestServer(t, classifier.Absent())

	low := strings.Replace(nominalJSON, `"battery_voltage":12.6`, `"battery_voltage":11.2`, 1)
	rec, _ := do(t, s, "POST", "/api/v1/assess", low)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, s, "GET", "/api/v1/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var counts []models.SystemFaultCount
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	require.Len(t, counts, 1)
	assert.Equal(t, diagnostics.SystemBattery, counts[0].AffectedSystem)
	assert.Equal(t, 1, counts[0].Count)

	rec, env = do(t, s, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 1, stats["total_reports"])
	assert.EqualValues(t, 1, stats["reports_with_faults"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, classifier.Absent(), WithMetrics(metrics.New()))
	do(t, s, "GET", "/health", "")

	rec, _ := do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{route="/health",status="200"} 1`)
}

func TestRequestLogging(t *testing.T) {
	log, hook := test.NewNullLogger()
	assembler := report.NewAssembler(diagnostics.NewEngine(diagnostics.DefaultThresholds()), classifier.NewAdapter(classifier.Absent()))
	database, err := db.New(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	defer database.Close()

	s := NewServer(database, assembler, log)
	req := httptest.NewRequest("GET", "/health", nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/health", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}
