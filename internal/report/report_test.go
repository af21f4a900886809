package report

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine-health-monitor/internal/classifier"
	"engine-health-monitor/internal/diagnostics"
	"engine-health-monitor/internal/models"
)

type recordingObserver struct {
	mu      sync.Mutex
	reports []models.HealthReport
}

func (o *recordingObserver) ObserveReport(r models.HealthReport, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func newAssembler(t *testing.T, h classifier.Handle, opts ...Option) *Assembler {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewAssembler(diagnostics.NewEngine(diagnostics.DefaultThresholds()), classifier.NewAdapter(h), opts...)
}

func TestAssembleWithoutModel(t *testing.T) {
	obs := &recordingObserver{}
	a := newAssembler(t, classifier.Absent(), WithObserver(obs))
	assert.False(t, a.ModelPresent())

	r := models.SensorReading{
		EngineRPM:       1100,
		LubOilPressure:  3.6,
		FuelPressure:    10.5,
		CoolantPressure: 3.7,
		LubOilTemp:      86,
		CoolantTemp:     85,
		BatteryVoltage:  11.6,
	}
	rep := a.AssembleFor("VEH-001", r)

	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "VEH-001", rep.VehicleID)
	assert.Equal(t, fixedClock(), rep.GeneratedAt)
	assert.Equal(t, r, rep.Reading)
	assert.Equal(t, 1.0, rep.Derived.TempDiff)
	assert.Equal(t, models.BatteryAssessment{Status: models.BatteryCritical, Score: 30}, rep.Battery)
	assert.Equal(t, []string{diagnostics.SystemBattery}, rep.Diagnostics.AffectedSystems)
	assert.Equal(t, models.LabelUnknown, rep.Classifier.PredictedLabel)
	assert.Empty(t, rep.Classifier.Probabilities)

	require.Len(t, obs.reports, 1)
	assert.Equal(t, rep.ID, obs.reports[0].ID)
}

func TestAssembleHealthyWithModel(t *testing.T) {
	f, err := classifier.LoadForest(filepath.Join("..", "classifier", "testdata", "forest.json"))
	require.NoError(t, err)
	a := newAssembler(t, classifier.Present(f))
	assert.True(t, a.ModelPresent())

	r := models.SensorReading{
		EngineRPM:       1100,
		LubOilPressure:  3.6,
		FuelPressure:    10.5,
		CoolantPressure: 3.7,
		LubOilTemp:      86,
		CoolantTemp:     84,
		BatteryVoltage:  12.6,
	}
	rep := a.Assemble(r)

	assert.Equal(t, 2.0, rep.Derived.TempDiff)
	assert.Equal(t, models.BatteryAssessment{Status: models.BatteryHealthy, Score: 90}, rep.Battery)
	assert.True(t, rep.Diagnostics.Nominal())
	assert.Equal(t, models.LabelHealthy, rep.Classifier.PredictedLabel)
	assert.InDelta(t, 75.0, rep.Classifier.Probability(models.LabelHealthy), 0.01)
}

func TestAssembleIsReentrant(t *testing.T) {
	a := newAssembler(t, classifier.Absent())
	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep := a.Assemble(models.SensorReading{BatteryVoltage: 12.6, LubOilPressure: 3, FuelPressure: 9, CoolantPressure: 2})
			ids[i] = rep.ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestWritePDF(t *testing.T) {
	a := newAssembler(t, classifier.Absent())
	rep := a.AssembleFor("VEH-007", models.SensorReading{
		LubOilPressure:  2.0,
		LubOilTemp:      105,
		CoolantTemp:     115,
		CoolantPressure: 0.5,
		FuelPressure:    5.0,
		BatteryVoltage:  11.0,
	})

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, rep))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, WritePDFFile(path, rep))
	assert.FileExists(t, path)
}
