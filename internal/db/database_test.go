package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine-health-monitor/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleReport(id, vehicle string, at time.Time, label models.HealthLabel, systems ...string) models.HealthReport {
	diag := models.DiagnosticResult{
		AffectedSystems: []string{models.NoAffectedSystem},
		Advisories:      []string{models.NominalAdvisory},
	}
	if len(systems) > 0 {
		diag = models.DiagnosticResult{}
		for _, s := range systems {
			diag.AffectedSystems = append(diag.AffectedSystems, s)
			diag.Advisories = append(diag.Advisories, "advice for "+s)
		}
	}
	probs := map[models.HealthLabel]float64{}
	if label != models.LabelUnknown {
		probs[label] = 80
	}
	return models.HealthReport{
		ID:          id,
		VehicleID:   vehicle,
		GeneratedAt: at,
		Reading: models.SensorReading{
			EngineRPM: 1100, LubOilPressure: 3.6, FuelPressure: 10.5, CoolantPressure: 3.7,
			LubOilTemp: 86, CoolantTemp: 84, BatteryVoltage: 12.6,
		},
		Derived:     models.DerivedFeatures{TempDiff: 2},
		Battery:     models.BatteryAssessment{Status: models.BatteryHealthy, Score: 90},
		Diagnostics: diag,
		Classifier:  models.ClassifierAssessment{PredictedLabel: label, Probabilities: probs},
	}
}

func TestInsertAndGetReport(t *testing.T) {
	database := openTestDB(t)
	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	want := sampleReport("r1", "VEH-001", at, models.LabelWarning, "Fuel System (Low Pressure)", "Electrical System (Battery)")

	require.NoError(t, database.InsertReport(&want))

	got, err := database.GetReport("r1")
	require.NoError(t, err)
	assert.Equal(t, want.Reading, got.Reading)
	assert.Equal(t, want.Diagnostics, got.Diagnostics)
	assert.Equal(t, want.Classifier, got.Classifier)
	assert.Equal(t, want.Battery, got.Battery)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))

	_, err = database.GetReport("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryReportsAndLatest(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	reports := []models.HealthReport{
		sampleReport("a", "VEH-001", base, models.LabelHealthy),
		sampleReport("b", "VEH-001", base.Add(time.Minute), models.LabelCritical, "Electrical System (Battery)"),
		sampleReport("c", "VEH-002", base.Add(2*time.Minute), models.LabelUnknown, "Electrical System (Battery)", "Fuel System (Low Pressure)"),
	}
	n, err := database.InsertReportBatch(reports)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := database.QueryReports(models.ReportQuery{VehicleID: "VEH-001"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, []string{"Electrical System (Battery)"}, got[0].Diagnostics.AffectedSystems)

	got, err = database.QueryReports(models.ReportQuery{Label: models.LabelUnknown})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Classifier.Probabilities)

	got, err = database.QueryReports(models.ReportQuery{StartTime: base.Add(30 * time.Second), Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	latest, err := database.GetLatestReport("VEH-001")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	_, err = database.GetLatestReport("VEH-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummaryFaultsAndStats(t *testing.T) {
	database := openTestDB(t)
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	_, err := database.InsertReportBatch([]models.HealthReport{
		sampleReport("a", "VEH-001", base, models.LabelHealthy),
		sampleReport("b", "VEH-001", base.Add(time.Minute), models.LabelCritical, "Electrical System (Battery)"),
		sampleReport("c", "VEH-002", base.Add(2*time.Minute), models.LabelCritical, "Electrical System (Battery)", "Fuel System (Low Pressure)"),
	})
	require.NoError(t, err)

	s, err := database.GetReportSummary("VEH-001")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalReports)
	assert.Equal(t, 1, s.CriticalReports)
	assert.Equal(t, 1, s.FaultyEvaluations)
	assert.Equal(t, 90.0, s.AvgBatteryScore)

	_, err = database.GetReportSummary("VEH-404")
	assert.ErrorIs(t, err, ErrNotFound)

	faults, err := database.GetFaultCounts("", 0)
	require.NoError(t, err)
	require.Len(t, faults, 2)
	assert.Equal(t, "Electrical System (Battery)", faults[0].AffectedSystem)
	assert.Equal(t, 2, faults[0].Count)
	assert.True(t, faults[0].LastSeen.Equal(base.Add(2*time.Minute)))

	faults, err = database.GetFaultCounts("VEH-001", 10)
	require.NoError(t, err)
	require.Len(t, faults, 1)

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["total_reports"])
	assert.Equal(t, int64(2), stats["total_vehicles"])
	assert.Equal(t, int64(2), stats["reports_with_faults"])
	assert.Equal(t, map[string]int64{"Healthy": 1, "Critical": 2}, stats["reports_by_label"])
}

func TestInsertDuplicateFails(t *testing.T) {
	database := openTestDB(t)
	r := sampleReport("dup", "VEH-1", time.Now().UTC(), models.LabelHealthy)
	require.NoError(t, database.InsertReport(&r))
	assert.Error(t, database.InsertReport(&r))

	got, err := database.QueryReports(models.ReportQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
