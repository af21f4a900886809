package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"engine-health-monitor/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested report does not exist
var ErrNotFound = errors.New("report not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL DEFAULT '',
		generated_at DATETIME NOT NULL,
		engine_rpm INTEGER NOT NULL,
		lub_oil_pressure REAL NOT NULL,
		fuel_pressure REAL NOT NULL,
		coolant_pressure REAL NOT NULL,
		lub_oil_temp REAL NOT NULL,
		coolant_temp REAL NOT NULL,
		battery_voltage REAL NOT NULL,
		temp_diff REAL NOT NULL,
		battery_status TEXT NOT NULL,
		battery_score INTEGER NOT NULL,
		predicted_label TEXT NOT NULL,
		probabilities TEXT NOT NULL DEFAULT '{}',
		nominal INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS report_diagnostics (
		report_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		affected_system TEXT NOT NULL,
		advisory TEXT NOT NULL,
		PRIMARY KEY (report_id, position),
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_reports_vehicle_id ON reports(vehicle_id);
	CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports(generated_at);
	CREATE INDEX IF NOT EXISTS idx_reports_vehicle_generated ON reports(vehicle_id, generated_at);
	CREATE INDEX IF NOT EXISTS idx_reports_label ON reports(predicted_label);
	CREATE INDEX IF NOT EXISTS idx_report_diagnostics_system ON report_diagnostics(affected_system);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// Ping checks the connection
func (db *Database) Ping() error {
	return db.conn.Ping()
}

const insertReport = `
	INSERT INTO reports
	(id, vehicle_id, generated_at, engine_rpm, lub_oil_pressure, fuel_pressure,
	 coolant_pressure, lub_oil_temp, coolant_temp, battery_voltage, temp_diff,
	 battery_status, battery_score, predicted_label, probabilities, nominal)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertDiagnostic = `
	INSERT INTO report_diagnostics (report_id, position, affected_system, advisory)
	VALUES (?, ?, ?, ?)
`

// InsertReport stores a single report
func (db *Database) InsertReport(r *models.HealthReport) error {
	_, err := db.InsertReportBatch([]models.HealthReport{*r})
	return err
}

// InsertReportBatch stores reports in one transaction
func (db *Database) InsertReportBatch(reports []models.HealthReport) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	reportStmt, err := tx.Prepare(insertReport)
	if err != nil {
		return 0, err
	}
	defer reportStmt.Close()

	diagStmt, err := tx.Prepare(insertDiagnostic)
	if err != nil {
		return 0, err
	}
	defer diagStmt.Close()

	var count int64
	for _, r := range reports {
		probs, err := json.Marshal(r.Classifier.Probabilities)
		if err != nil {
			return 0, fmt.Errorf("failed to encode probabilities: %w", err)
		}

		rd := r.Reading
		_, err = reportStmt.Exec(
			r.ID, r.VehicleID, r.GeneratedAt.UTC(), rd.EngineRPM, rd.LubOilPressure, rd.FuelPressure,
			rd.CoolantPressure, rd.LubOilTemp, rd.CoolantTemp, rd.BatteryVoltage, r.Derived.TempDiff,
			string(r.Battery.Status), r.Battery.Score, string(r.Classifier.PredictedLabel), string(probs),
			r.Diagnostics.Nominal(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert report %s: %w", r.ID, err)
		}

		for i, sys := range r.Diagnostics.AffectedSystems {
			if _, err := diagStmt.Exec(r.ID, i, sys, r.Diagnostics.Advisories[i]); err != nil {
				return 0, fmt.Errorf("failed to insert diagnostics for %s: %w", r.ID, err)
			}
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

const selectReport = `
	SELECT id, vehicle_id, generated_at, engine_rpm, lub_oil_pressure, fuel_pressure,
	       coolant_pressure, lub_oil_temp, coolant_temp, battery_voltage, temp_diff,
	       battery_status, battery_score, predicted_label, probabilities
	FROM reports
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (models.HealthReport, error) {
	var r models.HealthReport
	var status, label, probs string

	err := s.Scan(
		&r.ID, &r.VehicleID, &r.GeneratedAt, &r.Reading.EngineRPM, &r.Reading.LubOilPressure,
		&r.Reading.FuelPressure, &r.Reading.CoolantPressure, &r.Reading.LubOilTemp,
		&r.Reading.CoolantTemp, &r.Reading.BatteryVoltage, &r.Derived.TempDiff,
		&status, &r.Battery.Score, &label, &probs,
	)
	if err != nil {
		return r, err
	}

	r.Battery.Status = models.BatteryStatus(status)
	r.Classifier.PredictedLabel = models.HealthLabel(label)
	r.Classifier.Probabilities = map[models.HealthLabel]float64{}
	if err := json.Unmarshal([]byte(probs), &r.Classifier.Probabilities); err != nil {
		return r, fmt.Errorf("corrupt probabilities for report %s: %w", r.ID, err)
	}
	return r, nil
}

// loadDiagnostics fills in the ordered affected systems of a report
func (db *Database) loadDiagnostics(r *models.HealthReport) error {
	rows, err := db.conn.Query(
		`SELECT affected_system, advisory FROM report_diagnostics WHERE report_id = ? ORDER BY position`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.Diagnostics = models.DiagnosticResult{}
	for rows.Next() {
		var sys, adv string
		if err := rows.Scan(&sys, &adv); err != nil {
			return err
		}
		r.Diagnostics.AffectedSystems = append(r.Diagnostics.AffectedSystems, sys)
		r.Diagnostics.Advisories = append(r.Diagnostics.Advisories, adv)
	}
	return rows.Err()
}

// GetReport retrieves a report by ID
func (db *Database) GetReport(id string) (*models.HealthReport, error) {
	r, err := scanReport(db.conn.QueryRow(selectReport+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadDiagnostics(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLatestReport returns the most recent report for a vehicle
func (db *Database) GetLatestReport(vehicleID string) (*models.HealthReport, error) {
	r, err := scanReport(db.conn.QueryRow(
		selectReport+" WHERE vehicle_id = ? ORDER BY generated_at DESC LIMIT 1", vehicleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadDiagnostics(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// QueryReports retrieves reports based on query parameters
func (db *Database) QueryReports(q models.ReportQuery) ([]models.HealthReport, error) {
	var conditions []string
	var args []interface{}

	query := selectReport

	if q.VehicleID != "" {
		conditions = append(conditions, "vehicle_id = ?")
		args = append(args, q.VehicleID)
	}
	if q.Label != "" {
		conditions = append(conditions, "predicted_label = ?")
		args = append(args, string(q.Label))
	}
	if !q.StartTime.IsZero() {
		conditions = append(conditions, "generated_at >= ?")
		args = append(args, q.StartTime.UTC())
	}
	if !q.EndTime.IsZero() {
		conditions = append(conditions, "generated_at <= ?")
		args = append(args, q.EndTime.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY generated_at DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var results []models.HealthReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// the single pooled connection is free again once rows are closed
	for i := range results {
		if err := db.loadDiagnostics(&results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// GetReportSummary returns aggregated statistics for a vehicle
func (db *Database) GetReportSummary(vehicleID string) (*models.ReportSummary, error) {
	query := `
		SELECT
			vehicle_id,
			COUNT(*) as total_reports,
			COALESCE(SUM(CASE WHEN predicted_label = 'Critical' THEN 1 ELSE 0 END), 0),
			AVG(battery_score),
			AVG(temp_diff),
			COALESCE(SUM(CASE WHEN nominal = 0 THEN 1 ELSE 0 END), 0)
		FROM reports
		WHERE vehicle_id = ?
		GROUP BY vehicle_id
	`

	var s models.ReportSummary
	err := db.conn.QueryRow(query, vehicleID).Scan(
		&s.VehicleID, &s.TotalReports, &s.CriticalReports,
		&s.AvgBatteryScore, &s.AvgTempDiff, &s.FaultyEvaluations,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetFaultCounts counts affected systems across stored reports, most frequent first
func (db *Database) GetFaultCounts(vehicleID string, limit int) ([]models.SystemFaultCount, error) {
	query := `
		SELECT d.affected_system, COUNT(*), MAX(r.generated_at)
		FROM report_diagnostics d
		JOIN reports r ON r.id = d.report_id
		WHERE d.affected_system != ?
	`
	args := []interface{}{models.NoAffectedSystem}
	if vehicleID != "" {
		query += " AND r.vehicle_id = ?"
		args = append(args, vehicleID)
	}
	query += " GROUP BY d.affected_system ORDER BY COUNT(*) DESC, d.affected_system"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.SystemFaultCount
	for rows.Next() {
		var c models.SystemFaultCount
		var lastSeen string
		if err := rows.Scan(&c.AffectedSystem, &c.Count, &lastSeen); err != nil {
			return nil, err
		}
		c.LastSeen, _ = parseSQLiteTime(lastSeen)
		results = append(results, c)
	}
	return results, rows.Err()
}

// MAX() loses the column type, so the driver hands back text
func parseSQLiteTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, strings.TrimSuffix(s, "Z")); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}

// GetStats returns database statistics
func (db *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalReports int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM reports").Scan(&totalReports); err != nil {
		return nil, err
	}
	stats["total_reports"] = totalReports

	var totalVehicles int64
	if err := db.conn.QueryRow("SELECT COUNT(DISTINCT vehicle_id) FROM reports WHERE vehicle_id != ''").Scan(&totalVehicles); err != nil {
		return nil, err
	}
	stats["total_vehicles"] = totalVehicles

	var faulty int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM reports WHERE nominal = 0").Scan(&faulty); err != nil {
		return nil, err
	}
	stats["reports_with_faults"] = faulty

	byLabel := map[string]int64{}
	rows, err := db.conn.Query("SELECT predicted_label, COUNT(*) FROM reports GROUP BY predicted_label")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		byLabel[label] = n
	}
	stats["reports_by_label"] = byLabel

	return stats, rows.Err()
}
