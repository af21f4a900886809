package models

import "time"

// SensorReading is one snapshot of all engine sensor values
type SensorReading struct {
	EngineRPM       int     `json:"engine_rpm"`
	LubOilPressure  float64 `json:"lub_oil_pressure"` // bar
	FuelPressure    float64 `json:"fuel_pressure"`    // bar
	CoolantPressure float64 `json:"coolant_pressure"` // bar
	LubOilTemp      float64 `json:"lub_oil_temp"`     // Celsius
	CoolantTemp     float64 `json:"coolant_temp"`     // Celsius
	BatteryVoltage  float64 `json:"battery_voltage"`  // V
}

// DerivedFeatures holds values computed from a reading rather than measured
type DerivedFeatures struct {
	TempDiff float64 `json:"temp_diff"`
}

// HealthLabel is a vehicle condition class
type HealthLabel string

const (
	LabelHealthy  HealthLabel = "Healthy"
	LabelWarning  HealthLabel = "Warning"
	LabelCritical HealthLabel = "Critical"
	LabelUnknown  HealthLabel = "Unknown"
)

// KnownLabels lists the classes a classifier is expected to report, in display order
var KnownLabels = []HealthLabel{LabelHealthy, LabelWarning, LabelCritical}

// LabelColor returns the presentation colour for a condition label
func LabelColor(l HealthLabel) string {
	switch l {
	case LabelHealthy:
		return "green"
	case LabelWarning:
		return "orange"
	default:
		return "red"
	}
}

// BatteryStatus is the battery health band
type BatteryStatus string

const (
	BatteryHealthy  BatteryStatus = "Healthy"
	BatteryWarning  BatteryStatus = "Warning"
	BatteryCritical BatteryStatus = "Critical"
)

// DisplayText is the operator-facing text for a status
func (s BatteryStatus) DisplayText() string {
	if s == BatteryCritical {
		return "Critical – Switch-Shot Required"
	}
	return string(s)
}

// BatteryAssessment is the battery status and its numeric health score
type BatteryAssessment struct {
	Status BatteryStatus `json:"status"`
	Score  int           `json:"score"`
}

// Sentinel pair reported when no diagnostic rule fires
const (
	NoAffectedSystem = "None"
	NominalAdvisory  = "System operating within normal parameters."
)

// DiagnosticResult lists affected subsystems with index-aligned advisories
type DiagnosticResult struct {
	AffectedSystems []string `json:"affected_systems"`
	Advisories      []string `json:"advisories"`
}

// Nominal reports whether the result is the no-fault sentinel
func (d DiagnosticResult) Nominal() bool {
	return len(d.AffectedSystems) == 1 && d.AffectedSystems[0] == NoAffectedSystem
}

// ClassifierAssessment is the statistical verdict of the trained model.
// Probabilities are percentages keyed by class; a missing class means 0%.
type ClassifierAssessment struct {
	PredictedLabel HealthLabel             `json:"predicted_label"`
	Probabilities  map[HealthLabel]float64 `json:"probabilities"`
}

// Probability returns the percentage for a label, 0 when absent
func (c ClassifierAssessment) Probability(l HealthLabel) float64 {
	return c.Probabilities[l]
}

// Available reports whether a model produced this assessment
func (c ClassifierAssessment) Available() bool {
	return c.PredictedLabel != LabelUnknown && c.PredictedLabel != ""
}

// HealthReport is the immutable result of evaluating one reading
type HealthReport struct {
	ID          string               `json:"id"`
	VehicleID   string               `json:"vehicle_id,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
	Reading     SensorReading        `json:"reading"`
	Derived     DerivedFeatures      `json:"derived"`
	Battery     BatteryAssessment    `json:"battery"`
	Diagnostics DiagnosticResult     `json:"diagnostics"`
	Classifier  ClassifierAssessment `json:"classifier"`
}

// ReportQuery represents query parameters for stored report searches
type ReportQuery struct {
	VehicleID string
	Label     HealthLabel
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// SystemFaultCount aggregates how often an affected system was reported
type SystemFaultCount struct {
	AffectedSystem string    `json:"affected_system"`
	Count          int       `json:"count"`
	LastSeen       time.Time `json:"last_seen"`
}

// ReportSummary provides aggregated statistics for one vehicle
type ReportSummary struct {
	VehicleID         string  `json:"vehicle_id"`
	TotalReports      int     `json:"total_reports"`
	CriticalReports   int     `json:"critical_reports"`
	AvgBatteryScore   float64 `json:"avg_battery_score"`
	AvgTempDiff       float64 `json:"avg_temp_diff"`
	FaultyEvaluations int     `json:"faulty_evaluations"`
}
