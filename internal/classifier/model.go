package classifier

import "engine-health-monitor/internal/models"

// FeatureNames is the fixed input order every model is trained on
var FeatureNames = []string{
	"engine_rpm",
	"lub_oil_pressure",
	"fuel_pressure",
	"coolant_pressure",
	"lub_oil_temp",
	"coolant_temp",
	"battery_voltage",
	"temp_diff",
}

// Vector is the model input built from a reading and its derived features
type Vector struct {
	EngineRPM       float64
	LubOilPressure  float64
	FuelPressure    float64
	CoolantPressure float64
	LubOilTemp      float64
	CoolantTemp     float64
	BatteryVoltage  float64
	TempDiff        float64
}

// NewVector lays out a reading in model input order
func NewVector(r models.SensorReading, d models.DerivedFeatures) Vector {
	return Vector{
		EngineRPM:       float64(r.EngineRPM),
		LubOilPressure:  r.LubOilPressure,
		FuelPressure:    r.FuelPressure,
		CoolantPressure: r.CoolantPressure,
		LubOilTemp:      r.LubOilTemp,
		CoolantTemp:     r.CoolantTemp,
		BatteryVoltage:  r.BatteryVoltage,
		TempDiff:        d.TempDiff,
	}
}

// Values returns the vector in FeatureNames order
func (v Vector) Values() []float64 {
	return []float64{
		v.EngineRPM,
		v.LubOilPressure,
		v.FuelPressure,
		v.CoolantPressure,
		v.LubOilTemp,
		v.CoolantTemp,
		v.BatteryVoltage,
		v.TempDiff,
	}
}

// Model is a loaded, read-only classifier. Implementations must be safe
// for concurrent use.
type Model interface {
	// Classes returns the labels the model can predict
	Classes() []models.HealthLabel
	// Predict returns the most likely label
	Predict(v Vector) models.HealthLabel
	// PredictProbabilities returns a probability in [0,1] per known class
	PredictProbabilities(v Vector) map[models.HealthLabel]float64
}

// Handle is a model that is either present or absent. It is resolved once
// at startup and never re-checked.
type Handle struct {
	model Model
}

// Present wraps a loaded model
func Present(m Model) Handle {
	return Handle{model: m}
}

// Absent is the handle used when no model could be loaded or it is disabled
func Absent() Handle {
	return Handle{}
}

// Model returns the wrapped model and whether one is present
func (h Handle) Model() (Model, bool) {
	return h.model, h.model != nil
}

// IsPresent reports whether a model is available
func (h Handle) IsPresent() bool {
	return h.model != nil
}
