package diagnostics

import "engine-health-monitor/internal/models"

// Thresholds are the limits the diagnostic rules compare readings against.
// Min limits fire strictly below, Max limits strictly above.
type Thresholds struct {
	OilPressureMin     float64 `json:"oil_pressure_min"`
	OilTempMax         float64 `json:"oil_temp_max"`
	CoolantTempMax     float64 `json:"coolant_temp_max"`
	CoolantPressureMin float64 `json:"coolant_pressure_min"`
	FuelPressureMin    float64 `json:"fuel_pressure_min"`
	BatteryMin         float64 `json:"battery_min"`
	TempDiffMax        float64 `json:"temp_diff_max"`
}

// DefaultThresholds returns the stock rule limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		OilPressureMin: 2.5,
		OilTempMax:     100,
		CoolantTempMax: 110,
		// TODO: confirm the coolant pressure floor with a cooling-system engineer; low pressure is assumed to mean a leak.
		CoolantPressureMin: 1.0,
		FuelPressureMin:    6.0,
		BatteryMin:         BatteryWarningVolts,
		TempDiffMax:        40,
	}
}

// Affected system labels
const (
	SystemOilPressure     = "Lubrication System (Low Pressure)"
	SystemOilTemp         = "Lubrication System (Overheating)"
	SystemCoolantTemp     = "Cooling System (Overheating)"
	SystemCoolantPressure = "Cooling System (Leak/Pressure Loss)"
	SystemFuelPressure    = "Fuel System (Low Pressure)"
	SystemBattery         = "Electrical System (Battery)"
	SystemEngineBlock     = "Engine Block (Uneven Heating)"
)

// Rule is a threshold predicate contributing one affected system and advisory
type Rule struct {
	AffectedSystem string
	Advisory       string
	Fires          func(r models.SensorReading, d models.DerivedFeatures, t Thresholds) bool
}

// rules is the fixed evaluation order; it determines output order only
var rules = []Rule{
	{
		AffectedSystem: SystemOilPressure,
		Advisory:       "Check oil pump and oil level immediately.",
		Fires: func(r models.SensorReading, _ models.DerivedFeatures, t Thresholds) bool {
			return r.LubOilPressure < t.OilPressureMin
		},
	},
	{
		AffectedSystem: SystemOilTemp,
		Advisory:       "Inspect oil cooler and check for blockages.",
		Fires: func(r models.SensorReading, _ models.DerivedFeatures, t Thresholds) bool {
			return r.LubOilTemp > t.OilTempMax
		},
	},
	{
		AffectedSystem: SystemCoolantTemp,
		Advisory:       "Check coolant level, radiator, and thermostat.",
		Fires: func(r models.SensorReading, _ models.DerivedFeatures, t Thresholds) bool {
			return r.CoolantTemp > t.CoolantTempMax
		},
	},
	{
		AffectedSystem: SystemCoolantPressure,
		Advisory:       "Inspect hoses and radiator cap for leaks.",
		Fires: func(r models.SensorReading, _ models.DerivedFeatures, t Thresholds) bool {
			return r.CoolantPressure < t.CoolantPressureMin
		},
	},
	{
		AffectedSystem: SystemFuelPressure,
		Advisory:       "Check fuel filter and fuel pump.",
		Fires: func(r models.SensorReading, _ models.DerivedFeatures, t Thresholds) bool {
			return r.FuelPressure < t.FuelPressureMin
		},
	},
	{
		AffectedSystem: SystemBattery,
		Advisory:       "Test battery health and charging system.",
		Fires: func(r models.SensorReading, _ models.DerivedFeatures, t Thresholds) bool {
			return r.BatteryVoltage < t.BatteryMin
		},
	},
	{
		AffectedSystem: SystemEngineBlock,
		Advisory:       "Check for coolant flow restrictions or blocked passages.",
		Fires: func(_ models.SensorReading, d models.DerivedFeatures, t Thresholds) bool {
			return d.TempDiff > t.TempDiffMax
		},
	},
}

// Rules returns a copy of the rule table in evaluation order
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Engine evaluates the rule table against a fixed set of thresholds
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a rule engine with the given thresholds
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Thresholds returns the limits the engine evaluates with
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Diagnose reports every firing rule in table order, or the nominal
// sentinel pair when none fire.
func (e *Engine) Diagnose(r models.SensorReading, d models.DerivedFeatures) models.DiagnosticResult {
	var res models.DiagnosticResult
	for _, rule := range rules {
		if !rule.Fires(r, d, e.thresholds) {
			continue
		}
		res.AffectedSystems = append(res.AffectedSystems, rule.AffectedSystem)
		res.Advisories = append(res.Advisories, rule.Advisory)
	}

	if len(res.AffectedSystems) == 0 {
		res.AffectedSystems = []string{models.NoAffectedSystem}
		res.Advisories = []string{models.NominalAdvisory}
	}
	return res
}

// Diagnose evaluates a reading with the default thresholds
func Diagnose(r models.SensorReading, d models.DerivedFeatures) models.DiagnosticResult {
	return NewEngine(DefaultThresholds()).Diagnose(r, d)
}
