package diagnostics

import "engine-health-monitor/internal/models"

// Battery voltage bands, lower bound inclusive
const (
	BatteryHealthyVolts = 12.4
	BatteryWarningVolts = 11.8
)

// AssessBattery maps an instantaneous battery voltage to a status and score
func AssessBattery(voltage float64) models.BatteryAssessment {
	switch {
	case voltage >= BatteryHealthyVolts:
		return models.BatteryAssessment{Status: models.BatteryHealthy, Score: 90}
	case voltage >= BatteryWarningVolts:
		return models.BatteryAssessment{Status: models.BatteryWarning, Score: 60}
	default:
		return models.BatteryAssessment{Status: models.BatteryCritical, Score: 30}
	}
}
