package diagnostics

import (
	"math"

	"engine-health-monitor/internal/models"
)

// Derive computes the secondary features of a reading
func Derive(r models.SensorReading) models.DerivedFeatures {
	return models.DerivedFeatures{
		TempDiff: math.Abs(r.LubOilTemp - r.CoolantTemp),
	}
}
