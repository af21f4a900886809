package sensor

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"engine-health-monitor/internal/models"
	"engine-health-monitor/internal/parser"
)

// ErrNoReading is returned when a provider has nothing to report yet
var ErrNoReading = errors.New("no sensor reading available")

// Provider returns one complete reading per call
type Provider interface {
	Read(ctx context.Context) (parser.Record, error)
}

// ManualDefault is the reading used when no provider can be reached
func ManualDefault() models.SensorReading {
	return models.SensorReading{
		EngineRPM:       1100,
		LubOilPressure:  3.6,
		FuelPressure:    10.5,
		CoolantPressure: 3.7,
		LubOilTemp:      86,
		CoolantTemp:     128,
		BatteryVoltage:  11.6,
	}
}

// ReadOrDefault reads from p and falls back to the manual default reading
// on any failure. The boolean reports whether the provider was used.
func ReadOrDefault(ctx context.Context, p Provider, log logrus.FieldLogger) (parser.Record, bool) {
	if p == nil {
		return parser.Record{Reading: ManualDefault()}, false
	}
	rec, err := p.Read(ctx)
	if err != nil {
		log.WithError(err).Warn("Sensor error, switching to manual input")
		return parser.Record{Reading: ManualDefault()}, false
	}
	return rec, true
}
