package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"engine-health-monitor/internal/models"
	"engine-health-monitor/internal/parser"
)

type band struct {
	oilTemp, coolantTemp      [2]int
	oilPressure, fuelPressure [2]float64
	rpm                       [2]int
	batteryVoltage            [2]float64
}

var bands = map[models.HealthLabel]band{
	models.LabelHealthy: {
		oilTemp: [2]int{70, 92}, coolantTemp: [2]int{75, 98},
		oilPressure: [2]float64{3.2, 5.5}, fuelPressure: [2]float64{9.0, 16.0},
		rpm: [2]int{800, 2200}, batteryVoltage: [2]float64{12.2, 13.5},
	},
	models.LabelWarning: {
		oilTemp: [2]int{90, 108}, coolantTemp: [2]int{95, 115},
		oilPressure: [2]float64{2.2, 3.5}, fuelPressure: [2]float64{7.0, 10.0},
		rpm: [2]int{2000, 2800}, batteryVoltage: [2]float64{11.5, 12.4},
	},
	models.LabelCritical: {
		oilTemp: [2]int{105, 125}, coolantTemp: [2]int{110, 135},
		oilPressure: [2]float64{1.0, 2.5}, fuelPressure: [2]float64{4.0, 7.5},
		rpm: [2]int{2500, 3500}, batteryVoltage: [2]float64{10.0, 11.8},
	},
}

// Mode selects how a Simulator draws readings
type Mode string

const (
	// ModeBanded draws a condition first, then every field from that condition's band
	ModeBanded Mode = "banded"
	// ModeCorrelated mimics a live engine: oil temperature drives the other
	// fields and the condition is derived from the result
	ModeCorrelated Mode = "correlated"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBanded, ModeCorrelated:
		return m, nil
	default:
		return "", fmt.Errorf("unknown simulator mode %q", s)
	}
}

// Simulator synthesises readings for a weighted mix of engine conditions
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	vehicleID string
	mode      Mode
	now       func() time.Time
}

// SimulatorOption configures a Simulator
type SimulatorOption func(*Simulator)

// WithMode selects the generation mode; the default is ModeBanded
func WithMode(m Mode) SimulatorOption {
	return func(s *Simulator) { s.mode = m }
}

// NewSimulator creates a simulator; the same seed yields the same sequence
func NewSimulator(seed int64, vehicleID string, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		rng:       rand.New(rand.NewSource(seed)),
		vehicleID: vehicleID,
		mode:      ModeBanded,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read implements Provider
func (s *Simulator) Read(ctx context.Context) (parser.Record, error) {
	if err := ctx.Err(); err != nil {
		return parser.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec parser.Record
	if s.mode == ModeCorrelated {
		rec = s.correlated()
	} else {
		rec = s.generate(s.pickCondition())
	}
	rec.VehicleID = s.vehicleID
	rec.Timestamp = s.now()
	return rec, nil
}

// Generate returns a reading for the given condition
func (s *Simulator) Generate(condition models.HealthLabel) parser.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generate(condition)
}

// Healthy 50%, Warning 30%, Critical 20%
func (s *Simulator) pickCondition() models.HealthLabel {
	x := s.rng.Float64()
	switch {
	case x < 0.5:
		return models.LabelHealthy
	case x < 0.8:
		return models.LabelWarning
	default:
		return models.LabelCritical
	}
}

func (s *Simulator) generate(condition models.HealthLabel) parser.Record {
	b, ok := bands[condition]
	if !ok {
		b = bands[models.LabelHealthy]
		condition = models.LabelHealthy
	}

	oilTemp := s.intn(b.oilTemp) + s.intn([2]int{-2, 2})
	coolantTemp := s.intn(b.coolantTemp) + s.intn([2]int{-2, 2})
	oilPressure := s.uniform(b.oilPressure) + s.uniform([2]float64{-0.1, 0.1})

	return parser.Record{
		Condition: condition,
		Reading: models.SensorReading{
			EngineRPM:       s.intn(b.rpm),
			LubOilPressure:  round2(math.Max(0, oilPressure)),
			FuelPressure:    round2(s.uniform(b.fuelPressure)),
			CoolantPressure: round2(s.uniform([2]float64{2.0, 5.0})),
			LubOilTemp:      float64(oilTemp),
			CoolantTemp:     float64(coolantTemp),
			BatteryVoltage:  round2(s.uniform(b.batteryVoltage)),
		},
	}
}

func (s *Simulator) correlated() parser.Record {
	oilTemp := int(s.triangular(70, 125, 85))
	oilPressure := round2(math.Max(1.0, 6.5-0.04*float64(oilTemp)+s.uniform([2]float64{-0.3, 0.3})))
	coolantTemp := oilTemp + s.intn([2]int{5, 15})

	rpm := s.intn([2]int{800, 2200})
	if oilTemp > 100 {
		rpm = s.intn([2]int{2200, 3500})
	}
	fuelPressure := s.uniform([2]float64{9.0, 16.0})
	if oilTemp > 110 {
		fuelPressure = s.uniform([2]float64{4.0, 9.0})
	}
	battery := s.uniform([2]float64{11.5, 13.5})
	if oilTemp > 115 {
		battery -= s.uniform([2]float64{0.5, 1.5})
	}

	return parser.Record{
		Condition: correlatedCondition(float64(oilTemp), float64(coolantTemp), oilPressure),
		Reading: models.SensorReading{
			EngineRPM:       rpm,
			LubOilPressure:  oilPressure,
			FuelPressure:    round2(fuelPressure),
			CoolantPressure: round2(s.uniform([2]float64{2.0, 5.0})),
			LubOilTemp:      float64(oilTemp),
			CoolantTemp:     float64(coolantTemp),
			BatteryVoltage:  round2(battery),
		},
	}
}

// correlatedCondition is the ground-truth label for a correlated reading
func correlatedCondition(oilTemp, coolantTemp, oilPressure float64) models.HealthLabel {
	switch {
	case oilTemp > 105 || coolantTemp > 110 || oilPressure < 2.5:
		return models.LabelCritical
	case oilTemp > 90 || coolantTemp > 95 || oilPressure < 3.5:
		return models.LabelWarning
	default:
		return models.LabelHealthy
	}
}

// triangular draws from the triangular distribution on [low, high] peaking at mode
func (s *Simulator) triangular(low, high, mode float64) float64 {
	u := s.rng.Float64()
	c := (mode - low) / (high - low)
	if u > c {
		u, c = 1-u, 1-c
		low, high = high, low
	}
	return low + (high-low)*math.Sqrt(u*c)
}

// intn returns an integer in the closed range
func (s *Simulator) intn(r [2]int) int {
	return r[0] + s.rng.Intn(r[1]-r[0]+1)
}

func (s *Simulator) uniform(r [2]float64) float64 {
	return r[0] + s.rng.Float64()*(r[1]-r[0])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
