package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"engine-health-monitor/internal/classifier"
	"engine-health-monitor/internal/diagnostics"
	"engine-health-monitor/internal/models"
)

// Observer is notified of every assembled report
type Observer interface {
	ObserveReport(r models.HealthReport, took time.Duration)
}

// Assembler evaluates readings into health reports. It holds no per-call
// state and is safe for concurrent use.
type Assembler struct {
	rules      *diagnostics.Engine
	classifier *classifier.Adapter
	observer   Observer
	now        func() time.Time
	newID      func() string
}

// Option configures an Assembler
type Option func(*Assembler)

// WithObserver reports every assembled report to o
func WithObserver(o Observer) Option {
	return func(a *Assembler) { a.observer = o }
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler wires the rule engine and classifier adapter
func NewAssembler(rules *diagnostics.Engine, adapter *classifier.Adapter, opts ...Option) *Assembler {
	a := &Assembler{
		rules:      rules,
		classifier: adapter,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ModelPresent reports whether classifier verdicts will be available
func (a *Assembler) ModelPresent() bool {
	return a.classifier.Handle().IsPresent()
}

// Thresholds returns the rule limits in use
func (a *Assembler) Thresholds() diagnostics.Thresholds {
	return a.rules.Thresholds()
}

// Assemble evaluates one reading. The battery scorer, rule engine and
// classifier only depend on the reading and its derived features, so they
// run concurrently.
func (a *Assembler) Assemble(r models.SensorReading) models.HealthReport {
	return a.AssembleFor("", r)
}

// AssembleFor evaluates a reading attributed to a vehicle
func (a *Assembler) AssembleFor(vehicleID string, r models.SensorReading) models.HealthReport {
	start := time.Now()
	d := diagnostics.Derive(r)

	var (
		wg      sync.WaitGroup
		battery models.BatteryAssessment
		diag    models.DiagnosticResult
		verdict models.ClassifierAssessment
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		battery = diagnostics.AssessBattery(r.BatteryVoltage)
	}()
	go func() {
		defer wg.Done()
		diag = a.rules.Diagnose(r, d)
	}()
	go func() {
		defer wg.Done()
		verdict = a.classifier.Assess(r, d)
	}()
	wg.Wait()

	report := models.HealthReport{
		ID:          a.newID(),
		VehicleID:   vehicleID,
		GeneratedAt: a.now().UTC(),
		Reading:     r,
		Derived:     d,
		Battery:     battery,
		Diagnostics: diag,
		Classifier:  verdict,
	}

	if a.observer != nil {
		a.observer.ObserveReport(report, time.Since(start))
	}
	return report
}
