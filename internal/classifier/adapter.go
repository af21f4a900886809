package classifier

import (
	"math"

	"engine-health-monitor/internal/models"
)

// Adapter turns readings into classifier assessments
type Adapter struct {
	handle Handle
}

// NewAdapter creates an adapter over a resolved model handle
func NewAdapter(h Handle) *Adapter {
	return &Adapter{handle: h}
}

// Handle returns the model handle the adapter was built with
func (a *Adapter) Handle() Handle {
	return a.handle
}

// Assess classifies one reading. Without a model the result is the
// Unknown label with no probabilities.
func (a *Adapter) Assess(r models.SensorReading, d models.DerivedFeatures) models.ClassifierAssessment {
	m, ok := a.handle.Model()
	if !ok {
		return models.ClassifierAssessment{
			PredictedLabel: models.LabelUnknown,
			Probabilities:  map[models.HealthLabel]float64{},
		}
	}

	v := NewVector(r, d)
	probs := m.PredictProbabilities(v)
	pct := make(map[models.HealthLabel]float64, len(probs))
	for label, p := range probs {
		pct[label] = toPercent(p)
	}

	return models.ClassifierAssessment{
		PredictedLabel: m.Predict(v),
		Probabilities:  pct,
	}
}

// toPercent converts a probability to a percentage with one decimal place.
// Halves round to even.
func toPercent(p float64) float64 {
	return math.RoundToEven(p*100*10) / 10
}
