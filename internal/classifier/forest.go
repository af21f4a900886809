package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"engine-health-monitor/internal/models"
)

// ErrArtifactFormat is returned when a model artifact cannot be used
var ErrArtifactFormat = errors.New("invalid model artifact")

const leaf = -1

// Node is one decision tree node. Samples with feature value <= Threshold
// go Left. A node with Left == -1 is a leaf carrying per-class Value weights.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened decision tree rooted at node 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a tree ensemble exported from the offline training job
type Forest struct {
	Name        string               `json:"name,omitempty"`
	ClassLabels []models.HealthLabel `json:"classes"`
	Features    []string             `json:"features"`
	Trees       []Tree               `json:"trees"`
}

// LoadForest reads a JSON forest artifact from disk
func LoadForest(path string) (*Forest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model artifact: %w", err)
	}
	defer file.Close()

	return DecodeForest(file)
}

// DecodeForest parses and validates a JSON forest artifact
func DecodeForest(r io.Reader) (*Forest, error) {
	var f Forest
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactFormat, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) validate() error {
	if len(f.ClassLabels) == 0 {
		return fmt.Errorf("%w: no classes", ErrArtifactFormat)
	}
	seen := make(map[models.HealthLabel]bool, len(f.ClassLabels))
	for _, label := range f.ClassLabels {
		if !knownLabel(label) {
			return fmt.Errorf("%w: unknown class %q", ErrArtifactFormat, label)
		}
		if seen[label] {
			return fmt.Errorf("%w: duplicate class %q", ErrArtifactFormat, label)
		}
		seen[label] = true
	}
	if len(f.Features) != len(FeatureNames) {
		return fmt.Errorf("%w: expected %d features, got %d", ErrArtifactFormat, len(FeatureNames), len(f.Features))
	}
	for i, name := range FeatureNames {
		if f.Features[i] != name {
			return fmt.Errorf("%w: feature %d is %q, want %q", ErrArtifactFormat, i, f.Features[i], name)
		}
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrArtifactFormat)
	}

	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrArtifactFormat, ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == leaf {
				if len(n.Value) != len(f.ClassLabels) {
					return fmt.Errorf("%w: tree %d node %d has %d values for %d classes",
						ErrArtifactFormat, ti, ni, len(n.Value), len(f.ClassLabels))
				}
				for _, w := range n.Value {
					if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
						return fmt.Errorf("%w: tree %d node %d has weight %v", ErrArtifactFormat, ti, ni, w)
					}
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(FeatureNames) {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", ErrArtifactFormat, ti, ni, n.Feature)
			}
			// children must come after their parent so evaluation terminates
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has out of range children", ErrArtifactFormat, ti, ni)
			}
		}
	}
	return nil
}

func knownLabel(l models.HealthLabel) bool {
	for _, k := range models.KnownLabels {
		if l == k {
			return true
		}
	}
	return false
}

// Classes returns the labels the forest was trained on
func (f *Forest) Classes() []models.HealthLabel {
	return f.ClassLabels
}

// PredictProbabilities averages normalised leaf weights across all trees
func (f *Forest) PredictProbabilities(v Vector) map[models.HealthLabel]float64 {
	sums := f.average(v.Values())
	probs := make(map[models.HealthLabel]float64, len(f.ClassLabels))
	for i, label := range f.ClassLabels {
		probs[label] = sums[i]
	}
	return probs
}

// Predict returns the class with the highest averaged probability; ties go
// to the class listed first.
func (f *Forest) Predict(v Vector) models.HealthLabel {
	sums := f.average(v.Values())
	best := 0
	for i := 1; i < len(sums); i++ {
		if sums[i] > sums[best] {
			best = i
		}
	}
	return f.ClassLabels[best]
}

func (f *Forest) average(x []float64) []float64 {
	sums := make([]float64, len(f.ClassLabels))
	for _, t := range f.Trees {
		value := t.leafValue(x)
		total := 0.0
		for _, w := range value {
			total += w
		}
		if total <= 0 {
			continue
		}
		for i, w := range value {
			sums[i] += w / total
		}
	}
	for i := range sums {
		sums[i] /= float64(len(f.Trees))
	}
	return sums
}

func (t Tree) leafValue(x []float64) []float64 {
	n := t.Nodes[0]
	for n.Left != leaf {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

// LoadHandle resolves the model handle at startup. An empty path disables
// the classifier; a load failure is logged and yields an absent handle.
func LoadHandle(path string, log logrus.FieldLogger) Handle {
	if path == "" {
		log.Info("Classifier disabled, no model artifact configured")
		return Absent()
	}

	f, err := LoadForest(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Model not loaded, classifier verdicts will be Unknown")
		return Absent()
	}

	log.WithFields(logrus.Fields{
		"path":    path,
		"trees":   len(f.Trees),
		"classes": f.ClassLabels,
	}).Info("Loaded classifier model")
	return Present(f)
}
