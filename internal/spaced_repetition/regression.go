package spaced_repetition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// NumFeatures is the length of Features.Vector()
const NumFeatures = 6

// Artifact kinds
const (
	KindLinear       = "linear"
	KindTreeEnsemble = "tree_ensemble"
)

var ErrInvalidModel = errors.New("invalid model artifact")

// Regressor is a trained regression function over the feature vector
type Regressor interface {
	Predict(x []float64) float64
}

// artifact is the on-disk JSON export of a trained regressor
type artifact struct {
	Kind string `json:"kind"`

	// linear
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`

	// tree_ensemble
	BaseScore    float64 `json:"base_score"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// LinearRegressor computes intercept + coef·x
type LinearRegressor struct {
	Intercept float64
	Coef      []float64
}

func (r *LinearRegressor) Predict(x []float64) float64 {
	y := r.Intercept
	for i, c := range r.Coef {
		y += c * x[i]
	}
	return y
}

// Tree is a flattened binary regression tree. Node i is a leaf when Left[i] < 0;
// otherwise x[Feature[i]] <= Threshold[i] goes left.
type Tree struct {
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Value     []float64 `json:"value"`
}

func (t *Tree) eval(x []float64) float64 {
	i := 0
	for t.Left[i] >= 0 {
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

func (t *Tree) validate() error {
	n := len(t.Value)
	if n == 0 {
		return fmt.Errorf("%w: empty tree", ErrInvalidModel)
	}
	if len(t.Left) != n || len(t.Right) != n || len(t.Feature) != n || len(t.Threshold) != n {
		return fmt.Errorf("%w: tree arrays differ in length", ErrInvalidModel)
	}
	for i := 0; i < n; i++ {
		if t.Left[i] < 0 {
			continue
		}
		// children are always numbered after their parent, which rules out cycles
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("%w: node %d has bad children", ErrInvalidModel, i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= NumFeatures {
			return fmt.Errorf("%w: node %d uses feature %d", ErrInvalidModel, i, t.Feature[i])
		}
	}
	return nil
}

// TreeEnsemble computes base_score + learning_rate * Σ tree(x)
type TreeEnsemble struct {
	BaseScore    float64
	LearningRate float64
	Trees        []Tree
}

func (e *TreeEnsemble) Predict(x []float64) float64 {
	sum := 0.0
	for i := range e.Trees {
		sum += e.Trees[i].eval(x)
	}
	return e.BaseScore + e.LearningRate*sum
}

// LoadRegressor reads and validates a JSON artifact
func LoadRegressor(path string) (Regressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegressor(data)
}

// ParseRegressor decodes a JSON artifact
func ParseRegressor(data []byte) (Regressor, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	switch a.Kind {
	case KindLinear:
		if len(a.Coef) != NumFeatures {
			return nil, fmt.Errorf("%w: expected %d coefficients, got %d", ErrInvalidModel, NumFeatures, len(a.Coef))
		}
		return &LinearRegressor{Intercept: a.Intercept, Coef: a.Coef}, nil
	case KindTreeEnsemble:
		if len(a.Trees) == 0 {
			return nil, fmt.Errorf("%w: no trees", ErrInvalidModel)
		}
		for i := range a.Trees {
			if err := a.Trees[i].validate(); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		lr := a.LearningRate
		if lr == 0 {
			lr = 1
		}
		return &TreeEnsemble{BaseScore: a.BaseScore, LearningRate: lr, Trees: a.Trees}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidModel, a.Kind)
	}
}
