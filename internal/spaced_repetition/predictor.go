package spaced_repetition

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Artifact file names inside the models directory
const (
	IntervalModelFile = "interval_model.json"
	ScoreModelFile    = "ml_score_model.json"
)

// MaxIntervalDays caps every predicted interval at roughly a hundred years
const MaxIntervalDays = 36500.0

// Features is the predictor input. Vector() fixes the column order the models were trained on.
type Features struct {
	BaseDifficulty     float64
	PersonalDifficulty float64
	Difficulty         float64
	RepeatCount        int
	Stability          float64
	Rating             int
}

// Vector returns [base, personal, difficulty, repeatCount, stability, rating]
func (f Features) Vector() []float64 {
	return []float64{
		f.BaseDifficulty,
		f.PersonalDifficulty,
		f.Difficulty,
		float64(f.RepeatCount),
		f.Stability,
		float64(f.Rating),
	}
}

// IntervalPredictor estimates the next review interval and the recall probability
type IntervalPredictor interface {
	Predict(f Features) (intervalDays float64, recallProbability float64)
	Name() string
}

// FallbackPredictor is the deterministic predictor used without a trained model
type FallbackPredictor struct{}

// Predict returns max(1, 1+repeatCount*(1-difficulty)) and clamp(1-difficulty, 0.1, 1)
func (FallbackPredictor) Predict(f Features) (float64, float64) {
	interval := 1 + float64(f.RepeatCount)*(1-f.Difficulty)
	if interval < 1 {
		interval = 1
	}
	return interval, clamp(1-f.Difficulty, 0.1, 1.0)
}

func (FallbackPredictor) Name() string { return "fallback" }

// LearnedPredictor evaluates two externally trained regressors
type LearnedPredictor struct {
	interval Regressor
	score    Regressor
}

// NewLearnedPredictor wraps the interval and score regressors
func NewLearnedPredictor(interval, score Regressor) *LearnedPredictor {
	return &LearnedPredictor{interval: interval, score: score}
}

func (p *LearnedPredictor) Predict(f Features) (float64, float64) {
	x := f.Vector()
	interval := p.interval.Predict(x)
	switch {
	case math.IsNaN(interval) || interval < 1:
		interval = 1
	case interval > MaxIntervalDays:
		interval = MaxIntervalDays
	}
	score := p.score.Predict(x)
	if math.IsNaN(score) {
		score = 0
	}
	return interval, clamp(score, 0, 1)
}

func (p *LearnedPredictor) Name() string { return "learned" }

// LoadPredictor is called once at startup. When either artifact is missing or
// invalid it logs the reason and returns the fallback for the process lifetime.
func LoadPredictor(modelsDir string, log zerolog.Logger) IntervalPredictor {
	if modelsDir == "" {
		log.Info().Msg("no models directory configured, using fallback predictor")
		return FallbackPredictor{}
	}
	p, err := loadLearned(modelsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", modelsDir).Msg("learned model unavailable, using fallback predictor")
		return FallbackPredictor{}
	}
	log.Info().Str("dir", modelsDir).Msg("learned predictor loaded")
	return p
}

func loadLearned(dir string) (*LearnedPredictor, error) {
	interval, err := LoadRegressor(filepath.Join(dir, IntervalModelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load interval model: %w", err)
	}
	score, err := LoadRegressor(filepath.Join(dir, ScoreModelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load score model: %w", err)
	}
	return NewLearnedPredictor(interval, score), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
