package spaced_repetition

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/example/reviewbot/pkg/models"
	"github.com/rs/zerolog"
)

const day = 24 * time.Hour

// Store persists the outcome of a review
type Store interface {
	ApplyReviewUpdate(ctx context.Context, userID, wordID int64, update models.ReviewUpdate) error
}

// Feedback is what the learner is told after a review
type Feedback struct {
	Correct           bool          `json:"correct"`
	NextRepeatDays    int           `json:"next_repeat_days"`
	RecallProbability float64       `json:"recall_probability"`
	Rating            models.Rating `json:"rating"`
}

// Assessment is a rated but not yet persisted answer
type Assessment struct {
	Answer   string
	Rating   models.Rating
	Feedback Feedback
}

// Evaluator converts answers into persisted word state transitions
type Evaluator struct {
	store     Store
	predictor IntervalPredictor
	strategy  RatingStrategy
	log       zerolog.Logger
}

// NewEvaluator creates an evaluator. The predictor is fixed for the evaluator's lifetime.
func NewEvaluator(store Store, predictor IntervalPredictor, strategy RatingStrategy, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:     store,
		predictor: predictor,
		strategy:  strategy,
		log:       log.With().Str("component", "evaluator").Logger(),
	}
}

// Strategy returns the configured rating strategy
func (e *Evaluator) Strategy() RatingStrategy {
	return e.strategy
}

// Assess rates the answer and previews the resulting schedule without changing anything
func (e *Evaluator) Assess(word *models.Word, answer string, now time.Time) (Assessment, error) {
	rating, err := e.strategy.Rate(word, answer)
	if err != nil {
		return Assessment{}, err
	}
	_, fb := e.next(word, rating, now)
	return Assessment{Answer: answer, Rating: rating, Feedback: fb}, nil
}

// Apply records a review with the given rating and persists the new state.
// word is only modified once the store has accepted the update.
func (e *Evaluator) Apply(ctx context.Context, word *models.Word, rating models.Rating, now time.Time) (Feedback, error) {
	if !rating.IsValid() {
		return Feedback{}, fmt.Errorf("invalid rating %d", rating)
	}

	upd, fb := e.next(word, rating, now)
	if err := e.store.ApplyReviewUpdate(ctx, word.UserID, word.ID, upd); err != nil {
		return Feedback{}, fmt.Errorf("failed to save review of word %d: %w", word.ID, err)
	}

	word.RepeatCount = upd.RepeatCount
	word.PersonalDifficulty = upd.PersonalDifficulty
	word.Difficulty = upd.Difficulty
	word.Stability = upd.Stability
	word.RecallProbability = upd.RecallProbability
	word.NextRepeat = upd.NextRepeat
	word.History = append(word.History, upd.HistoryAppend)

	e.log.Debug().
		Int64("user_id", word.UserID).
		Int64("word_id", word.ID).
		Stringer("rating", rating).
		Int("next_repeat_days", fb.NextRepeatDays).
		Float64("difficulty", word.Difficulty).
		Str("predictor", e.predictor.Name()).
		Msg("review applied")

	return fb, nil
}

func (e *Evaluator) next(word *models.Word, rating models.Rating, now time.Time) (models.ReviewUpdate, Feedback) {
	repeatCount := word.RepeatCount + 1
	isCorrect := rating.IsCorrect()

	personal, difficulty := UpdateDifficulty(word.BaseDifficulty, word.PersonalDifficulty, isCorrect)

	intervalDays, recall := e.predictor.Predict(Features{
		BaseDifficulty:     word.BaseDifficulty,
		PersonalDifficulty: personal,
		Difficulty:         difficulty,
		RepeatCount:        repeatCount,
		Stability:          word.Stability,
		Rating:             int(rating),
	})

	// bounds keep the duration arithmetic below from overflowing
	if math.IsNaN(intervalDays) || intervalDays < 1 {
		intervalDays = 1
	}
	intervalDays = math.Min(intervalDays, MaxIntervalDays)

	stability := intervalDays
	days := int(math.Round(intervalDays))
	nextRepeat := now.Add(time.Duration(days) * day)
	// nextRepeat only ever moves forward
	if !nextRepeat.After(word.NextRepeat) {
		base := word.NextRepeat
		if now.After(base) {
			base = now
		}
		nextRepeat = base.Add(day)
		days = int(math.Ceil(float64(nextRepeat.Sub(now)) / float64(day)))
	}

	upd := models.ReviewUpdate{
		NextRepeat:         nextRepeat,
		PersonalDifficulty: personal,
		Difficulty:         difficulty,
		Stability:          stability,
		RecallProbability:  recall,
		RepeatCount:        repeatCount,
		HistoryAppend:      models.ReviewEvent{Timestamp: now, Rating: rating, IsCorrect: isCorrect},
	}
	fb := Feedback{
		Correct:           isCorrect,
		NextRepeatDays:    days,
		RecallProbability: recall,
		Rating:            rating,
	}
	return upd, fb
}
