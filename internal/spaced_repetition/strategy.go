package spaced_repetition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/reviewbot/pkg/models"
)

// Strategy names accepted in configuration
const (
	StrategyTranslationMatch = "translation_match"
	StrategySelfReport       = "self_report"
)

// ErrRatingRequired is returned by the self-report strategy when the answer has no 1-4 rating
var ErrRatingRequired = errors.New("answer does not contain a rating")

// RatingStrategy turns a learner's answer into a rating.
// The two implementations are not interchangeable and are chosen by configuration.
type RatingStrategy interface {
	Name() string
	Rate(word *models.Word, answer string) (models.Rating, error)
	// Reconcile merges the learner's yes/no confirmation into the pending rating.
	// The confirmation always decides correctness.
	Reconcile(pending models.Rating, confirmed bool) models.Rating
}

// NewStrategy returns the strategy registered under name
func NewStrategy(name string) (RatingStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyTranslationMatch:
		return TranslationMatch{}, nil
	case StrategySelfReport:
		return SelfReport{}, nil
	default:
		return nil, fmt.Errorf("unknown rating strategy %q", name)
	}
}

// TranslationMatch compares the answer with the stored translation: Easy on match, Again otherwise
type TranslationMatch struct{}

func (TranslationMatch) Name() string { return StrategyTranslationMatch }

func (TranslationMatch) Rate(word *models.Word, answer string) (models.Rating, error) {
	if CheckTranslation(word.Translation, answer) {
		return models.RatingEasy, nil
	}
	return models.RatingAgain, nil
}

func (TranslationMatch) Reconcile(_ models.Rating, confirmed bool) models.Rating {
	if confirmed {
		return models.RatingEasy
	}
	return models.RatingAgain
}

// CheckTranslation reports whether answer equals translation ignoring case and surrounding space
func CheckTranslation(translation, answer string) bool {
	return normalize(answer) == normalize(translation)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SelfReport expects the learner to grade the recall explicitly, e.g. "дом 3" or "good"
type SelfReport struct{}

var ratingTokens = map[string]models.Rating{
	"1": models.RatingAgain, "again": models.RatingAgain, "снова": models.RatingAgain,
	"2": models.RatingHard, "hard": models.RatingHard, "трудно": models.RatingHard,
	"3": models.RatingGood, "good": models.RatingGood, "хорошо": models.RatingGood,
	"4": models.RatingEasy, "easy": models.RatingEasy, "легко": models.RatingEasy,
}

func (SelfReport) Name() string { return StrategySelfReport }

// Rate takes the last token of the answer as the rating
func (SelfReport) Rate(_ *models.Word, answer string) (models.Rating, error) {
	fields := strings.Fields(strings.ToLower(answer))
	if len(fields) == 0 {
		return 0, ErrRatingRequired
	}
	r, ok := ratingTokens[strings.Trim(fields[len(fields)-1], ".,!")]
	if !ok {
		return 0, ErrRatingRequired
	}
	return r, nil
}

func (SelfReport) Reconcile(pending models.Rating, confirmed bool) models.Rating {
	switch {
	case confirmed && !pending.IsCorrect():
		return models.RatingGood
	case !confirmed && pending.IsCorrect():
		return models.RatingAgain
	default:
		return pending
	}
}
