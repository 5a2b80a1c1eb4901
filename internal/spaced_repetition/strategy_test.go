package spaced_repetition

import (
	"testing"

	"github.com/example/reviewbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("translation_match")
	require.NoError(t, err)
	assert.Equal(t, StrategyTranslationMatch, s.Name())

	s, err = NewStrategy(" Self_Report ")
	require.NoError(t, err)
	assert.Equal(t, StrategySelfReport, s.Name())

	_, err = NewStrategy("coin_flip")
	assert.Error(t, err)
}

func TestCheckTranslation(t *testing.T) {
	assert.True(t, CheckTranslation("дом", "Дом"))
	assert.True(t, CheckTranslation("big house", "  big   HOUSE "))
	assert.False(t, CheckTranslation("дом", "домик"))
}

func TestSelfReportRate(t *testing.T) {
	w := &models.Word{Translation: "дом"}
	tests := []struct {
		answer string
		want   models.Rating
		err    error
	}{
		{answer: "дом 4", want: models.RatingEasy},
		{answer: "3", want: models.RatingGood},
		{answer: "Hard", want: models.RatingHard},
		{answer: "не помню снова", want: models.RatingAgain},
		{answer: "дом good!", want: models.RatingGood},
		{answer: "дом", err: ErrRatingRequired},
		{answer: "   ", err: ErrRatingRequired},
		{answer: "5", err: ErrRatingRequired},
	}
	for _, tt := range tests {
		got, err := SelfReport{}.Rate(w, tt.answer)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.answer)
			continue
		}
		require.NoError(t, err, tt.answer)
		assert.Equal(t, tt.want, got, tt.answer)
	}
}

func TestReconcile(t *testing.T) {
	assert.Equal(t, models.RatingEasy, TranslationMatch{}.Reconcile(models.RatingAgain, true))
	assert.Equal(t, models.RatingAgain, TranslationMatch{}.Reconcile(models.RatingEasy, false))

	assert.Equal(t, models.RatingHard, SelfReport{}.Reconcile(models.RatingHard, false))
	assert.Equal(t, models.RatingGood, SelfReport{}.Reconcile(models.RatingHard, true))
	assert.Equal(t, models.RatingEasy, SelfReport{}.Reconcile(models.RatingEasy, true))
	assert.Equal(t, models.RatingAgain, SelfReport{}.Reconcile(models.RatingEasy, false))

	for _, s := range []RatingStrategy{TranslationMatch{}, SelfReport{}} {
		for r := models.RatingAgain; r <= models.RatingEasy; r++ {
			assert.True(t, s.Reconcile(r, true).IsCorrect())
			assert.False(t, s.Reconcile(r, false).IsCorrect())
		}
	}
}
