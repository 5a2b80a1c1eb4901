package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/reviewbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Type: TypeSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenUnsupportedType(t *testing.T) {
	_, err := Open(Config{Type: "mysql"})
	assert.Error(t, err)
}

func TestOpenCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "bot.db")
	s, err := Open(Config{Type: TypeSQLite, DSN: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddUser(ctx, 100, "alice"))
	require.NoError(t, s.AddUser(ctx, 100, "renamed"), "adding twice is a no-op")
	require.NoError(t, s.AddUser(ctx, 50, "bob"))

	u, err := s.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, models.DefaultRemindersPerDay, u.RemindersPerDay)
	assert.Equal(t, "UTC", u.Timezone)

	_, err = s.GetUser(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdateReminders(ctx, 100, 5))
	u, err = s.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, u.RemindersPerDay)

	assert.Error(t, s.UpdateReminders(ctx, 100, 24))
	assert.Error(t, s.UpdateReminders(ctx, 100, 0))
	assert.ErrorIs(t, s.UpdateReminders(ctx, 1, 3), ErrNotFound)

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(50), users[0].ID)
}

func TestWordsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, 1, "alice"))

	late := models.NewWord(1, "cat", "кошка", t0)
	early := models.NewWord(1, "dog", "собака", t0.Add(-48*time.Hour))
	require.NoError(t, s.AddWord(ctx, &late))
	require.NoError(t, s.AddWord(ctx, &early))
	assert.NotZero(t, late.ID)
	assert.NotEqual(t, late.ID, early.ID)

	words, err := s.GetUserWords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "dog", words[0].Text, "ordered by next repeat")
	assert.Equal(t, t0.Add(-24*time.Hour), words[0].NextRepeat)
	assert.Equal(t, models.DefaultStability, words[0].Stability)
	assert.Empty(t, words[0].History)

	none, err := s.GetUserWords(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReserveNextRepeat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, 1, "alice"))
	w := models.NewWord(1, "cat", "кошка", t0)
	require.NoError(t, s.AddWord(ctx, &w))

	next := t0.Add(8 * time.Hour)
	require.NoError(t, s.ReserveNextRepeat(ctx, 1, w.ID, next))
	got, err := s.GetWord(ctx, 1, w.ID)
	require.NoError(t, err)
	assert.Equal(t, next, got.NextRepeat)
	assert.Equal(t, 0, got.RepeatCount)

	assert.ErrorIs(t, s.ReserveNextRepeat(ctx, 2, w.ID, next), ErrNotFound, "other users' words are not touched")
}

func TestApplyReviewUpdateAppendsHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, 1, "alice"))
	w := models.NewWord(1, "cat", "кошка", t0)
	require.NoError(t, s.AddWord(ctx, &w))

	for i := 1; i <= 2; i++ {
		upd := models.ReviewUpdate{
			NextRepeat:         t0.Add(time.Duration(i) * 48 * time.Hour),
			PersonalDifficulty: 0.475,
			Difficulty:         0.4925,
			Stability:          1.5,
			RecallProbability:  0.5075,
			RepeatCount:        i,
			HistoryAppend: models.ReviewEvent{
				Timestamp: t0.Add(time.Duration(i) * time.Hour),
				Rating:    models.RatingGood,
				IsCorrect: i == 2,
			},
		}
		require.NoError(t, s.ApplyReviewUpdate(ctx, 1, w.ID, upd))
	}

	got, err := s.GetWord(ctx, 1, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RepeatCount)
	assert.Equal(t, t0.Add(96*time.Hour), got.NextRepeat)
	assert.InDelta(t, 0.4925, got.Difficulty, 1e-9)
	assert.InDelta(t, 0.5, got.BaseDifficulty, 1e-9, "base difficulty is never updated")
	require.Len(t, got.History, 2)
	assert.False(t, got.History[0].IsCorrect)
	assert.True(t, got.History[1].IsCorrect)
	assert.Equal(t, t0.Add(2*time.Hour), got.History[1].Timestamp)

	err = s.ApplyReviewUpdate(ctx, 1, 999, models.ReviewUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyReviewUpdateConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, 1, "alice"))
	w := models.NewWord(1, "cat", "кошка", t0)
	require.NoError(t, s.AddWord(ctx, &w))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			upd := models.ReviewUpdate{
				NextRepeat:    t0.Add(24 * time.Hour),
				Stability:     1,
				RepeatCount:   1,
				HistoryAppend: models.ReviewEvent{Timestamp: t0, Rating: models.RatingEasy, IsCorrect: true},
			}
			assert.NoError(t, s.ApplyReviewUpdate(ctx, 1, w.ID, upd))
		}(i)
	}
	wg.Wait()

	got, err := s.GetWord(ctx, 1, w.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 10, "no appended event is lost")
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, 1, "alice"))

	learned := models.NewWord(1, "cat", "кошка", t0.Add(-72*time.Hour))
	fresh := models.NewWord(1, "dog", "собака", t0)
	require.NoError(t, s.AddWord(ctx, &learned))
	require.NoError(t, s.AddWord(ctx, &fresh))
	require.NoError(t, s.ApplyReviewUpdate(ctx, 1, learned.ID, models.ReviewUpdate{
		NextRepeat:    t0.Add(-time.Hour),
		Stability:     30,
		RepeatCount:   1,
		HistoryAppend: models.ReviewEvent{Timestamp: t0, Rating: models.RatingEasy, IsCorrect: true},
	}))
	require.NoError(t, s.ApplyReviewUpdate(ctx, 1, fresh.ID, models.ReviewUpdate{
		NextRepeat:    t0.Add(48 * time.Hour),
		Stability:     1,
		RepeatCount:   1,
		HistoryAppend: models.ReviewEvent{Timestamp: t0, Rating: models.RatingAgain},
	}))
	require.NoError(t, s.LogActivity(ctx, 1, "reminder:cat"))
	require.NoError(t, s.LogActivity(ctx, 1, "answered:cat:correct"))
	require.NoError(t, s.LogActivity(ctx, 2, "daily_motivation"))

	stats, err := s.GetUserStats(ctx, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalWords)
	assert.Equal(t, 1, stats.DueWords)
	assert.Equal(t, 1, stats.LearnedWords)
	assert.Equal(t, 1, stats.LearnedWeek)
	assert.Equal(t, 1, stats.LearnedMonth)
	assert.Equal(t, 2, stats.Reviews)
	assert.InDelta(t, 50.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, 2, stats.ActivityEvents)

	_, err = s.GetUserStats(ctx, 42, t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsLearnedWindows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, 1, "alice"))

	day := 24 * time.Hour
	learn := func(text string, at time.Time, correct bool) {
		w := models.NewWord(1, text, text, t0.Add(-60*day))
		require.NoError(t, s.AddWord(ctx, &w))
		rating := models.RatingAgain
		if correct {
			rating = models.RatingEasy
		}
		require.NoError(t, s.ApplyReviewUpdate(ctx, 1, w.ID, models.ReviewUpdate{
			NextRepeat:    t0.Add(30 * day),
			Stability:     LearnedStability,
			RepeatCount:   1,
			HistoryAppend: models.ReviewEvent{Timestamp: at, Rating: rating, IsCorrect: correct},
		}))
	}
	learn("recent", t0.Add(-2*day), true)
	learn("weeks", t0.Add(-10*day), true)
	learn("old", t0.Add(-40*day), true)
	learn("never", t0.Add(-day), false)

	stats, err := s.GetUserStats(ctx, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.LearnedWords)
	assert.Equal(t, 1, stats.LearnedWeek)
	assert.Equal(t, 2, stats.LearnedMonth)
}
