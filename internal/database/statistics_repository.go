package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/reviewbot/pkg/models"
)

// LearnedStability is the stability in days from which a word counts as learned
const LearnedStability = 21.0

// Windows of the "learned recently" counters
const (
	learnedWeek  = 7 * 24 * time.Hour
	learnedMonth = 30 * 24 * time.Hour
)

// LogActivity appends an entry to the user's activity log
func (s *Store) LogActivity(ctx context.Context, userID int64, action string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO activity (user_id, action, created_at) VALUES (?, ?, ?)"),
		userID, action, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// GetUserStats summarizes the user's progress at now
func (s *Store) GetUserStats(ctx context.Context, userID int64, now time.Time) (*models.Stats, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	words, err := s.GetUserWords(ctx, userID)
	if err != nil {
		return nil, err
	}

	var stats models.Stats
	var correct int
	stats.TotalWords = len(words)
	for i := range words {
		w := &words[i]
		if w.IsDue(now) {
			stats.DueWords++
		}
		if w.Stability >= LearnedStability {
			stats.LearnedWords++
			if at, ok := lastCorrect(w.History); ok && !at.After(now) {
				age := now.Sub(at)
				if age <= learnedWeek {
					stats.LearnedWeek++
				}
				if age <= learnedMonth {
					stats.LearnedMonth++
				}
			}
		}
		for _, ev := range w.History {
			stats.Reviews++
			if ev.IsCorrect {
				correct++
			}
		}
	}
	if stats.Reviews > 0 {
		stats.SuccessRate = float64(correct) / float64(stats.Reviews) * 100
	}

	err = s.db.GetContext(ctx, &stats.ActivityEvents,
		s.db.Rebind("SELECT COUNT(*) FROM activity WHERE user_id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}
	return &stats, nil
}

func lastCorrect(history models.History) (time.Time, bool) {
	var at time.Time
	for _, ev := range history {
		if ev.IsCorrect && ev.Timestamp.After(at) {
			at = ev.Timestamp
		}
	}
	return at, !at.IsZero()
}
