package scheduler

import (
	"context"
	"fmt"
	"time"
)

// NextFireTime returns the first hour:minute strictly after now, in now's location
func NextFireTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) broadcastLoop(ctx context.Context) error {
	for {
		now := s.now().In(s.cfg.Location)
		next := NextFireTime(now, s.cfg.BroadcastHour, s.cfg.BroadcastMinute)
		s.log.Debug().Time("next_broadcast", next).Msg("waiting for daily broadcast")

		if !sleep(ctx, next.Sub(now)) {
			return nil
		}

		for attempt := 1; attempt <= maxBroadcastAttempts; attempt++ {
			err := s.Broadcast(ctx, next)
			if err == nil {
				break
			}
			s.log.Error().Err(err).Int("attempt", attempt).Msg("daily broadcast failed")
			if attempt == maxBroadcastAttempts || !sleep(ctx, s.cfg.RetryBackoff) {
				break
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Broadcast sends the daily motivation message to every registered user
func (s *Scheduler) Broadcast(ctx context.Context, day time.Time) error {
	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}

	text := MotivationText(day)
	var sent int
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.notifier.Send(ctx, user.ID, text); err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to send motivation")
			continue
		}
		if err := s.store.LogActivity(ctx, user.ID, "daily_motivation"); err != nil {
			s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to log activity")
		}
		sent++
	}

	s.log.Info().Int("users", len(users)).Int("sent", sent).Msg("daily motivation sent")
	return nil
}

// sleep waits for d and reports false if ctx was cancelled first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
