package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/reviewbot/internal/conversation"
	"github.com/example/reviewbot/pkg/models"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	reviewTag = "review-pass"
	retryTag  = "review-retry"

	maxBroadcastAttempts = 5
)

// Store is the persistence the scheduler needs
type Store interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUserWords(ctx context.Context, userID int64) ([]models.Word, error)
	ReserveNextRepeat(ctx context.Context, userID, wordID int64, next time.Time) error
	LogActivity(ctx context.Context, userID int64, action string) error
}

// Notifier interface for sending notifications
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Reviews tracks the review each user is answering
type Reviews interface {
	Open(userID int64, word models.Word) (conversation.State, error)
	Active(userID int64) (conversation.State, bool)
	Cancel(userID int64) bool
}

// Config controls the cadence of both periodic activities
type Config struct {
	// ReviewInterval is how often users are scanned for due words
	ReviewInterval time.Duration
	// RetryBackoff is the delay before a failed pass is retried
	RetryBackoff time.Duration
	// ConversationTTL cancels reviews the learner never answered. Zero keeps them forever.
	ConversationTTL time.Duration

	BroadcastEnabled bool
	BroadcastHour    int
	BroadcastMinute  int
	Location         *time.Location
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		ReviewInterval:   time.Minute,
		RetryBackoff:     time.Minute,
		ConversationTTL:  24 * time.Hour,
		BroadcastEnabled: true,
		BroadcastHour:    12,
		BroadcastMinute:  0,
		Location:         time.UTC,
	}
}

// Scheduler sends review reminders and the daily motivation broadcast
type Scheduler struct {
	cfg      Config
	store    Store
	notifier Notifier
	reviews  Reviews
	log      zerolog.Logger
	now      func() time.Time

	// passMu keeps the regular and the retry job from overlapping
	passMu sync.Mutex

	remMu        sync.Mutex
	lastReminder map[int64]time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	cron    *gocron.Scheduler
	group   *errgroup.Group
	jobs    sync.WaitGroup
	running bool
}

// New creates a new scheduler instance
func New(cfg Config, store Store, notifier Notifier, reviews Reviews, log zerolog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		cfg:          cfg,
		store:        store,
		notifier:     notifier,
		reviews:      reviews,
		log:          log.With().Str("component", "scheduler").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
		lastReminder: make(map[int64]time.Time),
	}
}

// Start begins running all scheduled tasks. The first review pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := gocron.NewScheduler(time.UTC)
	c.SingletonModeAll()
	if _, err := c.Every(s.cfg.ReviewInterval).Tag(reviewTag).Do(s.runReviewJob); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule review pass: %w", err)
	}

	s.ctx, s.cancel, s.cron = ctx, cancel, c
	s.group, ctx = errgroup.WithContext(ctx)
	s.running = true

	c.StartAsync()
	if s.cfg.BroadcastEnabled {
		s.group.Go(func() error { return s.broadcastLoop(ctx) })
	}

	s.log.Info().
		Dur("review_interval", s.cfg.ReviewInterval).
		Bool("broadcast", s.cfg.BroadcastEnabled).
		Msg("scheduler started")
	return nil
}

// Stop cancels both activities and waits for them to finish or for ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	c, g := s.cron, s.group
	s.mu.Unlock()

	c.Stop()

	done := make(chan error, 1)
	go func() {
		s.jobs.Wait()
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		s.log.Info().Msg("scheduler stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop in time: %w", ctx.Err())
	}
}

func (s *Scheduler) runReviewJob() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.jobs.Add(1)
	s.mu.Unlock()
	defer s.jobs.Done()

	if err := s.RunPass(ctx, s.now()); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error().Err(err).Dur("retry_in", s.cfg.RetryBackoff).Msg("review pass failed")
		s.scheduleRetry()
	}
}

// scheduleRetry queues a single extra pass after the backoff delay
func (s *Scheduler) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	_ = s.cron.RemoveByTag(retryTag)
	_, err := s.cron.Every(s.cfg.RetryBackoff).
		StartAt(s.now().Add(s.cfg.RetryBackoff)).
		LimitRunsTo(1).
		Tag(retryTag).
		Do(s.runReviewJob)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to schedule retry")
	}
}

// RunPass scans every user once and sends at most one reminder per user.
// Failures of a single user are logged and do not stop the pass.
func (s *Scheduler) RunPass(ctx context.Context, now time.Time) error {
	if !s.passMu.TryLock() {
		s.log.Debug().Msg("review pass already running, skipping")
		return nil
	}
	defer s.passMu.Unlock()

	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}

	var sent, failed int
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := s.remindUser(ctx, user, now)
		if err != nil {
			failed++
			// ErrConversationExists is only reachable through a bug in the checks above
			s.log.Error().
				Err(err).
				Int64("user_id", user.ID).
				Bool("invariant_violation", errors.Is(err, conversation.ErrConversationExists)).
				Msg("failed to process user")
			continue
		}
		if ok {
			sent++
		}
	}

	s.log.Debug().Int("users", len(users)).Int("reminders", sent).Int("failed", failed).Msg("review pass finished")
	return nil
}

func (s *Scheduler) remindUser(ctx context.Context, user models.User, now time.Time) (bool, error) {
	pacing := user.Pacing().ReminderInterval()

	if st, ok := s.reviews.Active(user.ID); ok {
		if s.cfg.ConversationTTL <= 0 || now.Sub(st.OpenedAt) < s.cfg.ConversationTTL {
			return false, nil
		}
		s.reviews.Cancel(user.ID)
		s.log.Info().Int64("user_id", user.ID).Str("conversation", st.ID).Msg("expired unanswered review")
	}

	if last, ok := s.lastReminderAt(user.ID); ok && now.Sub(last) < pacing {
		return false, nil
	}

	words, err := s.store.GetUserWords(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get words: %w", err)
	}
	word, ok := SelectDue(words, now)
	if !ok {
		return false, nil
	}

	// reserve before sending so an unanswered reminder is not repeated every pass
	next := now.Add(pacing)
	if err := s.store.ReserveNextRepeat(ctx, user.ID, word.ID, next); err != nil {
		return false, fmt.Errorf("failed to reserve word %d: %w", word.ID, err)
	}
	word.NextRepeat = next

	if _, err := s.reviews.Open(user.ID, word); err != nil {
		return false, fmt.Errorf("failed to open review of word %d: %w", word.ID, err)
	}
	if err := s.notifier.Send(ctx, user.ID, ReminderText(word)); err != nil {
		s.reviews.Cancel(user.ID)
		return false, fmt.Errorf("failed to send reminder: %w", err)
	}
	s.setLastReminder(user.ID, now)

	if err := s.store.LogActivity(ctx, user.ID, "reminder:"+word.Text); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to log activity")
	}
	s.log.Info().Int64("user_id", user.ID).Int64("word_id", word.ID).Time("next_repeat", next).Msg("reminder sent")
	return true, nil
}

// SelectDue returns the earliest due word
func SelectDue(words []models.Word, now time.Time) (models.Word, bool) {
	due := make([]models.Word, 0, len(words))
	for _, w := range words {
		if w.IsDue(now) {
			due = append(due, w)
		}
	}
	if len(due) == 0 {
		return models.Word{}, false
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].NextRepeat.Equal(due[j].NextRepeat) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextRepeat.Before(due[j].NextRepeat)
	})
	return due[0], true
}

func (s *Scheduler) lastReminderAt(userID int64) (time.Time, bool) {
	s.remMu.Lock()
	defer s.remMu.Unlock()
	t, ok := s.lastReminder[userID]
	return t, ok
}

func (s *Scheduler) setLastReminder(userID int64, t time.Time) {
	s.remMu.Lock()
	s.lastReminder[userID] = t
	s.remMu.Unlock()
}
