package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/reviewbot/internal/spaced_repetition"
	"github.com/example/reviewbot/pkg/models"
	"github.com/rs/zerolog"
)

// ErrInvalidConfirmation is returned for confirmation text that is neither yes nor no
var ErrInvalidConfirmation = errors.New("confirmation must be yes or no")

// Messages sent to the learner while a review is open
const (
	msgConfirmPrompt = "Ваш перевод: *%s*\nПравильный перевод: *%s*\n\nВы правильно перевели слово? Напишите *да* или *нет*"
	msgConfirmRetry  = "Пожалуйста, ответьте *да* или *нет*"
	msgRatingRetry   = "Оцените, насколько легко вы вспомнили слово: напишите перевод и число от 1 (снова) до 4 (легко)"
	msgSaved         = "✅ Ответ сохранён.\nСледующее повторение через %d дн."
	msgApology       = "😔 Что-то пошло не так. Попробуйте ответить ещё раз чуть позже."
)

var confirmTokens = map[string]bool{
	"да": true, "д": true, "yes": true, "y": true,
	"нет": false, "н": false, "no": false, "n": false,
}

// ParseConfirmation maps a yes/no answer in Russian or English to a boolean
func ParseConfirmation(text string) (bool, error) {
	v, ok := confirmTokens[strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".,!")]
	if !ok {
		return false, ErrInvalidConfirmation
	}
	return v, nil
}

// Evaluator rates answers and persists reviews
type Evaluator interface {
	Assess(word *models.Word, answer string, now time.Time) (spaced_repetition.Assessment, error)
	Apply(ctx context.Context, word *models.Word, rating models.Rating, now time.Time) (spaced_repetition.Feedback, error)
	Strategy() spaced_repetition.RatingStrategy
}

// Notifier delivers a message to a user
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// ActivityLogger records user actions
type ActivityLogger interface {
	LogActivity(ctx context.Context, userID int64, action string) error
}

// Machine drives per-user reviews from reminder to confirmed answer
type Machine struct {
	reg      *Registry
	eval     Evaluator
	notifier Notifier
	activity ActivityLogger
	log      zerolog.Logger
	now      func() time.Time
}

// NewMachine creates a conversation machine on top of reg
func NewMachine(reg *Registry, eval Evaluator, notifier Notifier, activity ActivityLogger, log zerolog.Logger) *Machine {
	return &Machine{
		reg:      reg,
		eval:     eval,
		notifier: notifier,
		activity: activity,
		log:      log.With().Str("component", "conversation").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open starts a review for userID. It fails with ErrConversationExists if one is outstanding.
func (m *Machine) Open(userID int64, word models.Word) (State, error) {
	st, err := m.reg.Open(userID, word, m.now())
	if err != nil {
		return State{}, err
	}
	m.log.Debug().Int64("user_id", userID).Int64("word_id", word.ID).Str("conversation", st.ID).Msg("review opened")
	return st, nil
}

// Active returns the user's open review, if any
func (m *Machine) Active(userID int64) (State, bool) {
	return m.reg.Get(userID)
}

// Cancel drops the user's open review without touching the word
func (m *Machine) Cancel(userID int64) bool {
	ok := m.reg.Remove(userID)
	if ok {
		m.log.Debug().Int64("user_id", userID).Msg("review cancelled")
	}
	return ok
}

// Handle feeds a text message into the user's review. It reports false when the user
// has no open review, so the caller can treat the text as something else.
func (m *Machine) Handle(ctx context.Context, userID int64, text string) (bool, error) {
	var reply string
	handled := m.reg.With(userID, func(s *State) bool {
		var done bool
		switch s.Stage {
		case AwaitingAnswer:
			reply = m.answer(s, text)
		case AwaitingConfirmation:
			reply, done = m.confirm(ctx, s, text)
		}
		return done
	})
	if !handled {
		return false, nil
	}
	if reply == "" {
		return true, nil
	}
	if err := m.notifier.Send(ctx, userID, reply); err != nil {
		return true, fmt.Errorf("failed to send reply to user %d: %w", userID, err)
	}
	return true, nil
}

func (m *Machine) answer(s *State, text string) string {
	answer := strings.TrimSpace(text)
	a, err := m.eval.Assess(&s.Word, answer, m.now())
	if errors.Is(err, spaced_repetition.ErrRatingRequired) {
		return msgRatingRetry
	}
	if err != nil {
		m.log.Error().Err(err).Int64("user_id", s.UserID).Int64("word_id", s.Word.ID).Msg("failed to assess answer")
		return msgApology
	}

	s.Stage = AwaitingConfirmation
	s.Pending = &a
	return fmt.Sprintf(msgConfirmPrompt, answer, s.Word.Translation)
}

func (m *Machine) confirm(ctx context.Context, s *State, text string) (string, bool) {
	confirmed, err := ParseConfirmation(text)
	if err != nil {
		return msgConfirmRetry, false
	}

	rating := m.eval.Strategy().Reconcile(s.Pending.Rating, confirmed)
	fb, err := m.eval.Apply(ctx, &s.Word, rating, m.now())
	if err != nil {
		m.log.Error().Err(err).Int64("user_id", s.UserID).Int64("word_id", s.Word.ID).Msg("failed to apply review")
		return msgApology, false
	}

	result := "wrong"
	if confirmed {
		result = "correct"
	}
	if err := m.activity.LogActivity(ctx, s.UserID, fmt.Sprintf("answered:%s:%s", s.Word.Text, result)); err != nil {
		m.log.Warn().Err(err).Int64("user_id", s.UserID).Msg("failed to log activity")
	}

	m.log.Info().
		Int64("user_id", s.UserID).
		Int64("word_id", s.Word.ID).
		Str("conversation", s.ID).
		Bool("correct", confirmed).
		Int("next_repeat_days", fb.NextRepeatDays).
		Msg("review completed")
	return fmt.Sprintf(msgSaved, fb.NextRepeatDays), true
}
