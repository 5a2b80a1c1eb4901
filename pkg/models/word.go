package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Default learning state of a freshly added word
const (
	DefaultDifficulty        = 0.5
	DefaultStability         = 1.0
	DefaultRecallProbability = 0.5
	DefaultFirstRepeat       = 24 * time.Hour
)

// Word is a vocabulary item owned by one user together with its review state
type Word struct {
	ID                 int64     `json:"id" db:"id"`
	UserID             int64     `json:"user_id" db:"user_id"`
	Text               string    `json:"text" db:"text"`
	Translation        string    `json:"translation" db:"translation"`
	NextRepeat         time.Time `json:"next_repeat" db:"next_repeat"`
	RepeatCount        int       `json:"repeat_count" db:"repeat_count"`
	BaseDifficulty     float64   `json:"base_difficulty" db:"base_difficulty"`         // static, set at creation
	PersonalDifficulty float64   `json:"personal_difficulty" db:"personal_difficulty"` // adapts per answer
	Difficulty         float64   `json:"difficulty" db:"difficulty"`                   // 0.7*base + 0.3*personal
	Stability          float64   `json:"stability" db:"stability"`                     // days, >= 1.0
	RecallProbability  float64   `json:"recall_probability" db:"recall_probability"`
	History            History   `json:"history" db:"history"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// NewWord returns a word with the default learning state
func NewWord(userID int64, text, translation string, now time.Time) Word {
	return Word{
		UserID:             userID,
		Text:               text,
		Translation:        translation,
		NextRepeat:         now.Add(DefaultFirstRepeat),
		BaseDifficulty:     DefaultDifficulty,
		PersonalDifficulty: DefaultDifficulty,
		Difficulty:         DefaultDifficulty,
		Stability:          DefaultStability,
		RecallProbability:  DefaultRecallProbability,
		History:            History{},
		CreatedAt:          now,
	}
}

// IsDue reports whether the word should be reviewed at now
func (w *Word) IsDue(now time.Time) bool {
	return !w.NextRepeat.After(now)
}

// ReviewEvent is one entry of a word's review history
type ReviewEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Rating    Rating    `json:"rating"`
	IsCorrect bool      `json:"is_correct"`
}

// History is the append-only review log, stored as a JSON column
type History []ReviewEvent

// Value implements driver.Valuer
func (h History) Value() (driver.Value, error) {
	if h == nil {
		h = History{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (h *History) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*h = History{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported history type %T", src)
	}
	if len(data) == 0 {
		*h = History{}
		return nil
	}
	var events History
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}
	*h = events
	return nil
}

// ReviewUpdate carries every field changed by one completed review. Stores must apply it atomically.
type ReviewUpdate struct {
	NextRepeat         time.Time
	PersonalDifficulty float64
	Difficulty         float64
	Stability          float64
	RecallProbability  float64
	RepeatCount        int
	HistoryAppend      ReviewEvent
}
