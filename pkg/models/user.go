package models

import "time"

// Reminder pacing limits
const (
	MinRemindersPerDay     = 1
	MaxRemindersPerDay     = 23
	DefaultRemindersPerDay = 1
)

// User represents a Telegram user using the bot
type User struct {
	ID              int64     `json:"id" db:"id"` // Telegram User ID
	Username        string    `json:"username" db:"username"`
	RemindersPerDay int       `json:"reminders_per_day" db:"reminders_per_day"`
	Timezone        string    `json:"timezone" db:"timezone"`
	Language        string    `json:"language" db:"language"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Pacing returns the user's reminder pacing settings
func (u User) Pacing() PacingConfig {
	return PacingConfig{RemindersPerDay: u.RemindersPerDay}
}

// PacingConfig controls how often a user may receive review reminders
type PacingConfig struct {
	RemindersPerDay int
}

// ReminderInterval is the spacing between two reminder opportunities.
// Out-of-range values are clamped to [1, 23] reminders per day.
func (p PacingConfig) ReminderInterval() time.Duration {
	n := p.RemindersPerDay
	if n < MinRemindersPerDay {
		n = MinRemindersPerDay
	}
	if n > MaxRemindersPerDay {
		n = MaxRemindersPerDay
	}
	return time.Duration(86400/n) * time.Second
}

// Stats is a summary of a user's learning progress
type Stats struct {
	TotalWords     int     `json:"total_words" db:"total_words"`
	DueWords       int     `json:"due_words" db:"due_words"`
	LearnedWords   int     `json:"learned_words" db:"learned_words"`
	// learned words whose last correct answer is at most 7 and 30 days old
	LearnedWeek    int     `json:"learned_week" db:"learned_week"`
	LearnedMonth   int     `json:"learned_month" db:"learned_month"`
	Reviews        int     `json:"reviews" db:"reviews"`
	SuccessRate    float64 `json:"success_rate" db:"success_rate"`
	ActivityEvents int     `json:"activity_events" db:"activity_events"`
}
