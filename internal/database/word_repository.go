package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/reviewbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

const wordColumns = `id, user_id, text, translation, next_repeat, repeat_count,
	base_difficulty, personal_difficulty, difficulty, stability, recall_probability,
	history, created_at`

// AddWord inserts a new word with the default learning state and sets its ID
func (s *Store) AddWord(ctx context.Context, word *models.Word) error {
	if word.History == nil {
		word.History = models.History{}
	}
	word.NextRepeat = word.NextRepeat.UTC()
	word.CreatedAt = word.CreatedAt.UTC()

	query := `
		INSERT INTO words (user_id, text, translation, next_repeat, repeat_count,
			base_difficulty, personal_difficulty, difficulty, stability, recall_probability,
			history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []interface{}{
		word.UserID,
		word.Text,
		word.Translation,
		word.NextRepeat,
		word.RepeatCount,
		word.BaseDifficulty,
		word.PersonalDifficulty,
		word.Difficulty,
		word.Stability,
		word.RecallProbability,
		word.History,
		word.CreatedAt,
	}

	if s.isPostgres() {
		err := s.db.QueryRowContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&word.ID)
		if err != nil {
			return fmt.Errorf("failed to create word: %w", err)
		}
		return nil
	}

	// Для SQLite (без RETURNING)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create word: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	word.ID = id
	return nil
}

// GetUserWords returns the user's words ordered by next repetition
func (s *Store) GetUserWords(ctx context.Context, userID int64) ([]models.Word, error) {
	var words []models.Word
	query := "SELECT " + wordColumns + " FROM words WHERE user_id = ? ORDER BY next_repeat, id"
	if err := s.db.SelectContext(ctx, &words, s.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("failed to get user words: %w", err)
	}
	for i := range words {
		normalizeTimes(&words[i])
	}
	return words, nil
}

// GetWord returns a single word owned by userID
func (s *Store) GetWord(ctx context.Context, userID, wordID int64) (*models.Word, error) {
	return getWord(ctx, s.db, s.db.Rebind("SELECT "+wordColumns+" FROM words WHERE id = ? AND user_id = ?"), wordID, userID)
}

// ReserveNextRepeat moves the word's next repetition without recording a review
func (s *Store) ReserveNextRepeat(ctx context.Context, userID, wordID int64, next time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE words SET next_repeat = ? WHERE id = ? AND user_id = ?"),
		next.UTC(), wordID, userID)
	if err != nil {
		return fmt.Errorf("failed to update next repeat: %w", err)
	}
	return requireRow(result)
}

// ApplyReviewUpdate stores the outcome of a completed review in one transaction
func (s *Store) ApplyReviewUpdate(ctx context.Context, userID, wordID int64, update models.ReviewUpdate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "SELECT " + wordColumns + " FROM words WHERE id = ? AND user_id = ?"
	if s.isPostgres() {
		query += " FOR UPDATE"
	}
	word, err := getWord(ctx, tx, tx.Rebind(query), wordID, userID)
	if err != nil {
		return err
	}

	history := append(word.History, update.HistoryAppend)
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE words SET
			next_repeat = ?,
			repeat_count = ?,
			personal_difficulty = ?,
			difficulty = ?,
			stability = ?,
			recall_probability = ?,
			history = ?
		WHERE id = ? AND user_id = ?
	`),
		update.NextRepeat.UTC(),
		update.RepeatCount,
		update.PersonalDifficulty,
		update.Difficulty,
		update.Stability,
		update.RecallProbability,
		history,
		wordID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update word: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

func getWord(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Word, error) {
	var word models.Word
	err := sqlx.GetContext(ctx, q, &word, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word: %w", err)
	}
	normalizeTimes(&word)
	return &word, nil
}

func normalizeTimes(w *models.Word) {
	w.NextRepeat = w.NextRepeat.UTC()
	w.CreatedAt = w.CreatedAt.UTC()
	for i := range w.History {
		w.History[i].Timestamp = w.History[i].Timestamp.UTC()
	}
}
