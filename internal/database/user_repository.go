package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/reviewbot/pkg/models"
)

const userColumns = "id, username, reminders_per_day, timezone, language, created_at"

// AddUser registers a user. An existing user is left untouched.
func (s *Store) AddUser(ctx context.Context, id int64, username string) error {
	query := `
		INSERT INTO users (id, username, reminders_per_day, timezone, language, created_at)
		VALUES (?, ?, ?, 'UTC', 'ru', ?)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), id, username, models.DefaultRemindersPerDay, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

// GetUser returns a user by Telegram ID
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// GetAllUsers returns all users
func (s *Store) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	for i := range users {
		users[i].CreatedAt = users[i].CreatedAt.UTC()
	}
	return users, nil
}

// UpdateReminders changes how many reminders per day the user receives
func (s *Store) UpdateReminders(ctx context.Context, id int64, perDay int) error {
	if perDay < models.MinRemindersPerDay || perDay > models.MaxRemindersPerDay {
		return fmt.Errorf("reminders per day must be between %d and %d, got %d",
			models.MinRemindersPerDay, models.MaxRemindersPerDay, perDay)
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind("UPDATE users SET reminders_per_day = ? WHERE id = ?"), perDay, id)
	if err != nil {
		return fmt.Errorf("failed to update user settings: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
