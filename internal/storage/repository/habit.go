package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/habit-tracker/internal/lib/dateutil"
	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

// CreateHabit вставляет новую привычку и возвращает её ID.
func (s *Storage) CreateHabit(ctx context.Context, habit models.Habit) (uuid.UUID, error) {
	const op = "storage.CreateHabit"
	select {
	case <-ctx.Done():
		return uuid.Nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO habits (owner_uid, name, slug, active, points, created_on)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID uuid.UUID
	err := s.DB.QueryRowContext(ctx, query,
		habit.OwnerUID, habit.Name, habit.Slug, habit.Active, habit.Points, habit.CreatedOn).Scan(&newID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetHabitBySlug возвращает привычку владельца по слагу.
func (s *Storage) GetHabitBySlug(ctx context.Context, ownerUID, slug string) (*models.Habit, error) {
	const op = "storage.GetHabitBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, owner_uid, name, slug, active, points, created_on
			  FROM habits
			  WHERE owner_uid = $1 AND slug = $2`
	row := s.DB.QueryRowContext(ctx, query, ownerUID, slug)

	habit, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrHabitNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return habit, nil
}

// ListHabits возвращает привычки владельца, упорядоченные по дате создания.
// При onlyActive=true неактивные привычки исключаются.
func (s *Storage) ListHabits(ctx context.Context, ownerUID string, onlyActive bool) ([]*models.Habit, error) {
	const op = "storage.ListHabits"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, owner_uid, name, slug, active, points, created_on
			  FROM habits
			  WHERE owner_uid = $1 AND (NOT $2 OR active)
			  ORDER BY created_on, slug`
	rows, err := s.DB.QueryContext(ctx, query, ownerUID, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var habits []*models.Habit
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		habits = append(habits, habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return habits, nil
}

// SlugExists сообщает, занят ли слаг среди привычек владельца.
func (s *Storage) SlugExists(ctx context.Context, ownerUID, slug string) (bool, error) {
	const op = "storage.SlugExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM habits WHERE owner_uid = $1 AND slug = $2)`
	if err := s.DB.QueryRowContext(ctx, query, ownerUID, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// DeleteHabit удаляет привычку владельца вместе с её сериями в одной
// транзакции и возвращает количество удалённых привычек.
func (s *Storage) DeleteHabit(ctx context.Context, ownerUID, slug string) (int, error) {
	const op = "storage.DeleteHabit"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DELETE FROM streaks
			  WHERE habit_id IN (SELECT id FROM habits WHERE owner_uid = $1 AND slug = $2)`,
		ownerUID, slug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE owner_uid = $1 AND slug = $2`,
		ownerUID, slug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (*models.Habit, error) {
	var h models.Habit
	if err := row.Scan(&h.ID, &h.OwnerUID, &h.Name, &h.Slug, &h.Active, &h.Points, &h.CreatedOn); err != nil {
		return nil, err
	}
	// Колонка DATE сканируется с нулевым временем, но часовой пояс может
	// отличаться от UTC в зависимости от драйвера.
	h.CreatedOn = dateutil.Normalize(h.CreatedOn)
	return &h, nil
}
