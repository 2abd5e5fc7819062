package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/habit-tracker/internal/lib/dateutil"
	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

const streakColumns = `id, habit_id, owner_uid, start_date, end_date, length, version`

// FindStreakByEnd возвращает серию привычки, заканчивающуюся ровно в день day.
func (s *Storage) FindStreakByEnd(ctx context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error) {
	const op = "storage.FindStreakByEnd"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + streakColumns + `
			  FROM streaks
			  WHERE habit_id = $1 AND end_date = $2`
	row := s.DB.QueryRowContext(ctx, query, habitID, day)

	streak, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrStreakNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return streak, nil
}

// FindStreakByStart возвращает серию привычки, начинающуюся ровно в день day.
func (s *Storage) FindStreakByStart(ctx context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error) {
	const op = "storage.FindStreakByStart"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + streakColumns + `
			  FROM streaks
			  WHERE habit_id = $1 AND start_date = $2`
	row := s.DB.QueryRowContext(ctx, query, habitID, day)

	streak, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrStreakNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return streak, nil
}

// FindStreakContaining возвращает серию привычки, покрывающую день day.
// Если таких серий больше одной, нарушен инвариант непересекаемости —
// возвращается models.ErrCorruptState.
func (s *Storage) FindStreakContaining(ctx context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error) {
	const op = "storage.FindStreakContaining"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + streakColumns + `
			  FROM streaks
			  WHERE habit_id = $1 AND start_date <= $2 AND end_date >= $2
			  LIMIT 2`
	rows, err := s.DB.QueryContext(ctx, query, habitID, day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var found []*models.Streak
	for rows.Next() {
		streak, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		found = append(found, streak)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s: %w", op, models.ErrStreakNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%s: habit %s has overlapping streaks at %s: %w",
			op, habitID, day.Format("2006-01-02"), models.ErrCorruptState)
	}
}

// ListStreaksOverlapping возвращает серии привычки, пересекающие закрытый
// диапазон [a, b], по возрастанию даты начала.
func (s *Storage) ListStreaksOverlapping(ctx context.Context, habitID uuid.UUID, a, b time.Time) ([]*models.Streak, error) {
	const op = "storage.ListStreaksOverlapping"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + streakColumns + `
			  FROM streaks
			  WHERE habit_id = $1 AND start_date <= $2 AND end_date >= $3
			  ORDER BY start_date`
	return s.listStreaks(ctx, op, query, habitID, b, a)
}

// ListLongestStreaks возвращает k самых длинных серий привычки.
// Для одинаковой длины порядок детерминирован: раньше начавшаяся серия выше.
func (s *Storage) ListLongestStreaks(ctx context.Context, habitID uuid.UUID, k int) ([]*models.Streak, error) {
	const op = "storage.ListLongestStreaks"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + streakColumns + `
			  FROM streaks
			  WHERE habit_id = $1
			  ORDER BY length DESC, start_date, id
			  LIMIT $2`
	return s.listStreaks(ctx, op, query, habitID, k)
}

// ListRecentStreaks возвращает k последних по дате начала серий привычки.
func (s *Storage) ListRecentStreaks(ctx context.Context, habitID uuid.UUID, k int) ([]*models.Streak, error) {
	const op = "storage.ListRecentStreaks"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + streakColumns + `
			  FROM streaks
			  WHERE habit_id = $1
			  ORDER BY start_date DESC, id
			  LIMIT $2`
	return s.listStreaks(ctx, op, query, habitID, k)
}

// CreateStreak вставляет новую серию и возвращает её ID.
func (s *Storage) CreateStreak(ctx context.Context, streak models.Streak) (int64, error) {
	const op = "storage.CreateStreak"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO streaks (habit_id, owner_uid, start_date, end_date, length, version)
			  VALUES ($1, $2, $3, $4, $5, 1)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		streak.HabitID, streak.OwnerUID, streak.Start, streak.End, streak.Length).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpdateStreak обновляет границы серии при совпадении версии.
// Если строка не найдена или версия сдвинулась, возвращает
// models.ErrConcurrentModification.
func (s *Storage) UpdateStreak(ctx context.Context, streak *models.Streak) error {
	const op = "storage.UpdateStreak"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE streaks
			  SET start_date = $1, end_date = $2, length = $3, version = version + 1
			  WHERE id = $4 AND version = $5`
	result, err := s.DB.ExecContext(ctx, query,
		streak.Start, streak.End, streak.Length, streak.ID, streak.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrConcurrentModification)
	}
	streak.Version++
	return nil
}

// DeleteStreak удаляет серию при совпадении версии.
func (s *Storage) DeleteStreak(ctx context.Context, id int64, version int) error {
	const op = "storage.DeleteStreak"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM streaks WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrConcurrentModification)
	}
	return nil
}

// MergeStreaks расширяет левую серию и удаляет правую в одной транзакции,
// проверяя версии обеих строк. Любое несовпадение версий откатывает
// транзакцию с models.ErrConcurrentModification.
func (s *Storage) MergeStreaks(ctx context.Context, left *models.Streak, right *models.Streak) error {
	const op = "storage.MergeStreaks"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM streaks WHERE id = $1 AND version = $2`,
		right.ID, right.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrConcurrentModification)
	}

	result, err = tx.ExecContext(ctx, `UPDATE streaks
			  SET start_date = $1, end_date = $2, length = $3, version = version + 1
			  WHERE id = $4 AND version = $5`,
		left.Start, left.End, left.Length, left.ID, left.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	left.Version++
	return nil
}

// SplitStreak сужает существующую серию до левой половины и создаёт правую
// половину в одной транзакции. Возвращает ID созданной правой половины.
func (s *Storage) SplitStreak(ctx context.Context, left *models.Streak, right models.Streak) (int64, error) {
	const op = "storage.SplitStreak"
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

	result, err := tx.ExecContext(ctx, `UPDATE streaks
			  SET start_date = $1, end_date = $2, length = $3, version = version + 1
			  WHERE id = $4 AND version = $5`,
		left.Start, left.End, left.Length, left.ID, left.Version)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return 0, fmt.Errorf("%s: %w", op, models.ErrConcurrentModification)
	}

	var newID int64
	err = tx.QueryRowContext(ctx, `INSERT INTO streaks (habit_id, owner_uid, start_date, end_date, length, version)
			  VALUES ($1, $2, $3, $4, $5, 1)
			  RETURNING id`,
		right.HabitID, right.OwnerUID, right.Start, right.End, right.Length).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	left.Version++
	return newID, nil
}

func (s *Storage) listStreaks(ctx context.Context, op, query string, args ...any) ([]*models.Streak, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var streaks []*models.Streak
	for rows.Next() {
		streak, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		streaks = append(streaks, streak)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return streaks, nil
}

func scanStreak(row rowScanner) (*models.Streak, error) {
	var st models.Streak
	if err := row.Scan(&st.ID, &st.HabitID, &st.OwnerUID, &st.Start, &st.End, &st.Length, &st.Version); err != nil {
		return nil, err
	}
	st.Start = dateutil.Normalize(st.Start)
	st.End = dateutil.Normalize(st.End)
	return &st, nil
}
