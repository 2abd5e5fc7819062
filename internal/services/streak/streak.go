// Package services содержит движок серий: алгоритмы переключения дня,
// запросы статуса выполнения и ранжирование серий. Это единственное место,
// где серии создаются, сливаются, сужаются и разделяются.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/habit-tracker/internal/lib/dateutil"
	"github.com/magabrotheeeer/habit-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/habit-tracker/internal/metrics"
	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

// maxToggleAttempts ограничивает количество повторов переключения
// при конфликте версий, после чего ошибка отдаётся вызывающей стороне.
const maxToggleAttempts = 3

// StreakRepository определяет индексные операции хранилища серий.
// Каждая выборка обязана выполняться быстрее линейного прохода по сериям.
type StreakRepository interface {
	// FindStreakByEnd возвращает серию, заканчивающуюся ровно в указанный день.
	FindStreakByEnd(ctx context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error)
	// FindStreakByStart возвращает серию, начинающуюся ровно в указанный день.
	FindStreakByStart(ctx context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error)
	// FindStreakContaining возвращает серию, покрывающую день.
	FindStreakContaining(ctx context.Context, habitID uuid.UUID, day time.Time) (*models.Streak, error)
	// ListStreaksOverlapping возвращает серии, пересекающие диапазон [a, b].
	ListStreaksOverlapping(ctx context.Context, habitID uuid.UUID, a, b time.Time) ([]*models.Streak, error)
	// ListLongestStreaks возвращает top-k серий по длине.
	ListLongestStreaks(ctx context.Context, habitID uuid.UUID, k int) ([]*models.Streak, error)
	// ListRecentStreaks возвращает top-k серий по дате начала.
	ListRecentStreaks(ctx context.Context, habitID uuid.UUID, k int) ([]*models.Streak, error)
	// CreateStreak добавляет новую серию и возвращает её ID.
	CreateStreak(ctx context.Context, streak models.Streak) (int64, error)
	// UpdateStreak сохраняет границы серии, проверяя версию.
	UpdateStreak(ctx context.Context, streak *models.Streak) error
	// DeleteStreak удаляет серию, проверяя версию.
	DeleteStreak(ctx context.Context, id int64, version int) error
	// MergeStreaks атомарно расширяет левую серию и удаляет правую.
	MergeStreaks(ctx context.Context, left *models.Streak, right *models.Streak) error
	// SplitStreak атомарно сужает серию до левой половины и создаёт правую.
	SplitStreak(ctx context.Context, left *models.Streak, right models.Streak) (int64, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// StreakService реализует машину состояний дня для пары (привычка, дата).
type StreakService struct {
	repo  StreakRepository
	cache Cache
	log   *slog.Logger
}

// NewStreakService создает новый экземпляр StreakService.
func NewStreakService(repo StreakRepository, cache Cache, log *slog.Logger) *StreakService {
	return &StreakService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// ToggleComplete переключает состояние дня: выполненный день становится
// невыполненным и наоборот. Неактивные дни (до создания привычки или
// в будущем) не изменяются. Два последовательных вызова возвращают
// исходное состояние. При конфликте версий операция повторяется
// с шага поиска соседей до maxToggleAttempts раз.
func (s *StreakService) ToggleComplete(ctx context.Context, habit *models.Habit, day, today time.Time) error {
	const op = "streak.ToggleComplete"
	day, today = dateutil.Normalize(day), dateutil.Normalize(today)

	if dayInactive(habit, day, today) {
		s.log.Debug("ignoring toggle of inactive day",
			slog.String("slug", habit.Slug), sl.Day("day", day))
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		complete, err := s.IsComplete(ctx, habit, day)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		action := "complete"
		if complete {
			action = "incomplete"
			err = s.setIncomplete(ctx, habit, day)
		} else {
			err = s.setComplete(ctx, habit, day)
		}
		if err == nil {
			metrics.TogglesTotal.WithLabelValues(action).Inc()
			s.invalidateAnalytics(habit, today)
			return nil
		}
		if !errors.Is(err, models.ErrConcurrentModification) {
			return fmt.Errorf("%s: %w", op, err)
		}

		metrics.ConflictRetriesTotal.Inc()
		s.log.Warn("toggle conflict, retrying",
			slog.String("slug", habit.Slug), sl.Day("day", day), slog.Int("attempt", attempt+1))
		lastErr = err
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

// SetComplete помечает день выполненным. Ничего не делает для неактивного
// или уже выполненного дня.
func (s *StreakService) SetComplete(ctx context.Context, habit *models.Habit, day, today time.Time) error {
	const op = "streak.SetComplete"
	day, today = dateutil.Normalize(day), dateutil.Normalize(today)

	if dayInactive(habit, day, today) {
		return nil
	}
	if err := s.setComplete(ctx, habit, day); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateAnalytics(habit, today)
	return nil
}

// SetIncomplete помечает день невыполненным. Ничего не делает для
// неактивного дня или дня вне всех серий.
func (s *StreakService) SetIncomplete(ctx context.Context, habit *models.Habit, day, today time.Time) error {
	const op = "streak.SetIncomplete"
	day, today = dateutil.Normalize(day), dateutil.Normalize(today)

	if dayInactive(habit, day, today) {
		return nil
	}
	if err := s.setIncomplete(ctx, habit, day); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateAnalytics(habit, today)
	return nil
}

// IsComplete сообщает, покрыт ли день какой-то серией привычки.
// Работает и для неактивных дней: история прошлых привычек остаётся читаемой.
func (s *StreakService) IsComplete(ctx context.Context, habit *models.Habit, day time.Time) (bool, error) {
	const op = "streak.IsComplete"
	day = dateutil.Normalize(day)

	_, err := s.repo.FindStreakContaining(ctx, habit.ID, day)
	if errors.Is(err, models.ErrStreakNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Status возвращает статус одного дня: INACTIVE вне периода жизни привычки,
// иначе COMPLETE или INCOMPLETE по вхождению в серию.
func (s *StreakService) Status(ctx context.Context, habit *models.Habit, day, today time.Time) (models.CompletionStatus, error) {
	const op = "streak.Status"
	day, today = dateutil.Normalize(day), dateutil.Normalize(today)

	if dayInactive(habit, day, today) {
		return models.StatusInactive, nil
	}
	complete, err := s.IsComplete(ctx, habit, day)
	if err != nil {
		return models.StatusIncomplete, fmt.Errorf("%s: %w", op, err)
	}
	if complete {
		return models.StatusComplete, nil
	}
	return models.StatusIncomplete, nil
}

// StatusRange проецирует серии привычки на массив статусов по одному на день
// диапазона [start, end]. Дни по умолчанию INCOMPLETE, затем пересекающие
// диапазон серии накладываются как COMPLETE, последними накладываются дни
// до даты создания привычки как INACTIVE. Порядок наложения значим:
// защитный слой INACTIVE перекрывает устаревшие серии до даты создания.
func (s *StreakService) StatusRange(ctx context.Context, habit *models.Habit, start, end time.Time) ([]models.CompletionStatus, error) {
	const op = "streak.StatusRange"
	start, end = dateutil.Normalize(start), dateutil.Normalize(end)

	if end.Before(start) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidDateRange)
	}

	statuses := make([]models.CompletionStatus, dateutil.DaysBetween(start, end)+1)

	streaks, err := s.repo.ListStreaksOverlapping(ctx, habit.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, streak := range streaks {
		from, to := streak.Start, streak.End
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		for i := dateutil.DaysBetween(start, from); i <= dateutil.DaysBetween(start, to); i++ {
			statuses[i] = models.StatusComplete
		}
	}

	for i := range statuses {
		if dateutil.AddDays(start, i).Before(habit.CreatedOn) {
			statuses[i] = models.StatusInactive
		}
	}
	return statuses, nil
}

// LongestStreaks возвращает k самых длинных серий привычки.
// Равные длины упорядочены по возрастанию даты начала.
func (s *StreakService) LongestStreaks(ctx context.Context, habit *models.Habit, k int) ([]*models.Streak, error) {
	const op = "streak.LongestStreaks"
	streaks, err := s.repo.ListLongestStreaks(ctx, habit.ID, k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return streaks, nil
}

// RecentStreaks возвращает k последних по дате начала серий привычки.
func (s *StreakService) RecentStreaks(ctx context.Context, habit *models.Habit, k int) ([]*models.Streak, error) {
	const op = "streak.RecentStreaks"
	streaks, err := s.repo.ListRecentStreaks(ctx, habit.ID, k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return streaks, nil
}

// setComplete добавляет день в покрытие серий. Единственный путь,
// создающий и сливающий серии: при слиянии выживает левая.
func (s *StreakService) setComplete(ctx context.Context, habit *models.Habit, day time.Time) error {
	_, err := s.repo.FindStreakContaining(ctx, habit.ID, day)
	if err == nil {
		// День уже выполнен.
		return nil
	}
	if !errors.Is(err, models.ErrStreakNotFound) {
		return err
	}

	left, err := s.repo.FindStreakByEnd(ctx, habit.ID, dateutil.AddDays(day, -1))
	if err != nil && !errors.Is(err, models.ErrStreakNotFound) {
		return err
	}
	right, err := s.repo.FindStreakByStart(ctx, habit.ID, dateutil.AddDays(day, 1))
	if err != nil && !errors.Is(err, models.ErrStreakNotFound) {
		return err
	}

	switch {
	case left != nil && right != nil:
		left.End = right.End
		left.RecalcLength()
		if err := s.repo.MergeStreaks(ctx, left, right); err != nil {
			return err
		}
		metrics.StreakMergesTotal.Inc()
		s.log.Info("merged streaks",
			slog.String("slug", habit.Slug), sl.Day("day", day), slog.Int("length", left.Length))
	case left != nil:
		left.End = day
		left.RecalcLength()
		if err := s.repo.UpdateStreak(ctx, left); err != nil {
			return err
		}
	case right != nil:
		right.Start = day
		right.RecalcLength()
		if err := s.repo.UpdateStreak(ctx, right); err != nil {
			return err
		}
	default:
		streak := models.Streak{
			HabitID:  habit.ID,
			OwnerUID: habit.OwnerUID,
			Start:    day,
			End:      day,
		}
		streak.RecalcLength()
		if _, err := s.repo.CreateStreak(ctx, streak); err != nil {
			return err
		}
	}
	return nil
}

// setIncomplete убирает день из покрытия серий: удаляет одиночную серию,
// сужает крайнюю или разделяет серию на две половины.
func (s *StreakService) setIncomplete(ctx context.Context, habit *models.Habit, day time.Time) error {
	streak, err := s.repo.FindStreakContaining(ctx, habit.ID, day)
	if errors.Is(err, models.ErrStreakNotFound) {
		// День и так не выполнен.
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case streak.Start.Equal(day) && streak.End.Equal(day):
		return s.repo.DeleteStreak(ctx, streak.ID, streak.Version)
	case streak.Start.Equal(day):
		streak.Start = dateutil.AddDays(day, 1)
		streak.RecalcLength()
		return s.repo.UpdateStreak(ctx, streak)
	case streak.End.Equal(day):
		streak.End = dateutil.AddDays(day, -1)
		streak.RecalcLength()
		return s.repo.UpdateStreak(ctx, streak)
	default:
		right := models.Streak{
			HabitID:  streak.HabitID,
			OwnerUID: streak.OwnerUID,
			Start:    dateutil.AddDays(day, 1),
			End:      streak.End,
		}
		right.RecalcLength()
		streak.End = dateutil.AddDays(day, -1)
		streak.RecalcLength()
		if _, err := s.repo.SplitStreak(ctx, streak, right); err != nil {
			return err
		}
		metrics.StreakSplitsTotal.Inc()
		s.log.Info("split streak",
			slog.String("slug", habit.Slug), sl.Day("day", day))
		return nil
	}
}

// invalidateAnalytics сбрасывает закешированную сетку истории владельца
// после успешной мутации. Ошибка кеша не прерывает операцию.
func (s *StreakService) invalidateAnalytics(habit *models.Habit, today time.Time) {
	key := fmt.Sprintf("grid:%s:%s", habit.OwnerUID, today.Format("2006-01-02"))
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate grid cache", slog.String("key", key), sl.Err(err))
	}
}

// dayInactive сообщает, находится ли день вне периода жизни привычки.
func dayInactive(habit *models.Habit, day, today time.Time) bool {
	return day.Before(dateutil.Normalize(habit.CreatedOn)) || day.After(today)
}
