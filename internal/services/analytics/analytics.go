// Package services содержит производную аналитику над движком серий:
// силу привычки (скользящее среднее), 52-недельную сетку истории
// и чеклист последних дней. Аналитика только читает состояние,
// поэтому её допустимо кешировать.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/magabrotheeeer/habit-tracker/internal/lib/dateutil"
	"github.com/magabrotheeeer/habit-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

const (
	// MinStrengthPoints и MaxStrengthPoints ограничивают длину ряда силы привычки.
	MinStrengthPoints = 7
	MaxStrengthPoints = 365

	// gridWeeks — ширина сетки истории в неделях.
	gridWeeks = 52

	// gridCacheTTL — время жизни закешированной сетки.
	gridCacheTTL = 10 * time.Minute
)

// DefaultBreakPoints — стандартные точки разбиения доли выполнения
// на уровни интенсивности 0..4.
var DefaultBreakPoints = []float64{0, 0.25, 0.5, 0.75, 1}

// CompletionProvider описывает запросы к движку серий, которые нужны аналитике.
type CompletionProvider interface {
	// StatusRange возвращает статусы каждого дня диапазона [start, end].
	StatusRange(ctx context.Context, habit *models.Habit, start, end time.Time) ([]models.CompletionStatus, error)
	// IsComplete сообщает, выполнен ли день.
	IsComplete(ctx context.Context, habit *models.Habit, day time.Time) (bool, error)
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

// AnalyticsService строит производные представления истории выполнения.
type AnalyticsService struct {
	completion CompletionProvider
	cache      Cache
	log        *slog.Logger
}

// NewAnalyticsService создает новый экземпляр AnalyticsService.
func NewAnalyticsService(completion CompletionProvider, cache Cache, log *slog.Logger) *AnalyticsService {
	return &AnalyticsService{
		completion: completion,
		cache:      cache,
		log:        log,
	}
}

// Strength строит ряд силы привычки за последние numPoints дней,
// заканчивая сегодняшним. Каждый день превращается в 1 (выполнен) или 0,
// затем берётся скользящее среднее с окном windowSize.
//
// numPoints <= 0 означает возраст привычки, ограниченный диапазоном
// [MinStrengthPoints, MaxStrengthPoints]. Явно заданное значение
// используется как есть.
//
// Среднее считается с дополнением нулями слева: первые windowSize-1
// значений занижены относительно истинного частичного среднего.
// Это намеренно сохранённое поведение, а не ошибка.
func (s *AnalyticsService) Strength(ctx context.Context, habit *models.Habit, today time.Time, numPoints, windowSize int) ([]models.StrengthPoint, error) {
	const op = "analytics.Strength"
	today = dateutil.Normalize(today)

	if windowSize < 1 {
		return nil, fmt.Errorf("%s: window size must be at least 1: %w", op, models.ErrInvalidDateRange)
	}
	if numPoints <= 0 {
		numPoints = dateutil.DaysBetween(habit.CreatedOn, today) + 1
		if numPoints < MinStrengthPoints {
			numPoints = MinStrengthPoints
		}
		if numPoints > MaxStrengthPoints {
			numPoints = MaxStrengthPoints
		}
	}

	start := dateutil.AddDays(today, -(numPoints - 1))
	statuses, err := s.completion.StatusRange(ctx, habit, start, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bin := make([]int, len(statuses))
	for i, status := range statuses {
		if status == models.StatusComplete {
			bin[i] = 1
		}
	}

	avg := movingAvg(bin, windowSize)
	points := make([]models.StrengthPoint, len(avg))
	for i, value := range avg {
		points[i] = models.StrengthPoint{Date: dateutil.AddDays(start, i), Value: value}
	}
	return points, nil
}

// HistoryGrid строит сетку истории за 52 недели, заканчивая endDate.
// Последняя колонка выравнивается по неделе, завершающейся ближайшим
// прошедшим воскресеньем. Для каждого дня по всем привычкам считаются
// количество выполненных и количество активных, доля выполнения
// отображается в уровень по точкам разбиения breakPoints.
// Готовая сетка кешируется на gridCacheTTL.
func (s *AnalyticsService) HistoryGrid(ctx context.Context, ownerUID string, habits []*models.Habit, breakPoints []float64, endDate time.Time) (*models.HistoryGrid, error) {
	const op = "analytics.HistoryGrid"
	endDate = dateutil.Normalize(endDate)

	cacheKey := fmt.Sprintf("grid:%s:%s", ownerUID, endDate.Format("2006-01-02"))
	var cached models.HistoryGrid
	if found, err := s.cache.Get(cacheKey, &cached); err != nil {
		s.log.Warn("failed to read grid cache", slog.String("key", cacheKey), sl.Err(err))
	} else if found {
		return &cached, nil
	}

	startDate := dateutil.AddDays(dateutil.LastSunday(endDate), -7*gridWeeks)
	days := dateutil.Range(startDate, endDate)

	statusesPerHabit := make([][]models.CompletionStatus, 0, len(habits))
	for _, habit := range habits {
		statuses, err := s.completion.StatusRange(ctx, habit, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		statusesPerHabit = append(statusesPerHabit, statuses)
	}

	squares := make([]models.GridSquare, len(days))
	for i, day := range days {
		var numComplete, numActive int
		for _, statuses := range statusesPerHabit {
			switch statuses[i] {
			case models.StatusComplete:
				numComplete++
				numActive++
			case models.StatusIncomplete:
				numActive++
			}
		}
		ratio := 0.0
		if numActive > 0 {
			ratio = float64(numComplete) / float64(numActive)
		}
		squares[i] = models.GridSquare{
			Date:        day,
			NumComplete: numComplete,
			NumActive:   numActive,
			Level:       levelFor(breakPoints, ratio),
		}
	}

	grid := &models.HistoryGrid{
		MonthLabels: monthLabels(startDate, endDate),
		Squares:     squares,
	}
	if err := s.cache.Set(cacheKey, grid, gridCacheTTL); err != nil {
		s.log.Warn("failed to cache grid", slog.String("key", cacheKey), sl.Err(err))
	}
	return grid, nil
}

// Checklist строит короткое окно последних numDays дней по всем привычкам:
// признаки выполнения и цели переключения, от свежего дня к старому.
func (s *AnalyticsService) Checklist(ctx context.Context, habits []*models.Habit, numDays int, endDate time.Time) (*models.Checklist, error) {
	const op = "analytics.Checklist"
	endDate = dateutil.Normalize(endDate)

	if numDays < 1 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidDateRange)
	}
	startDate := dateutil.AddDays(endDate, -(numDays - 1))
	dates := dateutil.ReverseRange(startDate, endDate)

	checklist := &models.Checklist{
		Dates: dates,
		Rows:  make([]models.ChecklistRow, 0, len(habits)),
	}
	for _, habit := range habits {
		row := models.ChecklistRow{
			HabitID:   habit.ID,
			Name:      habit.Name,
			Slug:      habit.Slug,
			Completed: make([]bool, 0, len(dates)),
			Targets:   make([]models.UpdateTarget, 0, len(dates)),
		}
		for _, day := range dates {
			complete, err := s.completion.IsComplete(ctx, habit, day)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			row.Completed = append(row.Completed, complete)
			row.Targets = append(row.Targets, models.UpdateTarget{Slug: habit.Slug, Date: day})
		}
		checklist.Rows = append(checklist.Rows, row)
	}
	return checklist, nil
}

// movingAvg считает скользящее среднее с окном windowSize, дополняя ряд
// нулями слева: перед рядом мысленно стоят windowSize нулей, сумма окна
// обновляется одним сложением и одним вычитанием на шаг.
func movingAvg(nums []int, windowSize int) []float64 {
	extended := make([]int, windowSize+len(nums))
	copy(extended[windowSize:], nums)

	avg := make([]float64, 0, len(nums))
	currentSum := 0
	for start, end := 0, windowSize; end < len(extended); start, end = start+1, end+1 {
		currentSum += extended[end] - extended[start]
		avg = append(avg, float64(currentSum)/float64(windowSize))
	}
	return avg
}

// levelFor отображает долю выполнения в уровень: количество точек
// разбиения, не превышающих ratio, минус один.
func levelFor(breakPoints []float64, ratio float64) int {
	return sort.Search(len(breakPoints), func(i int) bool {
		return breakPoints[i] > ratio
	}) - 1
}

// monthLabels возвращает по одной метке на неделю сетки: аббревиатуру
// месяца, если суббота недели попадает в первые 7 дней месяца, иначе "".
func monthLabels(startDate, endDate time.Time) []string {
	var labels []string
	for endOfWeek := dateutil.AddDays(startDate, 6); !endOfWeek.After(endDate); endOfWeek = dateutil.AddDays(endOfWeek, 7) {
		if endOfWeek.Day() <= 7 {
			labels = append(labels, endOfWeek.Month().String()[:3])
		} else {
			labels = append(labels, "")
		}
	}
	return labels
}
