// Package services содержит бизнес-логику жизненного цикла привычек:
// создание с уникальным слагом, выборка и каскадное удаление.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/magabrotheeeer/habit-tracker/internal/lib/dateutil"
	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

// defaultPoints — вес привычки, если он не указан при создании.
const defaultPoints = 3

// HabitRepository определяет методы для работы с привычками в хранилище.
type HabitRepository interface {
	// CreateHabit добавляет новую привычку и возвращает её ID.
	CreateHabit(ctx context.Context, habit models.Habit) (uuid.UUID, error)
	// GetHabitBySlug возвращает привычку владельца по слагу.
	GetHabitBySlug(ctx context.Context, ownerUID, slug string) (*models.Habit, error)
	// ListHabits возвращает привычки владельца.
	ListHabits(ctx context.Context, ownerUID string, onlyActive bool) ([]*models.Habit, error)
	// SlugExists сообщает, занят ли слаг среди привычек владельца.
	SlugExists(ctx context.Context, ownerUID, slug string) (bool, error)
	// DeleteHabit удаляет привычку вместе с её сериями, возвращает количество удалённых.
	DeleteHabit(ctx context.Context, ownerUID, slug string) (int, error)
}

// HabitService реализует бизнес-логику работы с привычками.
type HabitService struct {
	repo     HabitRepository
	log      *slog.Logger
	validate *validator.Validate
}

// NewHabitService создает новый экземпляр HabitService.
func NewHabitService(repo HabitRepository, log *slog.Logger) *HabitService {
	return &HabitService{
		repo:     repo,
		log:      log,
		validate: validator.New(),
	}
}

// Create создает новую привычку владельца. Слаг выводится из имени
// с числовым суффиксом, который увеличивается до первого свободного
// значения среди привычек владельца. Датой создания становится today:
// более ранние дни привычки считаются неактивными.
func (s *HabitService) Create(ctx context.Context, ownerUID string, req models.CreateHabitRequest, today time.Time) (*models.Habit, error) {
	const op = "habit.Create"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	points := req.Points
	if points == 0 {
		points = defaultPoints
	}

	habitSlug, err := s.uniqueSlug(ctx, ownerUID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	habit := models.Habit{
		OwnerUID:  ownerUID,
		Name:      req.Name,
		Slug:      habitSlug,
		Active:    true,
		Points:    points,
		CreatedOn: dateutil.Normalize(today),
	}
	id, err := s.repo.CreateHabit(ctx, habit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	habit.ID = id

	s.log.Info("created new habit", slog.String("slug", habit.Slug))
	return &habit, nil
}

// Get возвращает привычку владельца по слагу.
func (s *HabitService) Get(ctx context.Context, ownerUID, habitSlug string) (*models.Habit, error) {
	const op = "habit.Get"
	habit, err := s.repo.GetHabitBySlug(ctx, ownerUID, habitSlug)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return habit, nil
}

// List возвращает привычки владельца; при onlyActive=true только активные.
func (s *HabitService) List(ctx context.Context, ownerUID string, onlyActive bool) ([]*models.Habit, error) {
	const op = "habit.List"
	habits, err := s.repo.ListHabits(ctx, ownerUID, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return habits, nil
}

// Delete удаляет привычку владельца вместе со всеми её сериями.
// Каскад выполняется на уровне приложения в одной транзакции хранилища.
func (s *HabitService) Delete(ctx context.Context, ownerUID, habitSlug string) error {
	const op = "habit.Delete"

	deleted, err := s.repo.DeleteHabit(ctx, ownerUID, habitSlug)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrHabitNotFound)
	}

	s.log.Info("deleted habit", slog.String("slug", habitSlug))
	return nil
}

// uniqueSlug подбирает свободный слаг вида "<имя>-N", начиная с N=0.
func (s *HabitService) uniqueSlug(ctx context.Context, ownerUID, name string) (string, error) {
	base := slug.Make(name)
	for increment := 0; ; increment++ {
		candidate := fmt.Sprintf("%s-%d", base, increment)
		exists, err := s.repo.SlugExists(ctx, ownerUID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
