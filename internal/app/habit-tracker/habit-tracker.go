// Package habittracker собирает доменное ядро трекера привычек:
// хранилище, миграции, кеш и сервисы. Транспортный слой (маршрутизация,
// шаблоны, аутентификация) живёт отдельно и получает готовые сервисы отсюда.
package habittracker

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/habit-tracker/internal/cache"
	"github.com/magabrotheeeer/habit-tracker/internal/config"
	"github.com/magabrotheeeer/habit-tracker/internal/migrations"
	analyticsservice "github.com/magabrotheeeer/habit-tracker/internal/services/analytics"
	habitservice "github.com/magabrotheeeer/habit-tracker/internal/services/habit"
	streakservice "github.com/magabrotheeeer/habit-tracker/internal/services/streak"
	"github.com/magabrotheeeer/habit-tracker/internal/storage/repository"
)

// App хранит подключения и собранные сервисы доменного ядра.
type App struct {
	Habits    *habitservice.HabitService
	Streaks   *streakservice.StreakService
	Analytics *analyticsservice.AnalyticsService

	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New подключается к PostgreSQL и Redis, применяет миграции
// и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	streaks := streakservice.NewStreakService(db, cacheRedis, logger)

	return &App{
		Habits:    habitservice.NewHabitService(db, logger),
		Streaks:   streaks,
		Analytics: analyticsservice.NewAnalyticsService(streaks, cacheRedis, logger),
		logger:    logger,
		db:        db,
		cache:     cacheRedis,
	}, nil
}

// Close закрывает подключения к базе данных и кешу.
func (a *App) Close() error {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", slog.Any("err", err))
	}
	return a.db.Close()
}
