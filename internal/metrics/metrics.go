// Package metrics регистрирует счётчики Prometheus для операций движка серий.
// Endpoint /metrics поднимает внешний веб-слой, здесь только регистрация и инкременты.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TogglesTotal — количество успешных переключений дня, по типу действия.
	TogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habit_day_toggles_total",
		Help: "Number of successful day toggles by action (complete, incomplete).",
	}, []string{"action"})

	// StreakMergesTotal — количество слияний двух серий в одну.
	StreakMergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habit_streak_merges_total",
		Help: "Number of streak pairs merged by completing a bridging day.",
	})

	// StreakSplitsTotal — количество разделений серии на две.
	StreakSplitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habit_streak_splits_total",
		Help: "Number of streaks split by uncompleting an interior day.",
	})

	// ConflictRetriesTotal — количество повторов переключения из-за конфликта версий.
	ConflictRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habit_toggle_conflict_retries_total",
		Help: "Number of toggle retries caused by optimistic concurrency conflicts.",
	})
)
