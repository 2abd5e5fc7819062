package models

import (
	"time"

	"github.com/google/uuid"
)

// GridSquare — один день сетки истории: количество выполненных и активных
// привычек и уровень интенсивности, вычисленный по точкам разбиения.
type GridSquare struct {
	Date        time.Time `json:"date"`
	NumComplete int       `json:"num_complete"`
	NumActive   int       `json:"num_active"`
	Level       int       `json:"level"`
}

// HistoryGrid — 52-недельная сетка истории по всем привычкам владельца.
// MonthLabels содержит по одной метке на неделю (колонку): аббревиатура
// месяца, если суббота этой недели попадает в первые 7 дней месяца, иначе "".
type HistoryGrid struct {
	MonthLabels []string     `json:"month_labels"`
	Squares     []GridSquare `json:"squares"`
}

// StrengthPoint — одна точка временного ряда силы привычки, значение в [0, 1].
type StrengthPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// UpdateTarget адресует переключение одного дня одной привычки.
// Веб-слой превращает его в URL вида /habits/{slug}/{date}.
type UpdateTarget struct {
	Slug string    `json:"slug"`
	Date time.Time `json:"date"`
}

// ChecklistRow — строка чеклиста для одной привычки: признаки выполнения
// и цели переключения в том же порядке, что и Checklist.Dates.
type ChecklistRow struct {
	HabitID   uuid.UUID      `json:"habit_id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	Completed []bool         `json:"completed"`
	Targets   []UpdateTarget `json:"targets"`
}

// Checklist — короткое окно последних дней по всем привычкам.
// Dates отсортированы от самого свежего дня к самому старому.
type Checklist struct {
	Dates []time.Time    `json:"dates"`
	Rows  []ChecklistRow `json:"rows"`
}
