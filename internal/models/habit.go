// Package models содержит доменные структуры трекера привычек:
// привычки, серии выполненных дней (streaks), статусы выполнения
// и производные структуры для аналитики (сетка истории, сила привычки,
// чеклист). Все даты хранятся как time.Time, нормализованные к началу
// суток в UTC — время суток в этой предметной области не используется.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Habit представляет одну привычку пользователя.
// Slug уникален в пределах владельца и формируется из имени при создании.
// CreatedOn — дата создания: дни до этой даты считаются неактивными.
type Habit struct {
	ID        uuid.UUID // Идентификатор привычки
	OwnerUID  string    // Идентификатор владельца, выдаётся внешним сервисом аутентификации
	Name      string    // Название привычки
	Slug      string    // URL-слаг, уникальный среди привычек владельца
	Active    bool      // Активна ли привычка (неактивные скрыты из списков)
	Points    int       // Вес привычки от 1 до 5
	CreatedOn time.Time // Дата создания привычки (без времени)
}

// CreateHabitRequest используется для приёма данных о новой привычке,
// прежде чем конвертировать их в Habit. Поля валидируются вручную
// через go-playground/validator.
type CreateHabitRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=30"` // Название (1..30 символов)
	Points int    `json:"points" validate:"omitempty,gte=1,lte=5"` // Вес (1..5), по умолчанию 3
}
