package models

import "errors"

// Типизированные ошибки доменного ядра. Сервисы оборачивают их через
// fmt.Errorf("%s: %w", op, err), вызывающая сторона проверяет errors.Is.
var (
	// ErrHabitNotFound — привычка не найдена по слагу или идентификатору.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrStreakNotFound — серия не найдена по условию поиска.
	ErrStreakNotFound = errors.New("streak not found")
	// ErrInvalidDateRange — конец диапазона раньше начала либо недопустимые параметры окна.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrConcurrentModification — конфликт версий при записи серии.
	// Движок повторяет операцию ограниченное число раз, затем отдаёт ошибку наверх.
	ErrConcurrentModification = errors.New("concurrent streak modification")
	// ErrCorruptState — хранилище вернуло состояние, нарушающее инвариант
	// непересекаемости серий. Указывает на повреждение данных, никогда не глотается.
	ErrCorruptState = errors.New("corrupt streak state")
)
