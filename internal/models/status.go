package models

// CompletionStatus — состояние конкретного дня для пары (привычка, дата).
type CompletionStatus int

const (
	// StatusIncomplete — день не покрыт ни одной серией, но привычка в этот день существовала.
	// Нулевое значение: массивы статусов инициализируются именно им.
	StatusIncomplete CompletionStatus = iota
	// StatusComplete — день покрыт какой-то серией.
	StatusComplete
	// StatusInactive — день раньше даты создания привычки или в будущем.
	// Неактивные дни никогда не изменяются.
	StatusInactive
)

// String возвращает имя статуса для шаблонов и логов.
func (s CompletionStatus) String() string {
	switch s {
	case StatusComplete:
		return "COMPLETE"
	case StatusInactive:
		return "INACTIVE"
	default:
		return "INCOMPLETE"
	}
}
