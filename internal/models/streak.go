package models

import (
	"time"

	"github.com/google/uuid"
)

// Streak представляет максимальную непрерывную серию выполненных дней
// одной привычки: закрытый интервал дат [Start, End].
//
// Инварианты, которые обязаны выполняться после каждой мутации:
//   - серии одной привычки попарно не пересекаются и не соприкасаются
//     (End + 1 день одной серии никогда не равен Start другой);
//   - Start <= End;
//   - Length >= 1 и равен количеству дней интервала.
//
// Length — производное поле, оно пересчитывается только внутри
// движка серий при изменении Start/End и никогда не принимается извне.
type Streak struct {
	ID       int64     // Идентификатор серии
	HabitID  uuid.UUID // Привычка, которой принадлежит серия
	OwnerUID string    // Владелец, денормализован из привычки для локальности запросов
	Start    time.Time // Первый выполненный день серии (включительно)
	End      time.Time // Последний выполненный день серии (включительно)
	Length   int       // Количество дней в интервале, End - Start + 1
	Version  int       // Версия строки для оптимистичной блокировки
}

// RecalcLength пересчитывает Length по текущим Start и End.
// Вызывается движком серий после каждого изменения границ.
func (s *Streak) RecalcLength() {
	s.Length = int(s.End.Sub(s.Start).Hours()/24) + 1
}

// Contains сообщает, входит ли день в интервал серии.
func (s *Streak) Contains(day time.Time) bool {
	return !day.Before(s.Start) && !day.After(s.End)
}
