// Package dateutil содержит вспомогательные функции календарной арифметики
// целыми днями: нормализация к началу суток, диапазоны дат, поиск последнего
// воскресенья. Все вычисления выполняются в UTC, время суток отбрасывается.
package dateutil

import "time"

// Normalize отбрасывает время суток и часовой пояс, возвращая полночь UTC того же календарного дня.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays возвращает день, отстоящий от t на n календарных дней.
func AddDays(t time.Time, n int) time.Time {
	return Normalize(t).AddDate(0, 0, n)
}

// DaysBetween считает количество целых дней от a до b. Отрицательно, если b раньше a.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)).Hours() / 24)
}

// Range возвращает все дни закрытого интервала [start, end] по возрастанию.
// Пустой срез, если end раньше start.
func Range(start, end time.Time) []time.Time {
	start, end = Normalize(start), Normalize(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ReverseRange возвращает все дни закрытого интервала [start, end] по убыванию.
func ReverseRange(start, end time.Time) []time.Time {
	days := Range(start, end)
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}

// LastSunday возвращает t, если это воскресенье, иначе ближайшее предыдущее воскресенье.
func LastSunday(t time.Time) time.Time {
	t = Normalize(t)
	return t.AddDate(0, 0, -int(t.Weekday()))
}
