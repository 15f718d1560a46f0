// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел и длительностей.
package common

import (
	"fmt"
	"math"
	"time"
)

// Pluralize возвращает правильную форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
//
// Пример:
//
//	Pluralize(21, "пользователь", "пользователя", "пользователей") → "пользователь"
func Pluralize(n int64, one, few, many string) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// FormatUsers форматирует количество пользователей: "5 пользователей".
func FormatUsers(n int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(n), Pluralize(n, "пользователь", "пользователя", "пользователей"))
}

// FormatMinutes форматирует количество минут: "3 минуты".
func FormatMinutes(n int64) string {
	return fmt.Sprintf("%d %s", n, Pluralize(n, "минута", "минуты", "минут"))
}

// FormatSeconds форматирует длительность в секундах: "30 секунд".
func FormatSeconds(d time.Duration) string {
	n := int64(d / time.Second)
	return fmt.Sprintf("%d %s", n, Pluralize(n, "секунда", "секунды", "секунд"))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s %03d", FormatNumber(rest), last)
}

// LoadLocation загружает часовой пояс, при ошибке возвращает UTC+3.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в заданном часовом поясе.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
