// Package users — каталог пользователей бота и бан-лист.
// models.go описывает структуры данных для таблиц users и banned_users.
package users

import "time"

// User — пользователь, хотя бы раз написавший боту.
type User struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
	LastSeen  time.Time `db:"last_seen_at"`
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// Stats — сводка для /stats и ежедневного дайджеста.
type Stats struct {
	Total    int64
	Banned   int64
	NewToday int64
}
