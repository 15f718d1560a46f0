// Package settings — настройки, которые оператор меняет на лету.
// Хранятся в таблице settings (key → value, текст) и кешируются в памяти.
package settings

import (
	"strconv"
	"time"
)

// Ключи настроек.
const (
	KeyFloodLimit       = "flood_limit_count"
	KeySpeedProfile     = "broadcast_speed_profile"
	KeyBotEnabled       = "is_bot_enabled"
	KeyForceJoinEnabled = "is_force_join_enabled"
	KeyCaption          = "caption_text"
	KeyDeleteTimeoutMs  = "delete_timeout_ms"
	KeyStartText        = "regular_user_start_text"
)

// Defaults — значения, которыми заполняется пустая таблица.
type Defaults struct {
	FloodLimit    int
	SpeedProfile  string
	DeleteTimeout time.Duration
	Caption       string
}

func (d Defaults) values() map[string]string {
	return map[string]string{
		KeyFloodLimit:       strconv.Itoa(d.FloodLimit),
		KeySpeedProfile:     d.SpeedProfile,
		KeyBotEnabled:       "true",
		KeyForceJoinEnabled: "true",
		KeyCaption:          d.Caption,
		KeyDeleteTimeoutMs:  strconv.FormatInt(d.DeleteTimeout.Milliseconds(), 10),
		KeyStartText:        "",
	}
}
