package bot

import (
	"strings"

	"github.com/mymmrac/telego"

	"serotonyl.ru/gatebot/internal/features/content"
	"serotonyl.ru/gatebot/internal/transport"
)

// CommandParser разбирает команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @имя_бота у команды отбрасывается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command, _, _ := strings.Cut(parts[0], "@")
	command = strings.ToLower(command)
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}

// operatorCommands — команды, закрытые для обычных пользователей.
var operatorCommands = map[string]bool{
	"help": true, "logout": true,
	"save": true, "delfile": true, "fileinfo": true,
	"broadcast": true, "broadcast_fwd": true, "bcstatus": true, "bcstop": true, "speed": true,
	"addch": true, "addgroup": true, "rmch": true, "addlink": true, "rmlink": true, "targets": true,
	"ban": true, "unban": true,
	"floodlimit": true, "bot": true, "forcejoin": true, "caption": true, "starttext": true, "deltime": true,
	"stats": true,
}

const operatorHelp = `<b>Команды оператора</b>

<b>Файлы</b>
/save [подпись] — ответом на медиа, выдаёт ссылку
/delfile id — удалить файл
/fileinfo id — сведения о файле

<b>Рассылка</b>
/broadcast — ответом на сообщение (копия)
/broadcast_fwd — ответом на сообщение (пересылка)
/bcstatus — ход рассылки
/bcstop — остановить
/speed [safe|balanced|fast] — профиль скорости

<b>Обязательная подписка</b>
/addch chat_id ссылка лимит название [| кнопка]
/addgroup chat_id ссылка лимит название [| кнопка]
/rmch chat_id
/addlink ссылка [название] [| кнопка]
/rmlink id
/targets — список каналов

<b>Пользователи</b>
/ban user_id
/unban user_id

<b>Настройки</b>
/floodlimit N
/bot on|off
/forcejoin on|off
/caption текст|off
/starttext текст
/deltime секунды (0 — не удалять)

/stats — статистика
/logout — завершить сессию`

// attachmentOf достаёт медиа из сообщения, на которое ответил оператор.
func attachmentOf(m *telego.Message) *content.Attachment {
	if m == nil {
		return nil
	}
	att := &content.Attachment{Caption: m.Caption}
	switch {
	case len(m.Photo) > 0:
		// последний размер — самый большой
		att.Kind, att.FileID = transport.MediaPhoto, m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		att.Kind, att.FileID = transport.MediaVideo, m.Video.FileID
	case m.Audio != nil:
		att.Kind, att.FileID = transport.MediaAudio, m.Audio.FileID
	case m.Document != nil:
		att.Kind, att.FileID = transport.MediaDocument, m.Document.FileID
	default:
		return nil
	}
	return att
}

func replyID(m *telego.Message) int {
	if m.ReplyToMessage == nil {
		return 0
	}
	return m.ReplyToMessage.MessageID
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
