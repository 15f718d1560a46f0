package forcejoin

import (
	"html"
	"strings"

	"serotonyl.ru/gatebot/internal/transport"
)

// alertLimit — запас от лимита Telegram в 200 символов для answerCallbackQuery.
const alertLimit = 195

// BuildPrompt — сообщение со списком недостающих каналов и кнопками.
// Кнопка повторной проверки одна и несёт идентификатор отложенного файла.
func BuildPrompt(missing []Target, extras []ExtraLink, fileID string) (string, transport.Keyboard) {
	var b strings.Builder
	b.WriteString("🔔 Чтобы продолжить, подпишитесь на каналы/группы ниже и нажмите «Проверить подписку»:\n\n")
	for _, t := range missing {
		b.WriteString("• <b>")
		b.WriteString(html.EscapeString(t.Title))
		b.WriteString("</b>\n")
	}
	if len(extras) > 0 {
		b.WriteString("\n🔗 Ссылки ниже необязательны, подписка на них не проверяется.\n")
	}

	var kb transport.Keyboard
	for _, t := range missing {
		if t.InviteLink == "" {
			continue
		}
		kb = append(kb, []transport.Button{{Text: t.Button(), URL: t.InviteLink}})
	}
	for i, l := range extras {
		if l.InviteLink == "" {
			continue
		}
		kb = append(kb, []transport.Button{{Text: l.Button(i), URL: l.InviteLink}})
	}

	if fileID == "" {
		fileID = NoFile
	}
	kb = append(kb, []transport.Button{{Text: "✅ Проверить подписку", CallbackData: CallbackPrefix + fileID}})

	return b.String(), kb
}

// AlertText — всплывающее уведомление при неудачной проверке.
// Список обрезается, чтобы уложиться в лимит Telegram.
func AlertText(missing []Target) string {
	text := "❌ Вы ещё не подписались на все обязательные каналы."
	if len(missing) == 0 {
		return text
	}

	list := "\nПодпишитесь на:"
	for _, t := range missing {
		entry := "\n- " + t.Title
		if runeLen(text+list+entry) > alertLimit {
			list += "\n..."
			break
		}
		list += entry
	}
	return text + list
}

// ParseCallback достаёт идентификатор файла из callback_data.
func ParseCallback(data string) (fileID string, ok bool) {
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", false
	}
	fileID = strings.TrimPrefix(data, CallbackPrefix)
	if fileID == NoFile {
		fileID = ""
	}
	return fileID, true
}

func runeLen(s string) int { return len([]rune(s)) }
