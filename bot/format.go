package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/smixs/t-tasker/task"
	"github.com/smixs/t-tasker/todoist"
)

const processingMessage = "⏳ Обрабатываю ваше сообщение..."

const transcribingMessage = "🎤 Распознаю голосовое сообщение..."

var priorityEmoji = map[int]string{2: "🔵", 3: "🟡", 4: "🔴"}

// FormatTaskCreated renders the confirmation card for a created task.
func FormatTaskCreated(rec task.Record, created todoist.Task) string {
	lines := []string{"✅ <b>Задача создана!</b>\n"}

	lines = append(lines, fmt.Sprintf("📝 <b>%s</b>", html.EscapeString(rec.Content)))
	if rec.Description != "" {
		lines = append(lines, "📄 "+html.EscapeString(rec.Description))
	}
	if rec.ProjectName != "" {
		lines = append(lines, fmt.Sprintf("📁 Проект: <i>%s</i>", html.EscapeString(rec.ProjectName)))
	}
	if rec.DueString != "" {
		lines = append(lines, "📅 Срок: "+html.EscapeString(rec.DueString))
	}
	if rec.Priority > 1 {
		lines = append(lines, fmt.Sprintf("%s Приоритет: %d", priorityEmoji[rec.Priority], rec.Priority))
	}
	if len(rec.Labels) > 0 {
		tagged := make([]string, len(rec.Labels))
		for i, label := range rec.Labels {
			tagged[i] = "#" + html.EscapeString(label)
		}
		lines = append(lines, "🏷 Метки: "+strings.Join(tagged, ", "))
	}
	if rec.Recurrence != "" {
		lines = append(lines, "🔄 Повтор: "+html.EscapeString(rec.Recurrence))
	}
	if rec.Duration > 0 {
		lines = append(lines, "⏱ Длительность: "+formatDuration(rec.Duration))
	}
	if created.URL != "" {
		lines = append(lines, fmt.Sprintf("\n🔗 <a href='%s'>Открыть в Todoist</a>", created.URL))
	}
	return strings.Join(lines, "\n")
}

func formatDuration(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dч %dм", h, m)
	case h > 0:
		return fmt.Sprintf("%dч", h)
	default:
		return fmt.Sprintf("%dм", m)
	}
}
