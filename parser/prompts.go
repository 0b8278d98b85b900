package parser

import "strings"

// Prompts follow one convention: English instructions, target-language
// examples where the vocabulary matters. due_string always lands in the
// fixed English token vocabulary Todoist understands, no matter what
// language the message came in.

const dueStringRules = `due_string rules (CRITICAL):
- Output vocabulary is fixed English tokens: day names ("monday".."sunday"), month abbreviations ("jan".."dec"), "today", "tomorrow", "day after tomorrow", "in N days", times as "at HH:MM".
- Russian vocabulary maps: "понедельник"->"monday" .. "воскресенье"->"sunday"; "января"->"jan", "февраля"->"feb", "марта"->"mar", "апреля"->"apr", "мая"->"may", "июня"->"jun", "июля"->"jul", "августа"->"aug", "сентября"->"sep", "октября"->"oct", "ноября"->"nov", "декабря"->"dec"; "сегодня"->"today", "завтра"->"tomorrow", "послезавтра"->"day after tomorrow"; "в 14:00"->"at 14:00".
- DATE PRECEDENCE: an absolute date or clock time ("15 марта", "March 15", "20.03", "at 14:00") ALWAYS wins over a co-occurring relative one ("завтра", "tomorrow"). Use the relative expression only when no absolute date is present.
- STRIP timezone and city qualifiers entirely: "по Минску", "по Ташкенту", "по Москве", "Moscow time", "MSK", "UTC", "GMT" must never appear in due_string.
Examples:
- "Встреча завтра 15 марта в 14:00" -> "mar 15 at 14:00" (NOT "tomorrow")
- "Сделать отчет завтра" -> "tomorrow"
- "В четверг в 12:00 по Минску встреча" -> "thursday at 12:00"
- "Meeting tomorrow March 15 at 2:00 PM" -> "march 15 at 14:00" (NOT "tomorrow")`

const taskFieldRules = `Task fields:
- content: main task text, required, concise.
- description: additional context if any; preserve numbered lists as written.
- due_string: see due_string rules.
- priority: 1 normal, 2 medium, 3 high, 4 urgent. Omit when not implied.
- project_name: only when the user names a project.
- labels: short lowercase tags when clearly implied.
- recurrence: pattern like "every day", "every month on the 25th" when the task repeats.
- duration: estimated minutes, only when stated.`

func classifierSystemPrompt(lang string, forwardAuthor string) string {
	var b strings.Builder
	b.WriteString("You are an intent classifier for a Todoist assistant. Decide whether the user wants to CREATE a new task or run a COMMAND over existing tasks.\n\n")
	b.WriteString("Return ONLY JSON with this flat shape:\n")
	b.WriteString(`{"intent_type":"create_task"|"command","task_data":{...}|null,"command_type":"view_tasks"|"delete_task"|"update_task"|"complete_task"|null,"target":"last"|"all"|"today"|"tomorrow"|"specific"|null,"filters":{...}|null,"updates":{...}|null,"task_identifier":"..."|null}`)
	b.WriteString("\n\nClassification rubric:\n")
	if lang == "ru" {
		b.WriteString(`1. create_task: the user describes something to do or remember.
   Examples: "Купить молоко завтра", "Встреча с клиентом в 15:00", "Напомни позвонить маме", "Подготовить презентацию к понедельнику".
2. command:
   - view_tasks: "Покажи задачи на сегодня", "Что у меня запланировано?", "Какие задачи на завтра?", "Покажи все задачи"
   - delete_task: "Удали последнюю задачу", "Убери предыдущую", "Удали всё"
   - update_task: "Измени приоритет последней задачи", "Перенеси на завтра", "Сделай срочной"
   - complete_task: "Отметь выполненной", "Задача готова", "Выполнено"
`)
	} else {
		b.WriteString(`1. create_task: the user describes something to do or remember.
   Examples: "Buy milk tomorrow", "Meeting with client at 3pm", "Call mom", "Prepare presentation for Monday".
2. command:
   - view_tasks: "Show today's tasks", "What's on my schedule?", "List tomorrow's tasks", "Show all tasks"
   - delete_task: "Delete the last task", "Remove the previous one", "Delete everything"
   - update_task: "Change priority of last task", "Move to tomorrow", "Make it urgent"
   - complete_task: "Mark as done", "Task completed", "Done"
`)
	}
	b.WriteString("\nWhen in doubt between creation and command, choose create_task.\n")
	b.WriteString("For create_task, fill task_data using the rules below and set command fields to null. For command, set task_data to null.\n\n")
	b.WriteString(taskFieldRules)
	b.WriteString("\n\n")
	b.WriteString(dueStringRules)
	if author := strings.TrimSpace(forwardAuthor); author != "" {
		b.WriteString("\n\nFORWARDED MESSAGE. The text originates from another person: " + author + ".\n")
		b.WriteString("When creating a task, attribute it to " + author + " by name inside content, not to the current user.\n")
		b.WriteString(`Examples: "Встреча завтра" from Иван -> content "Встреча с Иван завтра"; "Need report" from Anna -> content "Report for Anna".`)
	}
	return b.String()
}

func rawExtractionSystemPrompt(lang string) string {
	var b strings.Builder
	b.WriteString("You extract a concise task from a long, possibly multi-topic message. Think step by step first, then answer.\n\n")
	b.WriteString("Return ONLY JSON: ")
	b.WriteString(`{"reasoning":"...","content":"...","description":"...","due_string":"...","entities":["..."],"action_type":"..."}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- content: the concise essence of the task, max 100 characters.\n")
	b.WriteString("- description: the full context; preserve numbered lists exactly as written.\n")
	b.WriteString("- due_string: the raw date phrase from the message WITHOUT timezone or city qualifiers; empty string when no date.\n")
	b.WriteString("- entities: proper nouns only - people, companies, projects.\n")
	if lang == "ru" {
		b.WriteString("- action_type: one of встреча, звонок, документ, решение, проверка, контакт, работа.\n")
	} else {
		b.WriteString("- action_type: one of meeting, call, document, decision, review, contact, work.\n")
	}
	return b.String()
}

func dateNormalizationSystemPrompt() string {
	return "You convert a date phrase into the Todoist due_string format. Respond ONLY with JSON: {\"normalized_date\":\"...\"}.\n\n" +
		dueStringRules +
		"\n\nIf the phrase cannot be parsed as a date, return it unchanged."
}

func tagGenerationSystemPrompt() string {
	return strings.Join([]string{
		"You propose short tags for a task given its essence, extracted entities and action type.",
		"Return ONLY JSON: {\"tags\":[\"...\"]}.",
		"At most 5 tags. Tags are single words or very short phrases in the language of the task.",
		"Prefer category words (meeting, documents, finance) over restating the content.",
	}, " ")
}
