// Package executor turns parsed commands into Todoist calls and a
// Telegram-ready HTML reply. Task targeting is local: "last" resolves
// against the bot's own record of created tasks, never a Todoist query.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/smixs/t-tasker/store"
	"github.com/smixs/t-tasker/task"
	"github.com/smixs/t-tasker/todoist"
)

// TodoistAPI is the slice of the Todoist client commands consume. The
// caller hands in a client already bound to the user's token.
type TodoistAPI interface {
	GetTasks(ctx context.Context, filter, projectID string, limit int) ([]todoist.Task, error)
	UpdateTask(ctx context.Context, id string, req todoist.UpdateTaskRequest) (todoist.Task, error)
	CloseTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
	Projects(ctx context.Context) ([]todoist.Project, error)
}

// TaskRefs is the task-reference store slice the executor needs.
type TaskRefs interface {
	Last(ctx context.Context, telegramID int64) (store.TaskRef, error)
	Forget(ctx context.Context, telegramID int64, todoistID string) error
}

const viewLimit = 20

var priorityEmoji = map[int]string{1: "⚪", 2: "🔵", 3: "🟡", 4: "🔴"}

var priorityNames = map[int]string{1: "обычный", 2: "средний", 3: "высокий", 4: "срочный"}

type Executor struct {
	refs   TaskRefs
	logger *slog.Logger
}

func New(refs TaskRefs, logger *slog.Logger) *Executor {
	return &Executor{refs: refs, logger: logger}
}

// Execute runs one command for the given user and returns HTML for the
// bot to send.
func (e *Executor) Execute(ctx context.Context, api TodoistAPI, telegramID int64, cmd task.Command) (string, error) {
	switch cmd.Kind {
	case task.CommandViewTasks:
		return e.viewTasks(ctx, api, cmd)
	case task.CommandDeleteTask:
		return e.deleteTask(ctx, api, telegramID, cmd)
	case task.CommandUpdateTask:
		return e.updateTask(ctx, api, telegramID, cmd)
	case task.CommandCompleteTask:
		return e.completeTask(ctx, api, telegramID, cmd)
	default:
		return "", fmt.Errorf("unknown command type %q", cmd.Kind)
	}
}

func (e *Executor) viewTasks(ctx context.Context, api TodoistAPI, cmd task.Command) (string, error) {
	filter := ""
	title := "📋 Все активные задачи"
	switch cmd.Target {
	case task.TargetToday:
		filter = "today"
		title = "📅 Задачи на сегодня"
	case task.TargetTomorrow:
		filter = "tomorrow"
		title = "📆 Задачи на завтра"
	}

	// A priority filter replaces the date filter, matching Todoist's
	// one-expression query model.
	if p, ok := cmd.Filters["priority"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil && n >= 1 && n <= 4 {
			filter = "p" + strconv.Itoa(n)
			title = fmt.Sprintf("🔴 Задачи с приоритетом %d", n)
		}
	}

	tasks, err := api.GetTasks(ctx, filter, "", viewLimit)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return title + "\n\n<i>Задач не найдено</i>", nil
	}

	var projects []todoist.Project
	needProjects := false
	for _, t := range tasks {
		if t.ProjectID != "" {
			needProjects = true
			break
		}
	}
	if needProjects {
		// Project names are cosmetic; a lookup failure only drops them.
		projects, _ = api.Projects(ctx)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)
	for i, t := range tasks {
		emoji := priorityEmoji[t.Priority]
		if emoji == "" {
			emoji = "⚪"
		}
		fmt.Fprintf(&b, "%d. %s %s", i+1, emoji, t.Content)
		if due := formatDue(t.Due); due != "" {
			b.WriteString(" 📅 " + due)
		}
		if name := projectName(projects, t.ProjectID); name != "" {
			b.WriteString(" 📁 " + name)
		}
		if len(t.Labels) > 0 {
			b.WriteString(" 🏷️ " + strings.Join(t.Labels, ", "))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (e *Executor) deleteTask(ctx context.Context, api TodoistAPI, telegramID int64, cmd task.Command) (string, error) {
	if cmd.Target != task.TargetLast {
		return "❌ Пока поддерживается только удаление последней задачи", nil
	}
	ref, err := e.refs.Last(ctx, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "❌ Последняя задача не найдена", nil
	}
	if err != nil {
		return "", err
	}

	if err := api.DeleteTask(ctx, ref.TodoistID); err != nil {
		if errors.Is(err, todoist.ErrNotFound) {
			// Already gone remotely; drop the stale reference too.
			_ = e.refs.Forget(ctx, telegramID, ref.TodoistID)
			return "❌ Последняя задача не найдена", nil
		}
		return "", err
	}
	if err := e.refs.Forget(ctx, telegramID, ref.TodoistID); err != nil && e.logger != nil {
		e.logger.Warn("task_ref_forget_failed", "todoist_id", ref.TodoistID, "error", err.Error())
	}
	return fmt.Sprintf("✅ Удалена задача: <i>%s</i>", ref.Content), nil
}

func (e *Executor) updateTask(ctx context.Context, api TodoistAPI, telegramID int64, cmd task.Command) (string, error) {
	if cmd.Target != task.TargetLast {
		return "❌ Пока поддерживается только изменение последней задачи", nil
	}
	if len(cmd.Updates) == 0 {
		return "❌ Не указаны изменения для задачи", nil
	}
	ref, err := e.refs.Last(ctx, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "❌ Последняя задача не найдена", nil
	}
	if err != nil {
		return "", err
	}

	var req todoist.UpdateTaskRequest
	var described []string
	if v, ok := cmd.Updates["priority"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 1 && n <= 4 {
			req.Priority = n
			described = append(described, "приоритет → "+priorityNames[n])
		}
	}
	if v := strings.TrimSpace(cmd.Updates["due_string"]); v != "" {
		req.DueString = v
		described = append(described, "срок → "+v)
	}
	if v := strings.TrimSpace(cmd.Updates["content"]); v != "" {
		req.Content = v
		described = append(described, "текст → "+v)
	}
	if len(described) == 0 {
		return "❌ Не указаны изменения для задачи", nil
	}

	if _, err := api.UpdateTask(ctx, ref.TodoistID, req); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Обновлена задача: <i>%s</i>\n\n📝 Изменения: %s",
		ref.Content, strings.Join(described, ", ")), nil
}

func (e *Executor) completeTask(ctx context.Context, api TodoistAPI, telegramID int64, cmd task.Command) (string, error) {
	if cmd.Target != task.TargetLast {
		return "❌ Пока поддерживается только выполнение последней задачи", nil
	}
	ref, err := e.refs.Last(ctx, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "❌ Последняя задача не найдена", nil
	}
	if err != nil {
		return "", err
	}

	if err := api.CloseTask(ctx, ref.TodoistID); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Выполнена задача: <i>%s</i>", ref.Content), nil
}

func formatDue(due *todoist.Due) string {
	if due == nil {
		return ""
	}
	if due.Datetime != "" {
		if dt, err := time.Parse(time.RFC3339, due.Datetime); err == nil {
			return dt.Format("02.01 15:04")
		}
	}
	return due.Date
}

func projectName(projects []todoist.Project, id string) string {
	if id == "" {
		return ""
	}
	for _, p := range projects {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}
