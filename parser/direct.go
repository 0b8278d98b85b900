package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smixs/t-tasker/internal/jsonutil"
	"github.com/smixs/t-tasker/internal/retryutil"
	"github.com/smixs/t-tasker/llm"
	"github.com/smixs/t-tasker/task"
)

// DirectExtractor is the single-call extraction strategy: one structured
// request carrying the full field rubric. It is the default path and the
// fallback target when the multi-stage pipeline fails.
type DirectExtractor struct {
	Client llm.Client
	Model  string
	Retry  retryutil.Policy
	Logger *slog.Logger
}

func NewDirectExtractor(client llm.Client, model string, retry retryutil.Policy, logger *slog.Logger) *DirectExtractor {
	return &DirectExtractor{Client: client, Model: model, Retry: retry, Logger: logger}
}

func (e *DirectExtractor) Extract(ctx context.Context, message, lang string) (task.Record, error) {
	if e == nil || e.Client == nil {
		return task.Record{}, fmt.Errorf("nil llm client")
	}
	message = strings.TrimSpace(message)
	if len([]rune(message)) < minMessageLen {
		return task.Record{}, &task.ValidationError{Field: "message", Msg: "too short"}
	}

	sys := "You extract a Todoist task from the user's message. Return ONLY JSON with the task fields.\n\n" +
		taskFieldRules + "\n\n" + dueStringRules

	var rec task.Record
	err := e.Retry.Do(ctx, e.Logger, "parse_task", func(ctx context.Context) error {
		res, err := e.Client.Chat(ctx, llm.Request{
			Model:     e.Model,
			ForceJSON: true,
			Messages: []llm.Message{
				{Role: "system", Content: sys},
				{Role: "user", Content: message},
			},
			Temperature: 0.3,
			MaxTokens:   1024,
		})
		if err != nil {
			return err
		}
		raw := strings.TrimSpace(res.Text)
		if raw == "" {
			return fmt.Errorf("empty extraction response")
		}
		var out task.Record
		if err := jsonutil.DecodeWithFallback(raw, &out); err != nil {
			return fmt.Errorf("decode task record: %w", err)
		}
		out.DueString = StripTimezone(out.DueString)
		normalized, err := task.NewRecord(out)
		if err != nil {
			var verr *task.ValidationError
			if errors.As(err, &verr) {
				return retryutil.Permanent(err)
			}
			return err
		}
		rec = normalized
		return nil
	})
	if err != nil {
		var verr *task.ValidationError
		if errors.As(err, &verr) {
			return task.Record{}, err
		}
		return task.Record{}, &ExtractionError{Err: err}
	}
	return rec, nil
}
