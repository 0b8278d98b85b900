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

// Messages shorter than this fail validation before any model call.
const minMessageLen = 2

// Classifier disambiguates task creation from command execution with one
// structured model call. The same call carries the task fields, so for
// simple messages it doubles as the direct extraction path.
type Classifier struct {
	Client llm.Client
	Model  string
	Retry  retryutil.Policy
	Logger *slog.Logger
}

func NewClassifier(client llm.Client, model string, retry retryutil.Policy, logger *slog.Logger) *Classifier {
	return &Classifier{Client: client, Model: model, Retry: retry, Logger: logger}
}

// Classify returns the intent of one message. forwardAuthor, when
// non-empty, marks the message as forwarded and augments the prompt with
// an attribution instruction; it must stay empty for regular messages.
func (c *Classifier) Classify(ctx context.Context, message, lang, forwardAuthor string) (task.Intent, error) {
	if c == nil || c.Client == nil {
		return task.Intent{}, fmt.Errorf("nil llm client")
	}
	message = strings.TrimSpace(message)
	if len([]rune(message)) < minMessageLen {
		return task.Intent{}, &task.ValidationError{Field: "message", Msg: "too short"}
	}

	sys := classifierSystemPrompt(normalizeLang(lang), forwardAuthor)

	var intent task.Intent
	err := c.Retry.Do(ctx, c.Logger, "classify_intent", func(ctx context.Context) error {
		res, err := c.Client.Chat(ctx, llm.Request{
			Model:     c.Model,
			ForceJSON: true,
			Messages: []llm.Message{
				{Role: "system", Content: sys},
				{Role: "user", Content: message},
			},
			Temperature: 0.2,
			MaxTokens:   1024,
		})
		if err != nil {
			return err
		}
		raw := strings.TrimSpace(res.Text)
		if raw == "" {
			return fmt.Errorf("empty classification response")
		}
		var wrapper task.IntentWrapper
		if err := jsonutil.DecodeWithFallback(raw, &wrapper); err != nil {
			return fmt.Errorf("decode intent wrapper: %w", err)
		}
		out, err := wrapper.ToIntent()
		if err != nil {
			var verr *task.ValidationError
			if errors.As(err, &verr) {
				return retryutil.Permanent(err)
			}
			return fmt.Errorf("invalid intent wrapper: %w", err)
		}
		intent = out
		return nil
	})
	if err != nil {
		var verr *task.ValidationError
		if errors.As(err, &verr) {
			return task.Intent{}, err
		}
		return task.Intent{}, &ClassificationError{Err: err}
	}

	if c.Logger != nil {
		c.Logger.Info("intent_classified", "kind", string(intent.Kind))
	}
	return intent, nil
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || strings.HasPrefix(lang, "ru") {
		return "ru"
	}
	return "en"
}
