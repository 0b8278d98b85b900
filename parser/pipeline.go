package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smixs/t-tasker/internal/jsonutil"
	"github.com/smixs/t-tasker/llm"
	"github.com/smixs/t-tasker/task"
)

// ExtractionRaw is the transient output of the pipeline's first stage:
// unnormalized fields plus the entities and action type that feed tagging.
// It never leaves the pipeline.
type ExtractionRaw struct {
	Reasoning   string   `json:"reasoning"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	DueString   string   `json:"due_string"`
	Entities    []string `json:"entities"`
	ActionType  string   `json:"action_type"`
}

// Pipeline is the multi-stage extraction strategy for long or structured
// messages: raw chain-of-thought extraction, a focused date-normalization
// call, tag generation, then deterministic tag standardization. Stages run
// strictly sequentially; any stage failure aborts the whole pipeline (the
// orchestrator then falls back to direct extraction), so no retry budget
// is spent here.
type Pipeline struct {
	Client   llm.Client
	Model    string
	Taxonomy Taxonomy
	Logger   *slog.Logger
}

// Pipeline content is hard-truncated to this many characters regardless of
// what stage 1 produced.
const pipelineContentMax = 100

func NewPipeline(client llm.Client, model string, taxonomy Taxonomy, logger *slog.Logger) *Pipeline {
	return &Pipeline{Client: client, Model: model, Taxonomy: taxonomy, Logger: logger}
}

func (p *Pipeline) Extract(ctx context.Context, message, lang string) (task.Record, error) {
	if p == nil || p.Client == nil {
		return task.Record{}, &ExtractionError{Stage: "setup", Err: fmt.Errorf("nil llm client")}
	}
	lang = normalizeLang(lang)

	raw, err := p.extractRaw(ctx, message, lang)
	if err != nil {
		return task.Record{}, &ExtractionError{Stage: "extract_raw", Err: err}
	}

	due := ""
	if strings.TrimSpace(raw.DueString) != "" {
		due, err = p.normalizeDate(ctx, raw.DueString, lang)
		if err != nil {
			return task.Record{}, &ExtractionError{Stage: "normalize_date", Err: err}
		}
		due = StripTimezone(due)
	}

	candidates, err := p.generateTags(ctx, raw)
	if err != nil {
		return task.Record{}, &ExtractionError{Stage: "generate_tags", Err: err}
	}

	tags := p.Taxonomy.Standardize(candidates, raw.Entities)

	priority := 2
	for _, tag := range tags {
		if tag == p.Taxonomy.UrgentTag {
			priority = 3
			break
		}
	}

	content := strings.TrimSpace(raw.Content)
	if runes := []rune(content); len(runes) > pipelineContentMax {
		content = string(runes[:pipelineContentMax])
	}

	rec, err := task.NewRecord(task.Record{
		Content:     content,
		Description: raw.Description,
		DueString:   due,
		Priority:    priority,
		Labels:      tags,
	})
	if err != nil {
		return task.Record{}, &ExtractionError{Stage: "normalize_record", Err: err}
	}

	if p.Logger != nil {
		p.Logger.Info("pipeline_extracted",
			"content_len", len(rec.Content),
			"labels", len(rec.Labels),
			"has_due", rec.DueString != "",
			"action_type", raw.ActionType,
		)
	}
	return rec, nil
}

func (p *Pipeline) extractRaw(ctx context.Context, message, lang string) (ExtractionRaw, error) {
	payload, _ := json.Marshal(map[string]any{
		"message":       message,
		"user_language": lang,
	})
	res, err := p.Client.Chat(ctx, llm.Request{
		Model:     p.Model,
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: rawExtractionSystemPrompt(lang)},
			{Role: "user", Content: string(payload)},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
	})
	if err != nil {
		return ExtractionRaw{}, err
	}
	var out ExtractionRaw
	if err := jsonutil.DecodeWithFallback(res.Text, &out); err != nil {
		return ExtractionRaw{}, fmt.Errorf("decode raw extraction: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return ExtractionRaw{}, fmt.Errorf("raw extraction produced no content")
	}
	return out, nil
}

func (p *Pipeline) normalizeDate(ctx context.Context, rawDate, lang string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"raw_date":      rawDate,
		"user_language": lang,
	})
	res, err := p.Client.Chat(ctx, llm.Request{
		Model:     p.Model,
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: dateNormalizationSystemPrompt()},
			{Role: "user", Content: string(payload)},
		},
		Temperature: 0.1,
		MaxTokens:   64,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		NormalizedDate string `json:"normalized_date"`
	}
	if err := jsonutil.DecodeWithFallback(res.Text, &out); err != nil {
		return "", fmt.Errorf("decode normalized date: %w", err)
	}
	return strings.TrimSpace(out.NormalizedDate), nil
}

func (p *Pipeline) generateTags(ctx context.Context, raw ExtractionRaw) ([]string, error) {
	payload, _ := json.Marshal(map[string]any{
		"content":     raw.Content,
		"entities":    raw.Entities,
		"action_type": raw.ActionType,
	})
	res, err := p.Client.Chat(ctx, llm.Request{
		Model:     p.Model,
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: tagGenerationSystemPrompt()},
			{Role: "user", Content: string(payload)},
		},
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Tags []string `json:"tags"`
	}
	if err := jsonutil.DecodeWithFallback(res.Text, &out); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return out.Tags, nil
}
