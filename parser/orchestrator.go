package parser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/smixs/t-tasker/task"
)

// Message is one incoming user message already reduced to text (voice has
// been transcribed upstream).
type Message struct {
	Text     string
	Language string
	// ForwardAuthor is resolved only for forwarded messages; it stays
	// empty otherwise and must never be injected for regular messages.
	ForwardAuthor string
	Forwarded     bool
}

// Orchestrator owns strategy selection and the fallback path. It holds no
// mutable state beyond configuration; independent messages can be
// processed concurrently on one instance.
type Orchestrator struct {
	classifier *Classifier
	direct     *DirectExtractor
	pipeline   *Pipeline
	complexity ComplexityConfig
	logger     *slog.Logger
}

type OrchestratorOptions struct {
	Classifier *Classifier
	Direct     *DirectExtractor
	// Pipeline enables the multi-stage strategy when non-nil.
	Pipeline   *Pipeline
	Complexity ComplexityConfig
	Logger     *slog.Logger
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		classifier: opts.Classifier,
		direct:     opts.Direct,
		pipeline:   opts.Pipeline,
		complexity: opts.Complexity,
		logger:     opts.Logger,
	}
}

// Process classifies one message and, for task creation, extracts a
// normalized record: the multi-stage pipeline for complex messages with
// fallback to direct extraction, direct extraction otherwise. Forwarding
// attribution is applied after extraction so both strategies produce the
// same shape; the pipeline has no author input of its own.
func (o *Orchestrator) Process(ctx context.Context, msg Message) (task.Intent, error) {
	// The classifier prompt itself is not author-aware here: attribution
	// is applied deterministically below so strategies stay consistent.
	intent, err := o.classifier.Classify(ctx, msg.Text, msg.Language, "")
	if err != nil {
		return task.Intent{}, err
	}
	if intent.Kind == task.IntentCommand {
		return intent, nil
	}

	rec := *intent.Create
	if o.pipeline != nil && o.complexity.IsComplex(msg.Text) {
		pipelined, perr := o.pipeline.Extract(ctx, msg.Text, msg.Language)
		if perr != nil {
			if o.logger != nil {
				o.logger.Warn("pipeline_fallback", "error", perr.Error())
			}
			fallback, ferr := o.direct.Extract(ctx, msg.Text, msg.Language)
			if ferr != nil {
				// Both strategies exhausted; surface the extraction
				// failure, not the classification one.
				return task.Intent{}, ferr
			}
			rec = fallback
		} else {
			rec = pipelined
		}
	}

	if msg.Forwarded {
		if author := strings.TrimSpace(msg.ForwardAuthor); author != "" {
			rec.Content = author + ": " + rec.Content
		}
	}

	return task.Intent{Kind: task.IntentCreateTask, Create: &rec}, nil
}
