package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const complexMessage = `Виолетта пишет:
Сергей, надо подготовить договор для Газпромбанка.
1. Собрать документы по юрлицу
2. Согласовать драфт с юристами
Дедлайн пятница, созвон в четверг в 12:00 по Минску.`

func TestPipelineRunsAllStages(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		{text: `{"reasoning":"...","content":"Подготовить договор для Газпромбанка","description":"1. Собрать документы по юрлицу\n2. Согласовать драфт с юристами","due_string":"в четверг в 12:00 по Минску","entities":["Газпромбанк","Виолетта"],"action_type":"документ"}`},
		{text: `{"normalized_date":"thursday at 12:00"}`},
		{text: `{"tags":["договор","дедлайн"]}`},
	}}
	p := NewPipeline(client, "gpt-test", DefaultTaxonomy(), nil)

	rec, err := p.Extract(context.Background(), complexMessage, "ru")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.calls) != 3 {
		t.Fatalf("expected 3 llm calls, got %d", len(client.calls))
	}
	if rec.DueString != "thursday at 12:00" {
		t.Fatalf("unexpected due_string: %q", rec.DueString)
	}
	// "договор" maps to the documents bucket, "дедлайн" to the urgent one.
	if !containsTag(rec.Labels, "документы") || !containsTag(rec.Labels, "срочно") {
		t.Fatalf("taxonomy not applied: %v", rec.Labels)
	}
	if rec.Priority != 3 {
		t.Fatalf("urgent tag must raise priority to 3, got %d", rec.Priority)
	}
	if !strings.Contains(rec.Description, "1.") {
		t.Fatalf("list formatting lost: %q", rec.Description)
	}
}

func TestPipelineDefaultsPriorityMedium(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		{text: `{"content":"Обсудить статус проекта","description":"контекст","due_string":"","entities":[],"action_type":"проверка"}`},
		{text: `{"tags":["статус"]}`},
	}}
	p := NewPipeline(client, "gpt-test", DefaultTaxonomy(), nil)

	rec, err := p.Extract(context.Background(), complexMessage, "ru")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Priority != 2 {
		t.Fatalf("expected medium priority, got %d", rec.Priority)
	}
}

func TestPipelineSkipsDateStageWithoutDue(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		{text: `{"content":"Задача без даты","description":"x","due_string":"","entities":[],"action_type":"работа"}`},
		{text: `{"tags":[]}`},
	}}
	p := NewPipeline(client, "gpt-test", DefaultTaxonomy(), nil)

	rec, err := p.Extract(context.Background(), complexMessage, "ru")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.calls) != 2 {
		t.Fatalf("date stage must be skipped, got %d calls", len(client.calls))
	}
	if rec.DueString != "" {
		t.Fatalf("unexpected due_string: %q", rec.DueString)
	}
}

func TestPipelineTruncatesContent(t *testing.T) {
	long := strings.Repeat("я", 180)
	client := &scriptedClient{replies: []scriptedReply{
		{text: `{"content":"` + long + `","description":"x","due_string":"","entities":[],"action_type":"работа"}`},
		{text: `{"tags":[]}`},
	}}
	p := NewPipeline(client, "gpt-test", DefaultTaxonomy(), nil)

	rec, err := p.Extract(context.Background(), complexMessage, "ru")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len([]rune(rec.Content)); got != pipelineContentMax {
		t.Fatalf("expected content truncated to %d runes, got %d", pipelineContentMax, got)
	}
}

func TestPipelineStageFailureNamesStage(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		{text: `{"content":"Задача","description":"x","due_string":"завтра","entities":[],"action_type":"работа"}`},
		{err: errors.New("upstream 500")},
	}}
	p := NewPipeline(client, "gpt-test", DefaultTaxonomy(), nil)

	_, err := p.Extract(context.Background(), complexMessage, "ru")
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if xerr.Stage != "normalize_date" {
		t.Fatalf("unexpected stage: %q", xerr.Stage)
	}
}

func TestPipelineScrubsTimezoneAfterDateStage(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		{text: `{"content":"Созвон","description":"x","due_string":"в четверг в 12:00 по Минску","entities":[],"action_type":"звонок"}`},
		{text: `{"normalized_date":"thursday at 12:00 по Минску"}`},
		{text: `{"tags":[]}`},
	}}
	p := NewPipeline(client, "gpt-test", DefaultTaxonomy(), nil)

	rec, err := p.Extract(context.Background(), complexMessage, "ru")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.DueString != "thursday at 12:00" {
		t.Fatalf("timezone survived the date stage: %q", rec.DueString)
	}
}
