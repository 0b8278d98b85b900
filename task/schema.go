// Package task holds the normalized task record and the classified intent
// types that the parser produces and the downstream Todoist layer consumes.
package task

import (
	"fmt"
	"strings"
)

const (
	MaxContentLen     = 500
	MaxDescriptionLen = 1000
	MaxProjectNameLen = 100
	MaxLabels         = 10
	MaxDurationMin    = 1440
)

// Record is a task ready for submission to the Todoist API. Construct via
// NewRecord (or call Normalize on a decoded value) so the field constraints
// hold; the API rejects unbounded content, duplicate labels and similar.
type Record struct {
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	DueString   string   `json:"due_string,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	ProjectName string   `json:"project_name,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Recurrence  string   `json:"recurrence,omitempty"`
	Duration    int      `json:"duration,omitempty"`
}

// ValidationError marks user-correctable input problems. It is never
// retried and surfaces immediately.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NewRecord normalizes raw model output into a valid Record. Recoverable
// issues (whitespace runs, label casing, duplicates) are fixed in place;
// contract violations (empty content, out-of-range numbers) fail.
func NewRecord(raw Record) (Record, error) {
	r := raw

	r.Content = collapseWhitespace(r.Content)
	if r.Content == "" {
		return Record{}, &ValidationError{Field: "content", Msg: "empty after normalization"}
	}
	if len([]rune(r.Content)) > MaxContentLen {
		return Record{}, &ValidationError{Field: "content", Msg: fmt.Sprintf("longer than %d characters", MaxContentLen)}
	}

	// Description keeps its original formatting (numbered lists matter),
	// only the outer whitespace goes.
	r.Description = strings.TrimSpace(r.Description)
	if len([]rune(r.Description)) > MaxDescriptionLen {
		return Record{}, &ValidationError{Field: "description", Msg: fmt.Sprintf("longer than %d characters", MaxDescriptionLen)}
	}

	r.DueString = strings.TrimSpace(r.DueString)
	r.Recurrence = strings.TrimSpace(r.Recurrence)

	if r.Priority != 0 && (r.Priority < 1 || r.Priority > 4) {
		// Out-of-range priority means the model broke the contract; do not clamp.
		return Record{}, &ValidationError{Field: "priority", Msg: fmt.Sprintf("out of range 1-4: %d", r.Priority)}
	}

	r.ProjectName = strings.TrimSpace(r.ProjectName)
	if len([]rune(r.ProjectName)) > MaxProjectNameLen {
		return Record{}, &ValidationError{Field: "project_name", Msg: fmt.Sprintf("longer than %d characters", MaxProjectNameLen)}
	}

	r.Labels = cleanLabels(r.Labels)
	if len(r.Labels) > MaxLabels {
		r.Labels = r.Labels[:MaxLabels]
	}

	if r.Duration != 0 && (r.Duration < 1 || r.Duration > MaxDurationMin) {
		return Record{}, &ValidationError{Field: "duration", Msg: fmt.Sprintf("out of range 1-%d: %d", MaxDurationMin, r.Duration)}
	}

	return r, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanLabels lowercases, trims and dedupes keeping first-seen order.
// An empty result collapses to nil so the field is absent downstream.
func cleanLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	seen := map[string]bool{}
	for _, raw := range labels {
		label := strings.ToLower(strings.TrimSpace(raw))
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
