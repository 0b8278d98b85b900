package parser

import "fmt"

// ClassificationError means the intent of the message could not be
// determined after the retry budget. There is no fallback classifier, so
// this is terminal and tells the user the message was not understood.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify intent: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ExtractionError means the intent was understood but structured fields
// could not be produced. For the multi-stage pipeline it carries the stage
// that failed; the orchestrator falls back to direct extraction and only
// surfaces this when both strategies are exhausted.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("extract task: %v", e.Err)
	}
	return fmt.Sprintf("extract task (%s): %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
