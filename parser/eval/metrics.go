// Package eval scores extraction output against reference examples. It is
// an offline harness for comparing and tuning extraction strategies; the
// production path never consults it.
package eval

import "strings"

// Example is a reference message with the fields a correct extraction
// should produce. Zero-valued fields mean "no expectation".
type Example struct {
	Message    string
	DueString  string
	Tags       []string
	ActionType string
	Entities   []string
}

// Prediction is a produced extraction flattened for scoring: a pipeline
// record plus the intermediate fields the pipeline derived it from.
type Prediction struct {
	Content     string
	Description string
	DueString   string
	Tags        []string
	ActionType  string
	Entities    []string
}

// Weights of the combined score. They sum to 1.
var combinedWeights = map[string]float64{
	"brevity":  0.15,
	"context":  0.20,
	"date":     0.25,
	"tags":     0.20,
	"action":   0.10,
	"entities": 0.10,
}

var timezoneLeaks = []string{
	"по Минску", "по Ташкенту", "по Москве", "по ", "MSK", "UTC", "GMT",
}

var validActionTypes = []string{
	"встреча", "звонок", "документ", "решение", "проверка", "контакт", "работа",
}

// Brevity scores content length: full credit inside [10,100] characters,
// half below, zero above.
func Brevity(_ Example, pred Prediction) float64 {
	n := len([]rune(pred.Content))
	switch {
	case n == 0:
		return 0.0
	case n > 100:
		return 0.0
	case n < 10:
		return 0.5
	default:
		return 1.0
	}
}

// ContextPreservation checks that important context survived: enumerated
// lists must be echoed in the description, and when the reference names
// entities the score blends 50/50 with entity-mention recall.
func ContextPreservation(ex Example, pred Prediction) float64 {
	if pred.Description == "" {
		return 0.0
	}
	score := 1.0
	if strings.Contains(ex.Message, "1.") && strings.Contains(ex.Message, "\n") {
		if !strings.Contains(pred.Description, "1.") {
			score *= 0.5
		}
	}
	if len(ex.Entities) > 0 {
		mentioned := 0
		for _, entity := range ex.Entities {
			if strings.Contains(pred.Description, entity) || strings.Contains(pred.Content, entity) {
				mentioned++
			}
		}
		entityScore := float64(mentioned) / float64(len(ex.Entities))
		score = score*0.5 + entityScore*0.5
	}
	if score < 0 {
		return 0
	}
	return score
}

// DateAccuracy: any timezone token leak zeroes the score; otherwise exact
// match earns 1.0, a non-empty mismatch 0.5, a missing expected date 0.0.
func DateAccuracy(ex Example, pred Prediction) float64 {
	if pred.DueString == "" {
		if ex.DueString == "" {
			return 1.0
		}
		return 0.0
	}
	for _, tz := range timezoneLeaks {
		if strings.Contains(pred.DueString, tz) {
			return 0.0
		}
	}
	if ex.DueString != "" {
		if pred.DueString == ex.DueString {
			return 1.0
		}
		return 0.5
	}
	return 1.0
}

// TagQuality blends reference-tag overlap (70%) with a count-in-[1,5]
// bonus (30%); producing more than 5 tags caps the score at 0.7.
func TagQuality(ex Example, pred Prediction) float64 {
	if len(pred.Tags) == 0 {
		if len(ex.Tags) > 0 {
			return 0.0
		}
		return 1.0
	}
	if len(pred.Tags) > 5 {
		return 0.7
	}
	if len(ex.Tags) > 0 {
		matches := 0
		for _, tag := range pred.Tags {
			if containsString(ex.Tags, tag) {
				matches++
			}
		}
		relevance := float64(matches) / float64(len(ex.Tags))
		countScore := 0.5
		if len(pred.Tags) >= 1 && len(pred.Tags) <= 5 {
			countScore = 1.0
		}
		return relevance*0.7 + countScore*0.3
	}
	if len(pred.Tags) >= 1 && len(pred.Tags) <= 5 {
		return 1.0
	}
	return 0.5
}

// ActionType scores exact match against the reference, falling back to a
// membership check in the fixed taxonomy when no reference exists.
func ActionType(ex Example, pred Prediction) float64 {
	if pred.ActionType == "" {
		if ex.ActionType != "" {
			return 0.0
		}
		return 1.0
	}
	if ex.ActionType != "" {
		if pred.ActionType == ex.ActionType {
			return 1.0
		}
		return 0.0
	}
	if containsString(validActionTypes, pred.ActionType) {
		return 1.0
	}
	return 0.0
}

// EntityExtraction is the F1 score of predicted vs reference entity sets.
func EntityExtraction(ex Example, pred Prediction) float64 {
	if len(pred.Entities) == 0 {
		if len(ex.Entities) > 0 {
			return 0.0
		}
		return 1.0
	}
	if len(ex.Entities) == 0 {
		return 1.0
	}

	predSet := toSet(pred.Entities)
	expectedSet := toSet(ex.Entities)
	matches := 0
	for e := range predSet {
		if expectedSet[e] {
			matches++
		}
	}
	precision := float64(matches) / float64(len(predSet))
	recall := float64(matches) / float64(len(expectedSet))
	if precision+recall == 0 {
		return 0.0
	}
	return 2 * precision * recall / (precision + recall)
}

// Combined is the weighted sum used as the optimization objective.
func Combined(ex Example, pred Prediction) float64 {
	scores := ComponentScores(ex, pred)
	total := 0.0
	for name, weight := range combinedWeights {
		total += scores[name] * weight
	}
	return total
}

func ComponentScores(ex Example, pred Prediction) map[string]float64 {
	return map[string]float64{
		"brevity":  Brevity(ex, pred),
		"context":  ContextPreservation(ex, pred),
		"date":     DateAccuracy(ex, pred),
		"tags":     TagQuality(ex, pred),
		"action":   ActionType(ex, pred),
		"entities": EntityExtraction(ex, pred),
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, item := range list {
		if item != "" {
			set[item] = true
		}
	}
	return set
}
