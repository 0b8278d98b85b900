package eval

import (
	"math"
	"strings"
	"testing"
)

func TestBrevity(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    float64
	}{
		{"empty", "", 0.0},
		{"too short", "Звонок", 0.5},
		{"in range", "Подготовить договор для банка", 1.0},
		{"too long", strings.Repeat("о", 101), 0.0},
		{"exactly 100 runes", strings.Repeat("о", 100), 1.0},
		{"exactly 10 runes", strings.Repeat("о", 10), 1.0},
	}
	for _, tc := range cases {
		got := Brevity(Example{}, Prediction{Content: tc.content})
		if got != tc.want {
			t.Errorf("%s: Brevity = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestContextPreservation(t *testing.T) {
	if got := ContextPreservation(Example{}, Prediction{}); got != 0.0 {
		t.Errorf("empty description: got %v, want 0", got)
	}

	listMessage := "Сделать:\n1. Позвонить\n2. Написать"
	if got := ContextPreservation(Example{Message: listMessage}, Prediction{Description: "1. Позвонить\n2. Написать"}); got != 1.0 {
		t.Errorf("echoed list: got %v, want 1.0", got)
	}
	if got := ContextPreservation(Example{Message: listMessage}, Prediction{Description: "позвонить и написать"}); got != 0.5 {
		t.Errorf("dropped list: got %v, want 0.5", got)
	}

	ex := Example{Entities: []string{"Газпромбанк", "Виолетта"}}
	pred := Prediction{Content: "Договор для Газпромбанк", Description: "детали"}
	// 1.0*0.5 + (1/2)*0.5
	if got := ContextPreservation(ex, pred); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("half entity recall: got %v, want 0.75", got)
	}
}

func TestDateAccuracy(t *testing.T) {
	cases := []struct {
		name string
		ex   string
		pred string
		want float64
	}{
		{"both empty", "", "", 1.0},
		{"missing expected", "tomorrow", "", 0.0},
		{"exact", "mar 15 at 14:00", "mar 15 at 14:00", 1.0},
		{"mismatch", "tomorrow", "friday", 0.5},
		{"unexpected but clean", "", "tomorrow", 1.0},
	}
	for _, tc := range cases {
		got := DateAccuracy(Example{DueString: tc.ex}, Prediction{DueString: tc.pred})
		if got != tc.want {
			t.Errorf("%s: DateAccuracy = %v, want %v", tc.name, got, tc.want)
		}
	}

	leaks := []string{"завтра по Минску", "в 15:00 MSK", "tomorrow UTC"}
	for _, leak := range leaks {
		if got := DateAccuracy(Example{DueString: leak}, Prediction{DueString: leak}); got != 0.0 {
			t.Errorf("timezone leak %q scored %v, want 0", leak, got)
		}
	}
}

func TestTagQuality(t *testing.T) {
	if got := TagQuality(Example{}, Prediction{}); got != 1.0 {
		t.Errorf("no tags either side: got %v, want 1.0", got)
	}
	if got := TagQuality(Example{Tags: []string{"срочно"}}, Prediction{}); got != 0.0 {
		t.Errorf("missing expected tags: got %v, want 0", got)
	}
	over := Prediction{Tags: []string{"a", "b", "c", "d", "e", "f"}}
	if got := TagQuality(Example{Tags: []string{"a"}}, over); got != 0.7 {
		t.Errorf("over-tagging cap: got %v, want 0.7", got)
	}
	perfect := TagQuality(
		Example{Tags: []string{"документы", "срочно"}},
		Prediction{Tags: []string{"документы", "срочно"}},
	)
	if math.Abs(perfect-1.0) > 1e-9 {
		t.Errorf("full overlap: got %v, want 1.0", perfect)
	}
	half := TagQuality(
		Example{Tags: []string{"документы", "срочно"}},
		Prediction{Tags: []string{"документы"}},
	)
	// 0.5 relevance * 0.7 + 1.0 count * 0.3
	if math.Abs(half-0.65) > 1e-9 {
		t.Errorf("half overlap: got %v, want 0.65", half)
	}
}

func TestActionType(t *testing.T) {
	if got := ActionType(Example{}, Prediction{}); got != 1.0 {
		t.Errorf("no action either side: got %v, want 1.0", got)
	}
	if got := ActionType(Example{ActionType: "встреча"}, Prediction{ActionType: "встреча"}); got != 1.0 {
		t.Errorf("exact match: got %v, want 1.0", got)
	}
	if got := ActionType(Example{ActionType: "встреча"}, Prediction{ActionType: "звонок"}); got != 0.0 {
		t.Errorf("mismatch: got %v, want 0", got)
	}
	if got := ActionType(Example{}, Prediction{ActionType: "документ"}); got != 1.0 {
		t.Errorf("taxonomy member without reference: got %v, want 1.0", got)
	}
	if got := ActionType(Example{}, Prediction{ActionType: "meeting"}); got != 0.0 {
		t.Errorf("non-taxonomy type: got %v, want 0", got)
	}
}

func TestEntityExtractionF1(t *testing.T) {
	ex := Example{Entities: []string{"Газпромбанк", "Виолетта"}}
	if got := EntityExtraction(ex, Prediction{Entities: []string{"Газпромбанк", "Виолетта"}}); got != 1.0 {
		t.Errorf("perfect: got %v, want 1.0", got)
	}
	// precision 1/1, recall 1/2, F1 = 2/3
	got := EntityExtraction(ex, Prediction{Entities: []string{"Газпромбанк"}})
	if math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("partial recall: got %v, want %v", got, 2.0/3.0)
	}
	if got := EntityExtraction(ex, Prediction{Entities: []string{"МТС"}}); got != 0.0 {
		t.Errorf("disjoint sets: got %v, want 0", got)
	}
	if got := EntityExtraction(Example{}, Prediction{Entities: []string{"МТС"}}); got != 1.0 {
		t.Errorf("no reference entities: got %v, want 1.0", got)
	}
}

func TestCombinedWeightedSum(t *testing.T) {
	sum := 0.0
	for _, w := range combinedWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum to %v, want 1.0", sum)
	}

	ex := Example{
		Message:    "Встреча в Газпромбанке завтра в 14:00",
		DueString:  "tomorrow at 14:00",
		Tags:       []string{"встреча"},
		ActionType: "встреча",
		Entities:   []string{"Газпромбанк"},
	}
	perfect := Prediction{
		Content:     "Встреча в Газпромбанке",
		Description: "Обсудить договор",
		DueString:   "tomorrow at 14:00",
		Tags:        []string{"встреча"},
		ActionType:  "встреча",
		Entities:    []string{"Газпромбанк"},
	}
	if got := Combined(ex, perfect); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("perfect prediction: got %v, want 1.0", got)
	}

	// Dropping only the date should cost exactly the date weight.
	noDate := perfect
	noDate.DueString = ""
	if got := Combined(ex, noDate); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("missing date: got %v, want 0.75", got)
	}

	scores := ComponentScores(ex, perfect)
	for name := range combinedWeights {
		if _, ok := scores[name]; !ok {
			t.Errorf("component %q missing from scores", name)
		}
	}
}
