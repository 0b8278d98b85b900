package task

import (
	"strings"
	"testing"
)

func TestToIntentTaskCreation(t *testing.T) {
	w := IntentWrapper{
		IntentType: "create_task",
		Task:       &Record{Content: "  Купить  молоко ", DueString: "tomorrow"},
	}
	intent, err := w.ToIntent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != IntentCreateTask || intent.Create == nil || intent.Command != nil {
		t.Fatalf("unexpected intent: %#v", intent)
	}
	if intent.Create.Content != "Купить молоко" {
		t.Fatalf("task not normalized: %q", intent.Create.Content)
	}
}

func TestToIntentCreateTaskWithoutPayloadFails(t *testing.T) {
	_, err := IntentWrapper{IntentType: "create_task"}.ToIntent()
	if err == nil || !strings.Contains(err.Error(), "task_data") {
		t.Fatalf("expected missing task_data error, got %v", err)
	}
}

func TestToIntentCommand(t *testing.T) {
	w := IntentWrapper{
		IntentType:  "command",
		CommandType: "view_tasks",
		Target:      "today",
		Filters:     map[string]string{"priority": "3"},
	}
	intent, err := w.ToIntent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind != IntentCommand || intent.Command == nil {
		t.Fatalf("unexpected intent: %#v", intent)
	}
	if intent.Command.Kind != CommandViewTasks || intent.Command.Target != TargetToday {
		t.Fatalf("unexpected command: %#v", intent.Command)
	}
	if intent.Command.Filters["priority"] != "3" {
		t.Fatalf("filters dropped: %#v", intent.Command.Filters)
	}
}

func TestToIntentCommandDefaultsTargetLast(t *testing.T) {
	intent, err := IntentWrapper{IntentType: "command", CommandType: "delete_task"}.ToIntent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Command.Target != TargetLast {
		t.Fatalf("expected default target last, got %q", intent.Command.Target)
	}
}

func TestToIntentCommandWithoutKindFails(t *testing.T) {
	_, err := IntentWrapper{IntentType: "command"}.ToIntent()
	if err == nil || !strings.Contains(err.Error(), "command_type") {
		t.Fatalf("expected missing command_type error, got %v", err)
	}
}

func TestToIntentFiltersOnlyForViewUpdatesOnlyForUpdate(t *testing.T) {
	intent, err := IntentWrapper{
		IntentType:  "command",
		CommandType: "complete_task",
		Filters:     map[string]string{"priority": "1"},
		Updates:     map[string]string{"due_string": "tomorrow"},
	}.ToIntent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Command.Filters != nil || intent.Command.Updates != nil {
		t.Fatalf("filters/updates should be dropped for complete_task: %#v", intent.Command)
	}

	intent, err = IntentWrapper{
		IntentType:  "command",
		CommandType: "update_task",
		Updates:     map[string]string{"priority": "4"},
	}.ToIntent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Command.Updates["priority"] != "4" {
		t.Fatalf("updates dropped for update_task: %#v", intent.Command)
	}
}

func TestToIntentUnknownDiscriminant(t *testing.T) {
	if _, err := (IntentWrapper{IntentType: "banana"}).ToIntent(); err == nil {
		t.Fatal("expected error for unknown intent_type")
	}
	if _, err := (IntentWrapper{IntentType: "command", CommandType: "explode"}).ToIntent(); err == nil {
		t.Fatal("expected error for unknown command_type")
	}
	if _, err := (IntentWrapper{IntentType: "command", CommandType: "view_tasks", Target: "yesterday"}).ToIntent(); err == nil {
		t.Fatal("expected error for unknown target")
	}
}
