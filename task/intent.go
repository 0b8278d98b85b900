package task

import (
	"fmt"
	"strings"
)

type CommandKind string

const (
	CommandViewTasks    CommandKind = "view_tasks"
	CommandDeleteTask   CommandKind = "delete_task"
	CommandUpdateTask   CommandKind = "update_task"
	CommandCompleteTask CommandKind = "complete_task"
)

type CommandTarget string

const (
	TargetLast     CommandTarget = "last"
	TargetAll      CommandTarget = "all"
	TargetToday    CommandTarget = "today"
	TargetTomorrow CommandTarget = "tomorrow"
	TargetSpecific CommandTarget = "specific"
)

type IntentKind string

const (
	IntentCreateTask IntentKind = "create_task"
	IntentCommand    IntentKind = "command"
)

// Intent is the classified meaning of one user message: exactly one of
// Create or Command is set, discriminated by Kind.
type Intent struct {
	Kind    IntentKind
	Create  *Record
	Command *Command
}

type Command struct {
	Kind           CommandKind
	Target         CommandTarget
	Filters        map[string]string
	Updates        map[string]string
	TaskIdentifier string
}

// IntentWrapper is the flat shape requested from the model. Structured
// output backends discriminate a flat object far more reliably than a
// nested union, so the nesting is reconstructed here.
type IntentWrapper struct {
	IntentType     string            `json:"intent_type"`
	Task           *Record           `json:"task_data,omitempty"`
	CommandType    string            `json:"command_type,omitempty"`
	Target         string            `json:"target,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
	Updates        map[string]string `json:"updates,omitempty"`
	TaskIdentifier string            `json:"task_identifier,omitempty"`
}

// ToIntent validates the discriminant-to-payload mapping and produces the
// tagged union, normalizing the task payload through NewRecord.
func (w IntentWrapper) ToIntent() (Intent, error) {
	switch strings.TrimSpace(w.IntentType) {
	case string(IntentCreateTask):
		if w.Task == nil {
			return Intent{}, fmt.Errorf("intent_type=create_task but no task_data supplied")
		}
		rec, err := NewRecord(*w.Task)
		if err != nil {
			return Intent{}, err
		}
		return Intent{Kind: IntentCreateTask, Create: &rec}, nil
	case string(IntentCommand):
		kind, err := parseCommandKind(w.CommandType)
		if err != nil {
			return Intent{}, err
		}
		target, err := parseCommandTarget(w.Target)
		if err != nil {
			return Intent{}, err
		}
		cmd := Command{
			Kind:           kind,
			Target:         target,
			TaskIdentifier: strings.TrimSpace(w.TaskIdentifier),
		}
		if kind == CommandViewTasks {
			cmd.Filters = w.Filters
		}
		if kind == CommandUpdateTask {
			cmd.Updates = w.Updates
		}
		return Intent{Kind: IntentCommand, Command: &cmd}, nil
	default:
		return Intent{}, fmt.Errorf("unknown intent_type: %q", w.IntentType)
	}
}

func parseCommandKind(s string) (CommandKind, error) {
	switch CommandKind(strings.TrimSpace(s)) {
	case CommandViewTasks, CommandDeleteTask, CommandUpdateTask, CommandCompleteTask:
		return CommandKind(strings.TrimSpace(s)), nil
	case "":
		return "", fmt.Errorf("intent_type=command but no command_type supplied")
	default:
		return "", fmt.Errorf("unknown command_type: %q", s)
	}
}

func parseCommandTarget(s string) (CommandTarget, error) {
	switch CommandTarget(strings.TrimSpace(s)) {
	case TargetLast, TargetAll, TargetToday, TargetTomorrow, TargetSpecific:
		return CommandTarget(strings.TrimSpace(s)), nil
	case "":
		return TargetLast, nil
	default:
		return "", fmt.Errorf("unknown command target: %q", s)
	}
}
