package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smixs/t-tasker/executor"
	"github.com/smixs/t-tasker/internal/retryutil"
	"github.com/smixs/t-tasker/llm"
	"github.com/smixs/t-tasker/parser"
	"github.com/smixs/t-tasker/store"
	"github.com/smixs/t-tasker/todoist"
)

const testKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

// telegramRecorder fakes the Bot API and keeps every sendMessage text in
// arrival order.
type telegramRecorder struct {
	mu       sync.Mutex
	messages []string
	actions  []string
}

func (tr *telegramRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body struct {
				Text string `json:"text"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			tr.mu.Lock()
			tr.messages = append(tr.messages, body.Text)
			tr.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
		case strings.HasSuffix(r.URL.Path, "/sendChatAction"):
			var body struct {
				Action string `json:"action"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			tr.mu.Lock()
			tr.actions = append(tr.actions, body.Action)
			tr.mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"test_bot"}}`))
		}
	})
}

func (tr *telegramRecorder) sent() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.messages...)
}

type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	if s.calls >= len(s.replies) {
		return llm.Result{}, context.DeadlineExceeded
	}
	text := s.replies[s.calls]
	s.calls++
	return llm.Result{Text: text}, nil
}

type stubTodoist struct {
	created []todoist.CreateTaskRequest
}

func (s *stubTodoist) GetTasks(ctx context.Context, filter, projectID string, limit int) ([]todoist.Task, error) {
	return nil, nil
}

func (s *stubTodoist) UpdateTask(ctx context.Context, id string, req todoist.UpdateTaskRequest) (todoist.Task, error) {
	return todoist.Task{ID: id}, nil
}

func (s *stubTodoist) CloseTask(ctx context.Context, id string) error  { return nil }
func (s *stubTodoist) DeleteTask(ctx context.Context, id string) error { return nil }

func (s *stubTodoist) Projects(ctx context.Context) ([]todoist.Project, error) { return nil, nil }

func (s *stubTodoist) CreateTask(ctx context.Context, req todoist.CreateTaskRequest) (todoist.Task, error) {
	s.created = append(s.created, req)
	return todoist.Task{ID: "101", Content: req.Content, URL: "https://todoist.com/task/101"}, nil
}

func (s *stubTodoist) ProjectByName(ctx context.Context, name string) (todoist.Project, bool, error) {
	return todoist.Project{}, false, nil
}

func (s *stubTodoist) ValidateToken(ctx context.Context) (todoist.User, error) {
	return todoist.User{FullName: "Test User"}, nil
}

func instantRetry() retryutil.Policy {
	return retryutil.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MaxDelay:    time.Millisecond,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func newTestRuntime(t *testing.T, replies []string) (*Runtime, *telegramRecorder, *stubTodoist) {
	t.Helper()

	rec := &telegramRecorder{}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	cfg := store.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "test.sqlite")
	gdb, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	cipher, err := store.NewCipher(testKeyHex)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	users := store.NewUserStore(gdb, cipher)
	tasks := store.NewTaskStore(gdb)

	client := &scriptedLLM{replies: replies}
	orch := parser.NewOrchestrator(parser.OrchestratorOptions{
		Classifier: parser.NewClassifier(client, "gpt-test", instantRetry(), nil),
		Direct:     parser.NewDirectExtractor(client, "gpt-test", instantRetry(), nil),
		Complexity: parser.DefaultComplexityConfig(),
	})

	td := &stubTodoist{}
	rt := NewRuntime(Config{Token: "test-token"}, RuntimeOptions{
		API:          NewAPI(srv.Client(), srv.URL, "test-token"),
		Orchestrator: orch,
		Executor:     executor.New(tasks, nil),
		Users:        users,
		Tasks:        tasks,
		Todoist:      func(token string) TodoistClient { return td },
	})
	return rt, rec, td
}

func incomingText(text string) *Message {
	return &Message{
		MessageID: 1,
		Chat:      &Chat{ID: 700, Type: "private"},
		From:      &User{ID: 700, FirstName: "Тест", LanguageCode: "ru"},
		Text:      text,
	}
}

func TestHandleMessageSendsProgressThenCard(t *testing.T) {
	rt, rec, td := newTestRuntime(t, []string{
		`{"intent_type":"create_task","task_data":{"content":"Купить молоко","due_string":"tomorrow"}}`,
	})
	ctx := context.Background()
	if _, err := rt.users.Upsert(ctx, 700, "tester"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := rt.users.SetToken(ctx, 700, "todoist-token"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	rt.handleMessage(ctx, incomingText("Купить молоко завтра"))

	sent := rec.sent()
	if len(sent) != 2 {
		t.Fatalf("expected progress + card, got %d messages: %q", len(sent), sent)
	}
	if sent[0] != processingMessage {
		t.Fatalf("first reply must be the progress notice, got %q", sent[0])
	}
	if !strings.Contains(sent[1], "Задача создана") || !strings.Contains(sent[1], "Купить молоко") {
		t.Fatalf("unexpected card: %q", sent[1])
	}
	if len(td.created) != 1 || td.created[0].Content != "Купить молоко" {
		t.Fatalf("unexpected todoist calls: %#v", td.created)
	}
}

func TestHandleMessageInvalidTaskFieldsRepliesOnce(t *testing.T) {
	rt, rec, _ := newTestRuntime(t, []string{
		`{"intent_type":"create_task","task_data":{"content":"Встреча","priority":9}}`,
		`{"intent_type":"create_task","task_data":{"content":"would succeed"}}`,
	})
	ctx := context.Background()
	if _, err := rt.users.Upsert(ctx, 700, "tester"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := rt.users.SetToken(ctx, 700, "todoist-token"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	rt.handleMessage(ctx, incomingText("Встреча с клиентом"))

	sent := rec.sent()
	if len(sent) != 2 {
		t.Fatalf("expected progress + error reply, got %d messages: %q", len(sent), sent)
	}
	if !strings.Contains(sent[1], "корректную задачу") {
		t.Fatalf("unexpected error reply: %q", sent[1])
	}
}

func TestHandleMessageWithoutTokenPromptsSetup(t *testing.T) {
	rt, rec, _ := newTestRuntime(t, nil)
	ctx := context.Background()

	rt.handleMessage(ctx, incomingText("Купить молоко завтра"))

	sent := rec.sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "/setup") {
		t.Fatalf("expected a setup prompt, got %q", sent)
	}
}
