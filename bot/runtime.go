package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smixs/t-tasker/deepgram"
	"github.com/smixs/t-tasker/executor"
	"github.com/smixs/t-tasker/parser"
	"github.com/smixs/t-tasker/store"
	"github.com/smixs/t-tasker/task"
	"github.com/smixs/t-tasker/todoist"
)

// TodoistClient is everything the runtime and the command executor need
// from a per-user Todoist session.
type TodoistClient interface {
	executor.TodoistAPI
	CreateTask(ctx context.Context, req todoist.CreateTaskRequest) (todoist.Task, error)
	ProjectByName(ctx context.Context, name string) (todoist.Project, bool, error)
	ValidateToken(ctx context.Context) (todoist.User, error)
}

// TodoistFactory builds a client bound to one user's token.
type TodoistFactory func(token string) TodoistClient

type Config struct {
	Token        string
	BaseURL      string
	AllowedChats map[int64]bool

	PollTimeout     time.Duration
	TaskTimeout     time.Duration
	MaxConcurrency  int
	MaxVoiceSeconds int
}

type Runtime struct {
	cfg     Config
	api     *API
	orch    *parser.Orchestrator
	exec    *executor.Executor
	users   *store.UserStore
	tasks   *store.TaskStore
	voice   *deepgram.Client
	todoist TodoistFactory
	logger  *slog.Logger

	sem chan struct{}

	mu           sync.Mutex
	workers      map[int64]*chatWorker
	pendingSetup map[int64]bool
}

type chatJob struct {
	Msg *Message
}

type chatWorker struct {
	Jobs chan chatJob
}

type RuntimeOptions struct {
	API          *API
	Orchestrator *parser.Orchestrator
	Executor     *executor.Executor
	Users        *store.UserStore
	Tasks        *store.TaskStore
	// Voice enables voice-note handling when non-nil.
	Voice   *deepgram.Client
	Todoist TodoistFactory
	Logger  *slog.Logger
}

func NewRuntime(cfg Config, opts RuntimeOptions) *Runtime {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.MaxVoiceSeconds <= 0 {
		cfg.MaxVoiceSeconds = 300
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		cfg:          cfg,
		api:          opts.API,
		orch:         opts.Orchestrator,
		exec:         opts.Executor,
		users:        opts.Users,
		tasks:        opts.Tasks,
		voice:        opts.Voice,
		todoist:      opts.Todoist,
		logger:       logger,
		sem:          make(chan struct{}, cfg.MaxConcurrency),
		workers:      make(map[int64]*chatWorker),
		pendingSetup: make(map[int64]bool),
	}
}

// Run polls getUpdates until ctx is cancelled. Messages are handled by
// per-chat workers: serial within a chat, parallel across chats up to
// MaxConcurrency.
func (r *Runtime) Run(ctx context.Context) error {
	me, err := r.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	r.logger.Info("bot_start",
		"bot_username", me.Username,
		"bot_id", me.ID,
		"poll_timeout", r.cfg.PollTimeout.String(),
		"max_concurrency", r.cfg.MaxConcurrency,
	)

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, nextOffset, err := r.api.GetUpdates(ctx, offset, r.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("get_updates_error", "error", err.Error())
			time.Sleep(1 * time.Second)
			continue
		}
		offset = nextOffset

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
				continue
			}
			chatID := msg.Chat.ID
			if len(r.cfg.AllowedChats) > 0 && !r.cfg.AllowedChats[chatID] {
				r.logger.Warn("unauthorized_chat", "chat_id", chatID)
				_ = r.api.SendMessage(context.Background(), chatID, "unauthorized", "")
				continue
			}

			r.mu.Lock()
			w := r.getOrStartWorkerLocked(chatID)
			r.mu.Unlock()
			w.Jobs <- chatJob{Msg: msg}
		}
	}
}

func (r *Runtime) getOrStartWorkerLocked(chatID int64) *chatWorker {
	if w, ok := r.workers[chatID]; ok && w != nil {
		return w
	}
	w := &chatWorker{Jobs: make(chan chatJob, 16)}
	r.workers[chatID] = w

	go func() {
		for job := range w.Jobs {
			r.sem <- struct{}{}
			func() {
				defer func() { <-r.sem }()
				ctx, cancel := context.WithTimeout(context.Background(), r.cfg.TaskTimeout)
				defer cancel()
				r.handleMessage(ctx, job.Msg)
			}()
		}
	}()
	return w
}

func (r *Runtime) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	from := msg.From

	r.logger.Info("message_received",
		"correlation_id", uuid.NewString(),
		"chat_id", chatID,
		"telegram_id", from.ID,
		"voice", msg.Voice != nil,
		"forwarded", msg.ForwardOrigin != nil)

	user, err := r.users.Upsert(ctx, from.ID, from.Username)
	if err != nil {
		r.logger.Error("user_upsert_error", "telegram_id", from.ID, "error", err.Error())
		return
	}
	lang := user.Language
	if lang == "" {
		lang = from.LanguageCode
	}

	text := strings.TrimSpace(msg.Text)
	if text != "" {
		cmdWord, cmdArgs := splitCommand(text)
		if slash := normalizeSlashCommand(cmdWord); slash != "" {
			r.handleSlashCommand(ctx, chatID, from.ID, slash, cmdArgs)
			return
		}
	}

	r.mu.Lock()
	awaitingToken := r.pendingSetup[chatID]
	r.mu.Unlock()
	if awaitingToken && text != "" {
		r.finishSetup(ctx, chatID, from.ID, text)
		return
	}

	if msg.Voice != nil {
		r.handleVoice(ctx, msg, lang)
		return
	}
	if msg.VideoNote != nil {
		_ = r.api.SendMessage(ctx, chatID, "📹 Получил видео сообщение.\nДля создания задач используйте текст или голосовые сообщения.", "")
		return
	}
	if text == "" {
		return
	}
	r.processText(ctx, msg, text, lang)
}

func (r *Runtime) handleSlashCommand(ctx context.Context, chatID, telegramID int64, slash, args string) {
	switch slash {
	case "/start":
		greeting := "👋 Привет! Я превращаю сообщения в задачи Todoist.\n\n" +
			"• Отправь текстовое сообщение\n" +
			"• Запиши голосовое сообщение\n" +
			"• Перешли сообщение из другого чата\n\n" +
			"Для начала подключи Todoist: /setup"
		_ = r.api.SendMessage(ctx, chatID, greeting, "")
	case "/help":
		help := "📖 <b>Как пользоваться ботом</b>\n\n" +
			"<b>Создание задач:</b> просто отправь или перешли сообщение, можно голосом.\n\n" +
			"<b>Примеры:</b>\n" +
			"• «Купить молоко завтра»\n" +
			"• «Встреча с клиентом в пятницу в 15:00»\n" +
			"• «Покажи задачи на сегодня»\n" +
			"• «Удали последнюю задачу»\n\n" +
			"<b>Команды:</b>\n" +
			"/setup — подключить Todoist\n" +
			"/whoami — проверить подключение\n" +
			"/help — эта справка\n\n" +
			"💡 <i>Даты, время и приоритеты распознаются автоматически.</i>"
		_ = r.api.SendMessage(ctx, chatID, help, "HTML")
	case "/whoami":
		r.handleWhoami(ctx, chatID, telegramID)
	case "/setup":
		if token := strings.TrimSpace(args); token != "" {
			r.finishSetup(ctx, chatID, telegramID, token)
			return
		}
		r.mu.Lock()
		r.pendingSetup[chatID] = true
		r.mu.Unlock()
		_ = r.api.SendMessage(ctx, chatID,
			"🔑 Отправь свой Todoist API токен.\nЕго можно найти в Todoist: Настройки → Интеграции → Разработчикам.", "")
	default:
		_ = r.api.SendMessage(ctx, chatID, "Неизвестная команда. Посмотри /help.", "")
	}
}

func (r *Runtime) handleWhoami(ctx context.Context, chatID, telegramID int64) {
	token, err := r.users.Token(ctx, telegramID)
	if err != nil {
		if errors.Is(err, store.ErrNoToken) {
			_ = r.api.SendMessage(ctx, chatID, "Todoist не подключён. Отправь /setup, чтобы подключить.", "")
			return
		}
		r.logger.Error("token_load_error", "telegram_id", telegramID, "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Не удалось проверить подключение. Попробуй позже.", "")
		return
	}
	account, err := r.todoist(token).ValidateToken(ctx)
	if err != nil {
		if errors.Is(err, todoist.ErrInvalidToken) {
			_ = r.users.ClearToken(ctx, telegramID)
			_ = r.api.SendMessage(ctx, chatID, "❌ Сохранённый токен больше не действует. Отправь /setup ещё раз.", "")
			return
		}
		r.logger.Error("token_validation_error", "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Не удалось связаться с Todoist. Попробуй позже.", "")
		return
	}
	name := account.FullName
	if name == "" {
		name = account.Email
	}
	_ = r.api.SendMessage(ctx, chatID, fmt.Sprintf("✅ Подключён аккаунт Todoist: %s", name), "")
}

func (r *Runtime) finishSetup(ctx context.Context, chatID, telegramID int64, token string) {
	r.mu.Lock()
	delete(r.pendingSetup, chatID)
	r.mu.Unlock()

	client := r.todoist(token)
	account, err := client.ValidateToken(ctx)
	if err != nil {
		if errors.Is(err, todoist.ErrInvalidToken) {
			_ = r.api.SendMessage(ctx, chatID, "❌ Токен не подошёл. Проверь его и отправь /setup ещё раз.", "")
			return
		}
		r.logger.Error("token_validation_error", "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Не удалось проверить токен. Попробуй позже.", "")
		return
	}
	if err := r.users.SetToken(ctx, telegramID, token); err != nil {
		r.logger.Error("token_store_error", "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Не удалось сохранить токен. Попробуй позже.", "")
		return
	}
	name := account.FullName
	if name == "" {
		name = account.Email
	}
	_ = r.api.SendMessage(ctx, chatID, fmt.Sprintf("✅ Todoist подключён (%s). Отправь сообщение, и я создам задачу!", name), "")
	r.logger.Info("todoist_connected", "telegram_id", telegramID)
}

func (r *Runtime) handleVoice(ctx context.Context, msg *Message, lang string) {
	chatID := msg.Chat.ID
	if r.voice == nil {
		_ = r.api.SendMessage(ctx, chatID, "🎤 Распознавание голоса не настроено.", "")
		return
	}
	if msg.Voice.Duration > r.cfg.MaxVoiceSeconds {
		_ = r.api.SendMessage(ctx, chatID,
			fmt.Sprintf("❌ Голосовое сообщение слишком длинное.\nМаксимальная длительность: %d минут.", r.cfg.MaxVoiceSeconds/60), "")
		return
	}

	_ = r.api.SendChatAction(ctx, chatID, "typing")
	_ = r.api.SendMessage(ctx, chatID, transcribingMessage, "")

	audio, err := r.api.DownloadVoice(ctx, msg.Voice.FileID)
	if err != nil {
		r.logger.Error("voice_download_error", "chat_id", chatID, "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Не удалось загрузить голосовое сообщение. Попробуй ещё раз.", "")
		return
	}

	tr, err := r.voice.Transcribe(ctx, audio, msg.Voice.MimeType)
	if err != nil {
		if errors.Is(err, deepgram.ErrNoSpeech) {
			_ = r.api.SendMessage(ctx, chatID, "🔇 Не удалось распознать речь. Попробуй записать ещё раз.", "")
			return
		}
		r.logger.Error("transcription_error", "chat_id", chatID, "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Ошибка распознавания. Попробуй ещё раз.", "")
		return
	}

	if tr.Language != "" {
		lang = tr.Language
	}
	r.processText(ctx, msg, tr.Text, lang)
}

func (r *Runtime) processText(ctx context.Context, msg *Message, text, lang string) {
	chatID := msg.Chat.ID
	telegramID := msg.From.ID

	token, err := r.users.Token(ctx, telegramID)
	if err != nil {
		if errors.Is(err, store.ErrNoToken) {
			_ = r.api.SendMessage(ctx, chatID, "🔑 Сначала подключи Todoist: /setup", "")
			return
		}
		r.logger.Error("token_load_error", "telegram_id", telegramID, "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Произошла ошибка. Попробуй ещё раз.", "")
		return
	}

	_ = r.api.SendChatAction(ctx, chatID, "typing")
	_ = r.api.SendMessage(ctx, chatID, processingMessage, "")

	author, forwarded := ForwardAuthor(msg)
	intent, err := r.orch.Process(ctx, parser.Message{
		Text:          text,
		Language:      lang,
		ForwardAuthor: author,
		Forwarded:     forwarded,
	})
	if err != nil {
		r.replyProcessError(ctx, chatID, err)
		return
	}

	client := r.todoist(token)
	switch intent.Kind {
	case task.IntentCommand:
		out, err := r.exec.Execute(ctx, client, telegramID, *intent.Command)
		if err != nil {
			r.replyTodoistError(ctx, chatID, telegramID, err)
			return
		}
		_ = r.api.SendMessage(ctx, chatID, out, "HTML")
	case task.IntentCreateTask:
		r.createTask(ctx, client, chatID, telegramID, *intent.Create)
	}
}

func (r *Runtime) createTask(ctx context.Context, client TodoistClient, chatID, telegramID int64, rec task.Record) {
	req := todoist.RequestFromRecord(rec)
	if rec.ProjectName != "" {
		if project, ok, err := client.ProjectByName(ctx, rec.ProjectName); err == nil && ok {
			req.ProjectID = project.ID
		}
	}
	created, err := client.CreateTask(ctx, req)
	if err != nil {
		r.replyTodoistError(ctx, chatID, telegramID, err)
		return
	}
	if err := r.tasks.Record(ctx, telegramID, created.ID, rec.Content); err != nil {
		r.logger.Warn("task_ref_store_error", "todoist_id", created.ID, "error", err.Error())
	}
	_ = r.api.SendMessage(ctx, chatID, FormatTaskCreated(rec, created), "HTML")
	r.logger.Info("task_created", "telegram_id", telegramID, "todoist_id", created.ID)
}

func (r *Runtime) replyProcessError(ctx context.Context, chatID int64, err error) {
	var verr *task.ValidationError
	var rle *todoist.RateLimitError
	switch {
	case errors.As(err, &verr):
		if verr.Field == "message" {
			_ = r.api.SendMessage(ctx, chatID, "❌ Сообщение слишком короткое для задачи.", "")
			return
		}
		_ = r.api.SendMessage(ctx, chatID, "❌ Не получилось собрать корректную задачу из сообщения. Попробуй сформулировать иначе.", "")
	case errors.As(err, &rle):
		_ = r.api.SendMessage(ctx, chatID, "⏳ Слишком много запросов. Попробуй чуть позже.", "")
	default:
		r.logger.Error("parse_error", "chat_id", chatID, "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Не удалось разобрать сообщение. Попробуй сформулировать иначе.", "")
	}
}

func (r *Runtime) replyTodoistError(ctx context.Context, chatID, telegramID int64, err error) {
	var rle *todoist.RateLimitError
	switch {
	case errors.Is(err, todoist.ErrInvalidToken):
		// Stale token: drop it so the next message prompts /setup.
		_ = r.users.ClearToken(ctx, telegramID)
		_ = r.api.SendMessage(ctx, chatID, "🔑 Токен Todoist больше не действует. Подключи заново: /setup", "")
	case errors.As(err, &rle):
		_ = r.api.SendMessage(ctx, chatID, "⏳ Todoist ограничил запросы. Попробуй чуть позже.", "")
	case errors.Is(err, todoist.ErrQuotaExceeded):
		_ = r.api.SendMessage(ctx, chatID, "❌ Превышена квота Todoist.", "")
	default:
		r.logger.Error("todoist_error", "chat_id", chatID, "error", err.Error())
		_ = r.api.SendMessage(ctx, chatID, "❌ Ошибка Todoist. Попробуй ещё раз.", "")
	}
}

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	// Allow "/cmd@BotName" variants by stripping "@...".
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
