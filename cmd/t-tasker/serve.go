package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smixs/t-tasker/bot"
	"github.com/smixs/t-tasker/deepgram"
	"github.com/smixs/t-tasker/executor"
	"github.com/smixs/t-tasker/internal/logutil"
	"github.com/smixs/t-tasker/internal/retryutil"
	"github.com/smixs/t-tasker/parser"
	"github.com/smixs/t-tasker/providers/openai"
	"github.com/smixs/t-tasker/store"
	"github.com/smixs/t-tasker/todoist"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or T_TASKER_TELEGRAM_BOT_TOKEN)")
			}

			encryptionKey := strings.TrimSpace(viper.GetString("encryption_key"))
			if encryptionKey == "" {
				return fmt.Errorf("missing encryption_key (64 hex chars, set via T_TASKER_ENCRYPTION_KEY)")
			}
			cipher, err := store.NewCipher(encryptionKey)
			if err != nil {
				return err
			}

			allowed := make(map[int64]bool)
			for _, s := range flagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				id, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid telegram.allowed_chat_ids entry %q: %w", s, err)
				}
				allowed[id] = true
			}

			orch, err := orchestratorFromViper(logger)
			if err != nil {
				return err
			}

			gdb, err := store.Open(dbConfigFromViper())
			if err != nil {
				return err
			}
			users := store.NewUserStore(gdb, cipher)
			tasks := store.NewTaskStore(gdb)

			var voice *deepgram.Client
			if key := strings.TrimSpace(viper.GetString("deepgram.api_key")); key != "" {
				voice = deepgram.New(key, viper.GetDuration("deepgram.timeout"))
				if model := strings.TrimSpace(viper.GetString("deepgram.model")); model != "" {
					voice.Model = model
				}
			}

			todoistTimeout := viper.GetDuration("todoist.timeout")
			factory := func(userToken string) bot.TodoistClient {
				return todoist.New(userToken, todoistTimeout)
			}

			cfg := bot.Config{
				Token:           token,
				BaseURL:         strings.TrimSpace(flagOrViperString(cmd, "telegram-base-url", "telegram.base_url")),
				AllowedChats:    allowed,
				PollTimeout:     flagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				TaskTimeout:     viper.GetDuration("telegram.task_timeout"),
				MaxConcurrency:  flagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
				MaxVoiceSeconds: viper.GetInt("telegram.max_voice_seconds"),
			}

			api := bot.NewAPI(&http.Client{Timeout: 60 * time.Second}, cfg.BaseURL, token)
			runtime := bot.NewRuntime(cfg, bot.RuntimeOptions{
				API:          api,
				Orchestrator: orch,
				Executor:     executor.New(tasks, logger),
				Users:        users,
				Tasks:        tasks,
				Voice:        voice,
				Todoist:      factory,
				Logger:       logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = runtime.Run(ctx)
			if err != nil && ctx.Err() != nil {
				logger.Info("bot_stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("telegram-base-url", "https://api.telegram.org", "Telegram API base URL.")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Allowed chat id(s). If empty, allows all.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max number of chats processed concurrently.")

	return cmd
}

func orchestratorFromViper(logger *slog.Logger) (*parser.Orchestrator, error) {
	apiKey := strings.TrimSpace(viper.GetString("api_key"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing api_key (set via T_TASKER_API_KEY)")
	}
	client := openai.New(viper.GetString("endpoint"), apiKey, viper.GetDuration("llm.request_timeout"))
	model := strings.TrimSpace(viper.GetString("model"))

	retry := retryutil.Default()
	if n := viper.GetInt("parser.retry.max_attempts"); n > 0 {
		retry.MaxAttempts = n
	}
	if d := viper.GetDuration("parser.retry.base_delay"); d > 0 {
		retry.BaseDelay = d
	}
	if d := viper.GetDuration("parser.retry.max_delay"); d > 0 {
		retry.MaxDelay = d
	}

	taxonomy := parser.DefaultTaxonomy()
	if path := strings.TrimSpace(viper.GetString("parser.taxonomy_path")); path != "" {
		loaded, err := parser.LoadTaxonomy(path)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		taxonomy = loaded
	}

	opts := parser.OrchestratorOptions{
		Classifier: parser.NewClassifier(client, model, retry, logger),
		Direct:     parser.NewDirectExtractor(client, model, retry, logger),
		Complexity: parser.ComplexityConfig{
			MinChars:    viper.GetInt("parser.complexity.min_chars"),
			MaxNewlines: viper.GetInt("parser.complexity.max_newlines"),
		},
		Logger: logger,
	}
	if viper.GetBool("parser.pipeline_enabled") {
		opts.Pipeline = parser.NewPipeline(client, model, taxonomy, logger)
	}
	return parser.NewOrchestrator(opts), nil
}

func dbConfigFromViper() store.Config {
	cfg := store.DefaultConfig()
	cfg.Driver = viper.GetString("db.driver")
	cfg.DSN = viper.GetString("db.dsn")
	cfg.Pool.MaxOpenConns = viper.GetInt("db.pool.max_open_conns")
	cfg.Pool.MaxIdleConns = viper.GetInt("db.pool.max_idle_conns")
	cfg.Pool.ConnMaxLifetime = viper.GetDuration("db.pool.conn_max_lifetime")
	cfg.SQLite.BusyTimeoutMs = viper.GetInt("db.sqlite.busy_timeout_ms")
	cfg.SQLite.WAL = viper.GetBool("db.sqlite.wal")
	cfg.SQLite.ForeignKeys = viper.GetBool("db.sqlite.foreign_keys")
	cfg.AutoMigrate = viper.GetBool("db.automigrate")
	return cfg
}
