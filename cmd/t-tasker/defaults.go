package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// LLM
	viper.SetDefault("endpoint", "https://api.openai.com")
	viper.SetDefault("model", "gpt-4o")
	viper.SetDefault("api_key", "")
	viper.SetDefault("llm.request_timeout", 90*time.Second)

	// Parsing
	viper.SetDefault("parser.pipeline_enabled", true)
	viper.SetDefault("parser.complexity.min_chars", 200)
	viper.SetDefault("parser.complexity.max_newlines", 2)
	viper.SetDefault("parser.taxonomy_path", "")
	viper.SetDefault("parser.retry.max_attempts", 3)
	viper.SetDefault("parser.retry.base_delay", 4*time.Second)
	viper.SetDefault("parser.retry.max_delay", 10*time.Second)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.task_timeout", 2*time.Minute)
	viper.SetDefault("telegram.max_concurrency", 3)
	viper.SetDefault("telegram.max_voice_seconds", 300)
	viper.SetDefault("telegram.allowed_chat_ids", []string{})

	// Todoist
	viper.SetDefault("todoist.timeout", 30*time.Second)

	// Deepgram
	viper.SetDefault("deepgram.api_key", "")
	viper.SetDefault("deepgram.model", "nova-3")
	viper.SetDefault("deepgram.timeout", 60*time.Second)

	// Token encryption (64 hex chars).
	viper.SetDefault("encryption_key", "")

	// DB
	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.pool.max_open_conns", 1)
	viper.SetDefault("db.pool.max_idle_conns", 1)
	viper.SetDefault("db.pool.conn_max_lifetime", 0*time.Second)
	viper.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("db.sqlite.wal", true)
	viper.SetDefault("db.sqlite.foreign_keys", true)
	viper.SetDefault("db.automigrate", true)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
