package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	LogLevel      string
	LogPretty     bool
	JWTSecret     string
	SessionCookie string

	MailProvider    string // "aurinko", "gmail" or "imap"
	AurinkoBaseURL  string
	ThreadScanLimit int
	InboxLimit      int

	IMAPServer   string
	IMAPPort     int
	IMAPTLS      bool
	IMAPUsername string
	IMAPMailbox  string

	AIProvider     string // "openai", "gemini", "ollama" or "auto"
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	GeminiApiKey   string
	OllamaBaseURL  string
	OllamaModel    string
	AIRateInterval time.Duration
	AITimeout      time.Duration

	DatabaseURL        string
	RenderConcurrency  int
	SummaryMaxMessages int
	ViewIdleTimeout    time.Duration
}

// fileConfig mirrors the optional TOML file. Empty values leave defaults alone.
type fileConfig struct {
	Server struct {
		Port      string `toml:"port"`
		LogLevel  string `toml:"log_level"`
		LogPretty bool   `toml:"log_pretty"`
	} `toml:"server"`
	Mail struct {
		Provider        string `toml:"provider"`
		AurinkoBaseURL  string `toml:"aurinko_base_url"`
		ThreadScanLimit int    `toml:"thread_scan_limit"`
		InboxLimit      int    `toml:"inbox_limit"`
	} `toml:"mail"`
	IMAP struct {
		Server   string `toml:"server"`
		Port     int    `toml:"port"`
		TLS      bool   `toml:"tls"`
		Username string `toml:"username"`
		Mailbox  string `toml:"mailbox"`
	} `toml:"imap"`
	AI struct {
		Provider      string `toml:"provider"`
		OpenAIBaseURL string `toml:"openai_base_url"`
		OpenAIModel   string `toml:"openai_model"`
		OllamaBaseURL string `toml:"ollama_base_url"`
		OllamaModel   string `toml:"ollama_model"`
		RateInterval  string `toml:"rate_interval"`
		Timeout       string `toml:"timeout"`
	} `toml:"ai"`
	View struct {
		RenderConcurrency  int    `toml:"render_concurrency"`
		SummaryMaxMessages int    `toml:"summary_max_messages"`
		IdleTimeout        string `toml:"idle_timeout"`
	} `toml:"view"`
}

func defaultConfig() *Config {
	return &Config{
		Port:               "8080",
		LogLevel:           "info",
		JWTSecret:          "your-secret-key-change-in-production",
		SessionCookie:      "session_token",
		MailProvider:       "aurinko",
		AurinkoBaseURL:     "https://api.aurinko.io",
		ThreadScanLimit:    50,
		InboxLimit:         20,
		IMAPPort:           993,
		IMAPTLS:            true,
		IMAPMailbox:        "INBOX",
		AIProvider:         "auto",
		OpenAIBaseURL:      "https://api.openai.com/v1",
		OpenAIModel:        "gpt-4o-mini",
		OllamaBaseURL:      "http://localhost:11434",
		OllamaModel:        "llama3",
		AIRateInterval:     500 * time.Millisecond,
		AITimeout:          30 * time.Second,
		RenderConcurrency:  4,
		SummaryMaxMessages: 10,
		ViewIdleTimeout:    30 * time.Minute,
	}
}

// Load reads .env, then the TOML file named by CONFIG_FILE, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	setString(&cfg.Port, fc.Server.Port)
	setString(&cfg.LogLevel, fc.Server.LogLevel)
	cfg.LogPretty = cfg.LogPretty || fc.Server.LogPretty

	setString(&cfg.MailProvider, fc.Mail.Provider)
	setString(&cfg.AurinkoBaseURL, fc.Mail.AurinkoBaseURL)
	setInt(&cfg.ThreadScanLimit, fc.Mail.ThreadScanLimit)
	setInt(&cfg.InboxLimit, fc.Mail.InboxLimit)

	setString(&cfg.IMAPServer, fc.IMAP.Server)
	setInt(&cfg.IMAPPort, fc.IMAP.Port)
	if fc.IMAP.Server != "" {
		cfg.IMAPTLS = fc.IMAP.TLS
	}
	setString(&cfg.IMAPUsername, fc.IMAP.Username)
	setString(&cfg.IMAPMailbox, fc.IMAP.Mailbox)

	setString(&cfg.AIProvider, fc.AI.Provider)
	setString(&cfg.OpenAIBaseURL, fc.AI.OpenAIBaseURL)
	setString(&cfg.OpenAIModel, fc.AI.OpenAIModel)
	setString(&cfg.OllamaBaseURL, fc.AI.OllamaBaseURL)
	setString(&cfg.OllamaModel, fc.AI.OllamaModel)
	if d, err := time.ParseDuration(fc.AI.RateInterval); err == nil {
		cfg.AIRateInterval = d
	}
	if d, err := time.ParseDuration(fc.AI.Timeout); err == nil {
		cfg.AITimeout = d
	}

	setInt(&cfg.RenderConcurrency, fc.View.RenderConcurrency)
	setInt(&cfg.SummaryMaxMessages, fc.View.SummaryMaxMessages)
	if d, err := time.ParseDuration(fc.View.IdleTimeout); err == nil {
		cfg.ViewIdleTimeout = d
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getEnvBool("LOG_PRETTY", cfg.LogPretty)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.SessionCookie = getEnv("SESSION_COOKIE", cfg.SessionCookie)

	cfg.MailProvider = getEnv("MAIL_PROVIDER", cfg.MailProvider)
	cfg.AurinkoBaseURL = getEnv("AURINKO_BASE_URL", cfg.AurinkoBaseURL)
	cfg.ThreadScanLimit = getEnvInt("THREAD_SCAN_LIMIT", cfg.ThreadScanLimit)
	cfg.InboxLimit = getEnvInt("INBOX_LIMIT", cfg.InboxLimit)

	cfg.IMAPServer = getEnv("IMAP_SERVER", cfg.IMAPServer)
	cfg.IMAPPort = getEnvInt("IMAP_PORT", cfg.IMAPPort)
	cfg.IMAPTLS = getEnvBool("IMAP_TLS", cfg.IMAPTLS)
	cfg.IMAPUsername = getEnv("IMAP_USERNAME", cfg.IMAPUsername)
	cfg.IMAPMailbox = getEnv("IMAP_MAILBOX", cfg.IMAPMailbox)

	cfg.AIProvider = getEnv("AI_PROVIDER", cfg.AIProvider)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GeminiApiKey = getEnv("GEMINI_API_KEY", cfg.GeminiApiKey)
	cfg.OllamaBaseURL = getEnv("OLLAMA_BASE_URL", cfg.OllamaBaseURL)
	cfg.OllamaModel = getEnv("OLLAMA_MODEL", cfg.OllamaModel)
	cfg.AIRateInterval = getEnvDuration("AI_RATE_INTERVAL", cfg.AIRateInterval)
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", cfg.AITimeout)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RenderConcurrency = getEnvInt("RENDER_CONCURRENCY", cfg.RenderConcurrency)
	cfg.SummaryMaxMessages = getEnvInt("SUMMARY_MAX_MESSAGES", cfg.SummaryMaxMessages)
	cfg.ViewIdleTimeout = getEnvDuration("VIEW_IDLE_TIMEOUT", cfg.ViewIdleTimeout)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
