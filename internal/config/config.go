package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Chat upstream (OpenAI-compatible, Ollama by default)
	OllamaBaseURL string
	OllamaModel   string
	SystemPrompt  string

	// Auth (empty disables auth on the chat API)
	ChatAPIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// OCR
	OCRLanguage string
	OCRDPI      int

	// External tool binaries
	YtDlpPath      string
	FFmpegPath     string
	WhisperCLIPath string
	PdftoppmPath   string

	// Whisper
	WhisperModel    string
	WhisperModelDir string

	// Frame extraction interval for slide OCR
	FrameInterval time.Duration

	// Conversation / job state
	ConversationTTL time.Duration
	MaxHistoryTurns int
	JobTTL          time.Duration

	// Optional Postgres archive for talk records
	DatabaseURL string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		OllamaBaseURL: envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaModel:   envOr("OLLAMA_MODEL", "llama2"),
		SystemPrompt: envOr("CHATD_SYSTEM_PROMPT",
			"You are a helpful assistant. Respond in the language the user writes in."),

		ChatAPIKey: os.Getenv("CHATD_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 50),

		OCRLanguage: envOr("OCR_LANGUAGE", "eng"),
		OCRDPI:      envInt("OCR_DPI", 300),

		YtDlpPath:      envOr("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:     envOr("FFMPEG_PATH", "ffmpeg"),
		WhisperCLIPath: envOr("WHISPER_CLI_PATH", "whisper-cli"),
		PdftoppmPath:   envOr("PDFTOPPM_PATH", "pdftoppm"),

		WhisperModel:    envOr("WHISPER_MODEL", "base"),
		WhisperModelDir: envOr("WHISPER_MODEL_DIR", "models"),

		FrameInterval: envDuration("FRAME_INTERVAL", 30*time.Second),

		ConversationTTL: envDuration("CONVERSATION_TTL", 2*time.Hour),
		MaxHistoryTurns: envInt("MAX_HISTORY_TURNS", 40),
		JobTTL:          envDuration("JOB_TTL", 1*time.Hour),

		DatabaseURL: os.Getenv("TALKDIGEST_DATABASE_URL"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 30 * time.Second
	}
	if cfg.ConversationTTL <= 0 {
		cfg.ConversationTTL = 2 * time.Hour
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 40
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.OllamaBaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL is required")
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("OLLAMA_MODEL is required")
	}
	if !ValidWhisperModel(c.WhisperModel) {
		return fmt.Errorf("WHISPER_MODEL must be one of tiny, base, small, medium, large (got %q)", c.WhisperModel)
	}
	return nil
}

var whisperModels = map[string]bool{
	"tiny":   true,
	"base":   true,
	"small":  true,
	"medium": true,
	"large":  true,
}

// ValidWhisperModel reports whether name is a recognized model size tier.
func ValidWhisperModel(name string) bool {
	return whisperModels[name]
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
