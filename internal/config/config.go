package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every service configuration section.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Observer  ObserverConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	Speech    SpeechConfig
	Store     StoreConfig
	Log       LogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}
	observer, err := loadObserverConfig()
	if err != nil {
		return nil, err
	}
	embedding, err := loadEmbeddingConfig()
	if err != nil {
		return nil, err
	}
	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Observer:  observer,
		Embedding: embedding,
		Vector:    loadVectorConfig(),
		Speech:    speech,
		Store:     loadStoreConfig(),
		Log:       loadLogConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5025"
	}

	if strings.Contains(port, ":") {
		// Accept ":5025" or "127.0.0.1:5025" directly.
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the chat model provider.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel constructs a chat model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("chat model credentials missing: set ARK_API_KEY (or AK/SK) and AI_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}
	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("AI_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// ObserverConfig controls the background interview observer.
type ObserverConfig struct {
	Enabled      bool
	HistoryLimit int
}

func loadObserverConfig() (ObserverConfig, error) {
	enabled, err := parseBoolEnv("OBSERVER_ENABLED", true)
	if err != nil {
		return ObserverConfig{}, err
	}

	historyLimit := 3
	if override, err := parseOptionalIntEnv("OBSERVER_HISTORY_LIMIT"); err != nil {
		return ObserverConfig{}, err
	} else if override != nil && *override >= 1 {
		historyLimit = *override
	}

	return ObserverConfig{Enabled: enabled, HistoryLimit: historyLimit}, nil
}

// EmbeddingConfig describes the external embedding endpoint.
type EmbeddingConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Dimensions     int
	TimeoutSeconds int
}

// Enabled reports whether an embedding endpoint is configured.
func (c EmbeddingConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadEmbeddingConfig() (EmbeddingConfig, error) {
	dims := 1536
	if override, err := parseOptionalIntEnv("EMBEDDING_DIMENSIONS"); err != nil {
		return EmbeddingConfig{}, err
	} else if override != nil && *override > 0 {
		dims = *override
	}

	timeout := 30
	if override, err := parseOptionalIntEnv("EMBEDDING_TIMEOUT"); err != nil {
		return EmbeddingConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	return EmbeddingConfig{
		BaseURL:        strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL")),
		APIKey:         strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")),
		Model:          getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-large"),
		Dimensions:     dims,
		TimeoutSeconds: timeout,
	}, nil
}

// VectorConfig describes the pgvector-backed chunk index.
type VectorConfig struct {
	DSN        string
	Collection string
}

// Enabled reports whether a vector store connection is configured.
func (c VectorConfig) Enabled() bool {
	return c.DSN != ""
}

func loadVectorConfig() VectorConfig {
	return VectorConfig{
		DSN:        strings.TrimSpace(os.Getenv("VECTOR_DSN")),
		Collection: getEnvOrDefault("VECTOR_COLLECTION", "daria_transcripts"),
	}
}

// SpeechConfig describes the TTS/STT side services. Their absence degrades
// the platform to text-only operation.
type SpeechConfig struct {
	TTSEndpoint    string
	STTEndpoint    string
	APIKey         string
	VoiceID        string
	TimeoutSeconds int
}

// TTSEnabled reports whether text-to-speech is configured.
func (c SpeechConfig) TTSEnabled() bool { return c.TTSEndpoint != "" }

// STTEnabled reports whether speech-to-text is configured.
func (c SpeechConfig) STTEnabled() bool { return c.STTEndpoint != "" }

func loadSpeechConfig() (SpeechConfig, error) {
	timeout := 10
	if override, err := parseOptionalIntEnv("SPEECH_TIMEOUT"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	return SpeechConfig{
		TTSEndpoint:    strings.TrimSpace(os.Getenv("TTS_ENDPOINT")),
		STTEndpoint:    strings.TrimSpace(os.Getenv("STT_ENDPOINT")),
		APIKey:         strings.TrimSpace(os.Getenv("SPEECH_API_KEY")),
		VoiceID:        getEnvOrDefault("SPEECH_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		TimeoutSeconds: timeout,
	}, nil
}

// StoreConfig describes the on-disk document store locations.
type StoreConfig struct {
	DataDir   string
	PromptDir string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		DataDir:   getEnvOrDefault("DATA_DIR", "data/interviews"),
		PromptDir: getEnvOrDefault("PROMPT_DIR", "tools/prompt_manager/prompts"),
	}
}

// LogConfig describes logger output.
type LogConfig struct {
	FilePath string
	Prod     bool
}

func loadLogConfig() LogConfig {
	prod, err := parseBoolEnv("LOG_PROD", false)
	if err != nil {
		prod = false
	}
	return LogConfig{
		FilePath: getEnvOrDefault("LOG_FILE", "logs/daria.log"),
		Prod:     prod,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
