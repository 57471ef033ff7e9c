package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ストレージバックエンドの種別
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// 応答生成バックエンドの種別
const (
	GeneratorGemini = "gemini"
	GeneratorEcho   = "echo"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend  string
	DatabaseURL     string
	UserStorePath   string
	FeedbackLogPath string

	// Session
	SessionMaxAge        int
	SessionSweepInterval time.Duration

	// Password hashing (argon2id)
	PasswordHashTime    uint32
	PasswordHashMemory  uint32 // KiB
	PasswordHashThreads uint8

	// Generator
	GeneratorBackend      string
	GeminiAPIKey          string
	GeminiModel           string
	SystemPrompt          string
	GenerationMaxTokens   int
	GenerationTemperature float64
	GenerationTopP        float64
	GenerationTimeout     time.Duration

	// Rate Limit（req/min）
	RateLimitChat int
	RateLimitAuth int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// fileConfig はCONFIG_FILEで指定するYAML設定ファイルの構造。
// キー名は環境変数名を小文字にしたもの。未指定のキーは無視する。
type fileConfig map[string]string

// Load は設定を読み込む。
// CONFIG_FILEが指定されている場合はYAMLファイルを先に読み込み、環境変数で上書きする。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	src := source{file: file}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = src.get("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StorageBackend = strings.ToLower(src.getString("STORAGE_BACKEND", StorageFile))
	cfg.DatabaseURL = src.get("DATABASE_URL")
	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GeneratorBackend = strings.ToLower(src.getString("GENERATOR_BACKEND", GeneratorGemini))
	cfg.GeminiAPIKey = src.get("GEMINI_API_KEY")
	if cfg.GeneratorBackend == GeneratorGemini && cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StorageBackend {
	case StorageFile, StoragePostgres:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND: %q", cfg.StorageBackend)
	}
	switch cfg.GeneratorBackend {
	case GeneratorGemini, GeneratorEcho:
	default:
		return nil, fmt.Errorf("unsupported GENERATOR_BACKEND: %q", cfg.GeneratorBackend)
	}

	// Optional fields with defaults
	cfg.UserStorePath = src.getString("USER_STORE_PATH", "users.json")
	cfg.FeedbackLogPath = src.getString("FEEDBACK_LOG_PATH", "feedback.jsonl")
	cfg.SessionMaxAge = src.getIntInRange("SESSION_MAX_AGE", 86400, 1, math.MaxInt32)
	cfg.SessionSweepInterval = src.getPositiveDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute)
	cfg.PasswordHashTime = uint32(src.getIntInRange("PASSWORD_HASH_TIME", 1, 1, math.MaxInt32))
	cfg.PasswordHashMemory = uint32(src.getIntInRange("PASSWORD_HASH_MEMORY_KIB", 64*1024, 8, math.MaxInt32))
	cfg.PasswordHashThreads = uint8(src.getIntInRange("PASSWORD_HASH_THREADS", 4, 1, math.MaxUint8))
	cfg.GeminiModel = src.getString("GEMINI_MODEL", "gemini-2.0-flash-001")
	cfg.SystemPrompt = src.getString("SYSTEM_PROMPT", "You are CitizenAI, a helpful and responsible AI assistant.")
	cfg.GenerationMaxTokens = src.getIntInRange("GENERATION_MAX_TOKENS", 256, 1, math.MaxInt32)
	cfg.GenerationTemperature = src.getFloat("GENERATION_TEMPERATURE", 0.7)
	cfg.GenerationTopP = src.getFloat("GENERATION_TOP_P", 0.9)
	cfg.GenerationTimeout = src.getPositiveDuration("GENERATION_TIMEOUT", 60*time.Second)
	cfg.RateLimitChat = src.getIntInRange("RATE_LIMIT_CHAT", 30, 1, math.MaxInt32)
	cfg.RateLimitAuth = src.getIntInRange("RATE_LIMIT_AUTH", 10, 1, math.MaxInt32)
	cfg.LogLevel = strings.ToLower(src.getString("LOG_LEVEL", "info"))
	cfg.ServerPort = src.getString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = src.getString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = src.getString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// loadFile はYAML設定ファイルを読み込む。pathが空の場合は空の設定を返す。
func loadFile(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	fc := fileConfig{}
	for k, v := range raw {
		if v == nil {
			continue
		}
		fc[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return fc, nil
}

// source は環境変数と設定ファイルを優先順位付きで参照する。
type source struct {
	file fileConfig
}

// get は環境変数、設定ファイルの順に値を探す。
func (s source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) getString(key, defaultVal string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) int {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getIntInRange はgetIntと同様に読み込み、[lo, hi]の範囲外の値はデフォルト値として扱う。
func (s source) getIntInRange(key string, defaultVal, lo, hi int) int {
	v := s.getInt(key, defaultVal)
	if v < lo || v > hi {
		return defaultVal
	}
	return v
}

func (s source) getFloat(key string, defaultVal float64) float64 {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func (s source) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getPositiveDuration はgetDurationと同様に読み込み、0以下の値はデフォルト値として扱う。
func (s source) getPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	d := s.getDuration(key, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}
