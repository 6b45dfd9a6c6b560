package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:5174",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:5174",
}

type AppConfig struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string
	Version   string

	PostgresURI string
	AutoMigrate bool
	MongoURI    string
	MongoDB     string
	RedisAddr   string
	CacheTTL    time.Duration

	JWTSecret      string
	JWTIssuer      string
	TokenExpiresIn time.Duration

	LLMProvider   string // openai | vertex
	LLMAPIBase    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    time.Duration
	VertexProject string
	VertexRegion  string
	VertexModel   string

	TopKRetrieval   int
	VectorDimension int

	CORSOrigins []string

	UploadDir      string
	GCSBucket      string
	MaxUploadBytes int64

	SpeechEnabled  bool
	SpeechLanguage string
}

// Load reads the configuration from the environment. Call godotenv.Load first
// when a .env file should be honoured.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Version:   getEnv("APP_VERSION", "1.0.0"),

		PostgresURI: os.Getenv("POSTGRES_URI"),
		AutoMigrate: getEnvAsBool("AUTO_MIGRATE", true),
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     getEnv("MONGO_DB", "xiaomian"),
		RedisAddr:   firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		CacheTTL:    time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 600)) * time.Second,

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTIssuer:      os.Getenv("JWT_ISSUER"),
		TokenExpiresIn: time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMAPIBase:    getEnv("LLM_API_BASE", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMModel:      getEnv("LLM_MODEL", "qwen-plus"),
		LLMTimeout:    time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		VertexProject: os.Getenv("VERTEX_PROJECT_ID"),
		VertexRegion:  getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:   getEnv("VERTEX_MODEL", "gemini-1.5-flash"),

		TopKRetrieval:   getEnvAsInt("TOP_K_RETRIEVAL", 5),
		VectorDimension: getEnvAsInt("VECTOR_DIMENSION", 768),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads/resumes"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) << 20,

		SpeechEnabled:  getEnvAsBool("SPEECH_ENABLED", false),
		SpeechLanguage: getEnv("SPEECH_LANGUAGE", "zh-CN"),
	}
	cfg.CORSOrigins = corsOrigins(os.Getenv("FRONTEND_URL"), os.Getenv("CORS_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI environment variable is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is not set"))
	}
	switch c.LLMProvider {
	case "openai":
		if c.LLMAPIKey == "" {
			errs = append(errs, errors.New("LLM_API_KEY environment variable is not set"))
		}
	case "vertex":
		if c.VertexProject == "" {
			errs = append(errs, errors.New("VERTEX_PROJECT_ID environment variable is not set"))
		}
	default:
		errs = append(errs, errors.New("LLM_PROVIDER must be openai or vertex"))
	}
	if c.TokenExpiresIn <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	return errors.Join(errs...)
}

func corsOrigins(frontend, extra string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(o string) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			return
		}
		if _, ok := seen[o]; ok {
			return
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}

	add(frontend)
	if extra != "" {
		for _, o := range strings.Split(extra, ",") {
			add(o)
		}
		return out
	}
	for _, o := range defaultCORSOrigins {
		add(o)
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
