package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds gateway configuration.
type Config struct {
	Port             string
	Env              string
	CORSAllowOrigin  []string
	APIBaseURL       string
	APITimeout       time.Duration
	ObjectStoreType  string
	LocalStoreDir    string
	AWSRegion        string
	S3Bucket         string
	S3Prefix         string
	SSEKMSKeyID      string
	DatabaseURL      string
	DefaultVoiceID   string
	AskRatePerSec    float64
	AskBurst         int
	SummaryStaleTime time.Duration
	SessionIdleTTL   time.Duration
	MaxSessions      int
}

// Load reads configuration from environment variables with defaults. Local
// .env files are loaded first without overriding the real environment.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	baseURL := strings.TrimSpace(os.Getenv("DATAGHOST_API_BASE_URL"))
	if baseURL == "" {
		log.Printf("DATAGHOST_API_BASE_URL is not set; remote calls will fail")
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		APIBaseURL:       baseURL,
		APITimeout:       time.Duration(getInt("API_TIMEOUT_SECONDS", 0)) * time.Second,
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:      getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DefaultVoiceID:   getEnv("DEFAULT_VOICE_ID", ""),
		AskRatePerSec:    getFloat("ASK_RATE_PER_SEC", 0.5),
		AskBurst:         getInt("ASK_BURST", 5),
		SummaryStaleTime: time.Duration(getInt("SUMMARY_STALE_SECONDS", 60)) * time.Second,
		SessionIdleTTL:   time.Duration(getInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		MaxSessions:      getInt("MAX_SESSIONS", 10000),
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("env file %s ignored: %v", path, err)
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		log.Printf("config %s invalid number %q, using %v", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
