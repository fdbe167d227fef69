package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	UploadDir      string
	HistoryPath    string
	HistoryLimit   int
	MaxUploadBytes int64
	WebDir         string
	SysCacheTTL    time.Duration
	AllowedSubnets []string
	CORSOrigins    []string
}

// LoadFromEnv reads an optional dotenv file and then the process
// environment. Values already present in the environment win over
// the dotenv file.
func LoadFromEnv() Config {
	envFile := env("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && os.Getenv("ENV_FILE") != "" {
		log.Printf("config: env file %s: %v", envFile, err)
	}
	return Config{
		Port:           envInt("PORT", 3001),
		UploadDir:      env("UPLOAD_DIR", "uploads"),
		HistoryPath:    env("HISTORY_FILE", filepath.Join("data", "messages.json")),
		HistoryLimit:   envInt("HISTORY_LIMIT", 1000),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 25<<30),
		WebDir:         env("WEB_DIR", filepath.Join("web", "dist")),
		SysCacheTTL:    envDuration("SYSINFO_CACHE_TTL", 2*time.Second),
		AllowedSubnets: splitCSV(env("ALLOWED_SUBNETS", "")),
		CORSOrigins:    splitCSV(env("CORS_ORIGINS", "")),
	}
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
