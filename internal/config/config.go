package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env              string
	HTTPPort         string
	BaseURL          string
	MongoURI         string
	MongoDB          string
	DataDir          string
	CookieSecret     string
	SessionName      string
	SessionMaxAge    int
	ReauthKey        string
	ReauthIssuer     string
	ReauthTTL        time.Duration
	CodesDir         string
	RedisAddr        string
	RateLimitBackend string
	RateLimitPerMin  int
}

// Load returns application config populated from environment variables
// with sensible defaults. A .env file is honored when present.
func Load() App {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}
	return App{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		MongoURI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGODB_DB", "smart_attendance"),
		DataDir:          getEnv("DATA_DIR", "data"),
		CookieSecret:     getEnv("COOKIE_SECRET", "dev-cookie-secret-change"),
		SessionName:      getEnv("SESSION_NAME", "attendance_session"),
		SessionMaxAge:    intEnv("SESSION_MAX_AGE", 86400*7),
		ReauthKey:        getEnv("REAUTH_SIGNING_KEY", "dev-signing-secret-change"),
		ReauthIssuer:     getEnv("REAUTH_ISSUER", "smartattend"),
		ReauthTTL:        durationEnv("REAUTH_TTL", 15*time.Minute),
		CodesDir:         getEnv("CODES_DIR", "codes"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		RateLimitPerMin:  intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
