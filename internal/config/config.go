package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr      string
	MongoURL  string
	DBName    string
	JWTSecret string
	AccessTTL time.Duration
	// Cache configuration; empty CacheRedisURL disables the cache.
	CacheRedisURL string
	CacheTimeout  time.Duration
	// Third-party login
	GoogleTokenInfoURL string
	CORSOrigin         string
}

func Load() Config {
	return Config{
		Addr:               getenv("API_ADDR", ":8080"),
		MongoURL:           getenv("MONGO_URL", "mongodb://localhost:27017"),
		DBName:             getenv("SECULAR_DB_NAME", "SecularReview"),
		JWTSecret:          getenv("SECULAR_JWT_SECRET", "secular-dev-secret"),
		AccessTTL:          time.Duration(getenvInt("SECULAR_ACCESS_TTL_SECONDS", 3600)) * time.Second,
		CacheRedisURL:      getenv("CACHE_REDIS_URL", "redis://localhost:6379/0"),
		CacheTimeout:       time.Duration(getenvInt("CACHE_DEFAULT_TIMEOUT", 300)) * time.Second,
		GoogleTokenInfoURL: getenv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		CORSOrigin:         getenv("SECULAR_CORS_ORIGIN", "*"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
