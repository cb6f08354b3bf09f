package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Snapshot poll cadence when the snapshot is the only shared store.
	SnapshotOnlyPollInterval = 15 * time.Second
	// Snapshot poll cadence as a backup to the remote feed.
	HybridPollInterval = 30 * time.Second
)

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	LocalStoreDriver string // sqlite, postgres or memory
	LocalStoreDSN    string
	LocalQuotaBytes  int

	MongoURI        string // empty: remote store unconfigured
	MongoCollection string
	RemoteTimeout   time.Duration

	RedisURI string // empty: no Redis

	SnapshotURL          string // read-only published snapshot
	SnapshotFile         string // writable substitute when Redis is absent
	SnapshotPollInterval time.Duration
	SnapshotInitialDelay time.Duration

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	AdminToken string
	LogLevel   string
}

func Load() *Config {
	mongoURI := strings.TrimSpace(getEnv("MONGODB_URI", getEnv("MONGO_URI", "")))

	// Poll more often when the snapshot is the only way to see other devices
	defaultPoll := SnapshotOnlyPollInterval
	if mongoURI != "" {
		defaultPoll = HybridPollInterval
	}

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
		AllowedOrigins: allowedOrigins,

		LocalStoreDriver: strings.ToLower(getEnv("LOCAL_STORE_DRIVER", "sqlite")),
		LocalStoreDSN:    getEnv("LOCAL_STORE_DSN", "rockhunter.db"),
		LocalQuotaBytes:  getInt("LOCAL_STORE_QUOTA_BYTES", 5*1024*1024),

		MongoURI:        mongoURI,
		MongoCollection: getEnv("MONGODB_COLLECTION", "rocks"),
		RemoteTimeout:   getDuration("REMOTE_TIMEOUT", 10*time.Second),

		RedisURI: strings.TrimSpace(getEnv("REDIS_URI", "")),

		SnapshotURL:          strings.TrimSpace(getEnv("SNAPSHOT_URL", "")),
		SnapshotFile:         getEnv("SNAPSHOT_FILE", "shared-rocks.json"),
		SnapshotPollInterval: getDuration("SNAPSHOT_POLL_INTERVAL", defaultPoll),
		SnapshotInitialDelay: getDuration("SNAPSHOT_INITIAL_DELAY", 2*time.Second),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		AdminToken: getEnv("ADMIN_TOKEN", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) RemoteConfigured() bool {
	return c.MongoURI != ""
}

func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
