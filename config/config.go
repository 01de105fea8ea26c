package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Secrets never have defaults inside code and must be provided via the config file or the environment.
type AppConfig struct {
	AppPort string
	// FingerprintSecret keys the device fingerprint HMAC. Changing it orphans every account.
	FingerprintSecret  string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching and registration throttling; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Registration throttling per client IP
	RegisterMaxPerIPPerMinute int
	// Scheduled jobs
	PopularRefreshSpec     string
	PopularDiscussionLimit int
}

// ErrMissingSecret is returned when no fingerprint secret is configured.
var ErrMissingSecret = errors.New("FINGERPRINT_SECRET must be set in config or environment")

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config file -> defaults -> environment variable overrides.
func Load(path string) (AppConfig, error) {
	if loaded {
		return cfg, nil
	}
	if path == "" {
		path = filepath.Join("config", "config.json")
	}

	var next AppConfig
	if err := loadJSONConfig(path, &next); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&next)
	applyEnvOverrides(&next)

	if next.FingerprintSecret == "" {
		return AppConfig{}, ErrMissingSecret
	}

	cfg = next
	loaded = true
	return cfg, nil
}

// Get returns the cached configuration. Load must have succeeded before.
func Get() AppConfig {
	return cfg
}

// loadJSONConfig reads the grouped JSON file into out. A missing file is not an error.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.FingerprintSecret = getString(app, "FingerprintSecret")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if rg, ok := raw["register"].(map[string]any); ok {
		out.RegisterMaxPerIPPerMinute = getInt(rg, "MaxPerIPPerMinute")
	}

	if jb, ok := raw["jobs"].(map[string]any); ok {
		out.PopularRefreshSpec = getString(jb, "PopularRefreshSpec")
		out.PopularDiscussionLimit = getInt(jb, "PopularDiscussionLimit")
	}
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBName == "" {
		c.DBName = "anonid"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RegisterMaxPerIPPerMinute == 0 {
		c.RegisterMaxPerIPPerMinute = 30
	}
	if c.PopularRefreshSpec == "" {
		c.PopularRefreshSpec = "@every 10m"
	}
	if c.PopularDiscussionLimit == 0 {
		c.PopularDiscussionLimit = 20
	}
}

func applyEnvOverrides(c *AppConfig) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("APP_PORT", &c.AppPort)
	setString("FINGERPRINT_SECRET", &c.FingerprintSecret)
	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	setString("DB_DRIVER", &c.DBDriver)
	setString("DATABASE_URI", &c.DatabaseURI)
	setString("DB_HOST", &c.DBHost)
	setString("DB_PORT", &c.DBPort)
	setString("DB_USER", &c.DBUser)
	setString("DB_PASSWORD", &c.DBPassword)
	setString("DB_NAME", &c.DBName)
	setString("REDIS_HOST", &c.RedisHost)
	setInt("REDIS_PORT", &c.RedisPort)
	setInt("REDIS_DB", &c.RedisDB)
	setString("REDIS_PASSWORD", &c.RedisPassword)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_PATH", &c.LogPath)
	setString("GIN_MODE", &c.GinMode)
	setString("GIN_LOG_PATH", &c.GinPath)
	setInt("REGISTER_MAX_PER_IP_PER_MINUTE", &c.RegisterMaxPerIPPerMinute)
	setString("POPULAR_REFRESH_SPEC", &c.PopularRefreshSpec)
	setInt("POPULAR_DISCUSSION_LIMIT", &c.PopularDiscussionLimit)
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// reset clears the cached configuration; used by tests.
func reset() {
	cfg = AppConfig{}
	loaded = false
}
