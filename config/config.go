package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort       string
	SessionSecret string
	// Base URL the browser is sent back to after the OAuth flow finishes.
	FrontendBaseURL string
	// Session and CSRF-state lifetimes
	SessionTTLDays  int
	StateTTLMinutes int
	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Oura OAuth + API
	OuraClientID     string
	OuraClientSecret string
	OuraRedirectURI  string
	OuraAuthBaseURL  string
	OuraAPIBaseURL   string
	// Anthropic LLM
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	// Gin framework configuration
	GinMode            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Redis for state store / token blacklist
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
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET must be set in environment variables")
	}
	if cfg.OuraClientID == "" || cfg.OuraClientSecret == "" {
		log.Fatal("OURA_CLIENT_ID and OURA_CLIENT_SECRET must be set")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// SetForTesting replaces the cached configuration. Tests only.
func SetForTesting(c AppConfig) {
	cfg = c
	loaded = true
}

// loadJSONConfig reads a flat JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(key string) string {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(key string) int {
		if v, ok := raw[key]; ok {
			if f, ok := v.(float64); ok {
				return int(f)
			}
		}
		return 0
	}
	getBool := func(key string) bool {
		if v, ok := raw[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(key string) []string {
		if v, ok := raw[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	out.AppPort = getString("app_port")
	out.SessionSecret = getString("session_secret")
	out.FrontendBaseURL = getString("frontend_base_url")
	out.SessionTTLDays = getInt("session_ttl_days")
	out.StateTTLMinutes = getInt("state_ttl_minutes")
	out.DatabaseURI = getString("database_uri")
	out.DBHost = getString("db_host")
	out.DBPort = getString("db_port")
	out.DBUser = getString("db_user")
	out.DBPassword = getString("db_password")
	out.DBName = getString("db_name")
	out.OuraClientID = getString("oura_client_id")
	out.OuraClientSecret = getString("oura_client_secret")
	out.OuraRedirectURI = getString("oura_redirect_uri")
	out.OuraAuthBaseURL = getString("oura_auth_base_url")
	out.OuraAPIBaseURL = getString("oura_api_base_url")
	out.AnthropicAPIKey = getString("anthropic_api_key")
	out.AnthropicModel = getString("anthropic_model")
	out.AnthropicBaseURL = getString("anthropic_base_url")
	out.GinMode = getString("gin_mode")
	out.RateLimitPerMinute = getInt("rate_limit_per_minute")
	out.AllowedOrigins = getStringSlice("allowed_origins")
	out.RedisHost = getString("redis_host")
	out.RedisPort = getInt("redis_port")
	out.RedisDB = getInt("redis_db")
	out.RedisPassword = getString("redis_password")
	out.LogLevel = getString("log_level")
	out.LogPath = getString("log_path")
	out.LogMaxSizeMB = getInt("log_max_size_mb")
	out.LogMaxBackups = getInt("log_max_backups")
	out.LogMaxAgeDays = getInt("log_max_age_days")
	out.LogCompress = getBool("log_compress")
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.FrontendBaseURL == "" {
		c.FrontendBaseURL = "http://localhost:3000"
	}
	if c.SessionTTLDays == 0 {
		c.SessionTTLDays = 30
	}
	if c.StateTTLMinutes == 0 {
		c.StateTTLMinutes = 10
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "5432"
	}
	if c.DBUser == "" {
		c.DBUser = "ringsight"
	}
	if c.DBName == "" {
		c.DBName = "ringsight"
	}
	if c.OuraAuthBaseURL == "" {
		c.OuraAuthBaseURL = "https://cloud.ouraring.com/oauth"
	}
	if c.OuraAPIBaseURL == "" {
		c.OuraAPIBaseURL = "https://api.ouraring.com/v2"
	}
	if c.AnthropicModel == "" {
		c.AnthropicModel = "claude-3-5-sonnet-20241022"
	}
	if c.AnthropicBaseURL == "" {
		c.AnthropicBaseURL = "https://api.anthropic.com"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/ringsight.log"
	}
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.FrontendBaseURL = getEnv("FRONTEND_BASE_URL", c.FrontendBaseURL)
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.OuraClientID = getEnv("OURA_CLIENT_ID", c.OuraClientID)
	c.OuraClientSecret = getEnv("OURA_CLIENT_SECRET", c.OuraClientSecret)
	c.OuraRedirectURI = getEnv("OURA_REDIRECT_URI", c.OuraRedirectURI)
	c.OuraAuthBaseURL = getEnv("OURA_AUTH_BASE_URL", c.OuraAuthBaseURL)
	c.OuraAPIBaseURL = getEnv("OURA_API_BASE_URL", c.OuraAPIBaseURL)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = getEnv("ANTHROPIC_MODEL", c.AnthropicModel)
	c.AnthropicBaseURL = getEnv("ANTHROPIC_BASE_URL", c.AnthropicBaseURL)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)

	if v := os.Getenv("SESSION_TTL_DAYS"); v != "" {
		c.SessionTTLDays = mustParseInt(v)
	}
	if v := os.Getenv("STATE_TTL_MINUTES"); v != "" {
		c.StateTTLMinutes = mustParseInt(v)
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func mustParseInt(val string) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Fatalf("invalid integer value %q", val)
	}
	return n
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			res = append(res, s)
		}
	}
	return res
}
