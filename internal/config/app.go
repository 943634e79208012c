package config

import (
	"chat-bot/internal/logger"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Bot       BotConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Limits    LimitsConfig
	Providers ProvidersConfig
	LLM       LLMConfig
	Scan      ScanConfig
	Files     FilesConfig
	API       APIConfig
	Models    *ModelsConfig
	Casual    *CasualConfig
}

// BotConfig holds chat platform identity and the admin allow-list
type BotConfig struct {
	Token          string
	Username       string
	Aliases        []string
	AdminIDs       []int64
	OwnerID        int64
	APIBaseURL     string
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	MaxReplySize   int
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Backend  string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	BoltPath string
}

// RedisConfig holds the optional Redis connection used for rate counters
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// RateLimitConfig holds the per-command quota
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Backend  string
}

// LimitsConfig holds result-size and retention limits
type LimitsConfig struct {
	MaxResultsNonAdmin  int
	MaxResultsAdmin     int
	MaxResultsHardCap   int
	MaxTweetsResults    int
	SummaryLines        int
	ChatHistoryDays     int
	ChatRetentionDays   int
	StoredMatchesCap    int
	StoredArticlesCap   int
	JanitorInterval     time.Duration
	DefaultNewsArticles int
}

// ProvidersConfig holds external content provider credentials
type ProvidersConfig struct {
	NewsAPIKey       string
	NewsDataAPIKey   string
	GNewsAPIKey      string
	GuardianAPIKey   string
	CoinMarketCapKey string
	CoinGeckoKey     string
	TwitterBearer    string
	Timeout          time.Duration
}

// LLMConfig holds generation backend credentials
type LLMConfig struct {
	DefaultBackend   string
	FallbackOrder    []string
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	DeepSeekAPIKey   string
	QwenAPIKey       string
	GeminiAPIKey     string
	CohereAPIKey     string
	Timeout          time.Duration
}

// ScanConfig holds chat scanner ceilings and room ordering
type ScanConfig struct {
	RoomOrder        string
	SingleRoomLimit  int
	PerRoomLimit     int
	PerRoomUserLimit int
}

// FilesConfig holds report file locations
type FilesConfig struct {
	DownloadsPath string
}

// APIConfig holds the operator HTTP API settings
type APIConfig struct {
	Port            string
	JWTSecret       []byte
	TokenExpiration time.Duration
	AllowedOrigin   string
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		logger.Log.Warn("BOT_TOKEN environment variable not set")
	}
	config.Bot = BotConfig{
		Token:          token,
		Username:       strings.TrimPrefix(getEnvOrDefault("BOT_USERNAME", "aggregator_bot"), "@"),
		Aliases:        getEnvAsList("BOT_ALIASES", nil),
		AdminIDs:       getEnvAsInt64List("ADMIN_IDS"),
		OwnerID:        getEnvAsInt64("OWNER_ID", 0),
		APIBaseURL:     getEnvOrDefault("BOT_API_BASE_URL", "https://api.telegram.org"),
		PollTimeout:    getEnvAsDuration("BOT_POLL_TIMEOUT", 30*time.Second),
		RequestTimeout: getEnvAsDuration("BOT_REQUEST_TIMEOUT", 30*time.Second),
		MaxReplySize:   getEnvAsInt("BOT_MAX_REPLY_SIZE", 4000),
	}
	if config.Bot.OwnerID != 0 && !containsID(config.Bot.AdminIDs, config.Bot.OwnerID) {
		config.Bot.AdminIDs = append(config.Bot.AdminIDs, config.Bot.OwnerID)
	}

	config.Database = DatabaseConfig{
		Backend:  getEnvOrDefault("DATABASE_BACKEND", "postgres"),
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "chatbot"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		BoltPath: getEnvOrDefault("BOLT_PATH", "data/bot.bolt"),
	}
	switch config.Database.Backend {
	case "postgres", "memory", "bolt":
	default:
		return nil, fmt.Errorf("DATABASE_BACKEND must be postgres, memory or bolt (got %q)", config.Database.Backend)
	}

	config.Redis = RedisConfig{
		Addr:        os.Getenv("REDIS_ADDR"),
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          getEnvAsInt("REDIS_DB", 0),
		DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
	}

	config.RateLimit = RateLimitConfig{
		Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 3),
		Window:   time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW", 86400)) * time.Second,
		Backend:  getEnvOrDefault("RATE_LIMIT_BACKEND", "store"),
	}
	if config.RateLimit.Backend == "redis" && config.Redis.Addr == "" {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
	}

	config.Limits = LimitsConfig{
		MaxResultsNonAdmin:  getEnvAsInt("MAX_RESULTS_NON_ADMIN", 10),
		MaxResultsAdmin:     getEnvAsInt("MAX_RESULTS_ADMIN", 50),
		MaxResultsHardCap:   getEnvAsInt("MAX_RESULTS_HARD_CAP", 200),
		MaxTweetsResults:    getEnvAsInt("MAX_TWEETS_RESULTS", 5),
		SummaryLines:        getEnvAsInt("SUMMARY_LINES", 10),
		ChatHistoryDays:     getEnvAsInt("CHAT_HISTORY_DAYS", 20),
		ChatRetentionDays:   getEnvAsInt("CHAT_RETENTION_DAYS", 30),
		StoredMatchesCap:    getEnvAsInt("STORED_MATCHES_CAP", 50),
		StoredArticlesCap:   getEnvAsInt("STORED_ARTICLES_CAP", 20),
		JanitorInterval:     getEnvAsDuration("JANITOR_INTERVAL", time.Hour),
		DefaultNewsArticles: getEnvAsInt("DEFAULT_NEWS_ARTICLES", 10),
	}

	config.Providers = ProvidersConfig{
		NewsAPIKey:       os.Getenv("NEWSAPI_KEY"),
		NewsDataAPIKey:   os.Getenv("NEWSDATA_API_KEY"),
		GNewsAPIKey:      os.Getenv("GNEWS_API_KEY"),
		GuardianAPIKey:   os.Getenv("GUARDIAN_API_KEY"),
		CoinMarketCapKey: os.Getenv("COINMARKETCAP_API_KEY"),
		CoinGeckoKey:     os.Getenv("COINGECKO_API_KEY"),
		TwitterBearer:    os.Getenv("TWITTER_BEARER_TOKEN"),
		Timeout:          getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
	}

	config.LLM = LLMConfig{
		DefaultBackend:   getEnvOrDefault("DEFAULT_LLM", "qwen"),
		FallbackOrder:    getEnvAsList("LLM_FALLBACK_ORDER", []string{"qwen", "deepseek", "gpt", "gemini", "claude", "cohere"}),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		DeepSeekAPIKey:   os.Getenv("DEEPSEEK_API_KEY"),
		QwenAPIKey:       os.Getenv("QWEN_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		CohereAPIKey:     os.Getenv("COHERE_API_KEY"),
		Timeout:          getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
	}

	config.Scan = ScanConfig{
		RoomOrder:        getEnvOrDefault("SCAN_ROOM_ORDER", "listed"),
		SingleRoomLimit:  getEnvAsInt("SCAN_SINGLE_ROOM_LIMIT", 1000),
		PerRoomLimit:     getEnvAsInt("SCAN_PER_ROOM_LIMIT", 200),
		PerRoomUserLimit: getEnvAsInt("SCAN_PER_ROOM_USER_LIMIT", 500),
	}
	switch config.Scan.RoomOrder {
	case "listed", "shuffled", "exhaustive":
	default:
		return nil, fmt.Errorf("SCAN_ROOM_ORDER must be listed, shuffled or exhaustive (got %q)", config.Scan.RoomOrder)
	}

	config.Files = FilesConfig{
		DownloadsPath: getEnvOrDefault("DOWNLOADS_PATH", "downloads"),
	}

	// The operator API is optional; it only starts with a long enough secret.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret != "" && len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}
	config.API = APIConfig{
		Port:            os.Getenv("API_PORT"),
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
		AllowedOrigin:   getEnvOrDefault("API_ALLOWED_ORIGIN", "*"),
	}

	modelsConfig, err := NewModelsConfig(os.Getenv("MODELS_CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	casualConfig, err := LoadCasualConfig(os.Getenv("CASUAL_CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load casual config: %w", err)
	}
	if len(casualConfig.Aliases) == 0 {
		casualConfig.Aliases = DefaultAliases(config.Bot.Username, config.Bot.Aliases)
	}
	config.Casual = casualConfig

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsAdmin reports whether userID is on the static allow-list
func (c *BotConfig) IsAdmin(userID int64) bool {
	return containsID(c.AdminIDs, userID)
}

// APIEnabled reports whether the operator HTTP API should be served
func (c *APIConfig) APIEnabled() bool {
	return c.Port != "" && len(c.JWTSecret) > 0
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt64List(key string) []int64 {
	var out []int64
	for _, part := range getEnvAsList(key, nil) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"key": key, "value": part}).Warn("Skipping invalid id")
			continue
		}
		out = append(out, id)
	}
	return out
}
