package app

import (
	"chat-bot/internal/api/handlers"
	"chat-bot/internal/auth"
	"chat-bot/internal/bot"
	"chat-bot/internal/config"
	"chat-bot/internal/logger"
	"chat-bot/internal/platform"
	"chat-bot/internal/platform/telegram"
	"chat-bot/internal/providers"
	"chat-bot/internal/providers/news"
	"chat-bot/internal/providers/price"
	"chat-bot/internal/providers/social"
	"chat-bot/internal/repository/bolt"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/repository/memory"
	"chat-bot/internal/repository/postgres"
	"chat-bot/internal/repository/redis"
	"chat-bot/internal/service/access"
	"chat-bot/internal/service/aggregator"
	"chat-bot/internal/service/casual"
	"chat-bot/internal/service/llm"
	"chat-bot/internal/service/report"
	"chat-bot/internal/service/scanner"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Centralized application configuration
	AppConfig *config.AppConfig
	// Database interface for data persistence
	DB db.Database
	// Rate counters; the main store unless Redis is selected
	Rates    db.RateStore
	Telegram *telegram.Client
	Backends *llm.Registry
	Casual   *casual.Machine
	Bot      *bot.Bot
	Janitor  *bot.Janitor
	Auth     *auth.Authenticator

	closers []func() error
}

// NewConfig wires every service from the application configuration
func NewConfig(ctx context.Context, appConfig *config.AppConfig) (*Config, error) {
	store, err := OpenStore(appConfig.Database)
	if err != nil {
		return nil, err
	}
	c := &Config{AppConfig: appConfig, DB: store, Rates: store}
	c.closers = append(c.closers, store.Close)

	if appConfig.RateLimit.Backend == "redis" {
		rates, err := redis.NewRateStore(appConfig.Redis, appConfig.RateLimit.Window)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect rate store: %w", err)
		}
		c.Rates = rates
		c.closers = append(c.closers, rates.Close)
	}

	history := platform.NewStoreHistory(store)
	c.Telegram = telegram.New(appConfig.Bot.Token, appConfig.Bot.APIBaseURL, history).
		WithRequestTimeout(appConfig.Bot.RequestTimeout)
	c.closers = append(c.closers, func() error { c.Telegram.Close(); return nil })

	c.Backends = llm.NewFromConfig(ctx, appConfig.LLM, appConfig.Models)
	c.Casual = casual.NewMachine(appConfig.Casual, c.Backends, store, casual.Options{
		HistoryDays:    appConfig.Limits.ChatHistoryDays,
		DefaultBackend: appConfig.LLM.DefaultBackend,
	})

	limiter := access.NewLimiter(c.Rates, appConfig.Bot.AdminIDs, appConfig.RateLimit.Requests, appConfig.RateLimit.Window)
	c.Janitor = bot.NewJanitor(limiter, store, appConfig.Limits.ChatRetentionDays)

	if err := os.MkdirAll(appConfig.Files.DownloadsPath, 0o755); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	c.Bot = bot.New(bot.Deps{
		Messenger: c.Telegram,
		History:   history,
		Store:     store,
		Limiter:   limiter,
		Policy: access.ResultPolicy{
			UserDefault:  appConfig.Limits.MaxResultsNonAdmin,
			AdminDefault: appConfig.Limits.MaxResultsAdmin,
			HardCap:      appConfig.Limits.MaxResultsHardCap,
		},
		News:     c.newsService(),
		Scanner:  scanner.NewScanner(history, appConfig.Scan),
		Casual:   c.Casual,
		Backends: c.Backends,
		Reports:  report.NewWriter(appConfig.Files.DownloadsPath),
	}, bot.OptionsFromConfig(appConfig))

	c.Auth = auth.NewAuthenticator(appConfig.API.JWTSecret, appConfig.API.TokenExpiration)
	return c, nil
}

func (c *Config) newsService() *aggregator.NewsService {
	p := c.AppConfig.Providers

	newsAPI := news.NewNewsAPI(p.NewsAPIKey, "", p.Timeout)
	newsData := news.NewNewsData(p.NewsDataAPIKey, "", p.Timeout)
	gnews := news.NewGNews(p.GNewsAPIKey, "", p.Timeout)
	guardian := news.NewGuardian(p.GuardianAPIKey, "", p.Timeout)
	cmc := price.NewCoinMarketCap(p.CoinMarketCapKey, "", p.Timeout)
	gecko := price.NewCoinGecko(p.CoinGeckoKey, "", p.Timeout)
	twitter := social.NewTwitter(p.TwitterBearer, "", p.Timeout)

	for _, closer := range []interface{ Close() }{newsAPI, newsData, gnews, guardian, cmc, gecko, twitter} {
		c.closers = append(c.closers, func() error { closer.Close(); return nil })
	}

	svc := aggregator.NewNewsService(p.Timeout,
		[]providers.Adapter[providers.NewsArticle]{newsAPI, newsData, gnews, guardian},
		[]providers.Adapter[providers.PriceQuote]{cmc, gecko},
		[]providers.Adapter[providers.SocialPost]{twitter},
	)
	logger.Log.WithFields(logrus.Fields{
		"news":   svc.NewsConfigured(),
		"social": svc.SocialConfigured(),
	}).Info("Content providers ready")
	return svc
}

// APIHandler returns the operator HTTP API, or nil when it is disabled
func (c *Config) APIHandler() http.Handler {
	if !c.AppConfig.API.APIEnabled() {
		return nil
	}
	h := handlers.NewOperatorHandlers(c.DB, c.Casual)
	return handlers.NewRouter(h, c.Auth, c.AppConfig.API.AllowedOrigin)
}

// Close releases every resource opened by NewConfig, newest first
func (c *Config) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the configured persistence backend. Postgres runs migrations on open.
func OpenStore(cfg config.DatabaseConfig) (db.Database, error) {
	switch cfg.Backend {
	case "memory":
		logger.Log.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	case "bolt":
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return store, nil
	case "postgres", "":
		store, err := postgres.NewPostgresDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}
