package main

import (
	"chat-bot/internal/app"
	"chat-bot/internal/auth"
	"chat-bot/internal/bot"
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/repository/redis"
	"chat-bot/internal/service/access"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var tokenOperator string

// migrateCmd applies schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Opens the configured store. Postgres applies its embedded migrations on open; other backends need none.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := app.OpenStore(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		logger.Log.WithField("backend", cfg.Database.Backend).Info("Store is up to date")
		return nil
	},
}

// purgeCmd runs one retention pass
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired rate records and old chat history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := app.OpenStore(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		var rates db.RateStore = store
		if cfg.RateLimit.Backend == "redis" {
			rs, err := redis.NewRateStore(cfg.Redis, cfg.RateLimit.Window)
			if err != nil {
				return fmt.Errorf("failed to connect rate store: %w", err)
			}
			defer rs.Close()
			rates = rs
		}

		limiter := access.NewLimiter(rates, cfg.Bot.AdminIDs, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		removedRates, removedMessages, err := bot.NewJanitor(limiter, store, cfg.Limits.ChatRetentionDays).Purge(context.Background())
		if err != nil {
			return err
		}
		logger.Log.WithFields(logrus.Fields{
			"rate_records":  removedRates,
			"chat_messages": removedMessages,
		}).Info("Purge completed")
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rate records and %d chat messages\n", removedRates, removedMessages)
		return nil
	},
}

// tokenCmd mints a bearer token for the operator API
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an operator API bearer token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := auth.NewAuthenticator(cfg.API.JWTSecret, cfg.API.TokenExpiration).GenerateToken(tokenOperator)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
