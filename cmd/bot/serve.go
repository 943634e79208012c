package main

import (
	"chat-bot/internal/app"
	"chat-bot/internal/bot"
	"chat-bot/internal/logger"
	"chat-bot/internal/platform/telegram"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serveCmd runs the bot until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll for chat updates and answer commands",
	Long: `Starts the long-polling update loop, the retention janitor and, when
API_PORT and JWT_SECRET are set, the operator HTTP API.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Log.Info("Received shutdown signal")
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Bot.Token == "" {
		return errors.New("BOT_TOKEN must be set to serve")
	}

	deps, err := app.NewConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	me, err := deps.Telegram.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot account: %w", err)
	}
	deps.Bot.SetIdentity(me.ID, me.Username)
	logger.Log.WithFields(logrus.Fields{
		"bot_id":   me.ID,
		"username": me.Username,
		"admins":   len(cfg.Bot.AdminIDs),
	}).Info("Bot identity confirmed")

	go deps.Janitor.Run(ctx, cfg.Limits.JanitorInterval)

	if handler := deps.APIHandler(); handler != nil {
		srv := &http.Server{
			Addr:              ":" + cfg.API.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Log.WithField("port", cfg.API.Port).Info("Operator API starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.WithError(err).Error("Operator API failed")
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Log.Info("Polling for updates")
	dispatcher := bot.NewDispatcher(deps.Bot.Handle)
	err = deps.Telegram.Poll(ctx, cfg.Bot.PollTimeout, func(ctx context.Context, u telegram.Update) {
		msg, ok := telegram.ToPlatform(u.Message)
		if !ok {
			return
		}
		dispatcher.Dispatch(ctx, msg)
	})
	dispatcher.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Log.Info("Bot stopped")
		return nil
	}
	return err
}
