package bot

import (
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/service/access"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Janitor deletes rate records outside the quota window and chat history past retention
type Janitor struct {
	limiter   *access.Limiter
	chats     db.ChatStore
	retention time.Duration
	now       func() time.Time
}

func NewJanitor(limiter *access.Limiter, chats db.ChatStore, retentionDays int) *Janitor {
	return &Janitor{
		limiter:   limiter,
		chats:     chats,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// WithClock replaces the janitor's clock
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// Purge runs one cleanup pass
func (j *Janitor) Purge(ctx context.Context) (rates, messages int64, err error) {
	rates, err = j.limiter.Purge(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to purge rate records: %w", err)
	}
	if j.retention > 0 {
		messages, err = j.chats.DeleteChatMessagesBefore(ctx, j.now().Add(-j.retention))
		if err != nil {
			return rates, 0, fmt.Errorf("failed to purge chat history: %w", err)
		}
	}
	return rates, messages, nil
}

// Run purges every interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rates, messages, err := j.Purge(ctx)
			if err != nil {
				logger.Log.WithError(err).Error("Janitor pass failed")
				continue
			}
			logger.Log.WithFields(logrus.Fields{"rate_records": rates, "chat_messages": messages}).Info("Janitor pass completed")
		}
	}
}
