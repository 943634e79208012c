package access

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter enforces a per (user, command) quota over a trailing window.
// Admins are never limited and their usage is never recorded.
// Check-then-record is not atomic; concurrent requests may slightly exceed the quota.
type Limiter struct {
	store  db.RateStore
	admins map[int64]struct{}
	quota  int
	window time.Duration
	now    func() time.Time
}

// NewLimiter creates a limiter over store
func NewLimiter(store db.RateStore, adminIDs []int64, quota int, window time.Duration) *Limiter {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Limiter{
		store:  store,
		admins: admins,
		quota:  quota,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the limiter's clock
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) IsAdmin(userID int64) bool {
	_, ok := l.admins[userID]
	return ok
}

func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) Quota() int { return l.quota }

// Allowed reports whether the user may run command now
func (l *Limiter) Allowed(ctx context.Context, userID int64, command string) (bool, error) {
	if l.IsAdmin(userID) {
		return true, nil
	}

	n, err := l.store.CountRateSince(ctx, userID, command, l.now().Add(-l.window))
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "command": command}).WithError(err).Error("Rate limit lookup failed")
		return false, apperr.StoreUnavailable("rate check", err)
	}
	return n < l.quota, nil
}

// Record appends one usage; admins are skipped
func (l *Limiter) Record(ctx context.Context, userID int64, command string) error {
	if l.IsAdmin(userID) {
		return nil
	}
	if err := l.store.AppendRate(ctx, db.RateRecord{UserID: userID, Command: command, CreatedAt: l.now()}); err != nil {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "command": command}).WithError(err).Error("Rate limit record failed")
		return apperr.StoreUnavailable("rate record", err)
	}
	return nil
}

// RetryAfter returns how long until the oldest in-window record expires; zero when unknown.
func (l *Limiter) RetryAfter(ctx context.Context, userID int64, command string) (time.Duration, error) {
	now := l.now()
	oldest, ok, err := l.store.OldestRateSince(ctx, userID, command, now.Add(-l.window))
	if err != nil {
		return 0, apperr.StoreUnavailable("rate retry", err)
	}
	if !ok {
		return 0, nil
	}
	wait := oldest.Add(l.window).Sub(now)
	if wait < 0 {
		return 0, nil
	}
	return wait, nil
}

// Check combines Allowed and RetryAfter into a RateLimited error when the quota is spent
func (l *Limiter) Check(ctx context.Context, userID int64, command string) error {
	ok, err := l.Allowed(ctx, userID, command)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	wait, err := l.RetryAfter(ctx, userID, command)
	if err != nil {
		logger.Log.WithError(err).Warn("Could not compute retry hint")
	}
	return apperr.RateLimited(command, wait)
}

// Purge deletes rate records that fell out of the window
func (l *Limiter) Purge(ctx context.Context) (int64, error) {
	return l.store.DeleteRateBefore(ctx, l.now().Add(-l.window))
}
