package redis

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/config"
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ db.RateStore = (*RateStore)(nil)

const keyPrefix = "rate:"

// RateStore keeps rate records in one sorted set per (user, command), scored by unix nanoseconds.
type RateStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRateStore connects to Redis and verifies the connection.
// Keys expire after ttl without new records.
func NewRateStore(cfg config.RedisConfig, ttl time.Duration) (*RateStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Log.WithField("addr", cfg.Addr).Info("Connected to Redis rate store")
	return &RateStore{rdb: rdb, ttl: ttl}, nil
}

// NewRateStoreFromClient wraps an existing client
func NewRateStoreFromClient(rdb *goredis.Client, ttl time.Duration) *RateStore {
	return &RateStore{rdb: rdb, ttl: ttl}
}

func (s *RateStore) Close() error {
	return s.rdb.Close()
}

func rateKey(userID int64, command string) string {
	return keyPrefix + strconv.FormatInt(userID, 10) + ":" + command
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func (s *RateStore) AppendRate(ctx context.Context, rec db.RateRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	key := rateKey(rec.UserID, rec.Command)

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(rec.CreatedAt.UnixNano()), Member: uuid.New().String()})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.StoreUnavailable("redis append rate", err)
	}
	return nil
}

func (s *RateStore) CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, rateKey(userID, command), score(since), "+inf").Result()
	if err != nil {
		return 0, apperr.StoreUnavailable("redis count rate", err)
	}
	return int(n), nil
}

func (s *RateStore) OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, rateKey(userID, command), &goredis.ZRangeBy{
		Min:   score(since),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, apperr.StoreUnavailable("redis oldest rate", err)
	}
	if len(zs) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(zs[0].Score)), true, nil
}

// DeleteRateBefore trims every counter set found by SCAN.
func (s *RateStore) DeleteRateBefore(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		n, err := s.rdb.ZRemRangeByScore(ctx, iter.Val(), "-inf", "("+score(before)).Result()
		if err != nil {
			return removed, apperr.StoreUnavailable("redis purge rate", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, apperr.StoreUnavailable("redis purge rate", err)
	}

	logger.Log.WithFields(logrus.Fields{"removed": removed}).Debug("Purged redis rate records")
	return removed, nil
}
