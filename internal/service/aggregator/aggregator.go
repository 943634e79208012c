package aggregator

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"chat-bot/internal/providers"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Outcome records what one provider contributed to a fan-out
type Outcome struct {
	Provider string
	Count    int
	Err      error
	Elapsed  time.Duration
}

// Result is a merged fan-out result
type Result[T providers.Record] struct {
	Records  []T
	Outcomes []Outcome
}

// Aggregator fans a query out to every configured adapter and merges the answers.
type Aggregator[T providers.Record] struct {
	adapters []providers.Adapter[T]
	timeout  time.Duration
}

// New creates an aggregator; registration order decides merge precedence.
func New[T providers.Record](timeout time.Duration, adapters ...providers.Adapter[T]) *Aggregator[T] {
	return &Aggregator[T]{adapters: adapters, timeout: timeout}
}

// Active returns the configured adapters in registration order
func (a *Aggregator[T]) Active() []providers.Adapter[T] {
	var active []providers.Adapter[T]
	for _, ad := range a.adapters {
		if ad.Configured() {
			active = append(active, ad)
		}
	}
	return active
}

// Search queries all configured adapters concurrently, waits for all of them, then merges.
// Provider failures and timeouts contribute nothing and never fail the search.
func (a *Aggregator[T]) Search(ctx context.Context, query string, limit int) Result[T] {
	active := a.Active()
	if len(active) == 0 || limit <= 0 {
		return Result[T]{}
	}

	share := (limit + len(active) - 1) / len(active)
	if share < 1 {
		share = 1
	}

	batches := make([][]T, len(active))
	outcomes := make([]Outcome, len(active))

	g, gctx := errgroup.WithContext(ctx)
	for i, ad := range active {
		g.Go(func() error {
			start := time.Now()
			callCtx := gctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, a.timeout)
				defer cancel()
			}

			records, err := ad.Fetch(callCtx, query, share)
			outcomes[i] = Outcome{Provider: ad.Name(), Count: len(records), Err: err, Elapsed: time.Since(start)}
			if err != nil {
				logger.Log.WithFields(logrus.Fields{
					"provider": ad.Name(),
					"query":    query,
					"elapsed":  outcomes[i].Elapsed.String(),
				}).WithError(err).Warn("Provider failed, continuing without it")
				outcomes[i].Count = 0
				return nil
			}
			batches[i] = records
			return nil
		})
	}
	_ = g.Wait()

	merged := Merge(batches...)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return Result[T]{Records: merged, Outcomes: outcomes}
}

// Merge concatenates batches in order, drops records with an empty key, keeps the first
// record seen for each key and sorts newest first. Ties keep merge order.
func Merge[T providers.Record](batches ...[]T) []T {
	seen := make(map[string]struct{})
	var out []T
	for _, batch := range batches {
		for _, r := range batch {
			k := r.Key()
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders records with a parseable time by that time, descending, followed by
// the rest ordered by their raw timestamp string, descending.
func SortNewestFirst[T providers.Record](records []T) {
	type key struct {
		t   time.Time
		raw string
	}
	keys := make([]key, len(records))
	idx := make([]int, len(records))
	for i, r := range records {
		t, raw := r.Timestamp()
		keys[i] = key{t: t, raw: raw}
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		switch {
		case !a.t.IsZero() && !b.t.IsZero():
			return a.t.After(b.t)
		case !a.t.IsZero():
			return true
		case !b.t.IsZero():
			return false
		default:
			return a.raw > b.raw
		}
	})
	sorted := make([]T, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

// ErrNoResult is returned by First when no adapter produced a record
var ErrNoResult = errors.New("no provider returned a result")

// First tries adapters in order and returns the first record obtained.
// Unconfigured adapters are skipped; failures fall through to the next adapter.
func First[T providers.Record](ctx context.Context, timeout time.Duration, query string, chain ...providers.Adapter[T]) (T, string, error) {
	var zero T
	var lastErr error
	for _, ad := range chain {
		if !ad.Configured() {
			continue
		}
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		records, err := ad.Fetch(callCtx, query, 1)
		cancel()
		if err == nil && len(records) > 0 {
			return records[0], ad.Name(), nil
		}
		if err == nil {
			err = ErrNoResult
		}
		logger.Log.WithFields(logrus.Fields{"provider": ad.Name(), "query": query}).WithError(err).Warn("Fallback provider failed")
		lastErr = err
	}
	if lastErr == nil {
		return zero, "", apperr.New(apperr.KindUnconfigured, "fallback", ErrNoResult)
	}
	return zero, "", apperr.New(apperr.KindNotFound, "fallback", lastErr)
}
