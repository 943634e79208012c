package bolt

import (
	"bytes"
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var _ db.Database = (*Store)(nil)

var (
	usersBucket    = []byte("users")
	ratesBucket    = []byte("rate_limits")
	chatsBucket    = []byte("chat_history")
	searchesBucket = []byte("search_results")
)

// Store implements db.Database on a single BoltDB file.
// Chat history and search results use one nested bucket per chat or user,
// keyed by big-endian creation time so cursors walk in time order.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening bolt database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{usersBucket, ratesBucket, chatsBucket, searchesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("error creating buckets: %w", err)
	}

	logger.Log.WithField("path", path).Info("Opened bolt database")
	return &Store{db: bdb}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func idKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

// timeKey orders by creation time and stays unique through the suffix.
func timeKey(t time.Time, suffix string) []byte {
	k := make([]byte, 8, 8+len(suffix))
	var nanos uint64
	if t.After(time.Unix(0, 0)) {
		nanos = uint64(t.UnixNano())
	}
	binary.BigEndian.PutUint64(k, nanos)
	return append(k, suffix...)
}

func keyTime(k []byte) time.Time {
	if len(k) < 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(k[:8])))
}

func ratePrefix(userID int64, command string) []byte {
	return []byte(strconv.FormatInt(userID, 10) + "|" + command + "|")
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.StoreUnavailable(op, err)
}

func (s *Store) UpsertUser(ctx context.Context, user db.User) (*db.User, error) {
	var out db.User
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if raw := b.Get(idKey(user.ID)); raw != nil {
			if err := json.Unmarshal(raw, &out); err != nil {
				return err
			}
			out.Username = user.Username
			out.FirstName = user.FirstName
			out.Active = true
		} else {
			out = user
			if out.PreferredBackend == "" {
				out.PreferredBackend = db.DefaultBackend
			}
			if out.JoinedAt.IsZero() {
				out.JoinedAt = time.Now()
			}
			out.Active = true
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return b.Put(idKey(user.ID), raw)
	})
	if err != nil {
		return nil, storeErr("upsert user", err)
	}
	return &out, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*db.User, error) {
	var out db.User
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(usersBucket).Get(idKey(id))
		if raw == nil {
			return apperr.ErrNotFound
		}
		return json.Unmarshal(raw, &out)
	})
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return &out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(k, v []byte) error {
			var u db.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			users = append(users, u)
			return nil
		})
	})
	if err != nil {
		return nil, storeErr("list users", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].JoinedAt.Before(users[j].JoinedAt) })
	return users, nil
}

func (s *Store) SetPreferredBackend(ctx context.Context, id int64, backend string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		raw := b.Get(idKey(id))
		if raw == nil {
			return apperr.ErrNotFound
		}
		var u db.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return err
		}
		u.PreferredBackend = backend
		raw, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), raw)
	})
	return storeErr("set preferred backend", err)
}

func (s *Store) AppendRate(ctx context.Context, rec db.RateRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	key := append(ratePrefix(rec.UserID, rec.Command), timeKey(rec.CreatedAt, uuid.New().String())...)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ratesBucket).Put(key, timeKey(rec.CreatedAt, ""))
	})
	return storeErr("append rate", err)
}

func (s *Store) CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
	n := 0
	prefix := ratePrefix(userID, command)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(ratesBucket).Cursor()
		for k, _ := c.Seek(append(prefix, timeKey(since, "")...)); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, storeErr("count rate", err)
}

func (s *Store) OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error) {
	var oldest time.Time
	found := false
	prefix := ratePrefix(userID, command)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(ratesBucket).Cursor()
		k, _ := c.Seek(append(prefix, timeKey(since, "")...))
		if k != nil && bytes.HasPrefix(k, prefix) {
			oldest = keyTime(k[len(prefix):])
			found = true
		}
		return nil
	})
	return oldest, found, storeErr("oldest rate", err)
}

func (s *Store) DeleteRateBefore(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ratesBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if keyTime(v).Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, storeErr("purge rate", err)
}

func (s *Store) AppendChatMessage(ctx context.Context, msg db.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		chat, err := tx.Bucket(chatsBucket).CreateBucketIfNotExists(idKey(msg.ChatID))
		if err != nil {
			return err
		}
		return chat.Put(timeKey(msg.CreatedAt, msg.ID), raw)
	})
	return storeErr("append chat message", err)
}

func (s *Store) ChatMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]db.ChatMessage, error) {
	msgs := make([]db.ChatMessage, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		chat := tx.Bucket(chatsBucket).Bucket(idKey(chatID))
		if chat == nil {
			return nil
		}
		c := chat.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if keyTime(k).Before(since) || (limit > 0 && len(msgs) >= limit) {
				break
			}
			var m db.ChatMessage
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("chat history", err)
	}
	return msgs, nil
}

func (s *Store) DeleteChatMessagesBefore(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(chatsBucket)
		var emptied [][]byte
		err := root.ForEach(func(name, _ []byte) error {
			chat := root.Bucket(name)
			if chat == nil {
				return nil
			}
			c := chat.Cursor()
			for k, _ := c.First(); k != nil && keyTime(k).Before(before); k, _ = c.First() {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
			if k, _ := c.First(); k == nil {
				emptied = append(emptied, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range emptied {
			if err := root.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	return removed, storeErr("purge chat history", err)
}

func (s *Store) Rooms(ctx context.Context) ([]db.Room, error) {
	var rooms []db.Room
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(chatsBucket)
		return root.ForEach(func(name, _ []byte) error {
			chat := root.Bucket(name)
			if chat == nil {
				return nil
			}
			_, v := chat.Cursor().Last()
			if v == nil {
				return nil
			}
			var m db.ChatMessage
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			rooms = append(rooms, db.Room{ID: m.ChatID, Title: m.ChatTitle, Type: m.ChatType, LastMessageAt: m.CreatedAt})
			return nil
		})
	})
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastMessageAt.Equal(rooms[j].LastMessageAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
	return rooms, nil
}

func (s *Store) AppendSearchResult(ctx context.Context, res db.SearchResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		user, err := tx.Bucket(searchesBucket).CreateBucketIfNotExists(idKey(res.UserID))
		if err != nil {
			return err
		}
		return user.Put(timeKey(res.CreatedAt, res.ID), raw)
	})
	return storeErr("append search result", err)
}

func (s *Store) RecentSearchResults(ctx context.Context, userID int64, kind string, n int) ([]db.SearchResult, error) {
	results := make([]db.SearchResult, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		user := tx.Bucket(searchesBucket).Bucket(idKey(userID))
		if user == nil {
			return nil
		}
		c := user.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if n > 0 && len(results) >= n {
				break
			}
			var r db.SearchResult
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if kind != "" && r.Kind != kind {
				continue
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("recent search results", err)
	}
	return results, nil
}

func (s *Store) CountSearchResultsSince(ctx context.Context, kind string, since time.Time) (int, error) {
	total := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(searchesBucket)
		return root.ForEach(func(name, _ []byte) error {
			user := root.Bucket(name)
			if user == nil {
				return nil
			}
			c := user.Cursor()
			for k, v := c.Seek(timeKey(since, "")); k != nil; k, v = c.Next() {
				if kind == "" {
					total++
					continue
				}
				var r db.SearchResult
				if err := json.Unmarshal(v, &r); err != nil {
					return err
				}
				if r.Kind == kind {
					total++
				}
			}
			return nil
		})
	})
	return total, storeErr("count search results", err)
}
