package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// UpdateDeduper remembers processed Telegram update IDs so a redelivered
// webhook does not run twice.
type UpdateDeduper interface {
	// Seen records the ID and reports whether it was already recorded.
	Seen(ctx context.Context, updateID int64) (bool, error)
}

// NewUpdateDeduper builds a Redis-backed deduper, falling back to an
// in-memory one when Redis is not reachable. The error reports the failed
// Redis connection; the returned deduper is always usable.
func NewUpdateDeduper(addr, pass string, db int, ttl time.Duration) (UpdateDeduper, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newMemoryUpdateDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryUpdateDeduper(ttl), err
	}

	return &redisUpdateDeduper{client: client, prefix: "tg:update", ttl: ttl}, nil
}

type redisUpdateDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisUpdateDeduper) Seen(ctx context.Context, updateID int64) (bool, error) {
	key := d.prefix + ":" + strconv.FormatInt(updateID, 10)
	created, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX fails to set when the key already exists.
	return !created, nil
}

type memoryUpdateDeduper struct {
	mu     sync.Mutex
	seen   map[int64]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryUpdateDeduper(ttl time.Duration) *memoryUpdateDeduper {
	return &memoryUpdateDeduper{
		seen:   make(map[int64]time.Time),
		ttl:    ttl,
		nextGC: time.Now().Add(ttl),
	}
}

func (d *memoryUpdateDeduper) Seen(_ context.Context, updateID int64) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[updateID]; ok && exp.After(now) {
		return true, nil
	}
	d.seen[updateID] = now.Add(d.ttl)
	d.gc(now)
	return false, nil
}

// gc sweeps expired entries at most once per TTL window. Caller holds the
// lock.
func (d *memoryUpdateDeduper) gc(now time.Time) {
	if now.Before(d.nextGC) {
		return
	}
	for id, exp := range d.seen {
		if exp.Before(now) {
			delete(d.seen, id)
		}
	}
	d.nextGC = now.Add(d.ttl)
}

// readUpdateID peels update_id out of a webhook body, restoring the body for
// the handler behind the middleware. Zero means the ID could not be read.
func readUpdateID(req *http.Request) int64 {
	if req.Body == nil {
		return 0
	}
	rawBody, err := io.ReadAll(req.Body)
	if err != nil {
		return 0
	}
	req.Body = io.NopCloser(bytes.NewBuffer(rawBody))

	var payload struct {
		UpdateID int64 `json:"update_id"`
	}
	if json.Unmarshal(rawBody, &payload) != nil {
		return 0
	}
	return payload.UpdateID
}

// TelegramUpdateDedup drops duplicate Telegram webhook updates by update_id.
// Duplicates get a 200 so Telegram stops retrying. Bodies without a readable
// update_id pass through untouched.
func TelegramUpdateDedup(deduper UpdateDeduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}

			updateID := readUpdateID(c.Request())
			if updateID == 0 {
				return next(c)
			}

			duplicate, err := deduper.Seen(c.Request().Context(), updateID)
			if err != nil {
				return next(c)
			}
			if duplicate {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
