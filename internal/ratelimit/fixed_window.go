// Package ratelimit ogranicza liczbę żądań na klucz (użytkownik albo IP)
// w stałym oknie czasowym.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter decyduje czy kolejne żądanie klucza mieści się w limicie
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RedisFixedWindow to limiter współdzielony przez wszystkie instancje serwera.
// Przy błędach Redis odrzuca żądania.
type RedisFixedWindow struct {
	limit  int
	window time.Duration
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisFixedWindow tworzy limiter na istniejącym kliencie Redis
func NewRedisFixedWindow(client *redis.Client, prefix string, limit int, window time.Duration) (*RedisFixedWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("limiter wymaga dodatniego limitu i okna")
	}
	if client == nil {
		return nil, errors.New("limiter wymaga klienta Redis")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "digilib:ratelimit"
	}
	return &RedisFixedWindow{
		limit:  limit,
		window: window,
		client: client,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// NewRedisFixedWindowFromAddr tworzy limiter z własnym klientem Redis
func NewRedisFixedWindowFromAddr(addr, password, prefix string, limit int, window time.Duration) (*RedisFixedWindow, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("limiter wymaga adresu Redis")
	}
	return NewRedisFixedWindow(redis.NewClient(&redis.Options{Addr: addr, Password: password}), prefix, limit, window)
}

// Allow zwraca true gdy klucz mieści się w limicie
func (l *RedisFixedWindow) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, normalizeKey(key), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return n <= int64(l.limit)
}

// MemoryFixedWindow to limiter jednej instancji, gdy Redis nie jest skonfigurowany
type MemoryFixedWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	slot    int64
	counter map[string]int
}

// NewMemoryFixedWindow tworzy limiter w pamięci procesu
func NewMemoryFixedWindow(limit int, window time.Duration) (*MemoryFixedWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("limiter wymaga dodatniego limitu i okna")
	}
	return &MemoryFixedWindow{
		limit:   limit,
		window:  window,
		now:     time.Now,
		counter: map[string]int{},
	}, nil
}

// Allow zwraca true gdy klucz mieści się w limicie
func (l *MemoryFixedWindow) Allow(_ context.Context, key string) bool {
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if slot != l.slot {
		// nowe okno, stare liczniki są już bez znaczenia
		l.slot = slot
		clear(l.counter)
	}
	key = normalizeKey(key)
	l.counter[key]++
	return l.counter[key] <= l.limit
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
