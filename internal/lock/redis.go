package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Zwalnia klucz tylko gdy nadal należy do właściciela tokenu
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Przedłuża TTL tylko kluczy, które nadal należą do właściciela tokenu
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis to blokady współdzielone między instancjami serwera (SET NX PX).
// TTL chroni przed kluczami osieroconymi przez proces, który padł. Dopóki
// blokada jest trzymana, klucze są przedłużane co ttl/3. Gdy przedłużenie
// się nie uda (np. Redis był niedostępny dłużej niż ttl), wzajemne
// wykluczanie nie jest już gwarantowane i jest to logowane.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// RedisOption konfiguruje Redis
type RedisOption func(*Redis)

// WithPrefix ustawia prefiks kluczy
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithTTL ustawia czas życia klucza między przedłużeniami. Tyle trwa
// przejęcie blokady po awarii procesu, który ją trzymał.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithRetryInterval ustawia odstęp między próbami zajęcia klucza
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.retry = d }
}

// NewRedis tworzy blokady na istniejącym kliencie Redis
func NewRedis(client *redis.Client, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("lock: klient redis jest wymagany")
	}
	r := &Redis{
		client: client,
		prefix: "digilib:lock",
		ttl:    30 * time.Second,
		retry:  25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ttl < 3*time.Millisecond || r.retry <= 0 {
		return nil, errors.New("lock: ttl musi mieć co najmniej 3ms, a odstęp ponowień być dodatni")
	}
	return r, nil
}

// Lock zajmuje wszystkie klucze, ponawiając próby do anulowania ctx
func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := r.acquire(ctx, r.key(k), token); err != nil {
			r.release(held, token)
			return nil, err
		}
		held = append(held, r.key(k))
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(held, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			r.release(held, token)
		})
	}, nil
}

// keepAlive przedłuża klucze aż do zamknięcia stop
func (r *Redis) keepAlive(keys []string, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.extend(keys, token)
		}
	}
}

func (r *Redis) extend(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
	defer cancel()
	for _, k := range keys {
		n, err := extendScript.Run(ctx, r.client, []string{k}, token, r.ttl.Milliseconds()).Int64()
		if err != nil {
			slog.Warn("nie udało się przedłużyć blokady", "key", k, "error", err)
			continue
		}
		if n == 0 {
			slog.Error("blokada wygasła przed zwolnieniem", "key", k)
		}
	}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock: błąd zajmowania %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retry):
		}
	}
}

func (r *Redis) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, r.client, []string{keys[i]}, token).Err(); err != nil {
			slog.Warn("nie udało się zwolnić blokady", "key", keys[i], "error", err)
		}
	}
}
