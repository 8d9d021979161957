// Package app składa zależności usługi na podstawie konfiguracji:
// magazyn danych, blokady, limit żądań, zdarzenia i uwierzytelnianie.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"digilib/internal/config"
	"digilib/internal/firebase"
	"digilib/internal/lock"
	"digilib/internal/middleware"
	"digilib/internal/notify"
	"digilib/internal/ratelimit"
	"digilib/internal/store"
	"digilib/internal/store/memory"
	"digilib/internal/store/sqlstore"
)

const eventStreamMaxLen = 10000

// Deps to zależności współdzielone przez serwer i narzędzia
type Deps struct {
	Store    store.Store
	Locker   lock.Locker
	Limiter  ratelimit.Limiter
	Notifier notify.Notifier
	Auth     middleware.Authenticator
	Firebase *firebase.Client // nil gdy Firebase nie jest skonfigurowany
	Redis    *redis.Client    // nil gdy REDIS_ADDR jest pusty
}

// Open tworzy zależności. Przy błędzie zamyka to, co zdążyło się otworzyć.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (deps *Deps, err error) {
	deps = &Deps{}
	defer func() {
		if err != nil {
			deps.Close()
			deps = nil
		}
	}()

	creds := firebase.Credentials{Path: cfg.FirebaseCredentialsPath, JSON: cfg.FirebaseCredentialsJSON}
	if creds.Configured() {
		deps.Firebase, err = firebase.InitFirebase(ctx, creds)
		if err != nil {
			return deps, err
		}
	}

	if deps.Store, err = OpenStore(ctx, cfg, deps.Firebase); err != nil {
		return deps, err
	}

	if cfg.RedisAddr != "" {
		deps.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err = deps.Redis.Ping(ctx).Err(); err != nil {
			return deps, fmt.Errorf("błąd połączenia z Redis %s: %w", cfg.RedisAddr, err)
		}
		if err = deps.openRedisServices(cfg, logger); err != nil {
			return deps, err
		}
		logger.Info("blokady, limit żądań i zdarzenia w Redis", "addr", cfg.RedisAddr)
	} else {
		deps.Locker = lock.NewMemory()
		deps.Notifier = notify.Log{Logger: logger}
		if cfg.RateLimit > 0 {
			if deps.Limiter, err = ratelimit.NewMemoryFixedWindow(cfg.RateLimit, cfg.RateWindow); err != nil {
				return deps, err
			}
		}
		logger.Warn("brak REDIS_ADDR - blokady działają tylko w obrębie jednego procesu")
	}

	if deps.Auth, err = openAuth(cfg, deps.Firebase); err != nil {
		return deps, err
	}
	return deps, nil
}

func (d *Deps) openRedisServices(cfg config.Config, logger *slog.Logger) error {
	locker, err := lock.NewRedis(d.Redis)
	if err != nil {
		return err
	}
	d.Locker = locker

	stream, err := notify.NewRedisStream(d.Redis, cfg.EventStream, eventStreamMaxLen)
	if err != nil {
		return err
	}
	d.Notifier = notify.Fanout{notify.Log{Logger: logger}, stream}

	if cfg.RateLimit > 0 {
		limiter, err := ratelimit.NewRedisFixedWindow(d.Redis, "digilib:ratelimit", cfg.RateLimit, cfg.RateWindow)
		if err != nil {
			return err
		}
		d.Limiter = limiter
	}
	return nil
}

// OpenStore otwiera magazyn wybrany w konfiguracji
func OpenStore(ctx context.Context, cfg config.Config, fb *firebase.Client) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite, config.DriverPostgres:
		dsn := cfg.SQLitePath
		if cfg.StoreDriver == config.DriverPostgres {
			dsn = cfg.DatabaseURL
		}
		st, err := sqlstore.Open(ctx, cfg.StoreDriver, dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverFirestore:
		if fb == nil {
			return nil, errors.New("sterownik firestore wymaga FIREBASE_CREDENTIALS_PATH lub FIREBASE_CREDENTIALS_JSON")
		}
		return firebase.NewStore(fb.Firestore), nil
	default:
		return nil, fmt.Errorf("nieznany sterownik magazynu %q", cfg.StoreDriver)
	}
}

// openAuth wybiera weryfikację tokenów Firebase, a bez niej podpisane JWT
func openAuth(cfg config.Config, fb *firebase.Client) (middleware.Authenticator, error) {
	if fb != nil {
		return firebase.NewTokenVerifier(fb.Auth), nil
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("brak JWT_SECRET i konfiguracji Firebase - nie ma czym weryfikować tokenów")
	}
	a, err := middleware.NewJWTAuthenticator(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close zamyka wszystkie otwarte połączenia
func (d *Deps) Close() error {
	var errs []error
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Firebase != nil {
		errs = append(errs, d.Firebase.Close())
	}
	return errors.Join(errs...)
}
