package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digilib/internal/config"
	"digilib/internal/lock"
	"digilib/internal/middleware"
	"digilib/internal/notify"
	"digilib/internal/ratelimit"
	"digilib/internal/store/memory"
	"digilib/internal/store/sqlstore"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() config.Config {
	cfg := config.Default()
	cfg.JWTSecret = "sekret-testowy-0123456789"
	return cfg
}

func TestOpenInProcess(t *testing.T) {
	deps, err := Open(context.Background(), testConfig(), quiet)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.IsType(t, &memory.Store{}, deps.Store)
	assert.IsType(t, &lock.Memory{}, deps.Locker)
	assert.IsType(t, &ratelimit.MemoryFixedWindow{}, deps.Limiter)
	assert.IsType(t, notify.Log{}, deps.Notifier)
	assert.IsType(t, &middleware.JWTAuthenticator{}, deps.Auth)
	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.Firebase)
}

func TestOpenWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	deps, err := Open(context.Background(), cfg, quiet)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.IsType(t, &lock.Redis{}, deps.Locker)
	assert.IsType(t, &ratelimit.RedisFixedWindow{}, deps.Limiter)
	require.IsType(t, notify.Fanout{}, deps.Notifier)
	assert.Len(t, deps.Notifier.(notify.Fanout), 2)

	require.NoError(t, deps.Notifier.Publish(context.Background(), notify.Event{Type: notify.LoanOpened, BookID: "b1"}))
	entries, err := deps.Redis.XLen(context.Background(), cfg.EventStream).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, entries)
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.RedisAddr = addr
	_, err := Open(context.Background(), cfg, quiet)
	assert.ErrorContains(t, err, "Redis")
}

func TestOpenRequiresTokenVerifier(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	_, err := Open(context.Background(), cfg, quiet)
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "digilib.db")
	st, err := OpenStore(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, st)
	require.NoError(t, st.Close())

	cfg.StoreDriver = config.DriverFirestore
	_, err = OpenStore(ctx, cfg, nil)
	assert.ErrorContains(t, err, "firestore")

	cfg.StoreDriver = "mongo"
	_, err = OpenStore(ctx, cfg, nil)
	assert.Error(t, err)
}
