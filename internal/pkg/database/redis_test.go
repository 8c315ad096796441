package database

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-lumina/lumina/internal/config"
)

func redisConfigFor(t *testing.T, addr string) config.RedisConfig {
	t.Helper()
	host, portStr, found := strings.Cut(addr, ":")
	require.True(t, found)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.RedisConfig{Host: host, Port: port}
}

func TestNewRedisVerifiesConnection(t *testing.T) {
	mr := miniredis.RunT(t)

	db, err := NewRedis(context.Background(), redisConfigFor(t, mr.Addr()))

	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set(context.Background(), "k", "v", time.Minute))
	val, err := db.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfigFor(t, mr.Addr())
	mr.Close()

	_, err := NewRedis(context.Background(), cfg)

	assert.Error(t, err)
}

// A degraded process keeps a usable client handle: construction does no
// network I/O, each operation fails on its own until the server is back.
func TestNewRedisClientDefersConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfigFor(t, mr.Addr())
	mr.Close()

	db := NewRedisClient(cfg)
	require.NotNil(t, db.Client)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := db.GetInt64(ctx, "lumina:quota:2026-01-01")
	assert.Error(t, err)
}
