package database

import (
	"net"
	"strconv"
	"testing"
	"time"

	"smartprep_backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(t *testing.T, addr string) *config.RedisConfig {
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return &config.RedisConfig{Host: host, Port: port, PoolSize: 2, DialTimeout: time.Second}
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := InitRedis(redisConfig(t, mr.Addr()))
	require.NoError(t, err)
	defer rdb.Close()
	assert.Equal(t, 2, rdb.Options().PoolSize)
}

func TestInitRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr.Addr())
	mr.Close()

	_, err := InitRedis(cfg)
	assert.ErrorContains(t, err, "ping redis")
}
