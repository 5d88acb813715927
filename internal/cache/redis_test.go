package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	t.Run("plain address", func(t *testing.T) {
		rdb := InitRedis(mr.Addr())
		require.NotNil(t, rdb)
		defer func() { _ = rdb.Close() }()
		assert.NoError(t, rdb.Ping(context.Background()).Err())
	})

	t.Run("url", func(t *testing.T) {
		rdb := InitRedis("redis://" + mr.Addr() + "/0")
		require.NotNil(t, rdb)
		_ = rdb.Close()
	})

	t.Run("invalid url", func(t *testing.T) {
		assert.Nil(t, InitRedis("redis://"+mr.Addr()+"/not-a-db"))
	})

	t.Run("unreachable", func(t *testing.T) {
		assert.Nil(t, InitRedis("127.0.0.1:1"))
	})
}
