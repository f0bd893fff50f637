package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("v1", "s=true;w=false")
	assert.True(t, strings.HasPrefix(a, "sipeta:feed:v1:"))
	assert.Equal(t, a, Key("v1", "s=true;w=false"))
	assert.NotEqual(t, a, Key("v2", "s=true;w=false"))
	assert.NotEqual(t, a, Key("v1", "s=true;w=true"))
}

func TestFeedCache_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*FeedCache{
		"nil":       nil,
		"no client": NewFeedCache(nil, time.Minute),
		"zero ttl":  NewFeedCache(OpenRedis("localhost:6379", "", 0), 0),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, "v1", "k", []byte("body")))
			b, ok, err := c.Get(ctx, "v1", "k")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, b)
			assert.NoError(t, c.Ping(ctx))
		})
	}
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}
