package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream_ReadBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	payload := map[string]interface{}{"deviceId": "dev-1", "level": 2}

	id, err := PublishJSONToStream(ctx, client, "factory-monitor:alarms", 100, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadRange(ctx, client, "factory-monitor:alarms", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "dev-1", decoded["deviceId"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestToStreamValue(t *testing.T) {
	cases := map[string]interface{}{
		"abc":     "abc",
		"42":      42,
		"7":       int64(7),
		"1.5":     1.5,
		"true":    true,
		`{"a":1}`: map[string]int{"a": 1},
	}
	for want, in := range cases {
		got, err := toStreamValue(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
