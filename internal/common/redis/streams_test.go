package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStreamRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestCreateConsumerGroup_FreshStream(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	// stream 尚不存在，首次建组必须成功
	err := CreateConsumerGroup(ctx, client, "test:stream", "test-group")

	require.NoError(t, err)

	// 建组后发布的消息可以按组读到
	id, err := PublishToStream(ctx, client, "test:stream", map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "test:stream", "test-group", "consumer-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
}

func TestCreateConsumerGroup_AlreadyExists(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "test:stream", "test-group"))

	// 重复建组（BUSYGROUP）不报错
	err := CreateConsumerGroup(ctx, client, "test:stream", "test-group")

	require.NoError(t, err)
}

func TestPublishReadAck_Roundtrip(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "test:stream", "test-group"))

	id, err := PublishJSONToStream(ctx, client, "test:stream", map[string]interface{}{
		"patient_id": "patient-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadFromStream(ctx, client, "test:stream", "test-group", "consumer-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Contains(t, msgs[0].Values, "data")

	// 确认后 pending 清零
	require.NoError(t, AckMessage(ctx, client, "test:stream", "test-group", msgs[0].ID))

	pending, err := client.XPending(ctx, "test:stream", "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}
