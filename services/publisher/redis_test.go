package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher(ctx, "localhost:6379", 0, "test_stream_parks", 100)
	defer publisher.Close()

	// Test if Redis is available
	if err := publisher.Ping(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	// Create a subscriber to verify the message was published
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	err := client.XGroupCreateMkStream(ctx, "test_stream_parks", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		t.Fatal(err)
	}

	messages := make(chan string, 1)

	go func() {
		message, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_parks", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    0,
		}).Result()
		if err != nil {
			return
		}
		messages <- message[0].Messages[0].Values[ProgressKey].(string)
	}()

	time.Sleep(100 * time.Millisecond)

	err = publisher.Publish(ProgressKey, []byte("test_message"))
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		// The message should be base64 encoded
		assert.Equal(t, "dGVzdF9tZXNzYWdl", msg) // base64 of "test_message"
	case <-time.After(1 * time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, publisher.TrimStreams())
}

func TestProgress_Encode(t *testing.T) {
	event := Progress{
		Run:       "allparks_06-15-2020_to_06-30-2020",
		Unit:      "Steamboat Lake",
		Status:    "done",
		Done:      3,
		Total:     41,
		Records:   188,
		Timestamp: time.Date(2020, time.June, 15, 12, 0, 0, 0, time.UTC),
	}

	data, err := event.Encode()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Steamboat Lake", decoded["unit"])
	assert.Equal(t, float64(41), decoded["total"])
	assert.NotContains(t, decoded, "error")

	encoded := base64.StdEncoding.EncodeToString(data)
	assert.NotEmpty(t, encoded)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(ProgressKey, []byte("x")))
	assert.NoError(t, p.TrimStreams())
	assert.NoError(t, p.Close())
}
