package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
)

func TestTruncateToBucket(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 37, 12, 0, time.UTC)

	tests := []struct {
		window time.Duration
		want   string
	}{
		{time.Minute, "202403091437"},
		{5 * time.Minute, "202403091435"},
		{time.Hour, "2024030914"},
		{24 * time.Hour, "20240309"},
		{0, "202403091437"},
	}

	for _, tt := range tests {
		t.Run(tt.window.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, truncateToBucket(at, tt.window))
		})
	}
}

func TestTruncateToBucket_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 3, 9, 16, 0, 0, 0, loc)
	assert.Equal(t, "2024030914", truncateToBucket(at, time.Hour))
}

func TestBuildKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 37, 0, 0, time.UTC)
	assert.Equal(t, "v:42:execution_completed:2024030914", buildKey(42, event.KindExecutionCompleted, at, time.Hour))
}

func TestRedisSink_WriteFailsWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	sink := NewRedisSink(client, Config{Window: time.Hour, Retention: time.Hour}, nil)
	events := []event.Event{{
		ResourceID: 1,
		Timestamp:  time.Now(),
		Data:       event.FundsDeposited{Amount: coin.NewInt64("uosmo", 10)},
	}}

	err := sink.Write(context.Background(), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis pipeline")

	// Observe swallows the failure
	sink.Observe(context.Background(), events)

	require.NoError(t, sink.Write(context.Background(), nil))
}
