package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresOrderSequence_Mock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	seq := repository.NewPostgresOrderSequence(mockDB.DB)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	mockDB.ExpectQuery("INSERT INTO purchase_order_sequences").
		WithArgs("2026-03-14").
		WillReturnRows(testutil.MockRows("last_value").AddRow(int64(7)))

	n, err := seq.Next(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	mockDB.ExpectationsWereMet(t)
}

// assertDistinctRun draws n numbers concurrently and expects exactly 1..n
func assertDistinctRun(t *testing.T, seq repository.OrderSequence, day time.Time, n int) {
	t.Helper()

	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), day)
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for i := int64(1); i <= int64(n); i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestPostgresOrderSequence_Concurrent(t *testing.T) {
	testutil.SkipIfShort(t)
	seq := repository.NewPostgresOrderSequence(suite.DB)

	// A far-future day keeps the counter private to this test.
	day := time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC)
	assertDistinctRun(t, seq, day, 20)

	next, err := seq.Next(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), next, "each day starts at one")
}

func TestRedisOrderSequence(t *testing.T) {
	testutil.SkipIfShort(t)

	addr := testutil.GetEnvOrDefault("HERBSTOCK_TEST_REDIS_ADDR", "localhost:6379")
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	day := time.Date(2998, 6, 1, 0, 0, 0, 0, time.UTC)
	key := "herbstock:po-seq:" + day.Format("20060102")
	require.NoError(t, client.Del(context.Background(), key).Err())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	assertDistinctRun(t, repository.NewRedisOrderSequence(client), day, 20)

	ttl, err := client.TTL(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 47*time.Hour)
}
