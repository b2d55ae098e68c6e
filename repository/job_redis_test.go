package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newLiveRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestJobRedisRepository(t *testing.T) {
	runJobStoreSuite(t, func(t *testing.T) JobStore {
		_, client := newMiniredisClient(t)
		return NewJobRedisRepository(client, time.Minute)
	})
}

func TestJobRedisRepository_LiveServer(t *testing.T) {
	client := newLiveRedisClient(t)
	runJobStoreSuite(t, func(t *testing.T) JobStore {
		return NewJobRedisRepository(client, time.Minute)
	})
}

func TestJobRedisRepository_ExpiresOnlyAfterTerminal(t *testing.T) {
	mr, client := newMiniredisClient(t)
	ctx := context.Background()
	repo := NewJobRedisRepository(client, 24*time.Hour)

	rec := entity.NewPendingRecord(uuid.New(), "long_task", time.Now())
	require.NoError(t, repo.Create(ctx, rec))
	assert.Zero(t, mr.TTL(jobKey(rec.ID)), "pending records do not expire")

	_, err := repo.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
	require.NoError(t, err)

	// a job running longer than the retention window keeps its record
	for hour := 1; hour <= 25; hour++ {
		mr.FastForward(time.Hour)
		_, err := repo.CompareAndUpdate(ctx, rec.ID, entity.ProgressTransition(entity.Progress{Current: hour, Total: 30}))
		require.NoError(t, err)
	}

	got, err := repo.Read(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStateProgress, got.State)
	assert.Zero(t, mr.TTL(jobKey(rec.ID)))

	_, err = repo.CompareAndUpdate(ctx, rec.ID, entity.SuccessTransition([]byte(`{"result":42}`)))
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, mr.TTL(jobKey(rec.ID)))

	mr.FastForward(23 * time.Hour)
	_, err = repo.Read(ctx, rec.ID)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = repo.Read(ctx, rec.ID)
	assert.ErrorIs(t, err, entity.ErrJobNotFound)
}

func TestJobRedisRepository_ZeroTTLKeepsTerminalRecords(t *testing.T) {
	mr, client := newMiniredisClient(t)
	ctx := context.Background()
	repo := NewJobRedisRepository(client, 0)

	rec := entity.NewPendingRecord(uuid.New(), "double", time.Now())
	require.NoError(t, repo.Create(ctx, rec))
	_, err := repo.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
	require.NoError(t, err)
	_, err = repo.CompareAndUpdate(ctx, rec.ID, entity.SuccessTransition([]byte(`10`)))
	require.NoError(t, err)

	assert.Zero(t, mr.TTL(jobKey(rec.ID)))
}
