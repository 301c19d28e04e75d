//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	return rdb
}

func TestCatalogCache(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	c := NewCatalogCache(rdb, time.Minute, zerolog.Nop())

	_, ok := c.Questions(ctx, "aq")
	assert.False(t, ok)

	q1 := model.Question{ID: "Q1", TestID: "aq", Prompt: "p", Options: []model.Option{{Value: 1, Label: "Ja"}}}
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	c.StoreQuestions(ctx, gen, "aq", []model.Question{q1})
	c.StoreQuestions(ctx, gen, "old", []model.Question{{ID: "X1", TestID: "old"}})

	got, ok := c.Questions(ctx, "aq")
	require.True(t, ok)
	assert.Equal(t, []model.Question{q1}, got)

	require.NoError(t, c.Replace(ctx, map[string][]model.Question{"aq": {q1}}))

	_, ok = c.Questions(ctx, "old")
	assert.False(t, ok, "replace drops tests missing from the new catalog")
	_, ok = c.Questions(ctx, "aq")
	assert.True(t, ok)
}

func TestCatalogCacheDropsListsFromOlderGeneration(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	c := NewCatalogCache(rdb, time.Minute, zerolog.Nop())

	before, err := c.Generation(ctx)
	require.NoError(t, err)

	fresh := model.Question{ID: "Q1", TestID: "aq", Options: []model.Option{{Value: 1, Label: "Often"}, {Value: 0, Label: "Never"}}}
	require.NoError(t, c.Replace(ctx, map[string][]model.Question{"aq": {fresh}}))

	after, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	stale := model.Question{ID: "Q1", TestID: "aq", Options: []model.Option{{Value: 0, Label: "Never"}, {Value: 1, Label: "Often"}}}
	c.StoreQuestions(ctx, before, "aq", []model.Question{stale})

	got, ok := c.Questions(ctx, "aq")
	require.True(t, ok)
	assert.Equal(t, []model.Question{fresh}, got)
}

func TestSubjectLock(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	lock := NewSubjectLock(rdb, 5*time.Second, 150*time.Millisecond)
	subject := uuid.NewString()

	release, err := lock.Acquire(ctx, subject)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, subject)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	other, err := lock.Acquire(ctx, uuid.NewString())
	require.NoError(t, err, "different subjects never contend")
	other()

	release()
	again, err := lock.Acquire(ctx, subject)
	require.NoError(t, err)
	again()
}
