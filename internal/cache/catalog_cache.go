package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Concurrent cache fills can abort a replacement; it is retried this often.
const replaceAttempts = 3

// CatalogCache keeps each test's ordered question list in Redis.
// Cache failures are logged and reported as misses.
type CatalogCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CatalogCache {
	return &CatalogCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "catalog_cache").Logger(),
	}
}

// Questions returns the cached question list of testID.
func (c *CatalogCache) Questions(ctx context.Context, testID string) ([]model.Question, bool) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.CatalogQuestionsKey(testID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("test_id", testID).Msg("Catalog cache read failed")
		}
		return nil, false
	}

	var questions []model.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		c.log.Warn().Err(err).Str("test_id", testID).Msg("Catalog cache entry corrupt")
		return nil, false
	}
	return questions, true
}

// storeScript writes a question list only while the catalog generation it
// was loaded under is still current.
var storeScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
redis.call("SADD", KEYS[3], ARGV[4])
return 1
`)

// Generation returns the current catalog generation, 0 before the first seed.
func (c *CatalogCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, config.CacheKey.CatalogGenerationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// StoreQuestions caches the question list of one test if gen is still the
// current generation.
func (c *CatalogCache) StoreQuestions(ctx context.Context, gen int64, testID string, questions []model.Question) {
	payload, err := json.Marshal(questions)
	if err != nil {
		c.log.Warn().Err(err).Str("test_id", testID).Msg("Catalog cache marshal failed")
		return
	}

	keys := []string{
		config.CacheKey.CatalogGenerationKey(),
		config.CacheKey.CatalogQuestionsKey(testID),
		config.CacheKey.CatalogTestsKey(),
	}
	stored, err := storeScript.Run(ctx, c.rdb, keys, gen, payload, c.ttl.Milliseconds(), testID).Int()
	if err != nil {
		c.log.Warn().Err(err).Str("test_id", testID).Msg("Catalog cache write failed")
		return
	}
	if stored == 0 {
		c.log.Debug().Str("test_id", testID).Int64("generation", gen).Msg("Catalog re-seeded during load, entry dropped")
	}
}

// Replace drops every cached test, starts a new generation and caches byTest
// in one MULTI block. The set of cached tests is watched so an entry stored
// while the old set is read cannot survive the replacement.
func (c *CatalogCache) Replace(ctx context.Context, byTest map[string][]model.Question) error {
	payloads := make(map[string][]byte, len(byTest))
	for id, questions := range byTest {
		payload, err := json.Marshal(questions)
		if err != nil {
			return fmt.Errorf("marshal questions of %s: %w", id, err)
		}
		payloads[id] = payload
	}

	testsKey := config.CacheKey.CatalogTestsKey()
	var dropped int
	replace := func(tx *redis.Tx) error {
		stale, err := tx.SMembers(ctx, testsKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("list cached tests: %w", err)
		}
		dropped = len(stale)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range stale {
				pipe.Del(ctx, config.CacheKey.CatalogQuestionsKey(id))
			}
			pipe.Del(ctx, testsKey)
			pipe.Incr(ctx, config.CacheKey.CatalogGenerationKey())
			for id, payload := range payloads {
				pipe.Set(ctx, config.CacheKey.CatalogQuestionsKey(id), payload, c.ttl)
				pipe.SAdd(ctx, testsKey, id)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < replaceAttempts; attempt++ {
		err := c.rdb.Watch(ctx, replace, testsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("replace catalog cache: %w", err)
		}

		c.log.Debug().
			Int("dropped", dropped).
			Int("cached", len(byTest)).
			Msg("Catalog cache replaced")
		return nil
	}
	return fmt.Errorf("replace catalog cache: %w", redis.TxFailedErr)
}
