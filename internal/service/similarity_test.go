package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-lumina/lumina/internal/pkg/database"
)

func TestTrigramSimilarity(t *testing.T) {
	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, TrigramSimilarity("hello world", "hello world"))
		assert.Equal(t, 1.0, TrigramSimilarity("", ""))
	})

	t.Run("case and whitespace are ignored", func(t *testing.T) {
		assert.Equal(t, 1.0, TrigramSimilarity("  Hello World ", "hello world"))
	})

	t.Run("disjoint strings score 0", func(t *testing.T) {
		assert.Equal(t, 0.0, TrigramSimilarity("aaaa", "zzzz"))
		assert.Equal(t, 0.0, TrigramSimilarity("something", ""))
	})

	t.Run("partial overlap scores between 0 and 1", func(t *testing.T) {
		sim := TrigramSimilarity("the quick brown fox", "the quick brown cat")
		assert.Greater(t, sim, 0.5)
		assert.Less(t, sim, 1.0)
	})

	t.Run("short strings compare as whole tokens", func(t *testing.T) {
		assert.Equal(t, 1.0, TrigramSimilarity("ok", "OK"))
		assert.Equal(t, 0.0, TrigramSimilarity("ok", "no"))
	})
}

func TestBestSimilarity(t *testing.T) {
	refs := []string{"completely unrelated text", "the quick brown fox jumps"}

	best := BestSimilarity("the quick brown fox jumps", refs)
	assert.Equal(t, 1.0, best)

	assert.Equal(t, 0.0, BestSimilarity("anything", nil))
}

func TestTokenJaccardScorer(t *testing.T) {
	scorer := TokenJaccardScorer{}
	ctx := context.Background()

	t.Run("returns best overlap across references", func(t *testing.T) {
		score, err := scorer.Score(ctx, "alpha beta gamma", []string{
			"delta epsilon",
			"alpha beta gamma",
		})
		require.NoError(t, err)
		assert.Equal(t, 1.0, score)
	})

	t.Run("word order does not matter", func(t *testing.T) {
		score, err := scorer.Score(ctx, "beta alpha", []string{"alpha beta"})
		require.NoError(t, err)
		assert.Equal(t, 1.0, score)
	})

	t.Run("no overlap scores 0", func(t *testing.T) {
		score, err := scorer.Score(ctx, "alpha", []string{"omega"})
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
	})
}

type stubScorer struct {
	score float64
	err   error
	calls int
}

func (s *stubScorer) Score(context.Context, string, []string) (float64, error) {
	s.calls++
	return s.score, s.err
}

func setupScorerCache(t *testing.T) *database.Cache {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisDB := &database.RedisDB{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { redisDB.Close() })

	return database.NewCache(redisDB, time.Minute)
}

func TestCachedSemanticScorer(t *testing.T) {
	ctx := context.Background()

	t.Run("second call with the same inputs hits the cache", func(t *testing.T) {
		stub := &stubScorer{score: 0.73}
		cached := NewCachedSemanticScorer(stub, setupScorerCache(t))

		first, err := cached.Score(ctx, "a response", []string{"ref one", "ref two"})
		require.NoError(t, err)
		second, err := cached.Score(ctx, "a response", []string{"ref one", "ref two"})
		require.NoError(t, err)

		assert.Equal(t, 0.73, first)
		assert.Equal(t, 0.73, second)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("different references miss the cache", func(t *testing.T) {
		stub := &stubScorer{score: 0.5}
		cached := NewCachedSemanticScorer(stub, setupScorerCache(t))

		_, err := cached.Score(ctx, "a response", []string{"ref one"})
		require.NoError(t, err)
		_, err = cached.Score(ctx, "a response", []string{"ref two"})
		require.NoError(t, err)

		assert.Equal(t, 2, stub.calls)
	})

	t.Run("scorer errors propagate", func(t *testing.T) {
		stub := &stubScorer{err: errors.New("model unavailable")}
		cached := NewCachedSemanticScorer(stub, setupScorerCache(t))

		_, err := cached.Score(ctx, "a response", []string{"ref"})
		assert.Error(t, err)
	})
}
