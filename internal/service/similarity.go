package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/use-lumina/lumina/internal/pkg/database"
	"github.com/use-lumina/lumina/internal/pkg/logger"
	"github.com/use-lumina/lumina/internal/pkg/metrics"
)

// SemanticScorer rates how close a response is to a set of reference
// responses, on a 0..1 scale. Implementations typically call an embedding
// model, so scores are cached and consulted sparingly.
type SemanticScorer interface {
	Score(ctx context.Context, response string, references []string) (float64, error)
}

// TrigramSimilarity computes the Jaccard similarity of the character
// trigram sets of two strings. Case and surrounding whitespace are
// ignored. Returns 1 for two identical or two empty strings.
func TrigramSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	setA := trigramSet(a)
	setB := trigramSet(b)

	intersection := 0
	for gram := range setA {
		if _, ok := setB[gram]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigramSet(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 3 {
		return map[string]struct{}{s: {}}
	}
	set := make(map[string]struct{}, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// BestSimilarity returns the highest trigram similarity between the
// response and any of the references.
func BestSimilarity(response string, references []string) float64 {
	best := 0.0
	for _, ref := range references {
		if sim := TrigramSimilarity(response, ref); sim > best {
			best = sim
		}
	}
	return best
}

// TokenJaccardScorer is the built-in semantic scorer. It compares word
// sets rather than character trigrams, which makes it robust to
// reordering and small rephrasings. External embedding-based scorers can
// replace it behind the same interface.
type TokenJaccardScorer struct{}

// Score returns the best token-set Jaccard similarity between the
// response and any reference.
func (TokenJaccardScorer) Score(_ context.Context, response string, references []string) (float64, error) {
	respSet := tokenSet(response)
	best := 0.0
	for _, ref := range references {
		if sim := jaccard(respSet, tokenSet(ref)); sim > best {
			best = sim
		}
	}
	return best, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// CachedSemanticScorer wraps a semantic scorer with a Redis cache. The
// cache key is derived from the response and reference fingerprints, so a
// re-analyzed span never pays for a second model call.
type CachedSemanticScorer struct {
	scorer SemanticScorer
	cache  *database.Cache
}

// NewCachedSemanticScorer creates a caching wrapper around a scorer
func NewCachedSemanticScorer(scorer SemanticScorer, cache *database.Cache) *CachedSemanticScorer {
	return &CachedSemanticScorer{
		scorer: scorer,
		cache:  cache,
	}
}

// Score returns the cached score when available, otherwise consults the
// underlying scorer and caches the result.
func (s *CachedSemanticScorer) Score(ctx context.Context, response string, references []string) (float64, error) {
	key := s.cacheKey(response, references)

	if cached, ok := s.cache.Get(ctx, key); ok {
		if score, err := strconv.ParseFloat(cached, 64); err == nil {
			metrics.RecordSemanticScorerCall("cache_hit")
			return score, nil
		}
	}

	score, err := s.scorer.Score(ctx, response, references)
	if err != nil {
		metrics.RecordSemanticScorerCall("error")
		return 0, err
	}
	metrics.RecordSemanticScorerCall("scored")

	if err := s.cache.Set(ctx, key, strconv.FormatFloat(score, 'f', -1, 64)); err != nil {
		logger.Debug("failed to cache semantic score",
			zap.Error(err),
		)
	}

	return score, nil
}

func (s *CachedSemanticScorer) cacheKey(response string, references []string) string {
	var sb strings.Builder
	sb.WriteString("lumina:semscore:")
	sb.WriteString(HashResponse(response))
	for _, ref := range references {
		sb.WriteByte(':')
		sb.WriteString(HashResponse(ref))
	}
	return sb.String()
}
