package geocode

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

func cacheKey(zip string) string {
	return "geocode:zip:" + zip
}

// checkCache returns a cached result, including cached non-matches. Any
// cache problem is treated as a miss.
func (g *geocoder) checkCache(ctx context.Context, key string) *Result {
	if g.cache == nil {
		return nil
	}
	raw, err := g.cache.Get(ctx, key)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		zap.L().Debug("geocode cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil
	}
	r.Source = "cache"
	zap.L().Debug("geocode cache hit", zap.String("key", key), zap.Bool("matched", r.Matched))
	return &r
}

func (g *geocoder) storeCache(ctx context.Context, key string, result *Result) {
	if g.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, key, raw); err != nil {
		zap.L().Warn("geocode: store cache", zap.String("key", key), zap.Error(err))
	}
}
