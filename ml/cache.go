package ml

import (
	"context"
	"encoding/json"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedPredictor memoises per-record predictions. Preprocessing is
// deterministic, so a cached result is always the one the model would give.
type CachedPredictor struct {
	next   ModelProvider
	cache  *lru.Cache[string, Prediction]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedPredictor(next ModelProvider, size int) (*CachedPredictor, error) {
	cache, err := lru.New[string, Prediction](size)
	if err != nil {
		return nil, err
	}
	return &CachedPredictor{next: next, cache: cache}, nil
}

func (c *CachedPredictor) Bundle() *Bundle {
	return c.next.Bundle()
}

// Predict answers cached records from memory and sends only the rest to
// the wrapped provider. Any error from the provider fails the whole batch.
func (c *CachedPredictor) Predict(ctx context.Context, records []Record) ([]Prediction, error) {
	if len(records) == 0 {
		return c.next.Predict(ctx, records)
	}
	columns := c.next.Bundle().FeatureColumns
	out := make([]Prediction, len(records))
	keys := make([]string, len(records))
	var pending []Record
	var pendingIdx []int
	for i, rec := range records {
		key, ok := recordKey(columns, rec)
		keys[i] = key
		if ok {
			if pred, hit := c.cache.Get(key); hit {
				c.hits.Add(1)
				out[i] = pred
				continue
			}
		}
		c.misses.Add(1)
		pending = append(pending, rec)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	preds, err := c.next.Predict(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, pred := range preds {
		i := pendingIdx[j]
		out[i] = pred
		if keys[i] != "" {
			c.cache.Add(keys[i], pred)
		}
	}
	return out, nil
}

// Stats returns cumulative hit and miss counts.
func (c *CachedPredictor) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// recordKey builds a key from the feature columns only, so extra keys do
// not fragment the cache. The values are JSON-encoded as one ordered array,
// so string contents can never shift a value into its neighbour. Records
// missing a column, or holding values JSON cannot encode, get no key and
// always go to the provider.
func recordKey(columns []string, rec Record) (string, bool) {
	values := make([]any, len(columns))
	for i, col := range columns {
		v, ok := rec[col]
		if !ok {
			return "", false
		}
		values[i] = v
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", false
	}
	return string(data), true
}
