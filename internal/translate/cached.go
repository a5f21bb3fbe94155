package translate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"meal-planner/internal/cache"
)

const cacheTTL = 7 * 24 * time.Hour

// Cached memoizes each text's translation in Redis for a week. Cache
// errors are logged and the inner provider is used.
type Cached struct {
	inner Translator
	store cache.Store
}

func NewCached(inner Translator, store cache.Store) *Cached {
	return &Cached{inner: inner, store: store}
}

func (c *Cached) Ready() bool  { return c.inner.Ready() }
func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) key(text string) string {
	sum := md5.Sum([]byte(text))
	return "translation:" + c.inner.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	out := append([]string(nil), texts...)
	var missIdx []int
	var missTexts []string
	for _, i := range pending(texts) {
		v, err := c.store.Get(ctx, c.key(texts[i]))
		if err == nil && v != "" {
			out[i] = v
			continue
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			log.Printf("failed to read cached translation: %v", err)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	translated, err := c.inner.TranslateBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(missTexts) {
		return nil, fmt.Errorf("%s returned %d translations for %d texts", c.inner.Name(), len(translated), len(missTexts))
	}
	for k, i := range missIdx {
		out[i] = translated[k]
		if err := c.store.Set(ctx, c.key(missTexts[k]), translated[k], cacheTTL); err != nil {
			log.Printf("failed to cache translation: %v", err)
		}
	}
	return out, nil
}
