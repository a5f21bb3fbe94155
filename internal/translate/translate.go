// Package translate turns English recipe text into Korean through a
// pluggable provider.
package translate

import (
	"context"
	"log"
	"strings"

	"meal-planner/internal/cache"
	"meal-planner/internal/config"
	"meal-planner/internal/llm"
	"meal-planner/internal/metrics"
	"meal-planner/internal/recipe"
)

// Translator translates a batch of texts, returning a slice of the same
// length. Blank entries are passed through unchanged.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string) ([]string, error)
	// Ready reports whether the provider is configured to do real work.
	Ready() bool
	Name() string
}

// Noop returns its input. It stands in when no provider is configured.
type Noop struct{}

func (Noop) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	return append([]string(nil), texts...), nil
}

func (Noop) Ready() bool  { return false }
func (Noop) Name() string { return "noop" }

// NewFromConfig selects the provider named by TRANSLATION_PROVIDER. gen and
// store may be nil.
func NewFromConfig(cfg *config.Config, store cache.Store, gen llm.TextGenerator, rec metrics.Recorder) Translator {
	var t Translator
	switch cfg.TranslationProvider {
	case "deepl":
		if cfg.DeepLAPIKey == "" {
			log.Println("DEEPL_API_KEY not set, translation disabled")
			return Noop{}
		}
		t = NewDeepL(cfg.DeepLAPIKey, cfg.DeepLAPIURL)
	case "llm":
		if gen == nil {
			log.Println("LLM provider not configured, translation disabled")
			return Noop{}
		}
		t = NewLLM(gen, rec)
	case "none", "":
		return Noop{}
	default:
		log.Printf("unknown TRANSLATION_PROVIDER %q, translation disabled", cfg.TranslationProvider)
		return Noop{}
	}
	if store != nil {
		t = NewCached(t, store)
	}
	return t
}

// TranslateRecipe translates the free text of in: title, description, tags,
// ingredient names and units, and step descriptions. Categories are a closed
// vocabulary and stay as they are. On any failure in is left untouched and
// false is returned.
func TranslateRecipe(ctx context.Context, t Translator, in *recipe.CreateInput) bool {
	if t == nil || !t.Ready() {
		return false
	}

	var texts []string
	var apply []func(string)
	add := func(s string, set func(string)) {
		if strings.TrimSpace(s) == "" {
			return
		}
		texts = append(texts, s)
		apply = append(apply, set)
	}

	add(in.Title, func(v string) { in.Title = v })
	if in.Description != nil {
		add(*in.Description, func(v string) { in.Description = &v })
	}
	for i := range in.Tags {
		add(in.Tags[i], func(v string) { in.Tags[i] = v })
	}
	for i := range in.Ingredients {
		add(in.Ingredients[i].Name, func(v string) { in.Ingredients[i].Name = v })
		add(in.Ingredients[i].Unit, func(v string) { in.Ingredients[i].Unit = v })
	}
	for i := range in.Instructions {
		add(in.Instructions[i].Description, func(v string) { in.Instructions[i].Description = v })
	}
	if len(texts) == 0 {
		return false
	}

	out, err := t.TranslateBatch(ctx, texts)
	if err != nil {
		log.Printf("failed to translate recipe %q: %v", in.Title, err)
		return false
	}
	if len(out) != len(texts) {
		log.Printf("translation returned %d texts for %d inputs, keeping original", len(out), len(texts))
		return false
	}
	for i, v := range out {
		if strings.TrimSpace(v) != "" {
			apply[i](v)
		}
	}
	return true
}

// pending returns the indexes of non-blank texts.
func pending(texts []string) []int {
	var idx []int
	for i, s := range texts {
		if strings.TrimSpace(s) != "" {
			idx = append(idx, i)
		}
	}
	return idx
}
