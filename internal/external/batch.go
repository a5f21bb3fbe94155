package external

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
	"meal-planner/internal/translate"
)

const (
	spoonacularBatchSize   = 10
	spoonacularMaxCalls    = 145
	spoonacularDefaultMax  = 100
	titleBatchSize         = 25
	keysetPageSize         = 100
	theMealDBRequestPacing = 100 * time.Millisecond
)

// BatchStore is the cached_recipes surface the batch jobs write to.
// *CachedRepository implements it.
type BatchStore interface {
	ExistingIDs(ctx context.Context, source string, ids []string) (map[string]bool, error)
	Upsert(ctx context.Context, c *CachedRecipe) error
	CountBySource(ctx context.Context) (map[string]int, error)
	Untranslated(ctx context.Context, source, afterID string, limit int) ([]CachedRecipe, error)
	UntranslatedTitles(ctx context.Context, source, afterID string, limit int) ([]CachedRecipe, error)
	SaveTranslation(ctx context.Context, c *CachedRecipe) error
	MissingMealTypes(ctx context.Context, afterID string, limit int) ([]CachedRecipe, error)
	SetMealTypes(ctx context.Context, id string, mealTypes []string) error
}

// MealDBSource lists and loads TheMealDB recipes. *TheMealDB implements it.
type MealDBSource interface {
	FetchIDs(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (*Detail, error)
}

// SpoonacularSource pages through Spoonacular ids. *Spoonacular implements it.
type SpoonacularSource interface {
	Available() bool
	SearchIDs(ctx context.Context, offset, number int) ([]string, int, error)
	Get(ctx context.Context, id string) (*Detail, error)
}

// Notifier delivers a batch summary, e.g. to a Telegram chat.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// BatchOptions wires a Batch. Translator, LLMTranslator and Notifier may be nil.
type BatchOptions struct {
	Store         BatchStore
	MealDB        MealDBSource
	Spoonacular   SpoonacularSource
	Translator    translate.Translator
	LLMTranslator translate.Translator
	Classifier    mealtype.Classifier
	Notifier      Notifier
}

// Batch runs the offline jobs that fill and maintain cached_recipes.
type Batch struct {
	store       BatchStore
	mealDB      MealDBSource
	spoonacular SpoonacularSource
	translator  translate.Translator
	llm         translate.Translator
	classifier  mealtype.Classifier
	notifier    Notifier
	pace        time.Duration
	now         func() time.Time
}

func NewBatch(opts BatchOptions) *Batch {
	return &Batch{
		store:       opts.Store,
		mealDB:      opts.MealDB,
		spoonacular: opts.Spoonacular,
		translator:  opts.Translator,
		llm:         opts.LLMTranslator,
		classifier:  opts.Classifier,
		notifier:    opts.Notifier,
		pace:        theMealDBRequestPacing,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PrefetchOptions controls a prefetch run.
type PrefetchOptions struct {
	Source    string // themealdb, spoonacular or all
	Translate bool
	DryRun    bool
	Max       int
}

// PrefetchStats counts the outcome of one source's prefetch.
type PrefetchStats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Translated int `json:"translated"`
	APICalls   int `json:"api_calls,omitempty"`
}

func (s PrefetchStats) String() string {
	return fmt.Sprintf("total=%d new=%d skipped=%d failed=%d translated=%d",
		s.Total, s.New, s.Skipped, s.Failed, s.Translated)
}

// Prefetch pulls recipes from the requested sources into cached_recipes.
func (b *Batch) Prefetch(ctx context.Context, opts PrefetchOptions) (map[string]PrefetchStats, error) {
	out := map[string]PrefetchStats{}
	switch opts.Source {
	case SourceTheMealDB, SourceSpoonacular, "all":
	default:
		return nil, fmt.Errorf("unknown prefetch source %q", opts.Source)
	}

	if opts.Source == SourceTheMealDB || opts.Source == "all" {
		st, err := b.prefetchTheMealDB(ctx, opts)
		if err != nil {
			return out, err
		}
		out[SourceTheMealDB] = st
	}
	if opts.Source == SourceSpoonacular || opts.Source == "all" {
		st, err := b.prefetchSpoonacular(ctx, opts)
		if err != nil {
			return out, err
		}
		out[SourceSpoonacular] = st
	}

	if !opts.DryRun {
		b.report(ctx, "Recipe prefetch finished", out)
	}
	return out, nil
}

func (b *Batch) prefetchTheMealDB(ctx context.Context, opts PrefetchOptions) (PrefetchStats, error) {
	var st PrefetchStats
	if b.mealDB == nil {
		return st, nil
	}
	log.Printf("TheMealDB prefetch started")
	ids, err := b.mealDB.FetchIDs(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to list themealdb recipes: %w", err)
	}
	st.Total = len(ids)
	if opts.Max > 0 && len(ids) > opts.Max {
		ids = ids[:opts.Max]
	}
	if opts.DryRun {
		log.Printf("[dry run] would fetch %d themealdb recipes", len(ids))
		return st, nil
	}

	existing, err := b.store.ExistingIDs(ctx, SourceTheMealDB, ids)
	if err != nil {
		return st, err
	}
	st.Skipped = len(existing)
	var fresh []string
	for _, id := range ids {
		if !existing[id] {
			fresh = append(fresh, id)
		}
	}
	log.Printf("Existing: %d, new: %d", st.Skipped, len(fresh))

	for i, id := range fresh {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		d, err := b.mealDB.Get(ctx, id)
		if err != nil || d == nil {
			log.Printf("[%d/%d] themealdb %s failed: %v", i+1, len(fresh), id, err)
			st.Failed++
			continue
		}
		if err := b.store.Upsert(ctx, b.prepare(ctx, d, opts.Translate, &st)); err != nil {
			log.Printf("[%d/%d] themealdb %s: %v", i+1, len(fresh), id, err)
			st.Failed++
			continue
		}
		st.New++
		if b.pace > 0 {
			time.Sleep(b.pace)
		}
	}
	log.Printf("TheMealDB prefetch complete: %s", st)
	return st, nil
}

// prefetchSpoonacular resumes from the number of rows already cached and
// stops short of the daily API point budget.
func (b *Batch) prefetchSpoonacular(ctx context.Context, opts PrefetchOptions) (PrefetchStats, error) {
	var st PrefetchStats
	if b.spoonacular == nil || !b.spoonacular.Available() {
		log.Printf("Spoonacular API key not configured, skipping")
		return st, nil
	}
	limit := opts.Max
	if limit <= 0 {
		limit = spoonacularDefaultMax
	}
	counts, err := b.store.CountBySource(ctx)
	if err != nil {
		return st, err
	}
	offset := counts[SourceSpoonacular]
	log.Printf("Spoonacular prefetch started at offset %d (max %d)", offset, limit)
	if opts.DryRun {
		log.Printf("[dry run] would fetch up to %d spoonacular recipes", limit)
		return st, nil
	}

	for st.New < limit && st.APICalls < spoonacularMaxCalls {
		ids, total, err := b.spoonacular.SearchIDs(ctx, offset, min(spoonacularBatchSize, limit-st.New))
		st.APICalls++
		if err != nil {
			log.Printf("Spoonacular search batch failed: %v", err)
			break
		}
		if len(ids) == 0 {
			break
		}
		st.Total = total
		existing, err := b.store.ExistingIDs(ctx, SourceSpoonacular, ids)
		if err != nil {
			return st, err
		}
		for _, id := range ids {
			if existing[id] {
				st.Skipped++
				continue
			}
			if st.APICalls >= spoonacularMaxCalls || st.New >= limit {
				break
			}
			d, err := b.spoonacular.Get(ctx, id)
			st.APICalls++
			if err != nil || d == nil {
				log.Printf("Spoonacular %s failed: %v", id, err)
				st.Failed++
				continue
			}
			if err := b.store.Upsert(ctx, b.prepare(ctx, d, opts.Translate, &st)); err != nil {
				log.Printf("Spoonacular %s: %v", id, err)
				st.Failed++
				continue
			}
			st.New++
		}
		offset += len(ids)
	}
	if st.APICalls >= spoonacularMaxCalls {
		log.Printf("Spoonacular call budget reached (%d), run again tomorrow", st.APICalls)
	}
	log.Printf("Spoonacular prefetch complete: %s", st)
	return st, nil
}

// prepare tags and optionally translates a fetched recipe.
func (b *Batch) prepare(ctx context.Context, d *Detail, doTranslate bool, st *PrefetchStats) *CachedRecipe {
	c := &CachedRecipe{Detail: *d, FetchedAt: b.now(), TranslationStatus: TranslationPending}
	c.TitleOriginal = d.Title
	c.MealTypes = b.classifier.Classify(c.Title, c.TitleOriginal, c.Categories, c.Tags)
	if !isEnglish(c.Source()) {
		c.TranslationStatus = TranslationSkipped
		return c
	}

	if doTranslate && b.translator != nil && b.translator.Ready() {
		if translate.TranslateRecipe(ctx, b.translator, &c.CreateInput) {
			if c.Source() == SourceTheMealDB {
				c.Title = c.TitleOriginal
			}
			c.TranslationStatus = TranslationCompleted
			c.TranslatedAt = ptr(b.now())
			st.Translated++
		} else {
			c.TranslationStatus = TranslationFailed
		}
	}
	return c
}

// TranslateStats counts a translation run.
type TranslateStats struct {
	Total      int `json:"total"`
	Translated int `json:"translated"`
	Failed     int `json:"failed"`
}

// TranslateExisting translates cached rows still pending or failed with the
// configured translator.
func (b *Batch) TranslateExisting(ctx context.Context, source string) (TranslateStats, error) {
	var st TranslateStats
	if b.translator == nil || !b.translator.Ready() {
		return st, fmt.Errorf("translation provider is not configured")
	}
	after := ""
	for {
		rows, err := b.store.Untranslated(ctx, sourceFilter(source), after, keysetPageSize)
		if err != nil {
			return st, err
		}
		if len(rows) == 0 {
			break
		}
		st.Total += len(rows)
		for i := range rows {
			c := &rows[i]
			after = c.ID
			if c.TitleOriginal == "" {
				c.TitleOriginal = c.Title
			}
			if translate.TranslateRecipe(ctx, b.translator, &c.CreateInput) {
				if c.Source() == SourceTheMealDB {
					c.Title = c.TitleOriginal
				}
				c.TranslationStatus = TranslationCompleted
				c.TranslatedAt = ptr(b.now())
				st.Translated++
				log.Printf("[%d/%d] %s -> %s", st.Translated, st.Total, c.TitleOriginal, c.Title)
			} else {
				c.TranslationStatus = TranslationFailed
				st.Failed++
			}
			if err := b.store.SaveTranslation(ctx, c); err != nil {
				return st, err
			}
		}
	}
	log.Printf("Translation complete: total=%d translated=%d failed=%d", st.Total, st.Translated, st.Failed)
	return st, nil
}

// LLMTranslateStats counts a translate-llm run.
type LLMTranslateStats struct {
	Titles int `json:"titles_translated"`
	Full   int `json:"recipes_full_translated"`
	Failed int `json:"failed"`
}

// TranslateLLM finishes translation with the LLM in two passes: titles that
// still equal their original in batches, then whole recipes whose
// ingredients are still English.
func (b *Batch) TranslateLLM(ctx context.Context, source string) (LLMTranslateStats, error) {
	var st LLMTranslateStats
	if b.llm == nil || !b.llm.Ready() {
		return st, fmt.Errorf("llm provider is not configured")
	}
	source = sourceFilter(source)

	after := ""
	for {
		rows, err := b.store.UntranslatedTitles(ctx, source, after, titleBatchSize)
		if err != nil {
			return st, err
		}
		if len(rows) == 0 {
			break
		}
		after = rows[len(rows)-1].ID
		titles := make([]string, len(rows))
		for i := range rows {
			titles[i] = rows[i].TitleOriginal
		}
		out, err := b.llm.TranslateBatch(ctx, titles)
		if err != nil {
			log.Printf("Title batch failed: %v", err)
			st.Failed += len(rows)
			continue
		}
		for i := range rows {
			c := &rows[i]
			if out[i] == "" || out[i] == c.TitleOriginal {
				continue
			}
			c.Title = out[i]
			c.TranslatedAt = ptr(b.now())
			if err := b.store.SaveTranslation(ctx, c); err != nil {
				return st, err
			}
			st.Titles++
		}
	}

	after = ""
	for {
		rows, err := b.store.Untranslated(ctx, source, after, keysetPageSize)
		if err != nil {
			return st, err
		}
		if len(rows) == 0 {
			break
		}
		for i := range rows {
			c := &rows[i]
			after = c.ID
			if !hasEnglishIngredients(c.Ingredients) {
				continue
			}
			if c.TitleOriginal == "" {
				c.TitleOriginal = c.Title
			}
			if !translate.TranslateRecipe(ctx, b.llm, &c.CreateInput) {
				st.Failed++
				continue
			}
			c.TranslationStatus = TranslationCompleted
			c.TranslatedAt = ptr(b.now())
			if err := b.store.SaveTranslation(ctx, c); err != nil {
				return st, err
			}
			st.Full++
			log.Printf("[%d] %s -> %s", st.Full, c.TitleOriginal, c.Title)
		}
	}
	log.Printf("LLM translation complete: titles=%d full=%d failed=%d", st.Titles, st.Full, st.Failed)
	return st, nil
}

// TagStats counts a tag-meal-types run.
type TagStats struct {
	Total     int            `json:"total"`
	Tagged    int            `json:"tagged"`
	Skipped   int            `json:"skipped"`
	MealTypes map[string]int `json:"meal_types"`
}

// TagMealTypes classifies cached rows that have no meal types yet.
func (b *Batch) TagMealTypes(ctx context.Context, dryRun bool) (TagStats, error) {
	st := TagStats{MealTypes: map[string]int{}}
	counts, err := b.store.CountBySource(ctx)
	if err != nil {
		return st, err
	}
	for _, n := range counts {
		st.Total += n
	}

	after := ""
	for {
		rows, err := b.store.MissingMealTypes(ctx, after, keysetPageSize)
		if err != nil {
			return st, err
		}
		if len(rows) == 0 {
			break
		}
		for i := range rows {
			c := &rows[i]
			after = c.ID
			types := b.classifier.Classify(c.Title, c.TitleOriginal, c.Categories, c.Tags)
			if !dryRun {
				if err := b.store.SetMealTypes(ctx, c.ID, types); err != nil {
					return st, err
				}
			}
			st.Tagged++
			for _, mt := range types {
				st.MealTypes[mt]++
			}
		}
	}
	st.Skipped = st.Total - st.Tagged
	log.Printf("Meal type tagging complete (dry run %v): total=%d tagged=%d skipped=%d %v",
		dryRun, st.Total, st.Tagged, st.Skipped, st.MealTypes)
	return st, nil
}

func (b *Batch) report(ctx context.Context, title string, stats map[string]PrefetchStats) {
	if b.notifier == nil {
		return
	}
	sources := make([]string, 0, len(stats))
	for s := range stats {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	lines := []string{title}
	for _, s := range sources {
		lines = append(lines, fmt.Sprintf("%s: %s", s, stats[s]))
	}
	if err := b.notifier.Notify(ctx, strings.Join(lines, "\n")); err != nil {
		log.Printf("Failed to send batch report: %v", err)
	}
}

func sourceFilter(source string) string {
	if source == "all" {
		return ""
	}
	return source
}

// hasEnglishIngredients samples the first three names; mostly ASCII
// letters means the row was never translated.
func hasEnglishIngredients(ings []recipe.IngredientInput) bool {
	for i, ing := range ings {
		if i == 3 {
			break
		}
		letters, n := 0, 0
		for _, r := range ing.Name {
			n++
			if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				letters++
			}
		}
		if n > 0 && letters*2 > n {
			return true
		}
	}
	return false
}
