package external

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/cache"
	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
	"meal-planner/internal/translate"

	"golang.org/x/sync/errgroup"
)

const (
	responseTTL      = time.Hour
	listingTTL       = 24 * time.Hour
	recipeCacheKey   = "external_recipe:cache:recipe:%s:%s"
	discoverCacheKey = "external_recipe:cache:discover:%s:%s:%s:%d"
	cuisinesCacheKey = "external_recipe:cache:cuisines"
	categoryCacheKey = "external_recipe:cache:categories"

	fallbackIngredient  = "재료 정보 없음"
	fallbackInstruction = "원본 레시피를 참고하세요."
	defaultIngredient   = "재료"
)

// CachedStore is the cached_recipes surface the Gateway reads.
// *CachedRepository implements it.
type CachedStore interface {
	GetBySource(ctx context.Context, source, externalID string) (*CachedRecipe, error)
	Search(ctx context.Context, s CachedSearch) ([]CachedRecipe, int, error)
	Discover(ctx context.Context, source, category, cuisine, mealType string, limit int) ([]CachedRecipe, error)
	CountBySource(ctx context.Context) (map[string]int, error)
}

// RecipeCreator stores imported recipes. *recipe.Service implements it.
type RecipeCreator interface {
	FindImported(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error)
	Create(ctx context.Context, userID string, in recipe.CreateInput) (*recipe.Recipe, error)
}

// GatewayOptions wires a Gateway. Providers are tried in the order given.
type GatewayOptions struct {
	Providers  []Provider
	Seed       *KoreanSeed
	MealDB     *TheMealDB
	Cached     CachedStore
	Store      cache.Store
	Limiter    *cache.Limiter
	Translator translate.Translator
	Recipes    RecipeCreator
	Classifier mealtype.Classifier
}

// Gateway serves external recipes: the cached_recipes table first, then the
// Redis response cache, then the live providers.
type Gateway struct {
	providers  map[string]Provider
	order      []string
	seed       *KoreanSeed
	mealDB     *TheMealDB
	cached     CachedStore
	store      cache.Store
	limiter    *cache.Limiter
	translator translate.Translator
	recipes    RecipeCreator
	classifier mealtype.Classifier
}

func NewGateway(opts GatewayOptions) *Gateway {
	g := &Gateway{
		providers:  make(map[string]Provider),
		seed:       opts.Seed,
		mealDB:     opts.MealDB,
		cached:     opts.Cached,
		store:      opts.Store,
		limiter:    opts.Limiter,
		translator: opts.Translator,
		recipes:    opts.Recipes,
		classifier: opts.Classifier,
	}
	if g.translator == nil {
		g.translator = translate.Noop{}
	}
	for _, p := range opts.Providers {
		g.providers[p.Name()] = p
		g.order = append(g.order, p.Name())
	}
	if g.seed != nil {
		if _, ok := g.providers[SourceKoreanSeed]; !ok {
			g.providers[SourceKoreanSeed] = g.seed
			g.order = append(g.order, SourceKoreanSeed)
		}
	}
	return g
}

// SearchRequest filters an external search. An empty Source searches all.
type SearchRequest struct {
	Query        string
	Source       string
	Cuisine      string
	MaxReadyTime *int
	shared.Pagination
}

// Search looks in the cached table first, with the seed recipes riding
// along on a hit. Only an empty cache spends the user's daily quota on a
// live fan-out, which includes the seed as one of its sources.
func (g *Gateway) Search(ctx context.Context, userID string, req SearchRequest) (shared.Page[Preview], error) {
	p := req.Pagination.Normalize(20, 100)
	if req.Source != "" {
		if _, ok := g.providers[req.Source]; !ok {
			return shared.Page[Preview]{}, apperr.Validation(fmt.Sprintf("Unknown recipe source: %s", req.Source))
		}
	}

	items, total, err := g.searchCached(ctx, req, p)
	if err != nil {
		return shared.Page[Preview]{}, err
	}
	if total > 0 {
		return shared.NewPage(items, total, p), nil
	}

	if g.limiter != nil {
		if err := g.limiter.Allow(ctx, cache.ExternalSearch, userID); err != nil {
			return shared.Page[Preview]{}, err
		}
	}
	items, total, answered := g.searchLive(ctx, req, p)
	if g.limiter != nil && !answered {
		if err := g.limiter.Release(ctx, cache.ExternalSearch, userID); err != nil {
			log.Printf("Failed to release search quota for %s: %v", userID, err)
		}
	}
	return shared.NewPage(items, total, p), nil
}

// searchCached pages over cached_recipes. When it has rows, seed matches for
// the same page are appended and counted.
func (g *Gateway) searchCached(ctx context.Context, req SearchRequest, p shared.Pagination) ([]Preview, int, error) {
	if g.cached == nil || (req.Source != "" && !isCacheable(req.Source)) {
		return nil, 0, nil
	}
	search := CachedSearch{
		Query:  req.Query,
		Source: req.Source,
		Offset: p.Offset(),
		Limit:  p.Limit,
	}
	if req.Cuisine != "" {
		search.Categories = []string{req.Cuisine}
	}
	rows, total, err := g.cached.Search(ctx, search)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	items := make([]Preview, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].Preview())
	}
	if g.seed != nil && req.Source == "" {
		seedHits, n, err := g.seed.Search(ctx, SearchQuery{
			Query:   req.Query,
			Cuisine: req.Cuisine,
			Number:  p.Limit,
			Offset:  p.Offset(),
		})
		if err != nil {
			log.Printf("Korean seed search failed: %v", err)
		} else {
			items = append(items, seedHits...)
			total += n
		}
	}
	return items, total, nil
}

// searchLive fans out to every available source. answered reports whether
// at least one remote provider responded; the bundled seed does not count.
func (g *Gateway) searchLive(ctx context.Context, req SearchRequest, p shared.Pagination) (items []Preview, total int, answered bool) {
	sources := g.liveSources(req.Source)
	results := make([][]Preview, len(sources))
	totals := make([]int, len(sources))
	ok := make([]bool, len(sources))

	var eg errgroup.Group
	for i, prov := range sources {
		eg.Go(func() error {
			found, n, err := prov.Search(ctx, SearchQuery{
				Query:        req.Query,
				Cuisine:      req.Cuisine,
				MaxReadyTime: req.MaxReadyTime,
				Number:       p.Limit,
				Offset:       p.Offset(),
			})
			if err != nil {
				log.Printf("Search failed for %s: %v", prov.Name(), err)
				return nil
			}
			results[i] = g.translatePreviews(ctx, prov.Name(), found)
			totals[i] = n
			ok[i] = true
			return nil
		})
	}
	_ = eg.Wait()

	for i := range results {
		items = append(items, results[i]...)
		total += totals[i]
		if ok[i] && sources[i].Name() != SourceKoreanSeed {
			answered = true
		}
	}
	return items, total, answered
}

func (g *Gateway) liveSources(source string) []Provider {
	var out []Provider
	for _, name := range g.order {
		if source != "" && name != source {
			continue
		}
		if prov := g.providers[name]; prov.Available() {
			out = append(out, prov)
		}
	}
	return out
}

// DiscoverRequest filters a discover call.
type DiscoverRequest struct {
	Category string
	Cuisine  string
	MealType string
	Number   int
}

// DiscoverResult groups discovered previews by source.
type DiscoverResult struct {
	Spoonacular []Preview `json:"spoonacular"`
	TheMealDB   []Preview `json:"themealdb"`
	KoreanSeed  []Preview `json:"korean_seed"`
	Total       int       `json:"total"`
}

// Discover returns a random mix from each source, cached for an hour per
// filter combination.
func (g *Gateway) Discover(ctx context.Context, req DiscoverRequest) (*DiscoverResult, error) {
	if req.Number <= 0 {
		req.Number = 12
	}
	req.Number = min(req.Number, 60)
	if req.MealType != "" && !mealtype.IsValid(req.MealType) {
		return nil, apperr.Validation(fmt.Sprintf("Invalid meal type: %s", req.MealType))
	}

	key := fmt.Sprintf(discoverCacheKey, req.Category, req.Cuisine, req.MealType, req.Number)
	if g.store != nil {
		var hit DiscoverResult
		if ok, err := cache.GetJSON(ctx, g.store, key, &hit); err != nil {
			log.Printf("Failed to read discover cache: %v", err)
		} else if ok {
			return &hit, nil
		}
	}

	per := max(1, req.Number/3)
	res := &DiscoverResult{}
	var eg errgroup.Group
	eg.Go(func() error {
		res.Spoonacular = g.discoverSource(ctx, SourceSpoonacular, req, per)
		return nil
	})
	eg.Go(func() error {
		res.TheMealDB = g.discoverSource(ctx, SourceTheMealDB, req, per)
		return nil
	})
	if g.seed != nil && (req.Cuisine == "" || strings.Contains(strings.ToLower(req.Cuisine), "korean")) {
		res.KoreanSeed = g.seed.Sample(req.Category, req.MealType, per)
	}
	_ = eg.Wait()

	res.Spoonacular = nonNil(res.Spoonacular)
	res.TheMealDB = nonNil(res.TheMealDB)
	res.KoreanSeed = nonNil(res.KoreanSeed)
	res.Total = len(res.Spoonacular) + len(res.TheMealDB) + len(res.KoreanSeed)

	if g.store != nil {
		if err := cache.SetJSON(ctx, g.store, key, res, responseTTL); err != nil {
			log.Printf("Failed to write discover cache: %v", err)
		}
	}
	return res, nil
}

// discoverSource prefers prefetched rows and falls back to the live API.
func (g *Gateway) discoverSource(ctx context.Context, source string, req DiscoverRequest, n int) []Preview {
	if g.cached != nil {
		rows, err := g.cached.Discover(ctx, source, req.Category, req.Cuisine, req.MealType, n)
		if err != nil {
			log.Printf("Cached discover failed for %s: %v", source, err)
		} else if len(rows) > 0 {
			out := make([]Preview, len(rows))
			for i := range rows {
				out[i] = rows[i].Preview()
			}
			return out
		}
	}

	prov, ok := g.providers[source]
	if !ok || !prov.Available() {
		return nil
	}
	items, err := prov.Discover(ctx, DiscoverQuery{Category: req.Category, Cuisine: req.Cuisine, Number: n})
	if err != nil {
		log.Printf("Discover failed for %s: %v", source, err)
		return nil
	}
	var out []Preview
	for _, p := range items {
		if len(p.MealTypes) == 0 {
			p.MealTypes = g.classifier.Classify(p.Title, "", p.categories, p.tags)
		}
		if req.MealType != "" && !slices.Contains(p.MealTypes, req.MealType) {
			continue
		}
		out = append(out, p)
	}
	return g.translatePreviews(ctx, source, out)
}

// translatePreviews translates English titles and summaries. TheMealDB
// titles are dish names and stay in English.
func (g *Gateway) translatePreviews(ctx context.Context, source string, items []Preview) []Preview {
	if !isEnglish(source) || len(items) == 0 || !g.translator.Ready() {
		return items
	}
	keepTitle := source == SourceTheMealDB
	var texts []string
	for _, p := range items {
		if !keepTitle {
			texts = append(texts, p.Title)
		}
		texts = append(texts, p.Summary)
	}
	out, err := g.translator.TranslateBatch(ctx, texts)
	if err != nil || len(out) != len(texts) {
		log.Printf("Preview translation failed for %s: %v", source, err)
		return items
	}
	i := 0
	for j := range items {
		if !keepTitle {
			items[j].Title = out[i]
			i++
		}
		items[j].Summary = out[i]
		i++
	}
	return items
}

// GetRecipe returns the full recipe from the first layer that has it.
func (g *Gateway) GetRecipe(ctx context.Context, source, id string) (*Detail, error) {
	prov, ok := g.providers[source]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("Unknown recipe source: %s", source))
	}

	if g.cached != nil && isCacheable(source) {
		c, err := g.cached.GetBySource(ctx, source, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			d := c.Detail
			return &d, nil
		}
	}

	key := fmt.Sprintf(recipeCacheKey, source, id)
	if g.store != nil {
		var hit Detail
		if ok, err := cache.GetJSON(ctx, g.store, key, &hit); err != nil {
			log.Printf("Failed to read recipe cache: %v", err)
		} else if ok {
			return &hit, nil
		}
	}

	if !prov.Available() {
		return nil, apperr.External(fmt.Sprintf("Recipe source %s is not configured", source))
	}
	d, err := prov.Get(ctx, id)
	if err != nil {
		log.Printf("Failed to fetch %s recipe %s: %v", source, id, err)
		return nil, apperr.External(fmt.Sprintf("Failed to fetch recipe from %s", source))
	}
	if d == nil {
		return nil, apperr.NotFound("ExternalRecipe", source+"/"+id)
	}
	if len(d.MealTypes) == 0 {
		d.MealTypes = g.classifier.Classify(d.Title, d.TitleOriginal, d.Categories, d.Tags)
	}
	if isEnglish(source) {
		g.translateDetail(ctx, d)
	}

	if g.store != nil {
		if err := cache.SetJSON(ctx, g.store, key, d, responseTTL); err != nil {
			log.Printf("Failed to write recipe cache: %v", err)
		}
	}
	return d, nil
}

func (g *Gateway) translateDetail(ctx context.Context, d *Detail) {
	if d.TitleOriginal == "" {
		d.TitleOriginal = d.Title
	}
	title := d.Title
	if translate.TranslateRecipe(ctx, g.translator, &d.CreateInput) && d.Source() == SourceTheMealDB {
		d.Title = title
	}
}

// ImportRecipe copies an external recipe into the user's collection. A
// recipe the user already imported is returned as is.
func (g *Gateway) ImportRecipe(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error) {
	existing, err := g.recipes.FindImported(ctx, userID, source, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	d, err := g.GetRecipe(ctx, source, externalID)
	if err != nil {
		return nil, err
	}
	return g.recipes.Create(ctx, userID, importInput(d, source, externalID))
}

// importInput shapes a Detail into something recipe validation accepts.
func importInput(d *Detail, source, externalID string) recipe.CreateInput {
	in := d.clone().CreateInput
	in.ExternalSource = ptr(source)
	in.ExternalID = ptr(externalID)

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = strings.TrimSpace(d.TitleOriginal)
	}
	if in.Title == "" {
		in.Title = source + " " + externalID
	}
	in.Title = truncate(in.Title, 200)

	in.Servings = min(max(in.Servings, 1), 100)
	switch in.Difficulty {
	case recipe.DifficultyEasy, recipe.DifficultyMedium, recipe.DifficultyHard:
	default:
		in.Difficulty = recipe.DifficultyMedium
	}
	in.Categories = recipe.MapCategories(in.Categories)

	ings := make([]recipe.IngredientInput, 0, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			ing.Name = defaultIngredient
		}
		if ing.Amount <= 0 {
			ing.Amount = 1
		}
		if strings.TrimSpace(ing.Unit) == "" {
			ing.Unit = recipe.DefaultUnit
		}
		ing.OrderIndex = len(ings)
		ings = append(ings, ing)
	}
	if len(ings) == 0 {
		ings = append(ings, recipe.IngredientInput{Name: fallbackIngredient, Amount: 1, Unit: recipe.DefaultUnit})
	}
	in.Ingredients = ings

	steps := make([]recipe.InstructionInput, 0, len(in.Instructions))
	for _, st := range in.Instructions {
		if strings.TrimSpace(st.Description) == "" {
			continue
		}
		st.StepNumber = len(steps) + 1
		steps = append(steps, st)
	}
	if len(steps) == 0 {
		steps = append(steps, recipe.InstructionInput{StepNumber: 1, Description: fallbackInstruction})
	}
	in.Instructions = steps
	return in
}

// Sources lists every known provider with its availability.
func (g *Gateway) Sources() []SourceInfo {
	out := make([]SourceInfo, 0, len(sourceInfo))
	for _, info := range sourceInfo {
		if prov, ok := g.providers[info.ID]; ok {
			info.Available = prov.Available()
		}
		out = append(out, info)
	}
	return out
}

// Cuisines lists TheMealDB areas.
func (g *Gateway) Cuisines(ctx context.Context) ([]string, error) {
	return cachedListing(ctx, g, cuisinesCacheKey, func() ([]string, error) {
		if g.mealDB == nil {
			return []string{}, nil
		}
		return g.mealDB.Areas(ctx)
	})
}

// Categories lists TheMealDB categories.
func (g *Gateway) Categories(ctx context.Context) ([]MealCategory, error) {
	return cachedListing(ctx, g, categoryCacheKey, func() ([]MealCategory, error) {
		if g.mealDB == nil {
			return []MealCategory{}, nil
		}
		return g.mealDB.Categories(ctx)
	})
}

func cachedListing[T any](ctx context.Context, g *Gateway, key string, load func() ([]T, error)) ([]T, error) {
	if g.store != nil {
		var hit []T
		if ok, err := cache.GetJSON(ctx, g.store, key, &hit); err == nil && ok {
			return hit, nil
		}
	}
	items, err := load()
	if err != nil {
		log.Printf("Failed to load %s: %v", key, err)
		return nil, apperr.External("Failed to load recipe listing")
	}
	items = nonNil(items)
	if g.store != nil && len(items) > 0 {
		if err := cache.SetJSON(ctx, g.store, key, items, listingTTL); err != nil {
			log.Printf("Failed to cache %s: %v", key, err)
		}
	}
	return items, nil
}

// CacheStatus reports how many recipes are prefetched per source.
type CacheStatus struct {
	Sources map[string]int `json:"sources"`
	Total   int            `json:"total"`
}

func (g *Gateway) CacheStatus(ctx context.Context) (*CacheStatus, error) {
	st := &CacheStatus{Sources: map[string]int{}}
	if g.cached == nil {
		return st, nil
	}
	counts, err := g.cached.CountBySource(ctx)
	if err != nil {
		return nil, err
	}
	for source, n := range counts {
		st.Sources[source] = n
		st.Total += n
	}
	return st, nil
}

