package external

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"meal-planner/internal/apperr"
	"meal-planner/internal/cache"
	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
)

type fakeProvider struct {
	name      string
	available bool
	previews  []Preview
	details   map[string]*Detail
	err       error

	mu       sync.Mutex
	searches int
	gets     int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Search(ctx context.Context, q SearchQuery) ([]Preview, int, error) {
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	return append([]Preview(nil), f.previews...), len(f.previews), nil
}

func (f *fakeProvider) Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]Preview(nil), f.previews...), nil
}

func (f *fakeProvider) Get(ctx context.Context, id string) (*Detail, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, nil
	}
	c := d.clone()
	return &c, nil
}

type fakeCached struct {
	rows     []CachedRecipe
	searched []CachedSearch
}

func (f *fakeCached) GetBySource(ctx context.Context, source, id string) (*CachedRecipe, error) {
	for i := range f.rows {
		if f.rows[i].Source() == source && f.rows[i].Detail.ID() == id {
			c := f.rows[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCached) Search(ctx context.Context, s CachedSearch) ([]CachedRecipe, int, error) {
	f.searched = append(f.searched, s)
	var out []CachedRecipe
	for _, r := range f.rows {
		if s.Source != "" && r.Source() != s.Source {
			continue
		}
		if len(s.Categories) > 0 && !slices.ContainsFunc(r.Categories, func(c string) bool { return slices.Contains(s.Categories, c) }) {
			continue
		}
		if s.Query != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(s.Query)) {
			continue
		}
		out = append(out, r)
	}
	total := len(out)
	start := min(s.Offset, total)
	end := min(start+s.Limit, total)
	return out[start:end], total, nil
}

func (f *fakeCached) Discover(ctx context.Context, source, category, cuisine, mealType string, limit int) ([]CachedRecipe, error) {
	var out []CachedRecipe
	for _, r := range f.rows {
		if r.Source() == source && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCached) CountBySource(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, r := range f.rows {
		out[r.Source()]++
	}
	return out, nil
}

type fakeRecipes struct {
	created []recipe.CreateInput
	byExt   map[string]*recipe.Recipe
}

func (f *fakeRecipes) FindImported(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error) {
	return f.byExt[userID+"/"+source+"/"+externalID], nil
}

func (f *fakeRecipes) Create(ctx context.Context, userID string, in recipe.CreateInput) (*recipe.Recipe, error) {
	if err := recipe.ValidateCreate(&in); err != nil {
		return nil, err
	}
	f.created = append(f.created, in)
	return &recipe.Recipe{ID: "r-1", UserID: userID, Title: in.Title, ExternalSource: in.ExternalSource, ExternalID: in.ExternalID}, nil
}

// prefixTranslator marks translated text with "KO:".
type prefixTranslator struct{ calls int }

func (p *prefixTranslator) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	p.calls++
	out := make([]string, len(texts))
	for i, s := range texts {
		if strings.TrimSpace(s) == "" {
			out[i] = s
			continue
		}
		out[i] = "KO:" + s
	}
	return out, nil
}
func (p *prefixTranslator) Ready() bool  { return true }
func (p *prefixTranslator) Name() string { return "prefix" }

func detail(source, id, title string) *Detail {
	d := &Detail{}
	d.Title = title
	d.ExternalSource = ptr(source)
	d.ExternalID = ptr(id)
	d.Servings = 2
	d.Categories = []string{"Dessert"}
	d.Ingredients = []recipe.IngredientInput{{Name: "flour", Amount: 2, Unit: "cup"}}
	d.Instructions = []recipe.InstructionInput{{StepNumber: 1, Description: "Mix."}}
	return d
}

type gatewayFixture struct {
	gw      *Gateway
	spoon   *fakeProvider
	mealdb  *fakeProvider
	cached  *fakeCached
	store   *cache.Memory
	recipes *fakeRecipes
	tr      *prefixTranslator
}

func newGatewayFixture(t *testing.T, searchLimit int) *gatewayFixture {
	t.Helper()
	seed, err := NewKoreanSeed(mealtype.New(nil))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	f := &gatewayFixture{
		spoon:   &fakeProvider{name: SourceSpoonacular, available: true, details: map[string]*Detail{}},
		mealdb:  &fakeProvider{name: SourceTheMealDB, available: true, details: map[string]*Detail{}},
		cached:  &fakeCached{},
		store:   cache.NewMemory(),
		recipes: &fakeRecipes{byExt: map[string]*recipe.Recipe{}},
		tr:      &prefixTranslator{},
	}
	limiter := cache.NewLimiter(f.store, map[string]int{cache.ExternalSearch: searchLimit}, true)
	f.gw = NewGateway(GatewayOptions{
		Providers:  []Provider{f.spoon, f.mealdb},
		Seed:       seed,
		Cached:     f.cached,
		Store:      f.store,
		Limiter:    limiter,
		Translator: f.tr,
		Recipes:    f.recipes,
		Classifier: mealtype.New(nil),
	})
	return f
}

func TestGatewaySearch(t *testing.T) {
	t.Run("cached rows skip the live providers", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.cached.rows = []CachedRecipe{{ID: "c1", Detail: *detail(SourceTheMealDB, "1", "Apple Pie")}}

		page, err := f.gw.Search(context.Background(), "u1", SearchRequest{Query: "apple", Pagination: shared.Pagination{Page: 1, Limit: 10}})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Total != 1 || page.Items[0].Title != "Apple Pie" {
			t.Errorf("unexpected page %+v", page)
		}
		if f.spoon.searches != 0 || f.mealdb.searches != 0 {
			t.Error("live providers should not be called on a cache hit")
		}
	})

	t.Run("live fan-out swallows provider errors", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.spoon.err = errors.New("quota exhausted")
		f.mealdb.previews = []Preview{{Source: SourceTheMealDB, ExternalID: "9", Title: "Zz Stew", Summary: "hearty"}}

		page, err := f.gw.Search(context.Background(), "u1", SearchRequest{Query: "zz"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Total != 1 || len(page.Items) != 1 {
			t.Fatalf("expected one live result, got %+v", page)
		}
		if page.Items[0].Title != "Zz Stew" {
			t.Errorf("themealdb titles must stay untranslated, got %q", page.Items[0].Title)
		}
		if page.Items[0].Summary != "KO:hearty" {
			t.Errorf("summary should be translated, got %q", page.Items[0].Summary)
		}
	})

	t.Run("live search is rate limited", func(t *testing.T) {
		f := newGatewayFixture(t, 1)
		req := SearchRequest{Query: "nothing-matches"}
		if _, err := f.gw.Search(context.Background(), "u1", req); err != nil {
			t.Fatalf("first search: %v", err)
		}
		_, err := f.gw.Search(context.Background(), "u1", req)
		if !apperr.Is(err, "GENERAL_002") {
			t.Errorf("expected rate limit error, got %v", err)
		}
		if _, err := f.gw.Search(context.Background(), "u2", req); err != nil {
			t.Errorf("other users keep their own quota: %v", err)
		}
	})

	t.Run("cuisine filters the cached table and the seed", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		italian := detail(SourceTheMealDB, "1", "Chicken Cacciatore")
		italian.Categories = []string{"Italian"}
		f.cached.rows = []CachedRecipe{
			{ID: "c1", Detail: *italian},
			{ID: "c2", Detail: *detail(SourceTheMealDB, "2", "Chicken Pie")},
		}

		page, err := f.gw.Search(context.Background(), "u1", SearchRequest{Query: "chicken", Cuisine: "Italian"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(f.cached.searched) != 1 || !slices.Equal(f.cached.searched[0].Categories, []string{"Italian"}) {
			t.Fatalf("cuisine not passed to the cached table: %+v", f.cached.searched)
		}
		if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Title != "Chicken Cacciatore" {
			t.Errorf("expected only the italian row, got %+v", page)
		}
	})

	t.Run("seed matches ride along on a cache hit", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.cached.rows = []CachedRecipe{{ID: "c1", Detail: *detail(SourceTheMealDB, "1", "Apple Pie")}}

		page, err := f.gw.Search(context.Background(), "u1", SearchRequest{Pagination: shared.Pagination{Page: 1, Limit: 20}})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Total != 13 || len(page.Items) != 13 {
			t.Errorf("expected 1 cached + 12 seed recipes, got total=%d items=%d", page.Total, len(page.Items))
		}
		if f.spoon.searches != 0 || f.mealdb.searches != 0 {
			t.Error("live providers should not be called on a cache hit")
		}
	})

	t.Run("empty cache with a seed match still fans out", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.spoon.previews = []Preview{{Source: SourceSpoonacular, ExternalID: "1", Title: "Kimchi Pancake"}}

		page, err := f.gw.Search(context.Background(), "u1", SearchRequest{Query: "김치"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if f.spoon.searches != 1 || f.mealdb.searches != 1 {
			t.Fatalf("expected one call per live provider, got spoonacular=%d themealdb=%d", f.spoon.searches, f.mealdb.searches)
		}
		var spoon, seed int
		for _, p := range page.Items {
			switch p.Source {
			case SourceSpoonacular:
				spoon++
			case SourceKoreanSeed:
				seed++
			}
		}
		if spoon != 1 || seed == 0 {
			t.Errorf("expected spoonacular and seed results, got %+v", page.Items)
		}
		if page.Total != spoon+seed {
			t.Errorf("total = %d, want %d", page.Total, spoon+seed)
		}
	})

	t.Run("failed fan-out is not charged when failures are free", func(t *testing.T) {
		f := newGatewayFixture(t, 1)
		f.gw.limiter = cache.NewLimiter(f.store, map[string]int{cache.ExternalSearch: 1}, false)
		f.spoon.err = errors.New("down")
		f.mealdb.err = errors.New("down")
		req := SearchRequest{Query: "nothing-matches"}

		for i := 0; i < 3; i++ {
			if _, err := f.gw.Search(context.Background(), "u1", req); err != nil {
				t.Fatalf("search %d: failed fan-outs must not use quota: %v", i, err)
			}
		}

		f.mealdb.err = nil
		if _, err := f.gw.Search(context.Background(), "u1", req); err != nil {
			t.Fatalf("successful search: %v", err)
		}
		if _, err := f.gw.Search(context.Background(), "u1", req); !apperr.Is(err, "GENERAL_002") {
			t.Errorf("expected rate limit after a charged search, got %v", err)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		_, err := f.gw.Search(context.Background(), "u1", SearchRequest{Query: "x", Source: "nope"})
		if !apperr.Is(err, "GENERAL_001") {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestGatewayGetRecipe(t *testing.T) {
	ctx := context.Background()

	t.Run("cached table wins", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.cached.rows = []CachedRecipe{{ID: "c1", Detail: *detail(SourceSpoonacular, "7", "Cached")}}
		d, err := f.gw.GetRecipe(ctx, SourceSpoonacular, "7")
		if err != nil || d.Title != "Cached" {
			t.Fatalf("got %v, %v", d, err)
		}
		if f.spoon.gets != 0 {
			t.Error("provider should not be called")
		}
	})

	t.Run("live result is translated and cached in redis", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.mealdb.details["5"] = detail(SourceTheMealDB, "5", "Apple Pie")

		d, err := f.gw.GetRecipe(ctx, SourceTheMealDB, "5")
		if err != nil {
			t.Fatalf("GetRecipe failed: %v", err)
		}
		if d.Title != "Apple Pie" || d.TitleOriginal != "Apple Pie" {
			t.Errorf("themealdb title must be kept, got %q", d.Title)
		}
		if d.Ingredients[0].Name != "KO:flour" {
			t.Errorf("ingredients should be translated, got %q", d.Ingredients[0].Name)
		}
		if len(d.MealTypes) == 0 {
			t.Error("expected meal types")
		}

		again, err := f.gw.GetRecipe(ctx, SourceTheMealDB, "5")
		if err != nil || again.Ingredients[0].Name != "KO:flour" {
			t.Fatalf("second read: %v, %v", again, err)
		}
		if f.mealdb.gets != 1 {
			t.Errorf("expected one provider call, got %d", f.mealdb.gets)
		}
	})

	t.Run("spoonacular titles are translated", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.spoon.details["8"] = detail(SourceSpoonacular, "8", "Pancakes")
		d, err := f.gw.GetRecipe(ctx, SourceSpoonacular, "8")
		if err != nil {
			t.Fatal(err)
		}
		if d.Title != "KO:Pancakes" || d.TitleOriginal != "Pancakes" {
			t.Errorf("got title %q original %q", d.Title, d.TitleOriginal)
		}
	})

	t.Run("not found", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		_, err := f.gw.GetRecipe(ctx, SourceTheMealDB, "404")
		if e, ok := apperr.As(err); !ok || e.Status != 404 {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		f.spoon.err = errors.New("boom")
		_, err := f.gw.GetRecipe(ctx, SourceSpoonacular, "1")
		if !apperr.Is(err, "RECIPE_003") {
			t.Errorf("expected external error, got %v", err)
		}
	})

	t.Run("seed recipes are served without translation", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		d, err := f.gw.GetRecipe(ctx, SourceKoreanSeed, "ks-001")
		if err != nil {
			t.Fatal(err)
		}
		if strings.HasPrefix(d.Title, "KO:") || f.tr.calls != 0 {
			t.Error("korean recipes must not be translated")
		}
	})
}

func TestGatewayImportRecipe(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		d := detail(SourceTheMealDB, "3", "Bare")
		d.Servings = 0
		d.Difficulty = "extreme"
		d.Ingredients = []recipe.IngredientInput{{Name: " ", Amount: 0, Unit: ""}}
		d.Instructions = nil
		f.mealdb.details["3"] = d

		rec, err := f.gw.ImportRecipe(ctx, "u1", SourceTheMealDB, "3")
		if err != nil {
			t.Fatalf("ImportRecipe failed: %v", err)
		}
		if rec.ExternalID == nil || *rec.ExternalID != "3" {
			t.Errorf("external id not recorded: %+v", rec)
		}
		in := f.recipes.created[0]
		if in.Servings != 1 || in.Difficulty != recipe.DifficultyMedium {
			t.Errorf("servings=%d difficulty=%q", in.Servings, in.Difficulty)
		}
		if ing := in.Ingredients[0]; ing.Name != "KO:재료" && ing.Name != "재료" || ing.Amount != 1 || ing.Unit != "개" {
			t.Errorf("ingredient defaults not applied: %+v", ing)
		}
		if in.Instructions[0].Description != "원본 레시피를 참고하세요." {
			t.Errorf("instruction fallback not applied: %+v", in.Instructions)
		}
		if len(in.Categories) != 1 || in.Categories[0] != "dessert" {
			t.Errorf("categories not mapped: %v", in.Categories)
		}
	})

	t.Run("reuses an earlier import", func(t *testing.T) {
		f := newGatewayFixture(t, 5)
		existing := &recipe.Recipe{ID: "old"}
		f.recipes.byExt["u1/"+SourceTheMealDB+"/3"] = existing

		rec, err := f.gw.ImportRecipe(ctx, "u1", SourceTheMealDB, "3")
		if err != nil || rec.ID != "old" {
			t.Fatalf("got %v, %v", rec, err)
		}
		if len(f.recipes.created) != 0 || f.mealdb.gets != 0 {
			t.Error("expected no fetch and no create")
		}
	})
}

func TestImportInputFallbacks(t *testing.T) {
	d := &Detail{}
	in := importInput(d, SourceMafra, "77")
	if in.Title != "mafra 77" {
		t.Errorf("title = %q", in.Title)
	}
	if len(in.Ingredients) != 1 || in.Ingredients[0].Name != "재료 정보 없음" {
		t.Errorf("ingredients = %+v", in.Ingredients)
	}
	if err := recipe.ValidateCreate(&in); err != nil {
		t.Errorf("import payload should validate: %v", err)
	}
}

func TestGatewayDiscover(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, 5)
	f.cached.rows = []CachedRecipe{{ID: "c1", Detail: *detail(SourceSpoonacular, "1", "Cached Cake")}}
	f.mealdb.previews = []Preview{{Source: SourceTheMealDB, ExternalID: "2", Title: "Live Soup"}}

	res, err := f.gw.Discover(ctx, DiscoverRequest{Number: 6})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(res.Spoonacular) != 1 || res.Spoonacular[0].Title != "Cached Cake" {
		t.Errorf("spoonacular = %+v", res.Spoonacular)
	}
	if len(res.TheMealDB) != 1 || len(res.TheMealDB[0].MealTypes) == 0 {
		t.Errorf("themealdb = %+v", res.TheMealDB)
	}
	if len(res.KoreanSeed) != 2 {
		t.Errorf("expected 2 seed recipes, got %d", len(res.KoreanSeed))
	}
	if res.Total != len(res.Spoonacular)+len(res.TheMealDB)+len(res.KoreanSeed) {
		t.Errorf("total = %d", res.Total)
	}

	f.mealdb.previews = nil
	again, err := f.gw.Discover(ctx, DiscoverRequest{Number: 6})
	if err != nil {
		t.Fatal(err)
	}
	if len(again.TheMealDB) != 1 {
		t.Error("second call should be served from the response cache")
	}

	if _, err := f.gw.Discover(ctx, DiscoverRequest{MealType: "brunch"}); !apperr.Is(err, "GENERAL_001") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGatewaySourcesAndStatus(t *testing.T) {
	f := newGatewayFixture(t, 5)
	f.spoon.available = false
	f.cached.rows = []CachedRecipe{
		{ID: "a", Detail: *detail(SourceTheMealDB, "1", "A")},
		{ID: "b", Detail: *detail(SourceTheMealDB, "2", "B")},
	}

	avail := map[string]bool{}
	for _, s := range f.gw.Sources() {
		avail[s.ID] = s.Available
	}
	if avail[SourceSpoonacular] || !avail[SourceTheMealDB] || !avail[SourceKoreanSeed] || avail[SourceMafra] {
		t.Errorf("unexpected availability %v", avail)
	}

	st, err := f.gw.CacheStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 2 || st.Sources[SourceTheMealDB] != 2 {
		t.Errorf("status = %+v", st)
	}
}
