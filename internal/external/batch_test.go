package external

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"

	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
)

type memBatchStore struct {
	rows map[string]*CachedRecipe // by row id
	seq  int
}

func newMemBatchStore() *memBatchStore {
	return &memBatchStore{rows: map[string]*CachedRecipe{}}
}

func (m *memBatchStore) find(source, extID string) *CachedRecipe {
	for _, r := range m.rows {
		if r.Source() == source && r.Detail.ID() == extID {
			return r
		}
	}
	return nil
}

func (m *memBatchStore) ExistingIDs(ctx context.Context, source string, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if m.find(source, id) != nil {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memBatchStore) Upsert(ctx context.Context, c *CachedRecipe) error {
	if existing := m.find(c.Source(), c.Detail.ID()); existing != nil {
		c.ID = existing.ID
	} else {
		m.seq++
		c.ID = "row-" + strconv.Itoa(1000+m.seq)
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memBatchStore) CountBySource(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, r := range m.rows {
		out[r.Source()]++
	}
	return out, nil
}

func (m *memBatchStore) page(afterID string, limit int, keep func(*CachedRecipe) bool) []CachedRecipe {
	var ids []string
	for id, r := range m.rows {
		if id > afterID && keep(r) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]CachedRecipe, len(ids))
	for i, id := range ids {
		out[i] = *m.rows[id]
		out[i].Detail = m.rows[id].Detail.clone()
	}
	return out
}

func (m *memBatchStore) Untranslated(ctx context.Context, source, afterID string, limit int) ([]CachedRecipe, error) {
	return m.page(afterID, limit, func(r *CachedRecipe) bool {
		return (source == "" || r.Source() == source) &&
			(r.TranslationStatus == TranslationPending || r.TranslationStatus == TranslationFailed)
	}), nil
}

func (m *memBatchStore) UntranslatedTitles(ctx context.Context, source, afterID string, limit int) ([]CachedRecipe, error) {
	return m.page(afterID, limit, func(r *CachedRecipe) bool {
		return (source == "" || r.Source() == source) && r.Title == r.TitleOriginal
	}), nil
}

func (m *memBatchStore) SaveTranslation(ctx context.Context, c *CachedRecipe) error {
	r := m.rows[c.ID]
	r.Title, r.Description, r.Tags = c.Title, c.Description, c.Tags
	r.Ingredients, r.Instructions = c.Ingredients, c.Instructions
	r.TranslationStatus, r.TranslatedAt = c.TranslationStatus, c.TranslatedAt
	return nil
}

func (m *memBatchStore) MissingMealTypes(ctx context.Context, afterID string, limit int) ([]CachedRecipe, error) {
	return m.page(afterID, limit, func(r *CachedRecipe) bool { return len(r.MealTypes) == 0 }), nil
}

func (m *memBatchStore) SetMealTypes(ctx context.Context, id string, mealTypes []string) error {
	m.rows[id].MealTypes = mealTypes
	return nil
}

type fakeMealDB struct {
	ids     []string
	details map[string]*Detail
}

func (f *fakeMealDB) FetchIDs(ctx context.Context) ([]string, error) { return f.ids, nil }
func (f *fakeMealDB) Get(ctx context.Context, id string) (*Detail, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, errors.New("lookup failed")
	}
	c := d.clone()
	return &c, nil
}

type fakeSpoon struct {
	total   int
	offsets []int
}

func (f *fakeSpoon) Available() bool { return true }
func (f *fakeSpoon) SearchIDs(ctx context.Context, offset, number int) ([]string, int, error) {
	f.offsets = append(f.offsets, offset)
	var ids []string
	for i := offset; i < min(offset+number, f.total); i++ {
		ids = append(ids, strconv.Itoa(i+1))
	}
	return ids, f.total, nil
}
func (f *fakeSpoon) Get(ctx context.Context, id string) (*Detail, error) {
	return detail(SourceSpoonacular, id, "Spoon "+id), nil
}

type recordingNotifier struct{ messages []string }

func (r *recordingNotifier) Notify(ctx context.Context, text string) error {
	r.messages = append(r.messages, text)
	return nil
}

func newTestBatch(store *memBatchStore, opts BatchOptions) *Batch {
	opts.Store = store
	opts.Classifier = mealtype.New(nil)
	b := NewBatch(opts)
	b.pace = 0
	return b
}

func TestPrefetchTheMealDB(t *testing.T) {
	store := newMemBatchStore()
	mealdb := &fakeMealDB{
		ids: []string{"1", "2", "3"},
		details: map[string]*Detail{
			"1": detail(SourceTheMealDB, "1", "Apple Pie"),
			"2": detail(SourceTheMealDB, "2", "Beef Stew"),
		},
	}
	notifier := &recordingNotifier{}
	b := newTestBatch(store, BatchOptions{MealDB: mealdb, Translator: &prefixTranslator{}, Notifier: notifier})

	stats, err := b.Prefetch(context.Background(), PrefetchOptions{Source: SourceTheMealDB, Translate: true})
	if err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}
	st := stats[SourceTheMealDB]
	if st.Total != 3 || st.New != 2 || st.Failed != 1 || st.Translated != 2 {
		t.Errorf("unexpected stats %+v", st)
	}

	row := store.find(SourceTheMealDB, "1")
	if row.Title != "Apple Pie" || row.TitleOriginal != "Apple Pie" {
		t.Errorf("themealdb title must stay original, got %q", row.Title)
	}
	if row.Ingredients[0].Name != "KO:flour" || row.TranslationStatus != TranslationCompleted || row.TranslatedAt == nil {
		t.Errorf("row not translated: %+v", row)
	}
	if len(row.MealTypes) == 0 {
		t.Error("expected meal types on prefetched rows")
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "themealdb") {
		t.Errorf("expected a report, got %v", notifier.messages)
	}

	again, err := b.Prefetch(context.Background(), PrefetchOptions{Source: SourceTheMealDB})
	if err != nil {
		t.Fatal(err)
	}
	if again[SourceTheMealDB].Skipped != 2 || again[SourceTheMealDB].New != 0 {
		t.Errorf("second run should skip existing rows: %+v", again[SourceTheMealDB])
	}
}

func TestPrefetchDryRunWritesNothing(t *testing.T) {
	store := newMemBatchStore()
	notifier := &recordingNotifier{}
	b := newTestBatch(store, BatchOptions{
		MealDB:   &fakeMealDB{ids: []string{"1"}, details: map[string]*Detail{"1": detail(SourceTheMealDB, "1", "A")}},
		Notifier: notifier,
	})
	if _, err := b.Prefetch(context.Background(), PrefetchOptions{Source: "all", DryRun: true}); err != nil {
		t.Fatal(err)
	}
	if len(store.rows) != 0 || len(notifier.messages) != 0 {
		t.Error("dry run must not write or report")
	}
}

func TestPrefetchSpoonacularResumes(t *testing.T) {
	store := newMemBatchStore()
	store.Upsert(context.Background(), &CachedRecipe{Detail: *detail(SourceSpoonacular, "1", "Existing")})
	spoon := &fakeSpoon{total: 50}
	b := newTestBatch(store, BatchOptions{Spoonacular: spoon})

	stats, err := b.Prefetch(context.Background(), PrefetchOptions{Source: SourceSpoonacular, Max: 15})
	if err != nil {
		t.Fatal(err)
	}
	st := stats[SourceSpoonacular]
	if st.New != 15 {
		t.Errorf("expected 15 new, got %+v", st)
	}
	if spoon.offsets[0] != 1 {
		t.Errorf("expected to resume at offset 1, got %v", spoon.offsets)
	}
	if row := store.find(SourceSpoonacular, "2"); row == nil || row.TranslationStatus != TranslationPending {
		t.Errorf("untranslated rows should stay pending: %+v", row)
	}
}

func TestPrefetchUnknownSource(t *testing.T) {
	b := newTestBatch(newMemBatchStore(), BatchOptions{})
	if _, err := b.Prefetch(context.Background(), PrefetchOptions{Source: "mafra"}); err == nil {
		t.Error("expected error")
	}
}

func TestTranslateExisting(t *testing.T) {
	store := newMemBatchStore()
	for i := 0; i < 3; i++ {
		c := &CachedRecipe{Detail: *detail(SourceSpoonacular, strconv.Itoa(i), "Soup "+strconv.Itoa(i)), TranslationStatus: TranslationPending}
		c.TitleOriginal = c.Title
		store.Upsert(context.Background(), c)
	}

	b := newTestBatch(store, BatchOptions{Translator: &prefixTranslator{}})
	st, err := b.TranslateExisting(context.Background(), "all")
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.Translated != 3 {
		t.Errorf("stats = %+v", st)
	}
	row := store.find(SourceSpoonacular, "0")
	if row.Title != "KO:Soup 0" || row.TitleOriginal != "Soup 0" || row.TranslationStatus != TranslationCompleted {
		t.Errorf("row = %+v", row)
	}

	if _, err := newTestBatch(store, BatchOptions{}).TranslateExisting(context.Background(), ""); err == nil {
		t.Error("expected error without a translator")
	}
}

func TestTranslateLLM(t *testing.T) {
	store := newMemBatchStore()
	english := &CachedRecipe{Detail: *detail(SourceTheMealDB, "1", "Apple Pie"), TranslationStatus: TranslationFailed}
	english.TitleOriginal = "Apple Pie"
	korean := &CachedRecipe{Detail: *detail(SourceTheMealDB, "2", "Bibimbap"), TranslationStatus: TranslationPending}
	korean.TitleOriginal = "Bibimbap"
	korean.Ingredients = []recipe.IngredientInput{{Name: "밥", Amount: 1, Unit: "공기"}}
	store.Upsert(context.Background(), english)
	store.Upsert(context.Background(), korean)

	b := newTestBatch(store, BatchOptions{LLMTranslator: &prefixTranslator{}})
	st, err := b.TranslateLLM(context.Background(), SourceTheMealDB)
	if err != nil {
		t.Fatal(err)
	}
	if st.Titles != 2 {
		t.Errorf("expected both titles translated, got %+v", st)
	}
	if st.Full != 1 {
		t.Errorf("expected only the english recipe fully translated, got %+v", st)
	}
	if row := store.find(SourceTheMealDB, "1"); row.Ingredients[0].Name != "KO:flour" {
		t.Errorf("ingredients not translated: %+v", row.Ingredients)
	}
}

func TestTagMealTypes(t *testing.T) {
	store := newMemBatchStore()
	tagged := &CachedRecipe{Detail: *detail(SourceTheMealDB, "1", "Tagged")}
	tagged.MealTypes = []string{"dinner"}
	store.Upsert(context.Background(), tagged)
	store.Upsert(context.Background(), &CachedRecipe{Detail: *detail(SourceTheMealDB, "2", "Pancakes")})

	b := newTestBatch(store, BatchOptions{})

	dry, err := b.TagMealTypes(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if dry.Total != 2 || dry.Tagged != 1 || dry.Skipped != 1 {
		t.Errorf("dry run stats = %+v", dry)
	}
	if len(store.find(SourceTheMealDB, "2").MealTypes) != 0 {
		t.Error("dry run must not write")
	}

	if _, err := b.TagMealTypes(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if len(store.find(SourceTheMealDB, "2").MealTypes) == 0 {
		t.Error("expected meal types written")
	}
}

func TestHasEnglishIngredients(t *testing.T) {
	cases := []struct {
		names []string
		want  bool
	}{
		{nil, false},
		{[]string{"flour"}, true},
		{[]string{"밀가루", "설탕"}, false},
		{[]string{"밀가루", "설탕", "소금", "butter"}, false},
		{[]string{"MSG 약간"}, false},
	}
	for _, c := range cases {
		var ings []recipe.IngredientInput
		for _, n := range c.names {
			ings = append(ings, recipe.IngredientInput{Name: n})
		}
		if got := hasEnglishIngredients(ings); got != c.want {
			t.Errorf("hasEnglishIngredients(%v) = %v, want %v", c.names, got, c.want)
		}
	}
}
