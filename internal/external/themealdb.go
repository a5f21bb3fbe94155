package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"meal-planner/internal/recipe"

	"golang.org/x/sync/errgroup"
)

const theMealDBBase = "https://www.themealdb.com/api/json/v1/"

// TheMealDB is the free TheMealDB API. Its titles are proper dish names and
// are not translated.
type TheMealDB struct {
	baseURL    string
	httpClient *http.Client
}

func NewTheMealDB(apiKey string) *TheMealDB {
	if apiKey == "" {
		apiKey = "1"
	}
	return &TheMealDB{baseURL: theMealDBBase + apiKey, httpClient: newHTTPClient()}
}

func (m *TheMealDB) Name() string    { return SourceTheMealDB }
func (m *TheMealDB) Available() bool { return true }

// meal mirrors TheMealDB's flat JSON, including strIngredient1..20 and
// strMeasure1..20, hence the map.
type meal map[string]*string

func (ml meal) get(key string) string {
	if v := ml[key]; v != nil {
		return strings.TrimSpace(*v)
	}
	return ""
}

type mealsResponse struct {
	Meals []meal `json:"meals"`
}

func (m *TheMealDB) meals(ctx context.Context, path string, params url.Values) ([]meal, error) {
	u := m.baseURL + "/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var resp mealsResponse
	if err := getJSON(ctx, m.httpClient, u, &resp); err != nil {
		return nil, fmt.Errorf("themealdb %s: %w", path, err)
	}
	return resp.Meals, nil
}

func (m *TheMealDB) Search(ctx context.Context, q SearchQuery) ([]Preview, int, error) {
	meals, err := m.meals(ctx, "search.php", url.Values{"s": {q.Query}})
	if err != nil {
		return nil, 0, err
	}
	out := make([]Preview, 0, len(meals))
	for _, ml := range meals {
		d := mealToDetail(ml)
		out = append(out, d.Preview())
	}
	return out, len(out), nil
}

// Discover filters by area or category when given, otherwise samples
// random meals.
func (m *TheMealDB) Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error) {
	var (
		meals []meal
		err   error
	)
	switch {
	case q.Cuisine != "":
		meals, err = m.meals(ctx, "filter.php", url.Values{"a": {capitalize(q.Cuisine)}})
	case q.Category != "":
		meals, err = m.meals(ctx, "filter.php", url.Values{"c": {capitalize(q.Category)}})
	default:
		return m.random(ctx, q.Number)
	}
	if err != nil {
		return nil, err
	}
	out := make([]Preview, 0, len(meals))
	for _, ml := range meals {
		if q.Number > 0 && len(out) >= q.Number {
			break
		}
		p := Preview{
			Source:     SourceTheMealDB,
			ExternalID: ml.get("idMeal"),
			Title:      ml.get("strMeal"),
			ImageURL:   optString(ml.get("strMealThumb")),
			MealTypes:  []string{},
		}
		if q.Category != "" {
			p.Category = ptr(capitalize(q.Category))
			p.categories = []string{q.Category}
		}
		out = append(out, p)
	}
	return out, nil
}

// random calls random.php n times concurrently; duplicates are dropped.
func (m *TheMealDB) random(ctx context.Context, n int) ([]Preview, error) {
	if n <= 0 {
		n = 1
	}
	results := make([]*Detail, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			meals, err := m.meals(gctx, "random.php", nil)
			if err != nil {
				return err
			}
			if len(meals) > 0 {
				results[i] = mealToDetail(meals[0])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []Preview
	for _, d := range results {
		if d == nil || seen[d.ID()] {
			continue
		}
		seen[d.ID()] = true
		out = append(out, d.Preview())
	}
	return out, nil
}

func (m *TheMealDB) Get(ctx context.Context, id string) (*Detail, error) {
	meals, err := m.meals(ctx, "lookup.php", url.Values{"i": {id}})
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return nil, nil
	}
	return mealToDetail(meals[0]), nil
}

// Areas lists the cuisines TheMealDB knows.
func (m *TheMealDB) Areas(ctx context.Context) ([]string, error) {
	meals, err := m.meals(ctx, "list.php", url.Values{"a": {"list"}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(meals))
	for _, ml := range meals {
		if a := ml.get("strArea"); a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// MealCategory is one TheMealDB category.
type MealCategory struct {
	Name        string `json:"name"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`
}

func (m *TheMealDB) Categories(ctx context.Context) ([]MealCategory, error) {
	var resp struct {
		Categories []struct {
			Name        string `json:"strCategory"`
			Thumbnail   string `json:"strCategoryThumb"`
			Description string `json:"strCategoryDescription"`
		} `json:"categories"`
	}
	if err := getJSON(ctx, m.httpClient, m.baseURL+"/categories.php", &resp); err != nil {
		return nil, fmt.Errorf("themealdb categories: %w", err)
	}
	out := make([]MealCategory, len(resp.Categories))
	for i, c := range resp.Categories {
		out[i] = MealCategory{Name: c.Name, Thumbnail: c.Thumbnail, Description: c.Description}
	}
	return out, nil
}

// FetchIDs collects every meal id reachable through the category filters.
func (m *TheMealDB) FetchIDs(ctx context.Context) ([]string, error) {
	cats, err := m.Categories(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, c := range cats {
		meals, err := m.meals(ctx, "filter.php", url.Values{"c": {c.Name}})
		if err != nil {
			return nil, err
		}
		for _, ml := range meals {
			if id := ml.get("idMeal"); id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func mealToDetail(ml meal) *Detail {
	d := &Detail{}
	d.Title = ml.get("strMeal")
	d.TitleOriginal = d.Title
	d.ExternalSource = ptr(SourceTheMealDB)
	d.ExternalID = ptr(ml.get("idMeal"))
	d.ImageURL = optString(ml.get("strMealThumb"))
	d.SourceURL = optString(ml.get("strSource"))
	if d.SourceURL == nil {
		d.SourceURL = optString(ml.get("strYoutube"))
	}
	d.Servings = 4

	if c := ml.get("strCategory"); c != "" {
		d.Categories = []string{c}
	}
	if area := ml.get("strArea"); area != "" {
		d.Tags = append(d.Tags, strings.ToLower(area))
	}
	for _, tag := range strings.Split(ml.get("strTags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			d.Tags = append(d.Tags, tag)
		}
	}

	for i := 1; i <= 20; i++ {
		name := ml.get(fmt.Sprintf("strIngredient%d", i))
		if name == "" {
			continue
		}
		measure := ml.get(fmt.Sprintf("strMeasure%d", i))
		amount, unit, notes := splitMeasure(measure)
		d.Ingredients = append(d.Ingredients, recipe.IngredientInput{
			Name: name, Amount: amount, Unit: unit, Notes: notes, OrderIndex: len(d.Ingredients),
		})
	}
	d.Instructions = splitSteps(ml.get("strInstructions"))
	d.Difficulty = difficultyFor(0, len(d.Instructions))
	return d
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// splitMeasure reads "1 cup chopped" as amount 1, unit "cup", notes
// "chopped". A measure without a number such as "pinch" becomes a note.
func splitMeasure(measure string) (float64, string, *string) {
	amount, rest := recipe.ParseMeasure(measure)
	if amount <= 0 {
		return 1, recipe.DefaultUnit, optString(measure)
	}
	unit, notes, _ := strings.Cut(rest, " ")
	if unit == "" {
		unit = recipe.DefaultUnit
	}
	return amount, unit, optString(notes)
}
