package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"meal-planner/internal/recipe"

	"golang.org/x/sync/errgroup"
)

const (
	mafraBase         = "http://211.237.50.150:7080/openapi"
	mafraBasicGrid    = "Grid_20150827000000000226_1"
	mafraIngredGrid   = "Grid_20150827000000000227_1"
	mafraProcessGrid  = "Grid_20150827000000000228_1"
	mafraMaxRowsQuery = 1000
)

// Mafra is the agri-food public data recipe API. A recipe is spread over
// three grids: basic info, ingredients and cooking steps.
type Mafra struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewMafra(apiKey string) *Mafra {
	return &Mafra{apiKey: apiKey, baseURL: mafraBase, httpClient: newHTTPClient()}
}

func (m *Mafra) Name() string    { return SourceMafra }
func (m *Mafra) Available() bool { return m.apiKey != "" }

type gridRow map[string]any

func (r gridRow) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (m *Mafra) grid(ctx context.Context, grid string, start, end int, filters url.Values) ([]gridRow, int, error) {
	if !m.Available() {
		return nil, 0, fmt.Errorf("mafra api key not configured")
	}
	u := fmt.Sprintf("%s/%s/json/%s/%d/%d", m.baseURL, url.PathEscape(m.apiKey), grid, start, end)
	if len(filters) > 0 {
		u += "?" + filters.Encode()
	}
	var raw map[string]json.RawMessage
	if err := getJSON(ctx, m.httpClient, u, &raw); err != nil {
		return nil, 0, fmt.Errorf("mafra %s: %w", grid, err)
	}
	body, ok := raw[grid]
	if !ok {
		return nil, 0, fmt.Errorf("mafra %s: missing grid in response", grid)
	}
	var parsed struct {
		TotalCnt int       `json:"totalCnt"`
		Rows     []gridRow `json:"row"`
		Result   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("mafra %s: failed to decode grid: %w", grid, err)
	}
	if parsed.Result.Code != "" && parsed.Result.Code != "INFO-000" {
		return nil, 0, fmt.Errorf("mafra %s: %s %s", grid, parsed.Result.Code, parsed.Result.Message)
	}
	return parsed.Rows, parsed.TotalCnt, nil
}

func (m *Mafra) Search(ctx context.Context, q SearchQuery) ([]Preview, int, error) {
	filters := url.Values{}
	if q.Query != "" {
		filters.Set("RECIPE_NM_KO", q.Query)
	}
	n := max(q.Number, 1)
	rows, total, err := m.grid(ctx, mafraBasicGrid, q.Offset+1, q.Offset+n, filters)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Preview, len(rows))
	for i, r := range rows {
		out[i] = mafraBasic(r).Preview()
	}
	return out, total, nil
}

func (m *Mafra) Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error) {
	filters := url.Values{}
	if q.Cuisine != "" {
		filters.Set("NATION_NM", q.Cuisine)
	}
	rows, _, err := m.grid(ctx, mafraBasicGrid, 1, max(q.Number, 1), filters)
	if err != nil {
		return nil, err
	}
	out := make([]Preview, len(rows))
	for i, r := range rows {
		out[i] = mafraBasic(r).Preview()
	}
	return out, nil
}

// Get loads the three grids for one recipe concurrently.
func (m *Mafra) Get(ctx context.Context, id string) (*Detail, error) {
	filter := url.Values{"RECIPE_ID": {id}}
	var basic, ingreds, steps []gridRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		basic, _, err = m.grid(gctx, mafraBasicGrid, 1, 1, filter)
		return err
	})
	g.Go(func() (err error) {
		ingreds, _, err = m.grid(gctx, mafraIngredGrid, 1, mafraMaxRowsQuery, filter)
		return err
	})
	g.Go(func() (err error) {
		steps, _, err = m.grid(gctx, mafraProcessGrid, 1, mafraMaxRowsQuery, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(basic) == 0 {
		return nil, nil
	}

	d := mafraBasic(basic[0])

	sort.SliceStable(ingreds, func(i, j int) bool {
		a, _ := strconv.Atoi(ingreds[i].str("IRDNT_SN"))
		b, _ := strconv.Atoi(ingreds[j].str("IRDNT_SN"))
		return a < b
	})
	for _, r := range ingreds {
		name := r.str("IRDNT_NM")
		if name == "" {
			continue
		}
		ing := recipe.IngredientInput{Name: name, Amount: 1, Unit: recipe.DefaultUnit, OrderIndex: len(d.Ingredients)}
		capacity := r.str("IRDNT_CPCTY")
		if amount, unit := recipe.ParseMeasure(capacity); amount > 0 {
			ing.Amount = amount
			if unit != "" {
				ing.Unit = unit
			}
		} else if capacity != "" {
			ing.Notes = ptr(capacity)
		}
		d.Ingredients = append(d.Ingredients, ing)
	}

	sort.SliceStable(steps, func(i, j int) bool {
		a, _ := strconv.Atoi(steps[i].str("COOKING_NO"))
		b, _ := strconv.Atoi(steps[j].str("COOKING_NO"))
		return a < b
	})
	for _, r := range steps {
		text := r.str("COOKING_DC")
		if text == "" {
			continue
		}
		d.Instructions = append(d.Instructions, recipe.InstructionInput{
			StepNumber:  len(d.Instructions) + 1,
			Description: text,
			ImageURL:    optString(r.str("STRE_STEP_IMAGE_URL")),
		})
	}
	return d, nil
}

var mafraLevels = map[string]string{
	"초보환영": recipe.DifficultyEasy,
	"보통":   recipe.DifficultyMedium,
	"어려움":  recipe.DifficultyHard,
}

func mafraBasic(r gridRow) *Detail {
	d := &Detail{}
	d.Title = r.str("RECIPE_NM_KO")
	d.ExternalSource = ptr(SourceMafra)
	d.ExternalID = ptr(r.str("RECIPE_ID"))
	d.Description = optString(r.str("SUMRY"))
	d.ImageURL = optString(r.str("IMG_URL"))
	d.SourceURL = optString(r.str("DET_URL"))

	d.Servings = leadingInt(r.str("QNT"))
	if d.Servings <= 0 {
		d.Servings = 4
	}
	if mins := leadingInt(r.str("COOKING_TIME")); mins > 0 {
		d.CookTimeMinutes = ptr(mins)
	}
	if kcal := leadingInt(r.str("CALORIE")); kcal > 0 {
		d.Calories = ptr(kcal)
	}
	d.Difficulty = mafraLevels[r.str("LEVEL_NM")]
	if d.Difficulty == "" {
		d.Difficulty = recipe.DifficultyMedium
	}
	if ty := r.str("TY_NM"); ty != "" {
		d.Categories = []string{ty}
	}
	if nation := r.str("NATION_NM"); nation != "" {
		d.Tags = append(d.Tags, nation)
	}
	return d
}

// leadingInt reads the number at the start of values like "60분" or "4인분".
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
