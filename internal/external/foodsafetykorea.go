package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"meal-planner/internal/recipe"
)

const (
	foodSafetyBase    = "http://openapi.foodsafetykorea.go.kr/api"
	foodSafetyService = "COOKRCP01"
	foodSafetyPage    = 1000
)

// FoodSafetyKorea is the Ministry of Food and Drug Safety recipe API
// (COOKRCP01). Rows are addressed by position; there is no id lookup.
type FoodSafetyKorea struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewFoodSafetyKorea(apiKey string) *FoodSafetyKorea {
	return &FoodSafetyKorea{apiKey: apiKey, baseURL: foodSafetyBase, httpClient: newHTTPClient()}
}

func (f *FoodSafetyKorea) Name() string    { return SourceFoodSafetyKorea }
func (f *FoodSafetyKorea) Available() bool { return f.apiKey != "" }

type cookRow map[string]string

type cookResponse struct {
	Body struct {
		TotalCount string    `json:"total_count"`
		Rows       []cookRow `json:"row"`
		Result     struct {
			Code    string `json:"CODE"`
			Message string `json:"MSG"`
		} `json:"RESULT"`
	} `json:"COOKRCP01"`
}

// rows fetches positions start..end (1-based, inclusive) with optional
// filters such as RCP_NM.
func (f *FoodSafetyKorea) rows(ctx context.Context, start, end int, filters map[string]string) ([]cookRow, int, error) {
	if !f.Available() {
		return nil, 0, fmt.Errorf("foodsafetykorea api key not configured")
	}
	u := fmt.Sprintf("%s/%s/%s/json/%d/%d", f.baseURL, url.PathEscape(f.apiKey), foodSafetyService, start, end)
	for k, v := range filters {
		if v != "" {
			u += "/" + k + "=" + url.PathEscape(v)
		}
	}
	var resp cookResponse
	if err := getJSON(ctx, f.httpClient, u, &resp); err != nil {
		return nil, 0, fmt.Errorf("foodsafetykorea: %w", err)
	}
	switch resp.Body.Result.Code {
	case "", "INFO-000":
	case "INFO-200":
		return nil, 0, nil
	default:
		return nil, 0, fmt.Errorf("foodsafetykorea: %s %s", resp.Body.Result.Code, resp.Body.Result.Message)
	}
	total, _ := strconv.Atoi(resp.Body.TotalCount)
	return resp.Body.Rows, total, nil
}

func (f *FoodSafetyKorea) Search(ctx context.Context, q SearchQuery) ([]Preview, int, error) {
	n := max(q.Number, 1)
	rows, total, err := f.rows(ctx, q.Offset+1, q.Offset+n, map[string]string{"RCP_NM": q.Query})
	if err != nil {
		return nil, 0, err
	}
	out := make([]Preview, len(rows))
	for i, r := range rows {
		out[i] = cookRowToDetail(r).Preview()
	}
	return out, total, nil
}

var foodSafetyDishTypes = map[string]string{
	"side":    "반찬",
	"dessert": "후식",
	"dinner":  "일품",
	"lunch":   "밥",
	"soup":    "국&찌개",
}

func (f *FoodSafetyKorea) Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error) {
	filters := map[string]string{}
	if dish, ok := foodSafetyDishTypes[strings.ToLower(q.Category)]; ok {
		filters["RCP_PAT2"] = dish
	}
	rows, _, err := f.rows(ctx, 1, max(q.Number, 1), filters)
	if err != nil {
		return nil, err
	}
	out := make([]Preview, len(rows))
	for i, r := range rows {
		out[i] = cookRowToDetail(r).Preview()
	}
	return out, nil
}

func (f *FoodSafetyKorea) Get(ctx context.Context, id string) (*Detail, error) {
	for start := 1; ; start += foodSafetyPage {
		rows, total, err := f.rows(ctx, start, start+foodSafetyPage-1, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r["RCP_SEQ"] == id {
				return cookRowToDetail(r), nil
			}
		}
		if len(rows) == 0 || start+foodSafetyPage > total {
			return nil, nil
		}
	}
}

func cookRowToDetail(r cookRow) *Detail {
	d := &Detail{}
	d.Title = strings.TrimSpace(r["RCP_NM"])
	d.ExternalSource = ptr(SourceFoodSafetyKorea)
	d.ExternalID = ptr(r["RCP_SEQ"])
	d.ImageURL = optString(r["ATT_FILE_NO_MAIN"])
	d.Description = optString(r["RCP_NA_TIP"])
	d.Servings = 1

	if pat := strings.TrimSpace(r["RCP_PAT2"]); pat != "" {
		d.Categories = []string{pat}
	}
	if way := strings.TrimSpace(r["RCP_WAY2"]); way != "" {
		d.Tags = append(d.Tags, way)
	}
	if tag := strings.TrimSpace(r["HASH_TAG"]); tag != "" {
		d.Tags = append(d.Tags, tag)
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(r["INFO_ENG"]), 64); err == nil {
		d.Calories = ptr(int(v + 0.5))
	}
	d.ProteinGrams = parseGrams(r["INFO_PRO"])
	d.CarbsGrams = parseGrams(r["INFO_CAR"])
	d.FatGrams = parseGrams(r["INFO_FAT"])

	d.Ingredients = parseKoreanParts(r["RCP_PARTS_DTLS"], d.Title)

	for i := 1; i <= 20; i++ {
		key := fmt.Sprintf("%02d", i)
		text := strings.TrimSpace(stepPrefix.ReplaceAllString(strings.TrimSpace(r["MANUAL"+key]), ""))
		if text == "" {
			continue
		}
		d.Instructions = append(d.Instructions, recipe.InstructionInput{
			StepNumber:  len(d.Instructions) + 1,
			Description: text,
			ImageURL:    optString(r["MANUAL_IMG"+key]),
		})
	}
	d.Difficulty = difficultyFor(0, len(d.Instructions))
	return d
}

func parseGrams(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return ptr(recipe.Round2(v))
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	measureToken  = regexp.MustCompile(`\s*(\d[\d./~\-]*\s*[^\s\d]*)$`)
)

// parseKoreanParts reads ingredient text written as "연두부 75g(3/4모),
// 칵테일새우 20g". Section labels such as "●주재료 :" and a first line that
// only repeats the dish name are skipped.
func parseKoreanParts(text, title string) []recipe.IngredientInput {
	var out []recipe.IngredientInput
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == title {
			continue
		}
		if _, after, ok := strings.Cut(line, ":"); ok {
			line = after
		}
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(parenthetical.ReplaceAllString(part, ""))
			part = strings.TrimLeft(part, "●•·- ")
			if part == "" {
				continue
			}
			ing := recipe.IngredientInput{Name: part, Amount: 1, Unit: recipe.DefaultUnit}
			if m := measureToken.FindStringSubmatchIndex(part); m != nil && m[0] > 0 {
				amount, unit := recipe.ParseMeasure(part[m[2]:m[3]])
				if amount > 0 {
					ing.Name = strings.TrimSpace(part[:m[0]])
					ing.Amount = amount
					if unit != "" {
						ing.Unit = unit
					}
				}
			}
			ing.OrderIndex = len(out)
			out = append(out, ing)
		}
	}
	return out
}
