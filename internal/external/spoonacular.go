package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"meal-planner/internal/recipe"
)

const spoonacularBase = "https://api.spoonacular.com"

var errSpoonacularNotFound = errors.New("spoonacular recipe not found")

// Spoonacular is the keyed Spoonacular API.
type Spoonacular struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewSpoonacular(apiKey string) *Spoonacular {
	return &Spoonacular{apiKey: apiKey, baseURL: spoonacularBase, httpClient: newHTTPClient()}
}

func (s *Spoonacular) Name() string    { return SourceSpoonacular }
func (s *Spoonacular) Available() bool { return s.apiKey != "" }

type spoonRecipe struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Image              string   `json:"image"`
	Summary            string   `json:"summary"`
	ReadyInMinutes     int      `json:"readyInMinutes"`
	PreparationMinutes *int     `json:"preparationMinutes"`
	CookingMinutes     *int     `json:"cookingMinutes"`
	Servings           int      `json:"servings"`
	SourceURL          string   `json:"sourceUrl"`
	DishTypes          []string `json:"dishTypes"`
	Cuisines           []string `json:"cuisines"`
	Diets              []string `json:"diets"`
	Instructions       string   `json:"instructions"`

	ExtendedIngredients []struct {
		Name     string  `json:"name"`
		Amount   float64 `json:"amount"`
		Unit     string  `json:"unit"`
		Original string  `json:"original"`
	} `json:"extendedIngredients"`

	AnalyzedInstructions []struct {
		Steps []struct {
			Number int    `json:"number"`
			Step   string `json:"step"`
		} `json:"steps"`
	} `json:"analyzedInstructions"`

	Nutrition *struct {
		Nutrients []struct {
			Name   string  `json:"name"`
			Amount float64 `json:"amount"`
		} `json:"nutrients"`
	} `json:"nutrition"`
}

func (s *Spoonacular) get(ctx context.Context, path string, params url.Values, dst any) error {
	if !s.Available() {
		return fmt.Errorf("spoonacular api key not configured")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", s.apiKey)
	if err := getJSON(ctx, s.httpClient, s.baseURL+path+"?"+params.Encode(), dst); err != nil {
		if isNotFound(err) {
			return errSpoonacularNotFound
		}
		return fmt.Errorf("spoonacular %s: %w", path, err)
	}
	return nil
}

func (s *Spoonacular) Search(ctx context.Context, q SearchQuery) ([]Preview, int, error) {
	params := url.Values{
		"query":                {q.Query},
		"number":               {strconv.Itoa(max(q.Number, 1))},
		"offset":               {strconv.Itoa(q.Offset)},
		"addRecipeInformation": {"true"},
	}
	if q.Cuisine != "" {
		params.Set("cuisine", q.Cuisine)
	}
	if q.MaxReadyTime != nil {
		params.Set("maxReadyTime", strconv.Itoa(*q.MaxReadyTime))
	}
	var resp struct {
		Results      []spoonRecipe `json:"results"`
		TotalResults int           `json:"totalResults"`
	}
	if err := s.get(ctx, "/recipes/complexSearch", params, &resp); err != nil {
		return nil, 0, err
	}
	out := make([]Preview, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.detail().Preview()
	}
	return out, resp.TotalResults, nil
}

// Discover searches by cuisine when given, otherwise asks for random
// recipes tagged with the category.
func (s *Spoonacular) Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error) {
	if q.Cuisine != "" {
		previews, _, err := s.Search(ctx, SearchQuery{Query: q.Cuisine, Cuisine: q.Cuisine, Number: q.Number})
		return previews, err
	}
	details, err := s.Random(ctx, q.Number, q.Category)
	if err != nil {
		return nil, err
	}
	out := make([]Preview, len(details))
	for i := range details {
		out[i] = details[i].Preview()
	}
	return out, nil
}

// Random returns full recipes from /recipes/random.
func (s *Spoonacular) Random(ctx context.Context, n int, tags string) ([]Detail, error) {
	params := url.Values{"number": {strconv.Itoa(max(n, 1))}}
	if tags != "" {
		params.Set("tags", strings.ToLower(tags))
	}
	var resp struct {
		Recipes []spoonRecipe `json:"recipes"`
	}
	if err := s.get(ctx, "/recipes/random", params, &resp); err != nil {
		return nil, err
	}
	out := make([]Detail, len(resp.Recipes))
	for i, r := range resp.Recipes {
		out[i] = *r.detail()
	}
	return out, nil
}

// SearchIDs pages through recipe ids only, which costs far fewer API points
// than a search with recipe information.
func (s *Spoonacular) SearchIDs(ctx context.Context, offset, number int) ([]string, int, error) {
	params := url.Values{
		"number": {strconv.Itoa(max(number, 1))},
		"offset": {strconv.Itoa(offset)},
	}
	var resp struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
		TotalResults int `json:"totalResults"`
	}
	if err := s.get(ctx, "/recipes/complexSearch", params, &resp); err != nil {
		return nil, 0, err
	}
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = strconv.Itoa(r.ID)
	}
	return ids, resp.TotalResults, nil
}

func (s *Spoonacular) Get(ctx context.Context, id string) (*Detail, error) {
	if _, err := strconv.Atoi(id); err != nil {
		return nil, nil
	}
	var r spoonRecipe
	err := s.get(ctx, "/recipes/"+id+"/information", url.Values{"includeNutrition": {"true"}}, &r)
	if errors.Is(err, errSpoonacularNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.detail(), nil
}

func (r spoonRecipe) detail() *Detail {
	d := &Detail{}
	d.Title = r.Title
	d.TitleOriginal = r.Title
	d.ExternalSource = ptr(SourceSpoonacular)
	d.ExternalID = ptr(strconv.Itoa(r.ID))
	d.ImageURL = optString(r.Image)
	d.SourceURL = optString(r.SourceURL)
	d.Description = optString(stripTags(r.Summary))
	d.Servings = r.Servings
	if d.Servings <= 0 {
		d.Servings = 4
	}

	if r.PreparationMinutes != nil && *r.PreparationMinutes > 0 {
		d.PrepTimeMinutes = ptr(*r.PreparationMinutes)
	}
	if r.CookingMinutes != nil && *r.CookingMinutes > 0 {
		d.CookTimeMinutes = ptr(*r.CookingMinutes)
	} else if r.ReadyInMinutes > 0 && d.PrepTimeMinutes == nil {
		d.CookTimeMinutes = ptr(r.ReadyInMinutes)
	}

	d.Categories = append([]string{}, r.DishTypes...)
	d.Tags = append(append([]string{}, r.Cuisines...), r.Diets...)
	for i := range d.Tags {
		d.Tags[i] = strings.ToLower(d.Tags[i])
	}

	for _, ing := range r.ExtendedIngredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		amount := recipe.Round2(ing.Amount)
		if amount <= 0 {
			amount = 1
		}
		unit := strings.TrimSpace(ing.Unit)
		if unit == "" {
			unit = recipe.DefaultUnit
		}
		d.Ingredients = append(d.Ingredients, recipe.IngredientInput{
			Name: name, Amount: amount, Unit: unit, OrderIndex: len(d.Ingredients),
		})
	}

	for _, block := range r.AnalyzedInstructions {
		for _, st := range block.Steps {
			if strings.TrimSpace(st.Step) == "" {
				continue
			}
			d.Instructions = append(d.Instructions, recipe.InstructionInput{
				StepNumber: len(d.Instructions) + 1, Description: strings.TrimSpace(st.Step),
			})
		}
	}
	if len(d.Instructions) == 0 && r.Instructions != "" {
		d.Instructions = splitSteps(stripTags(r.Instructions))
	}

	if r.Nutrition != nil {
		for _, n := range r.Nutrition.Nutrients {
			switch n.Name {
			case "Calories":
				d.Calories = ptr(int(n.Amount + 0.5))
			case "Protein":
				d.ProteinGrams = ptr(recipe.Round2(n.Amount))
			case "Carbohydrates":
				d.CarbsGrams = ptr(recipe.Round2(n.Amount))
			case "Fat":
				d.FatGrams = ptr(recipe.Round2(n.Amount))
			}
		}
	}
	d.Difficulty = difficultyFor(r.ReadyInMinutes, len(d.Instructions))
	return d
}
