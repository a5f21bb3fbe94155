package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meal-planner/internal/mealtype"
)

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for prefix, body := range routes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const lookupMeal = `{"meals":[{
	"idMeal":"52772","strMeal":"Teriyaki Chicken Casserole","strCategory":"Chicken","strArea":"Japanese",
	"strTags":"Meat,Casserole","strMealThumb":"https://www.themealdb.com/images/media/meals/wvpsxx1468256321.jpg",
	"strInstructions":"Preheat oven to 350 degrees.\r\nSTEP 2\r\nCombine soy sauce and sugar.\r\n",
	"strIngredient1":"soy sauce","strMeasure1":"3/4 cup",
	"strIngredient2":"brown sugar","strMeasure2":"1/2 cup packed",
	"strIngredient3":"salt","strMeasure3":"pinch",
	"strIngredient4":"","strMeasure4":"",
	"strIngredient5":null,"strMeasure5":null
}]}`

func TestTheMealDBGet(t *testing.T) {
	srv := newTestServer(t, map[string]string{"/lookup.php": lookupMeal})
	m := NewTheMealDB("")
	m.baseURL = srv.URL

	d, err := m.Get(context.Background(), "52772")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d.Title != "Teriyaki Chicken Casserole" || d.ID() != "52772" || d.Source() != SourceTheMealDB {
		t.Errorf("unexpected identity: %q %q %q", d.Title, d.ID(), d.Source())
	}
	if len(d.Ingredients) != 3 {
		t.Fatalf("expected 3 ingredients, got %d", len(d.Ingredients))
	}
	if ing := d.Ingredients[0]; ing.Amount != 0.75 || ing.Unit != "cup" {
		t.Errorf("soy sauce parsed as %v %q", ing.Amount, ing.Unit)
	}
	if ing := d.Ingredients[1]; ing.Notes == nil || *ing.Notes != "packed" {
		t.Errorf("expected notes 'packed', got %v", ing.Notes)
	}
	if ing := d.Ingredients[2]; ing.Amount != 1 || ing.Unit != "개" || ing.Notes == nil || *ing.Notes != "pinch" {
		t.Errorf("pinch parsed as %+v", ing)
	}
	if len(d.Instructions) != 2 || d.Instructions[0].Description != "Preheat oven to 350 degrees." {
		t.Errorf("unexpected instructions: %+v", d.Instructions)
	}
	if d.Tags[0] != "japanese" {
		t.Errorf("expected area tag first, got %v", d.Tags)
	}
}

func TestTheMealDBGetMissing(t *testing.T) {
	srv := newTestServer(t, map[string]string{"/lookup.php": `{"meals":null}`})
	m := NewTheMealDB("1")
	m.baseURL = srv.URL

	d, err := m.Get(context.Background(), "1")
	if err != nil || d != nil {
		t.Fatalf("expected nil, nil; got %v, %v", d, err)
	}
}

func TestTheMealDBFetchIDs(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/categories.php": `{"categories":[{"strCategory":"Beef"},{"strCategory":"Chicken"}]}`,
		"/filter.php":     `{"meals":[{"idMeal":"1","strMeal":"A"},{"idMeal":"2","strMeal":"B"}]}`,
	})
	m := NewTheMealDB("1")
	m.baseURL = srv.URL

	ids, err := m.FetchIDs(context.Background())
	if err != nil {
		t.Fatalf("FetchIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected duplicates across categories dropped, got %v", ids)
	}
}

const spoonInfo = `{
	"id": 716429, "title": "Pasta with Garlic", "image": "https://img.spoonacular.com/recipes/716429.jpg",
	"summary": "A <b>quick</b> pasta.", "readyInMinutes": 45, "servings": 2,
	"dishTypes": ["main course"], "cuisines": ["Italian"], "diets": ["Vegetarian"],
	"extendedIngredients": [{"name":"butter","amount":1,"unit":"tbsp"},{"name":"garlic","amount":0,"unit":""}],
	"analyzedInstructions": [{"steps":[{"number":1,"step":"Boil pasta."},{"number":2,"step":"Add garlic."}]}],
	"nutrition": {"nutrients":[{"name":"Calories","amount":543.36},{"name":"Protein","amount":16.844}]}
}`

func TestSpoonacularGet(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apiKey")
		if r.URL.Path == "/recipes/716429/information" {
			w.Write([]byte(spoonInfo))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewSpoonacular("secret")
	s.baseURL = srv.URL

	d, err := s.Get(context.Background(), "716429")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("expected apiKey query param, got %q", gotKey)
	}
	if d.Description == nil || *d.Description != "A quick pasta." {
		t.Errorf("summary not stripped: %v", d.Description)
	}
	if d.CookTimeMinutes == nil || *d.CookTimeMinutes != 45 {
		t.Errorf("expected ready time as cook time, got %v", d.CookTimeMinutes)
	}
	if d.Calories == nil || *d.Calories != 543 {
		t.Errorf("calories = %v", d.Calories)
	}
	if d.ProteinGrams == nil || *d.ProteinGrams != 16.84 {
		t.Errorf("protein = %v", d.ProteinGrams)
	}
	if g := d.Ingredients[1]; g.Amount != 1 || g.Unit != "개" {
		t.Errorf("zero amount not defaulted: %+v", g)
	}
	if len(d.Instructions) != 2 {
		t.Errorf("expected 2 steps, got %d", len(d.Instructions))
	}
	if d.Tags[0] != "italian" || d.Categories[0] != "main course" {
		t.Errorf("unexpected labels: %v %v", d.Categories, d.Tags)
	}

	missing, err := s.Get(context.Background(), "999")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for a 404; got %v, %v", missing, err)
	}
}

func TestSpoonacularWithoutKey(t *testing.T) {
	s := NewSpoonacular("")
	if s.Available() {
		t.Fatal("expected unavailable without key")
	}
	if _, _, err := s.Search(context.Background(), SearchQuery{Query: "x"}); err == nil {
		t.Error("expected error without key")
	}
}

func TestSpoonacularSearchIDs(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/recipes/complexSearch": `{"results":[{"id":1},{"id":22}],"totalResults":5000}`,
	})
	s := NewSpoonacular("k")
	s.baseURL = srv.URL

	ids, total, err := s.SearchIDs(context.Background(), 10, 2)
	if err != nil {
		t.Fatalf("SearchIDs failed: %v", err)
	}
	if total != 5000 || len(ids) != 2 || ids[1] != "22" {
		t.Errorf("got %v total %d", ids, total)
	}
}

func TestFoodSafetyKoreaSearch(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"COOKRCP01":{"total_count":"1","RESULT":{"CODE":"INFO-000","MSG":"정상처리되었습니다."},"row":[{
			"RCP_SEQ":"28","RCP_NM":"새우 두부 계란찜","RCP_PAT2":"반찬","RCP_WAY2":"찌기","INFO_ENG":"220","INFO_PRO":"14.5",
			"RCP_PARTS_DTLS":"새우 두부 계란찜\n연두부 75g(3/4모), 칵테일새우 20g(5마리)",
			"MANUAL01":"1. 손질된 새우를 끓는 물에 데친다.a","MANUAL02":"2. 연두부를 체에 밭쳐 물기를 제거한다."
		}]}}`))
	}))
	defer srv.Close()

	f := NewFoodSafetyKorea("key")
	f.baseURL = srv.URL

	items, total, err := f.Search(context.Background(), SearchQuery{Query: "두부", Number: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ExternalID != "28" {
		t.Fatalf("unexpected result %+v total %d", items, total)
	}
	if !strings.Contains(path, "/key/COOKRCP01/json/1/5/RCP_NM=") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestCookRowToDetail(t *testing.T) {
	d := cookRowToDetail(cookRow{
		"RCP_SEQ": "28", "RCP_NM": "새우 두부 계란찜", "RCP_PAT2": "반찬", "INFO_ENG": "220.4",
		"RCP_PARTS_DTLS": "새우 두부 계란찜\n●주재료 : 연두부 75g(3/4모), 칵테일새우 20g",
		"MANUAL01":       "1. 새우를 데친다.", "MANUAL03": "3. 찜기에 찐다.",
	})
	if d.Calories == nil || *d.Calories != 220 {
		t.Errorf("calories = %v", d.Calories)
	}
	if len(d.Ingredients) != 2 {
		t.Fatalf("expected 2 ingredients, got %+v", d.Ingredients)
	}
	if ing := d.Ingredients[0]; ing.Name != "연두부" || ing.Amount != 75 || ing.Unit != "g" {
		t.Errorf("first ingredient = %+v", ing)
	}
	if len(d.Instructions) != 2 || d.Instructions[1].StepNumber != 2 || d.Instructions[1].Description != "찜기에 찐다." {
		t.Errorf("steps = %+v", d.Instructions)
	}
}

func TestMafraGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, mafraBasicGrid):
			w.Write([]byte(`{"` + mafraBasicGrid + `":{"totalCnt":1,"result":{"code":"INFO-000"},"row":[{
				"RECIPE_ID":1,"RECIPE_NM_KO":"나물비빔밥","SUMRY":"육수로 지은 밥에 나물을 얹어","NATION_NM":"한식",
				"TY_NM":"밥","COOKING_TIME":"60분","CALORIE":"580Kcal","QNT":"4인분","LEVEL_NM":"초보환영"}]}}`))
		case strings.Contains(r.URL.Path, mafraIngredGrid):
			w.Write([]byte(`{"` + mafraIngredGrid + `":{"totalCnt":2,"row":[
				{"IRDNT_SN":2,"IRDNT_NM":"참기름","IRDNT_CPCTY":"약간"},
				{"IRDNT_SN":1,"IRDNT_NM":"쌀","IRDNT_CPCTY":"4컵"}]}}`))
		case strings.Contains(r.URL.Path, mafraProcessGrid):
			w.Write([]byte(`{"` + mafraProcessGrid + `":{"totalCnt":2,"row":[
				{"COOKING_NO":2,"COOKING_DC":"밥을 짓는다."},{"COOKING_NO":1,"COOKING_DC":"쌀을 씻는다."}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := NewMafra("key")
	m.baseURL = srv.URL

	d, err := m.Get(context.Background(), "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d.ID() != "1" || d.Servings != 4 || d.Difficulty != "easy" {
		t.Errorf("unexpected basics: id=%q servings=%d difficulty=%q", d.ID(), d.Servings, d.Difficulty)
	}
	if d.CookTimeMinutes == nil || *d.CookTimeMinutes != 60 || d.Calories == nil || *d.Calories != 580 {
		t.Errorf("unexpected time/calories: %v %v", d.CookTimeMinutes, d.Calories)
	}
	if d.Ingredients[0].Name != "쌀" || d.Ingredients[0].Amount != 4 {
		t.Errorf("ingredients not ordered: %+v", d.Ingredients)
	}
	if d.Ingredients[1].Notes == nil || *d.Ingredients[1].Notes != "약간" {
		t.Errorf("expected free-text capacity as note: %+v", d.Ingredients[1])
	}
	if d.Instructions[0].Description != "쌀을 씻는다." {
		t.Errorf("steps not ordered: %+v", d.Instructions)
	}
}

func TestKoreanSeed(t *testing.T) {
	seed, err := NewKoreanSeed(mealtype.New(nil))
	if err != nil {
		t.Fatalf("NewKoreanSeed failed: %v", err)
	}
	if len(seed.All()) != 12 {
		t.Fatalf("expected 12 seed recipes, got %d", len(seed.All()))
	}
	for _, d := range seed.All() {
		if len(d.MealTypes) == 0 {
			t.Errorf("%s has no meal types", d.Title)
		}
	}

	t.Run("get returns a copy", func(t *testing.T) {
		d, _ := seed.Get(context.Background(), "ks-001")
		if d == nil {
			t.Fatal("expected ks-001")
		}
		d.Ingredients[0].Name = "changed"
		again, _ := seed.Get(context.Background(), "ks-001")
		if again.Ingredients[0].Name == "changed" {
			t.Error("seed data was mutated through Get")
		}
	})

	t.Run("search", func(t *testing.T) {
		items, total, _ := seed.Search(context.Background(), SearchQuery{Query: "김치", Number: 10})
		if total == 0 || items[0].Source != SourceKoreanSeed {
			t.Errorf("expected a kimchi match, got %+v", items)
		}
	})

	t.Run("discover skips other cuisines", func(t *testing.T) {
		items, _ := seed.Discover(context.Background(), DiscoverQuery{Cuisine: "Italian", Number: 3})
		if len(items) != 0 {
			t.Errorf("expected none, got %d", len(items))
		}
	})

	t.Run("sample respects n", func(t *testing.T) {
		if got := seed.Sample("", "", 3); len(got) != 3 {
			t.Errorf("expected 3, got %d", len(got))
		}
	})
}
