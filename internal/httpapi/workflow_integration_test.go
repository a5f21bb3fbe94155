package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"meal-planner/internal/auth"
	"meal-planner/internal/cache"
	"meal-planner/internal/database/dbtest"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shopping"
)

// TestFullWorkflow drives register, recipe, plan and shopping list through
// the real services and repositories.
func TestFullWorkflow(t *testing.T) {
	pool := dbtest.Open(t)
	store := cache.NewMemory()

	recipes := recipe.NewService(recipe.NewRepository(pool))
	plans := planner.NewService(planner.NewPlanRepository(pool), recipes, nil)
	issuer := auth.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)

	s := NewServer(Options{
		Auth:     auth.NewService(auth.NewRepository(pool), issuer, store, cache.NewLoginGuard(store, 5, time.Minute), 4),
		Recipes:  recipes,
		Planner:  plans,
		Shopping: shopping.NewService(shopping.NewRepository(pool), plans),
		PDF:      shopping.NewPDFExporter("http://localhost:3000", ""),
		Database: fakePinger{},
	})
	h := s.Handler()

	decodeData := func(t *testing.T, resp response, dst any) {
		t.Helper()
		if err := json.Unmarshal(resp.Data, dst); err != nil {
			t.Fatalf("Failed to decode data %s: %v", resp.Data, err)
		}
	}

	// 1. Register
	rec, resp := do(t, h, http.MethodPost, "/api/v1/auth/register", "",
		auth.RegisterInput{Email: "Cook@Example.com", Password: "password123", Name: "Cook"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Register failed: %d %s", rec.Code, rec.Body.String())
	}
	var sess auth.Session
	decodeData(t, resp, &sess)
	token := sess.Tokens.AccessToken
	if sess.User.Email != "cook@example.com" {
		t.Errorf("Expected normalized email, got %q", sess.User.Email)
	}

	// 2. Create a recipe for two
	rec, resp = do(t, h, http.MethodPost, "/api/v1/recipes", token, recipe.CreateInput{
		Title:    "Bulgogi",
		Servings: 2,
		Ingredients: []recipe.IngredientInput{
			{Name: "beef", Amount: 300, Unit: "g"},
			{Name: "onion", Amount: 1, Unit: "개"},
		},
		Instructions: []recipe.InstructionInput{{Description: "Marinate the beef."}, {Description: "Grill."}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create recipe failed: %d %s", rec.Code, rec.Body.String())
	}
	var bulgogi recipe.Recipe
	decodeData(t, resp, &bulgogi)

	// 3. Plan it for four on a Wednesday; the plan snaps to Monday
	rec, resp = do(t, h, http.MethodPost, "/api/v1/meal-plans", token, map[string]string{"week_start_date": "2026-10-14"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create plan failed: %d %s", rec.Code, rec.Body.String())
	}
	var plan planner.MealPlan
	decodeData(t, resp, &plan)
	if plan.WeekStartDate.String() != "2026-10-12" {
		t.Errorf("Expected week to start on 2026-10-12, got %s", plan.WeekStartDate)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/meal-plans/"+plan.ID+"/slots", token,
		map[string]any{"recipe_id": bulgogi.ID, "date": "2026-10-14", "meal_type": "dinner", "servings": 4})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add slot failed: %d %s", rec.Code, rec.Body.String())
	}

	rec, resp = do(t, h, http.MethodGet, "/api/v1/weeks/2026-10-18/meal-plan", token, nil)
	var week planner.MealPlan
	decodeData(t, resp, &week)
	if rec.Code != http.StatusOK || week.ID != plan.ID || len(week.Slots) != 1 {
		t.Errorf("Expected the plan with one slot for the week, got %d %+v", rec.Code, week)
	}

	// 4. Generate the shopping list, scaled to four servings
	rec, resp = do(t, h, http.MethodPost, "/api/v1/meal-plans/"+plan.ID+"/shopping-list", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Generate shopping list failed: %d %s", rec.Code, rec.Body.String())
	}
	var list shopping.ShoppingList
	decodeData(t, resp, &list)
	amounts := map[string]float64{}
	for _, it := range list.Items {
		amounts[it.IngredientName] = it.Amount
	}
	if amounts["beef"] != 600 || amounts["onion"] != 2 {
		t.Errorf("Expected scaled amounts, got %v", amounts)
	}

	rec, resp = do(t, h, http.MethodPost, "/api/v1/shopping-lists/"+list.ID+"/items/"+list.Items[0].ID+"/check", token, nil)
	var checked shopping.Item
	decodeData(t, resp, &checked)
	if rec.Code != http.StatusOK || !checked.IsChecked {
		t.Errorf("Expected item to be checked, got %d %+v", rec.Code, checked)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/shopping-lists/"+list.ID+"/pdf", token, nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("Expected a PDF, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	// 5. Another user sees none of it
	_, resp = do(t, h, http.MethodPost, "/api/v1/auth/register", "",
		auth.RegisterInput{Email: "other@example.com", Password: "password123", Name: "Other"})
	var other auth.Session
	decodeData(t, resp, &other)
	rec, _ = do(t, h, http.MethodGet, "/api/v1/shopping-lists/"+list.ID, other.Tokens.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's list, got %d", rec.Code)
	}

	// 6. Deleting the account removes the user's data
	rec, _ = do(t, h, http.MethodDelete, "/api/v1/users/me", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Delete account failed: %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/users/me", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after deletion, got %d", rec.Code)
	}
}
