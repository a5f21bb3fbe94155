package planner

import (
	"context"
	"fmt"
	"testing"

	"meal-planner/internal/apperr"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
)

// memStore is an in-memory Store used by service tests.
type memStore struct {
	plans  map[string]*MealPlan
	nextID int
}

func newMemStore() *memStore {
	return &memStore{plans: map[string]*MealPlan{}}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) CreateOrGet(ctx context.Context, userID string, weekStart shared.Date, notes *string) (*MealPlan, error) {
	if p, _ := m.GetByWeek(ctx, userID, weekStart); p != nil {
		return p, nil
	}
	p := &MealPlan{ID: m.id("plan"), UserID: userID, WeekStartDate: weekStart, Notes: notes}
	m.plans[p.ID] = p
	return p, nil
}

func (m *memStore) Get(ctx context.Context, id string) (*MealPlan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	c := *p
	c.Slots = append([]MealSlot(nil), p.Slots...)
	SortSlots(c.Slots)
	return &c, nil
}

func (m *memStore) GetByWeek(ctx context.Context, userID string, weekStart shared.Date) (*MealPlan, error) {
	for _, p := range m.plans {
		if p.UserID == userID && p.WeekStartDate.Equal(weekStart.Time) {
			return m.Get(ctx, p.ID)
		}
	}
	return nil, nil
}

func (m *memStore) List(ctx context.Context, userID string, page, limit int) ([]MealPlan, int, error) {
	var out []MealPlan
	for _, p := range m.plans {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	delete(m.plans, id)
	return nil
}

func (m *memStore) GetSlot(ctx context.Context, planID, slotID string) (*MealSlot, error) {
	for _, s := range m.plans[planID].Slots {
		if s.ID == slotID {
			c := s
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) SlotTaken(ctx context.Context, planID string, date shared.Date, mealType, excludeSlotID string) (bool, error) {
	for _, s := range m.plans[planID].Slots {
		if s.ID != excludeSlotID && s.Date.Equal(date.Time) && s.MealType == mealType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) AddSlot(ctx context.Context, s *MealSlot) error {
	s.ID = m.id("slot")
	p := m.plans[s.MealPlanID]
	p.Slots = append(p.Slots, *s)
	return nil
}

func (m *memStore) UpdateSlot(ctx context.Context, s *MealSlot) error {
	p := m.plans[s.MealPlanID]
	for i := range p.Slots {
		if p.Slots[i].ID == s.ID {
			p.Slots[i] = *s
		}
	}
	return nil
}

func (m *memStore) DeleteSlot(ctx context.Context, planID, slotID string) (bool, error) {
	p := m.plans[planID]
	for i := range p.Slots {
		if p.Slots[i].ID == slotID {
			p.Slots = append(p.Slots[:i], p.Slots[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeRecipes map[string]*recipe.Recipe

func (f fakeRecipes) Get(ctx context.Context, userID, id string) (*recipe.Recipe, error) {
	r, ok := f[id]
	if !ok || r.UserID != userID {
		return nil, apperr.NotFound("Recipe", id)
	}
	return r, nil
}

type fakeImporter struct {
	calls int
}

func (f *fakeImporter) ImportRecipe(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error) {
	f.calls++
	return &recipe.Recipe{ID: source + ":" + externalID, UserID: userID, Title: "Imported", Servings: 4}, nil
}

func mustDate(t *testing.T, s string) shared.Date {
	t.Helper()
	d, err := shared.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	recipes := fakeRecipes{
		"r1": {ID: "r1", UserID: "u1", Title: "Bibimbap", Servings: 2},
		"r2": {ID: "r2", UserID: "u1", Title: "Bulgogi", Servings: 4},
		"rx": {ID: "rx", UserID: "u2", Title: "Not yours", Servings: 2},
	}
	return NewService(store, recipes, &fakeImporter{}), store
}

func TestCreateNormalizesWeek(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", CreatePlanInput{WeekStartDate: mustDate(t, "2024-06-13")})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if a.WeekStartDate.String() != "2024-06-10" {
		t.Errorf("Expected Monday 2024-06-10, got %s", a.WeekStartDate)
	}

	b, err := svc.Create(ctx, "u1", CreatePlanInput{WeekStartDate: mustDate(t, "2024-06-16")})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("Expected same plan for the same week, got %s and %s", a.ID, b.ID)
	}

	byWeek, err := svc.GetByWeek(ctx, "u1", mustDate(t, "2024-06-11"))
	if err != nil || byWeek.ID != a.ID {
		t.Errorf("Expected GetByWeek to find the plan, got %v (%v)", byWeek, err)
	}
}

func TestAddSlotConflict(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	plan, _ := svc.Create(ctx, "u1", CreatePlanInput{WeekStartDate: mustDate(t, "2024-06-10")})
	day := mustDate(t, "2024-06-11")

	slot, err := svc.AddSlot(ctx, "u1", plan.ID, SlotInput{RecipeID: "r1", Date: day, MealType: "dinner"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if slot.Servings != 2 {
		t.Errorf("Expected servings to default to the recipe's 2, got %d", slot.Servings)
	}

	_, err = svc.AddSlot(ctx, "u1", plan.ID, SlotInput{RecipeID: "r2", Date: day, MealType: "dinner"})
	if !apperr.Is(err, "MEALPLAN_002") {
		t.Fatalf("Expected MEALPLAN_002 conflict, got %v", err)
	}
	if n := len(store.plans[plan.ID].Slots); n != 1 {
		t.Errorf("Expected exactly one slot row, got %d", n)
	}

	if _, err := svc.AddSlot(ctx, "u1", plan.ID, SlotInput{RecipeID: "r2", Date: day, MealType: "lunch"}); err != nil {
		t.Errorf("Expected a different meal type on the same day to succeed, got %v", err)
	}
}

func TestAddSlotValidationAndOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	plan, _ := svc.Create(ctx, "u1", CreatePlanInput{WeekStartDate: mustDate(t, "2024-06-10")})
	day := mustDate(t, "2024-06-11")
	tooMany := 101

	tests := []struct {
		name string
		user string
		in   SlotInput
		code string
	}{
		{"BadMealType", "u1", SlotInput{RecipeID: "r1", Date: day, MealType: "brunch"}, "GENERAL_001"},
		{"BadServings", "u1", SlotInput{RecipeID: "r1", Date: day, MealType: "lunch", Servings: &tooMany}, "GENERAL_001"},
		{"OtherUsersRecipe", "u1", SlotInput{RecipeID: "rx", Date: day, MealType: "lunch"}, "RECIPE_001"},
		{"OtherUsersPlan", "u2", SlotInput{RecipeID: "rx", Date: day, MealType: "lunch"}, "MEALPLAN_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddSlot(ctx, tt.user, plan.ID, tt.in)
			if !apperr.Is(err, tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestUpdateSlot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	plan, _ := svc.Create(ctx, "u1", CreatePlanInput{WeekStartDate: mustDate(t, "2024-06-10")})
	day := mustDate(t, "2024-06-11")

	lunch, _ := svc.AddSlot(ctx, "u1", plan.ID, SlotInput{RecipeID: "r1", Date: day, MealType: "lunch"})
	dinner, _ := svc.AddSlot(ctx, "u1", plan.ID, SlotInput{RecipeID: "r2", Date: day, MealType: "dinner"})

	mt := "lunch"
	if _, err := svc.UpdateSlot(ctx, "u1", plan.ID, dinner.ID, SlotUpdate{MealType: &mt}); !apperr.Is(err, "MEALPLAN_002") {
		t.Errorf("Expected conflict moving onto lunch, got %v", err)
	}

	servings := 6
	got, err := svc.UpdateSlot(ctx, "u1", plan.ID, lunch.ID, SlotUpdate{MealType: &mt, Servings: &servings})
	if err != nil {
		t.Fatalf("Expected updating a slot onto itself to succeed, got %v", err)
	}
	if got.Servings != 6 {
		t.Errorf("Expected servings 6, got %d", got.Servings)
	}

	if err := svc.DeleteSlot(ctx, "u1", plan.ID, "missing"); !apperr.Is(err, "MEALSLOT_001") {
		t.Errorf("Expected MEALSLOT_001, got %v", err)
	}
}

func TestQuickPlanSkipsOccupiedSlots(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	day := mustDate(t, "2024-06-12")

	plan, err := svc.QuickPlan(ctx, "u1", QuickPlanInput{
		WeekStartDate: day,
		Slots: []ExternalSlotInput{
			{Source: "themealdb", ExternalID: "1", Date: day, MealType: "dinner"},
			{Source: "themealdb", ExternalID: "2", Date: day, MealType: "dinner"},
			{Source: "spoonacular", ExternalID: "3", Date: day, MealType: "breakfast"},
		},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(plan.Slots) != 2 {
		t.Fatalf("Expected 2 slots, got %d", len(plan.Slots))
	}
	if plan.Slots[0].MealType != "breakfast" || plan.Slots[1].RecipeID != "themealdb:1" {
		t.Errorf("Unexpected slot order/content: %+v", plan.Slots)
	}
	if plan.Slots[1].Servings != 4 {
		t.Errorf("Expected imported recipe servings 4, got %d", plan.Slots[1].Servings)
	}
}

func TestSortSlots(t *testing.T) {
	d1 := mustDate(t, "2024-06-10")
	d2 := mustDate(t, "2024-06-11")
	slots := []MealSlot{
		{ID: "a", Date: d2, MealType: "breakfast"},
		{ID: "b", Date: d1, MealType: "snack"},
		{ID: "c", Date: d1, MealType: "breakfast"},
		{ID: "d", Date: d1, MealType: "dinner"},
	}
	SortSlots(slots)
	want := []string{"c", "d", "b", "a"}
	for i, id := range want {
		if slots[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, slots[i].ID)
		}
	}
}
