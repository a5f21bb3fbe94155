package shopping

import (
	"context"
	"fmt"
	"strings"

	"meal-planner/internal/apperr"
	"meal-planner/internal/planner"
	"meal-planner/internal/shared"
)

// Store is the persistence surface of the Service. *Repository implements it.
type Store interface {
	Create(ctx context.Context, userID string, in CreateListInput) (*ShoppingList, error)
	Get(ctx context.Context, id string) (*ShoppingList, error)
	List(ctx context.Context, userID string, page, limit int) ([]ShoppingList, int, error)
	Delete(ctx context.Context, id string) error
	RegenerateForMealPlan(ctx context.Context, userID, mealPlanID, name string, build func([]PlannedSlot) []Item) (*ShoppingList, error)
	GetItem(ctx context.Context, listID, itemID string) (*Item, error)
	AddItem(ctx context.Context, listID string, in ItemInput) (*Item, error)
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, listID, itemID string) (bool, error)
}

// PlanReader returns the user's meal plan or a NotFound error.
type PlanReader interface {
	Get(ctx context.Context, userID, id string) (*planner.MealPlan, error)
}

// Service implements shopping list use cases.
type Service struct {
	store Store
	plans PlanReader
}

func NewService(store Store, plans PlanReader) *Service {
	return &Service{store: store, plans: plans}
}

// GenerateFromMealPlan rebuilds the shopping list derived from a meal plan,
// replacing any list generated before.
func (s *Service) GenerateFromMealPlan(ctx context.Context, userID, mealPlanID string, name *string) (*ShoppingList, error) {
	plan, err := s.plans.Get(ctx, userID, mealPlanID)
	if err != nil {
		return nil, err
	}

	listName := DefaultListName(plan.WeekStartDate)
	if name != nil {
		n := strings.TrimSpace(*name)
		if err := validateListName(n); err != nil {
			return nil, err
		}
		listName = n
	}

	list, err := s.store.RegenerateForMealPlan(ctx, userID, plan.ID, listName, Aggregate)
	if err != nil {
		return nil, fmt.Errorf("failed to generate shopping list: %w", err)
	}
	return list, nil
}

func (s *Service) Create(ctx context.Context, userID string, in CreateListInput) (*ShoppingList, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateListName(in.Name); err != nil {
		return nil, err
	}
	if in.MealPlanID != nil {
		if _, err := s.plans.Get(ctx, userID, *in.MealPlanID); err != nil {
			return nil, err
		}
	}
	return s.store.Create(ctx, userID, in)
}

// Get returns the list with items; another user's list is reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (*ShoppingList, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil || l.UserID != userID {
		return nil, apperr.NotFound("ShoppingList", id)
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, userID string, p shared.Pagination) (shared.Page[ShoppingList], error) {
	p = p.Normalize(20, 100)
	items, total, err := s.store.List(ctx, userID, p.Page, p.Limit)
	if err != nil {
		return shared.Page[ShoppingList]{}, err
	}
	return shared.NewPage(items, total, p), nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// AddItem adds a manual item. Items without a category are filed under Other.
func (s *Service) AddItem(ctx context.Context, userID, listID string, in ItemInput) (*Item, error) {
	in.IngredientName = strings.TrimSpace(in.IngredientName)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Category == "" {
		in.Category = string(Other)
	}
	if err := validateItem(in.IngredientName, in.Amount, in.Unit, in.Category, in.Notes); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return nil, err
	}
	return s.store.AddItem(ctx, listID, in)
}

func (s *Service) UpdateItem(ctx context.Context, userID, listID, itemID string, in ItemUpdate) (*Item, error) {
	it, err := s.item(ctx, userID, listID, itemID)
	if err != nil {
		return nil, err
	}
	if in.IngredientName != nil {
		it.IngredientName = strings.TrimSpace(*in.IngredientName)
	}
	if in.Amount != nil {
		it.Amount = *in.Amount
	}
	if in.Unit != nil {
		it.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.IsChecked != nil {
		it.IsChecked = *in.IsChecked
	}
	if in.Category != nil {
		it.Category = Category(*in.Category)
	}
	if in.Notes != nil {
		it.Notes = in.Notes
	}
	if err := validateItem(it.IngredientName, it.Amount, it.Unit, string(it.Category), it.Notes); err != nil {
		return nil, err
	}
	if err := s.store.UpdateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// CheckItem sets the checked flag of an item.
func (s *Service) CheckItem(ctx context.Context, userID, listID, itemID string, checked bool) (*Item, error) {
	return s.UpdateItem(ctx, userID, listID, itemID, ItemUpdate{IsChecked: &checked})
}

func (s *Service) DeleteItem(ctx context.Context, userID, listID, itemID string) error {
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return err
	}
	removed, err := s.store.DeleteItem(ctx, listID, itemID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("ShoppingItem", itemID)
	}
	return nil
}

func (s *Service) item(ctx context.Context, userID, listID, itemID string) (*Item, error) {
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return nil, err
	}
	it, err := s.store.GetItem(ctx, listID, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, apperr.NotFound("ShoppingItem", itemID)
	}
	return it, nil
}

func validateListName(name string) error {
	if name == "" || len([]rune(name)) > 200 {
		return apperr.Validation("name must be 1-200 characters")
	}
	return nil
}

func validateItem(name string, amount float64, unit, category string, notes *string) error {
	switch {
	case name == "" || len([]rune(name)) > 200:
		return apperr.Validation("ingredient_name must be 1-200 characters")
	case amount <= 0:
		return apperr.Validation("amount must be positive")
	case unit == "" || len([]rune(unit)) > 50:
		return apperr.Validation("unit must be 1-50 characters")
	case !ValidCategory(category):
		return apperr.Validation(fmt.Sprintf("invalid category %q", category))
	case notes != nil && len([]rune(*notes)) > 500:
		return apperr.Validation("notes must be at most 500 characters")
	}
	return nil
}
