package planner

import (
	"context"
	"errors"
	"fmt"
	"log"

	"meal-planner/internal/apperr"
	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
)

// Store is the persistence surface of the Service. *PlanRepository implements it.
type Store interface {
	CreateOrGet(ctx context.Context, userID string, weekStart shared.Date, notes *string) (*MealPlan, error)
	Get(ctx context.Context, id string) (*MealPlan, error)
	GetByWeek(ctx context.Context, userID string, weekStart shared.Date) (*MealPlan, error)
	List(ctx context.Context, userID string, page, limit int) ([]MealPlan, int, error)
	Delete(ctx context.Context, id string) error
	GetSlot(ctx context.Context, planID, slotID string) (*MealSlot, error)
	SlotTaken(ctx context.Context, planID string, date shared.Date, mealType, excludeSlotID string) (bool, error)
	AddSlot(ctx context.Context, s *MealSlot) error
	UpdateSlot(ctx context.Context, s *MealSlot) error
	DeleteSlot(ctx context.Context, planID, slotID string) (bool, error)
}

// RecipeReader returns a user's own recipe or a NotFound error.
type RecipeReader interface {
	Get(ctx context.Context, userID, id string) (*recipe.Recipe, error)
}

// RecipeImporter copies an external recipe into the user's recipes, reusing
// an earlier import of the same recipe.
type RecipeImporter interface {
	ImportRecipe(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error)
}

// Service manages weekly meal plans and their slots.
type Service struct {
	store    Store
	recipes  RecipeReader
	importer RecipeImporter
}

// NewService creates a planner Service. importer may be nil, in which case
// external slots are rejected.
func NewService(store Store, recipes RecipeReader, importer RecipeImporter) *Service {
	return &Service{store: store, recipes: recipes, importer: importer}
}

// Create returns the user's plan for the week containing in.WeekStartDate,
// creating it if needed.
func (s *Service) Create(ctx context.Context, userID string, in CreatePlanInput) (*MealPlan, error) {
	if in.WeekStartDate.IsZero() {
		return nil, apperr.Validation("week_start_date is required")
	}
	if err := validateNotes(in.Notes, 1000); err != nil {
		return nil, err
	}
	return s.store.CreateOrGet(ctx, userID, in.WeekStartDate.WeekStart(), in.Notes)
}

// Get returns the plan with slots. Another user's plan is reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (*MealPlan, error) {
	plan, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil || plan.UserID != userID {
		return nil, apperr.NotFound("MealPlan", id)
	}
	return plan, nil
}

// GetByWeek returns the plan of the week containing day.
func (s *Service) GetByWeek(ctx context.Context, userID string, day shared.Date) (*MealPlan, error) {
	week := day.WeekStart()
	plan, err := s.store.GetByWeek(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apperr.NotFound("MealPlan", week.String())
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, userID string, p shared.Pagination) (shared.Page[MealPlan], error) {
	p = p.Normalize(20, 100)
	items, total, err := s.store.List(ctx, userID, p.Page, p.Limit)
	if err != nil {
		return shared.Page[MealPlan]{}, err
	}
	return shared.NewPage(items, total, p), nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// AddSlot puts one of the user's recipes on (date, meal type). An occupied
// slot is a conflict and nothing is written.
func (s *Service) AddSlot(ctx context.Context, userID, planID string, in SlotInput) (*MealSlot, error) {
	if err := validateSlot(in.Date, in.MealType, in.Servings, in.Notes); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	rec, err := s.recipes.Get(ctx, userID, in.RecipeID)
	if err != nil {
		return nil, err
	}
	return s.insertSlot(ctx, planID, rec, in.Date, in.MealType, in.Servings, in.Notes)
}

func (s *Service) insertSlot(ctx context.Context, planID string, rec *recipe.Recipe, date shared.Date, mealType string, servings *int, notes *string) (*MealSlot, error) {
	taken, err := s.store.SlotTaken(ctx, planID, date, mealType, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.MealSlotConflict(date.String(), mealType)
	}

	slot := &MealSlot{
		MealPlanID: planID,
		RecipeID:   rec.ID,
		Date:       date,
		MealType:   mealType,
		Servings:   rec.Servings,
		Notes:      notes,
		Recipe:     summarize(rec),
	}
	if servings != nil {
		slot.Servings = *servings
	}

	if err := s.store.AddSlot(ctx, slot); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, apperr.MealSlotConflict(date.String(), mealType)
		}
		return nil, err
	}
	return slot, nil
}

// UpdateSlot applies a partial update; moving onto an occupied (date, meal
// type) is a conflict.
func (s *Service) UpdateSlot(ctx context.Context, userID, planID, slotID string, in SlotUpdate) (*MealSlot, error) {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	slot, err := s.store.GetSlot(ctx, planID, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperr.NotFound("MealSlot", slotID)
	}

	if in.RecipeID != nil {
		rec, err := s.recipes.Get(ctx, userID, *in.RecipeID)
		if err != nil {
			return nil, err
		}
		slot.RecipeID = rec.ID
		slot.Recipe = summarize(rec)
	}
	if in.Date != nil {
		slot.Date = *in.Date
	}
	if in.MealType != nil {
		slot.MealType = *in.MealType
	}
	if in.Servings != nil {
		slot.Servings = *in.Servings
	}
	if in.Notes != nil {
		slot.Notes = in.Notes
	}
	if err := validateSlot(slot.Date, slot.MealType, &slot.Servings, slot.Notes); err != nil {
		return nil, err
	}

	if in.Date != nil || in.MealType != nil {
		taken, err := s.store.SlotTaken(ctx, planID, slot.Date, slot.MealType, slot.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.MealSlotConflict(slot.Date.String(), slot.MealType)
		}
	}

	if err := s.store.UpdateSlot(ctx, slot); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, apperr.MealSlotConflict(slot.Date.String(), slot.MealType)
		}
		return nil, err
	}
	return slot, nil
}

func (s *Service) DeleteSlot(ctx context.Context, userID, planID, slotID string) error {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	removed, err := s.store.DeleteSlot(ctx, planID, slotID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("MealSlot", slotID)
	}
	return nil
}

// AddExternalSlot imports an external recipe and places it on the plan.
func (s *Service) AddExternalSlot(ctx context.Context, userID, planID string, in ExternalSlotInput) (*MealSlot, error) {
	if err := validateSlot(in.Date, in.MealType, in.Servings, in.Notes); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	rec, err := s.importRecipe(ctx, userID, in.Source, in.ExternalID)
	if err != nil {
		return nil, err
	}
	return s.insertSlot(ctx, planID, rec, in.Date, in.MealType, in.Servings, in.Notes)
}

// QuickPlan creates or reuses the week's plan and adds every requested
// external recipe. Slots that are already occupied are skipped.
func (s *Service) QuickPlan(ctx context.Context, userID string, in QuickPlanInput) (*MealPlan, error) {
	if in.WeekStartDate.IsZero() {
		return nil, apperr.Validation("week_start_date is required")
	}
	if len(in.Slots) == 0 {
		return nil, apperr.Validation("at least one slot is required")
	}
	for _, sl := range in.Slots {
		if err := validateSlot(sl.Date, sl.MealType, sl.Servings, nil); err != nil {
			return nil, err
		}
	}

	plan, err := s.store.CreateOrGet(ctx, userID, in.WeekStartDate.WeekStart(), in.Notes)
	if err != nil {
		return nil, err
	}

	for _, sl := range in.Slots {
		rec, err := s.importRecipe(ctx, userID, sl.Source, sl.ExternalID)
		if err != nil {
			return nil, err
		}
		_, err = s.insertSlot(ctx, plan.ID, rec, sl.Date, sl.MealType, sl.Servings, nil)
		if apperr.Is(err, "MEALPLAN_002") {
			log.Printf("quick plan: skipping occupied %s slot on %s", sl.MealType, sl.Date)
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, userID, plan.ID)
}

func (s *Service) importRecipe(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error) {
	if s.importer == nil {
		return nil, apperr.External("external recipes are not available")
	}
	if source == "" || externalID == "" {
		return nil, apperr.Validation("source and external_id are required")
	}
	rec, err := s.importer.ImportRecipe(ctx, userID, source, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s/%s: %w", source, externalID, err)
	}
	return rec, nil
}

func validateSlot(date shared.Date, mealType string, servings *int, notes *string) error {
	if date.IsZero() {
		return apperr.Validation("date is required")
	}
	if !mealtype.IsValid(mealType) {
		return apperr.Validation(fmt.Sprintf("invalid meal_type %q", mealType))
	}
	if servings != nil && (*servings < recipe.MinServings || *servings > recipe.MaxServings) {
		return apperr.Validation(fmt.Sprintf("servings must be between %d and %d", recipe.MinServings, recipe.MaxServings))
	}
	return validateNotes(notes, 500)
}

func validateNotes(notes *string, max int) error {
	if notes != nil && len([]rune(*notes)) > max {
		return apperr.Validation(fmt.Sprintf("notes must be at most %d characters", max))
	}
	return nil
}

func summarize(rec *recipe.Recipe) *RecipeSummary {
	return &RecipeSummary{
		ID:              rec.ID,
		Title:           rec.Title,
		ImageURL:        rec.ImageURL,
		Servings:        rec.Servings,
		PrepTimeMinutes: rec.PrepTimeMinutes,
		CookTimeMinutes: rec.CookTimeMinutes,
	}
}
