package planner

import (
	"time"

	"meal-planner/internal/shared"
)

// RecipeSummary is the slice of a recipe shown inside a meal slot.
type RecipeSummary struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	ImageURL        *string `json:"image_url"`
	Servings        int     `json:"servings"`
	PrepTimeMinutes *int    `json:"prep_time_minutes"`
	CookTimeMinutes *int    `json:"cook_time_minutes"`
}

// MealSlot assigns one recipe to a (date, meal type) of a plan.
type MealSlot struct {
	ID         string         `json:"id"`
	MealPlanID string         `json:"meal_plan_id"`
	RecipeID   string         `json:"recipe_id"`
	Date       shared.Date    `json:"date"`
	MealType   string         `json:"meal_type"`
	Servings   int            `json:"servings"`
	Notes      *string        `json:"notes"`
	Recipe     *RecipeSummary `json:"recipe,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// MealPlan is a user's plan for the week starting on WeekStartDate (a Monday).
type MealPlan struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	WeekStartDate shared.Date `json:"week_start_date"`
	Notes         *string     `json:"notes"`
	Slots         []MealSlot  `json:"slots,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CreatePlanInput is the payload for creating a plan.
type CreatePlanInput struct {
	WeekStartDate shared.Date `json:"week_start_date"`
	Notes         *string     `json:"notes"`
}

// SlotInput adds one of the user's recipes to a plan.
type SlotInput struct {
	RecipeID string      `json:"recipe_id"`
	Date     shared.Date `json:"date"`
	MealType string      `json:"meal_type"`
	Servings *int        `json:"servings"`
	Notes    *string     `json:"notes"`
}

// SlotUpdate is a partial slot update.
type SlotUpdate struct {
	RecipeID *string      `json:"recipe_id"`
	Date     *shared.Date `json:"date"`
	MealType *string      `json:"meal_type"`
	Servings *int         `json:"servings"`
	Notes    *string      `json:"notes"`
}

// ExternalSlotInput imports an external recipe and adds it to a plan.
type ExternalSlotInput struct {
	Source     string      `json:"source"`
	ExternalID string      `json:"external_id"`
	Date       shared.Date `json:"date"`
	MealType   string      `json:"meal_type"`
	Servings   *int        `json:"servings"`
	Notes      *string     `json:"notes"`
}

// QuickPlanInput fills a week from external recipes in one call.
type QuickPlanInput struct {
	WeekStartDate shared.Date         `json:"week_start_date"`
	Slots         []ExternalSlotInput `json:"slots"`
	Notes         *string             `json:"notes"`
}
