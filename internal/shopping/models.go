package shopping

import "time"

// ShoppingList is a user's list, optionally generated from a meal plan.
type ShoppingList struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MealPlanID *string   `json:"meal_plan_id"`
	Name       string    `json:"name"`
	Items      []Item    `json:"items,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Item is one line of a shopping list.
type Item struct {
	ID             string    `json:"id"`
	ShoppingListID string    `json:"shopping_list_id"`
	IngredientName string    `json:"ingredient_name"`
	Amount         float64   `json:"amount"`
	Unit           string    `json:"unit"`
	IsChecked      bool      `json:"is_checked"`
	Category       Category  `json:"category"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateListInput creates an empty list.
type CreateListInput struct {
	Name       string  `json:"name"`
	MealPlanID *string `json:"meal_plan_id"`
}

// ItemInput adds a manual item.
type ItemInput struct {
	IngredientName string  `json:"ingredient_name"`
	Amount         float64 `json:"amount"`
	Unit           string  `json:"unit"`
	Category       string  `json:"category"`
	Notes          *string `json:"notes"`
}

// ItemUpdate is a partial item update.
type ItemUpdate struct {
	IngredientName *string  `json:"ingredient_name"`
	Amount         *float64 `json:"amount"`
	Unit           *string  `json:"unit"`
	IsChecked      *bool    `json:"is_checked"`
	Category       *string  `json:"category"`
	Notes          *string  `json:"notes"`
}
