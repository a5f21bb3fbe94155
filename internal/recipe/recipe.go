package recipe

import (
	"time"
)

// Difficulty levels accepted on recipes.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Categories is the closed set of recipe categories.
var Categories = []string{"breakfast", "lunch", "dinner", "snack", "dessert", "appetizer", "side", "drink"}

// Ingredient is a recipe line item. OrderIndex is for display only.
type Ingredient struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Unit       string  `json:"unit"`
	Notes      *string `json:"notes"`
	OrderIndex int     `json:"order_index"`
}

// Instruction is one step of a recipe.
type Instruction struct {
	ID          string  `json:"id"`
	StepNumber  int     `json:"step_number"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url"`
}

// Recipe is a user-owned recipe with its ingredients and instructions.
type Recipe struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Title           string        `json:"title"`
	Description     *string       `json:"description"`
	ImageURL        *string       `json:"image_url"`
	PrepTimeMinutes *int          `json:"prep_time_minutes"`
	CookTimeMinutes *int          `json:"cook_time_minutes"`
	Servings        int           `json:"servings"`
	Difficulty      string        `json:"difficulty"`
	Categories      []string      `json:"categories"`
	Tags            []string      `json:"tags"`
	SourceURL       *string       `json:"source_url"`
	ExternalSource  *string       `json:"external_source"`
	ExternalID      *string       `json:"external_id"`
	ImportedAt      *time.Time    `json:"imported_at"`
	Calories        *int          `json:"calories"`
	ProteinGrams    *float64      `json:"protein_grams"`
	CarbsGrams      *float64      `json:"carbs_grams"`
	FatGrams        *float64      `json:"fat_grams"`
	Ingredients     []Ingredient  `json:"ingredients,omitempty"`
	Instructions    []Instruction `json:"instructions,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IngredientInput is the ingredient shape shared by create payloads and the
// cached_recipes ingredients_json column.
type IngredientInput struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Unit       string  `json:"unit"`
	Notes      *string `json:"notes"`
	OrderIndex int     `json:"order_index"`
}

// InstructionInput is the instruction shape shared by create payloads and the
// cached_recipes instructions_json column.
type InstructionInput struct {
	StepNumber  int     `json:"step_number"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url"`
}

// CreateInput is the payload for creating a recipe.
type CreateInput struct {
	Title           string             `json:"title"`
	Description     *string            `json:"description"`
	ImageURL        *string            `json:"image_url"`
	PrepTimeMinutes *int               `json:"prep_time_minutes"`
	CookTimeMinutes *int               `json:"cook_time_minutes"`
	Servings        int                `json:"servings"`
	Difficulty      string             `json:"difficulty"`
	Categories      []string           `json:"categories"`
	Tags            []string           `json:"tags"`
	SourceURL       *string            `json:"source_url"`
	ExternalSource  *string            `json:"external_source,omitempty"`
	ExternalID      *string            `json:"external_id,omitempty"`
	Calories        *int               `json:"calories"`
	ProteinGrams    *float64           `json:"protein_grams"`
	CarbsGrams      *float64           `json:"carbs_grams"`
	FatGrams        *float64           `json:"fat_grams"`
	Ingredients     []IngredientInput  `json:"ingredients"`
	Instructions    []InstructionInput `json:"instructions"`
}

// UpdateInput is a partial update. Nil fields are left unchanged; a non-nil
// Ingredients or Instructions slice replaces the existing children.
type UpdateInput struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	ImageURL        *string            `json:"image_url"`
	PrepTimeMinutes *int               `json:"prep_time_minutes"`
	CookTimeMinutes *int               `json:"cook_time_minutes"`
	Servings        *int               `json:"servings"`
	Difficulty      *string            `json:"difficulty"`
	Categories      []string           `json:"categories"`
	Tags            []string           `json:"tags"`
	SourceURL       *string            `json:"source_url"`
	Calories        *int               `json:"calories"`
	ProteinGrams    *float64           `json:"protein_grams"`
	CarbsGrams      *float64           `json:"carbs_grams"`
	FatGrams        *float64           `json:"fat_grams"`
	Ingredients     []IngredientInput  `json:"ingredients"`
	Instructions    []InstructionInput `json:"instructions"`
}

// SearchParams filters recipe listings.
type SearchParams struct {
	Query       string
	Categories  []string
	Tags        []string
	Difficulty  string
	MaxPrepTime *int
	MaxCookTime *int
	Page        int
	Limit       int
}

// Rating is one user's rating of a recipe.
type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RecipeID  string    `json:"recipe_id"`
	Rating    int       `json:"rating"`
	Review    *string   `json:"review"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats aggregates ratings and favorites for a recipe.
type Stats struct {
	AverageRating  *float64 `json:"average_rating"`
	TotalRatings   int      `json:"total_ratings"`
	FavoritesCount int      `json:"favorites_count"`
}

// InputFromRecipe converts a stored recipe's children into create-payload shapes.
func InputFromRecipe(r *Recipe) ([]IngredientInput, []InstructionInput) {
	ings := make([]IngredientInput, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ings[i] = IngredientInput{Name: ing.Name, Amount: ing.Amount, Unit: ing.Unit, Notes: ing.Notes, OrderIndex: ing.OrderIndex}
	}
	steps := make([]InstructionInput, len(r.Instructions))
	for i, st := range r.Instructions {
		steps[i] = InstructionInput{StepNumber: st.StepNumber, Description: st.Description, ImageURL: st.ImageURL}
	}
	return ings, steps
}
