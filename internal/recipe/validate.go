package recipe

import (
	"fmt"
	"slices"
	"strings"

	"meal-planner/internal/apperr"
)

const (
	MinServings = 1
	MaxServings = 100
)

// ValidateCreate checks the invariants of a new recipe: a title, servings in
// range, at least one ingredient, and positive amounts.
func ValidateCreate(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || len([]rune(in.Title)) > 200 {
		return apperr.Validation("title must be 1-200 characters")
	}
	if in.Servings == 0 {
		in.Servings = 4
	}
	if err := validateServings(in.Servings); err != nil {
		return err
	}
	if in.Difficulty == "" {
		in.Difficulty = DifficultyMedium
	}
	if err := validateDifficulty(in.Difficulty); err != nil {
		return err
	}
	if err := validateCategories(in.Categories); err != nil {
		return err
	}
	if err := validateTimes(in.PrepTimeMinutes, in.CookTimeMinutes); err != nil {
		return err
	}
	if err := validateIngredients(in.Ingredients); err != nil {
		return err
	}
	normalizeSteps(in.Instructions)
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.Categories == nil {
		in.Categories = []string{}
	}
	return nil
}

// ValidateUpdate checks only the fields present in the update.
func ValidateUpdate(in *UpdateInput) error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" || len([]rune(t)) > 200 {
			return apperr.Validation("title must be 1-200 characters")
		}
		in.Title = &t
	}
	if in.Servings != nil {
		if err := validateServings(*in.Servings); err != nil {
			return err
		}
	}
	if in.Difficulty != nil {
		if err := validateDifficulty(*in.Difficulty); err != nil {
			return err
		}
	}
	if err := validateCategories(in.Categories); err != nil {
		return err
	}
	if err := validateTimes(in.PrepTimeMinutes, in.CookTimeMinutes); err != nil {
		return err
	}
	if in.Ingredients != nil {
		if err := validateIngredients(in.Ingredients); err != nil {
			return err
		}
	}
	normalizeSteps(in.Instructions)
	return nil
}

func validateServings(n int) error {
	if n < MinServings || n > MaxServings {
		return apperr.Validation(fmt.Sprintf("servings must be between %d and %d", MinServings, MaxServings))
	}
	return nil
}

func validateDifficulty(d string) error {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return nil
	}
	return apperr.Validation(fmt.Sprintf("invalid difficulty %q", d))
}

func validateCategories(cats []string) error {
	for _, c := range cats {
		if !slices.Contains(Categories, c) {
			return apperr.Validation(fmt.Sprintf("invalid category %q", c))
		}
	}
	return nil
}

func validateTimes(prep, cook *int) error {
	if prep != nil && *prep < 0 {
		return apperr.Validation("prep_time_minutes must not be negative")
	}
	if cook != nil && *cook < 0 {
		return apperr.Validation("cook_time_minutes must not be negative")
	}
	return nil
}

func validateIngredients(ings []IngredientInput) error {
	if len(ings) == 0 {
		return apperr.Validation("at least one ingredient is required")
	}
	for i := range ings {
		ings[i].Name = strings.TrimSpace(ings[i].Name)
		if ings[i].Name == "" {
			return apperr.Validation(fmt.Sprintf("ingredient %d has no name", i+1))
		}
		if ings[i].Amount <= 0 {
			return apperr.Validation(fmt.Sprintf("ingredient %q must have a positive amount", ings[i].Name))
		}
		if ings[i].OrderIndex == 0 {
			ings[i].OrderIndex = i
		}
	}
	return nil
}

// normalizeSteps numbers steps sequentially when the caller omitted step numbers.
func normalizeSteps(steps []InstructionInput) {
	for i := range steps {
		if steps[i].StepNumber <= 0 {
			steps[i].StepNumber = i + 1
		}
	}
}
