package shopping

import (
	"log"
	"strings"
	"unicode"

	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
)

// PlannedSlot is one meal slot with the recipe data aggregation needs.
type PlannedSlot struct {
	SlotID         string
	Date           shared.Date
	MealType       string
	Servings       int
	RecipeID       string
	RecipeServings int
	Ingredients    []recipe.Ingredient
}

type aggKey struct {
	name string
	unit string
}

type accumulator struct {
	amount   float64
	unit     string
	category Category
}

// Aggregate merges the scaled ingredients of every slot into one item per
// (lower-cased name, lower-cased unit). Amounts are summed; unit and category
// come from the last ingredient seen for the key, so callers pass slots in a
// stable order. Items keep first-seen order.
func Aggregate(slots []PlannedSlot) []Item {
	acc := make(map[aggKey]*accumulator)
	var order []aggKey

	for _, slot := range slots {
		if len(slot.Ingredients) == 0 {
			continue
		}
		if slot.RecipeServings <= 0 || slot.Servings <= 0 {
			log.Printf("shopping: skipping slot %s, recipe %s has invalid servings (%d/%d)",
				slot.SlotID, slot.RecipeID, slot.Servings, slot.RecipeServings)
			continue
		}
		multiplier := float64(slot.Servings) / float64(slot.RecipeServings)

		for _, ing := range slot.Ingredients {
			k := aggKey{name: strings.ToLower(ing.Name), unit: strings.ToLower(ing.Unit)}
			a, ok := acc[k]
			if !ok {
				a = &accumulator{}
				acc[k] = a
				order = append(order, k)
			}
			a.amount += ing.Amount * multiplier
			a.unit = ing.Unit
			a.category = Categorize(ing.Name)
		}
	}

	items := make([]Item, 0, len(order))
	for _, k := range order {
		a := acc[k]
		items = append(items, Item{
			IngredientName: titleCase(k.name),
			Amount:         recipe.Round2(a.amount),
			Unit:           a.unit,
			Category:       a.category,
			IsChecked:      false,
		})
	}
	return items
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

// DefaultListName is used when generation is not given a name.
func DefaultListName(weekStart shared.Date) string {
	return weekStart.String() + " 주간 장보기 목록"
}
