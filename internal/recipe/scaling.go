package recipe

import "math"

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScaleIngredients returns copies of ings with each amount multiplied by
// newServings/oldServings and rounded to 2 decimals independently. Equal
// servings return the amounts untouched so repeated no-op calls never drift.
func ScaleIngredients(ings []Ingredient, oldServings, newServings int) []Ingredient {
	out := make([]Ingredient, len(ings))
	copy(out, ings)
	if oldServings == newServings || oldServings <= 0 {
		return out
	}
	factor := float64(newServings) / float64(oldServings)
	for i := range out {
		out[i].Amount = Round2(out[i].Amount * factor)
	}
	return out
}
