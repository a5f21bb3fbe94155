package shopping

import "strings"

// Category groups shopping items by store section.
type Category string

const (
	Produce   Category = "produce"
	Meat      Category = "meat"
	Dairy     Category = "dairy"
	Bakery    Category = "bakery"
	Frozen    Category = "frozen"
	Pantry    Category = "pantry"
	Beverages Category = "beverages"
	Other     Category = "other"
)

// Categories lists every valid item category.
var Categories = []Category{Produce, Meat, Dairy, Bakery, Frozen, Pantry, Beverages, Other}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if string(v) == c {
			return true
		}
	}
	return false
}

// keyword groups, checked in order; the first hit wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{Produce, []string{"채소", "야채", "과일", "상추", "당근", "양파", "마늘", "토마토", "감자"}},
	{Meat, []string{"고기", "소고기", "돼지", "닭", "beef", "pork", "chicken"}},
	{Dairy, []string{"우유", "치즈", "버터", "요구르트", "milk", "cheese"}},
	{Bakery, []string{"빵", "bread", "베이커리"}},
	{Frozen, []string{"냉동", "frozen"}},
}

// Categorize maps an ingredient name to a store section by substring match.
// Unmatched names are pantry goods; Other is kept for manual items.
func Categorize(name string) Category {
	lower := strings.ToLower(name)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return Pantry
}
