package recipe

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var vulgarFractions = strings.NewReplacer(
	"½", " 1/2", "⅓", " 1/3", "⅔", " 2/3", "¼", " 1/4", "¾", " 3/4", "⅛", " 1/8",
)

var amountPattern = regexp.MustCompile(`^((?:\d+\s+)?\d+(?:\.\d+)?(?:/\d+)?)(?:\s*[-~]\s*((?:\d+\s+)?\d+(?:\.\d+)?(?:/\d+)?))?\s*`)

// Units recognized at the start of the text following an amount. Longer
// spellings come first so "큰술" wins over a shorter prefix.
var commonUnits = []string{
	"테이블스푼", "티스푼", "작은술", "큰술", "tablespoons", "tablespoon", "teaspoons", "teaspoon",
	"tbsp", "tsp", "cups", "cup", "컵", "kg", "g", "ml", "l", "oz", "lbs", "lb",
	"cloves", "clove", "pinch", "개", "쪽", "줄기", "장", "조각", "알", "통", "단", "줌", "꼬집",
}

// DefaultUnit is used when a line carries no recognizable unit.
const DefaultUnit = "개"

// parseNumber reads "1", "1.5", "1/2" or "1 1/2".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	whole := 0.0
	if i := strings.IndexByte(s, ' '); i > 0 {
		w, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, false
		}
		whole = w
		s = strings.TrimSpace(s[i+1:])
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return whole + n/d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return whole + v, true
}

// ParseMeasure splits a measure such as "1 1/2 cups", "200g" or "2~3큰술"
// into an amount and unit. Ranges use their midpoint. A measure without a
// number yields amount 0 and the whole text as unit.
func ParseMeasure(measure string) (float64, string) {
	s := strings.TrimSpace(vulgarFractions.Replace(measure))
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, s
	}
	amount, ok := parseNumber(m[1])
	if !ok {
		return 0, s
	}
	if m[2] != "" {
		if hi, ok := parseNumber(m[2]); ok {
			amount = (amount + hi) / 2
		}
	}
	return Round2(amount), strings.TrimSpace(s[len(m[0]):])
}

// ParseIngredientLine turns free text such as "2 cups flour, sifted" into
// an ingredient. Missing amounts become 1 and missing units DefaultUnit.
func ParseIngredientLine(line string) IngredientInput {
	line = strings.TrimSpace(line)
	amount, rest := ParseMeasure(line)
	if amount <= 0 {
		amount = 1
		rest = line
	}

	unit := DefaultUnit
	name := rest
	lower := strings.ToLower(rest)
	for _, u := range commonUnits {
		if !strings.HasPrefix(lower, u) {
			continue
		}
		after := rest[len(u):]
		// ASCII units must end at a word boundary so "green onion" keeps its g.
		if isASCII(u) && after != "" && !strings.HasPrefix(after, " ") && !strings.HasPrefix(after, ".") {
			continue
		}
		unit = u
		name = strings.TrimLeft(after, " .")
		break
	}

	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), ","))
	if strings.HasPrefix(strings.ToLower(name), "of ") {
		name = name[3:]
	}
	if name == "" {
		name = line
	}
	return IngredientInput{Name: name, Amount: amount, Unit: unit}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

var categoryAliases = map[string]string{
	"brunch":      "breakfast",
	"main course": "dinner",
	"main dish":   "dinner",
	"main":        "dinner",
	"starter":     "appetizer",
	"side dish":   "side",
	"beverage":    "drink",
	"cocktail":    "drink",
	"아침":          "breakfast",
	"점심":          "lunch",
	"저녁":          "dinner",
	"간식":          "snack",
	"디저트":         "dessert",
	"후식":          "dessert",
	"반찬":          "side",
	"음료":          "drink",
}

// MapCategories keeps the values that name a recipe category, directly or
// through a known alias, without duplicates and in first-seen order.
func MapCategories(values []string) []string {
	out := []string{}
	for _, v := range values {
		c := strings.ToLower(strings.TrimSpace(v))
		if alias, ok := categoryAliases[c]; ok {
			c = alias
		}
		if slices.Contains(Categories, c) && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
