package clipper

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"

	"meal-planner/internal/recipe"

	"github.com/PuerkitoBio/goquery"
)

// extractJSONLD returns the first schema.org Recipe found in the page's
// JSON-LD blocks, or nil.
func extractJSONLD(doc *goquery.Document) *recipe.CreateInput {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		found = findRecipe(data)
		return found == nil
	})
	if found == nil {
		return nil
	}
	return schemaToInput(found)
}

// findRecipe looks through a top-level list, an @graph, or a single node.
func findRecipe(data any) map[string]any {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	case map[string]any:
		if isRecipe(v) {
			return v
		}
		if graph, ok := v["@graph"].([]any); ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func isRecipe(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func schemaToInput(node map[string]any) *recipe.CreateInput {
	in := &recipe.CreateInput{
		Title:           text(node["name"]),
		Description:     optional(text(node["description"])),
		ImageURL:        optional(imageURL(node["image"])),
		PrepTimeMinutes: parseDuration(text(node["prepTime"])),
		CookTimeMinutes: parseDuration(text(node["cookTime"])),
		Servings:        parseServings(node["recipeYield"]),
		Difficulty:      recipe.DifficultyMedium,
		Categories:      recipe.MapCategories(stringList(node["recipeCategory"])),
		Tags:            keywords(node["keywords"]),
	}
	if in.Servings == 0 {
		in.Servings = 4
	}
	if in.CookTimeMinutes == nil && in.PrepTimeMinutes == nil {
		in.CookTimeMinutes = parseDuration(text(node["totalTime"]))
	}

	for _, line := range stringList(node["recipeIngredient"]) {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		ing := recipe.ParseIngredientLine(line)
		ing.OrderIndex = len(in.Ingredients)
		in.Ingredients = append(in.Ingredients, ing)
	}

	for _, st := range instructions(node["recipeInstructions"]) {
		st.StepNumber = len(in.Instructions) + 1
		in.Instructions = append(in.Instructions, st)
	}
	return in
}

// instructions flattens strings, HowToStep nodes and HowToSection lists.
func instructions(v any) []recipe.InstructionInput {
	var out []recipe.InstructionInput
	switch x := v.(type) {
	case string:
		for _, line := range strings.Split(x, "\n") {
			if line = text(line); line != "" {
				out = append(out, recipe.InstructionInput{Description: line})
			}
		}
	case []any:
		for _, item := range x {
			out = append(out, instructions(item)...)
		}
	case map[string]any:
		if items, ok := x["itemListElement"]; ok {
			return instructions(items)
		}
		desc := text(x["text"])
		if desc == "" {
			desc = text(x["name"])
		}
		if desc != "" {
			out = append(out, recipe.InstructionInput{Description: desc, ImageURL: optional(imageURL(x["image"]))})
		}
	}
	return out
}

func imageURL(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		if len(x) > 0 {
			return imageURL(x[0])
		}
	case map[string]any:
		return text(x["url"])
	}
	return ""
}

var firstNumber = regexp.MustCompile(`\d+`)

// parseServings reads recipeYield given as a number, "4 servings" or a list.
func parseServings(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		if m := firstNumber.FindString(x); m != "" {
			n, _ := strconv.Atoi(m)
			return n
		}
	case []any:
		for _, item := range x {
			if n := parseServings(item); n > 0 {
				return n
			}
		}
	}
	return 0
}

var isoDuration = regexp.MustCompile(`(?i)^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:[\d.]+S)?)?$`)

// parseDuration converts an ISO-8601 duration such as PT1H30M to minutes.
// Zero and unparseable durations give nil.
func parseDuration(s string) *int {
	m := isoDuration.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	mins, _ := strconv.Atoi(m[3])
	total := days*24*60 + hours*60 + mins
	if total == 0 {
		return nil
	}
	return &total
}

func keywords(v any) []string {
	var out []string
	switch x := v.(type) {
	case string:
		for _, k := range strings.Split(x, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	case []any:
		out = stringList(x)
	}
	return out
}

// stringList reads a string or a list of strings.
func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{text(x)}
	case []any:
		var out []string
		for _, item := range x {
			if s := text(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var inlineTags = regexp.MustCompile(`<[^>]*>`)

// text returns a trimmed string with entities decoded and inline tags
// removed; non-strings give "".
func text(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(inlineTags.ReplaceAllString(html.UnescapeString(s), ""))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
