// Package external discovers recipes from third-party sources, caches them
// and imports them into a user's collection.
package external

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"meal-planner/internal/recipe"
)

// Source identifiers.
const (
	SourceSpoonacular     = "spoonacular"
	SourceTheMealDB       = "themealdb"
	SourceFoodSafetyKorea = "foodsafetykorea"
	SourceMafra           = "mafra"
	SourceKoreanSeed      = "korean_seed"
)

// Preview is the short form shown in search and discover results.
type Preview struct {
	Source     string   `json:"source"`
	ExternalID string   `json:"external_id"`
	Title      string   `json:"title"`
	ImageURL   *string  `json:"image_url"`
	Category   *string  `json:"category"`
	Summary    string   `json:"summary"`
	Servings   *int     `json:"servings"`
	Difficulty *string  `json:"difficulty"`
	Calories   *int     `json:"calories"`
	MealTypes  []string `json:"meal_types"`

	// Fed to the meal type classifier, not serialized.
	categories []string
	tags       []string
}

// Detail is a full external recipe in create-payload shape. Categories and
// Tags hold the source's own labels; they are mapped on import.
type Detail struct {
	recipe.CreateInput
	TitleOriginal string   `json:"title_original,omitempty"`
	MealTypes     []string `json:"meal_types,omitempty"`
}

// Source returns the provider id stored on the payload.
func (d *Detail) Source() string { return deref(d.ExternalSource) }

// ID returns the provider's recipe id.
func (d *Detail) ID() string { return deref(d.ExternalID) }

// clone copies d deeply enough that callers may edit slices freely.
func (d Detail) clone() Detail {
	d.Categories = slices.Clone(d.Categories)
	d.Tags = slices.Clone(d.Tags)
	d.Ingredients = slices.Clone(d.Ingredients)
	d.Instructions = slices.Clone(d.Instructions)
	d.MealTypes = slices.Clone(d.MealTypes)
	return d
}

// Preview derives the short form.
func (d *Detail) Preview() Preview {
	p := Preview{
		Source:     d.Source(),
		ExternalID: d.ID(),
		Title:      d.Title,
		ImageURL:   d.ImageURL,
		Calories:   d.Calories,
		MealTypes:  d.MealTypes,
		categories: d.Categories,
		tags:       d.Tags,
	}
	if d.Servings > 0 {
		p.Servings = ptr(d.Servings)
	}
	if d.Difficulty != "" {
		p.Difficulty = ptr(d.Difficulty)
	}
	if len(d.Categories) > 0 {
		p.Category = ptr(d.Categories[0])
	}
	if d.Description != nil {
		p.Summary = truncate(stripTags(*d.Description), 200)
	}
	if p.MealTypes == nil {
		p.MealTypes = []string{}
	}
	return p
}

// SearchQuery is passed to a provider's Search.
type SearchQuery struct {
	Query        string
	Cuisine      string
	MaxReadyTime *int
	Number       int
	Offset       int
}

// DiscoverQuery is passed to a provider's Discover.
type DiscoverQuery struct {
	Category string
	Cuisine  string
	Number   int
}

// Provider is one external recipe source.
type Provider interface {
	Name() string
	Available() bool
	// Search returns a page of previews and the source's total match count.
	Search(ctx context.Context, q SearchQuery) ([]Preview, int, error)
	Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error)
	// Get returns nil, nil when the source has no such recipe.
	Get(ctx context.Context, id string) (*Detail, error)
}

// SourceInfo describes a provider for the sources listing.
type SourceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

var sourceInfo = []SourceInfo{
	{ID: SourceKoreanSeed, Name: "한국 레시피", Description: "한국 전통 및 가정식 레시피 (API 키 불필요)"},
	{ID: SourceTheMealDB, Name: "TheMealDB", Description: "무료 레시피 데이터베이스 (영문)"},
	{ID: SourceSpoonacular, Name: "Spoonacular", Description: "종합 레시피 API (영문, 영양 정보 포함)"},
	{ID: SourceFoodSafetyKorea, Name: "식품안전나라", Description: "식품의약품안전처 한국 레시피 (영양 정보 포함)"},
	{ID: SourceMafra, Name: "농식품정보원", Description: "농림수산식품교육문화정보원 한국 레시피 (구조화된 재료/조리과정)"},
}

// isEnglish reports whether a source publishes English text.
func isEnglish(source string) bool {
	return source == SourceSpoonacular || source == SourceTheMealDB
}

// isCacheable reports whether a source is prefetched into cached_recipes.
func isCacheable(source string) bool {
	return isEnglish(source)
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// stripTags removes inline HTML such as the <b> tags in Spoonacular summaries.
func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>' && in:
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// difficultyFor estimates difficulty from total minutes and step count.
func difficultyFor(totalMinutes, steps int) string {
	switch {
	case totalMinutes > 0 && totalMinutes <= 30 && steps <= 6:
		return recipe.DifficultyEasy
	case totalMinutes > 90 || steps > 12:
		return recipe.DifficultyHard
	default:
		return recipe.DifficultyMedium
	}
}

var stepPrefix = regexp.MustCompile(`(?i)^(?:step\s*\d+[.):]?|\d+[.)])\s*`)

// splitSteps turns a block of instructions into numbered steps.
func splitSteps(text string) []recipe.InstructionInput {
	var out []recipe.InstructionInput
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(stepPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if len([]rune(line)) < 3 {
			continue
		}
		out = append(out, recipe.InstructionInput{StepNumber: len(out) + 1, Description: line})
	}
	return out
}
