package external

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
)

//go:embed seed/korean_recipes.json
var seedFS embed.FS

// KoreanSeed serves the bundled Korean recipes. It needs no API key.
type KoreanSeed struct {
	recipes []Detail
}

// NewKoreanSeed loads the embedded seed file and tags each recipe with
// meal types.
func NewKoreanSeed(classifier mealtype.Classifier) (*KoreanSeed, error) {
	raw, err := seedFS.ReadFile("seed/korean_recipes.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read seed recipes: %w", err)
	}
	var file struct {
		Recipes []struct {
			ID string `json:"id"`
			recipe.CreateInput
		} `json:"recipes"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed recipes: %w", err)
	}

	s := &KoreanSeed{recipes: make([]Detail, 0, len(file.Recipes))}
	for _, r := range file.Recipes {
		d := Detail{CreateInput: r.CreateInput}
		d.ExternalSource = ptr(SourceKoreanSeed)
		d.ExternalID = ptr(r.ID)
		d.MealTypes = classifier.Classify(d.Title, "", d.Categories, d.Tags)
		s.recipes = append(s.recipes, d)
	}
	return s, nil
}

func (s *KoreanSeed) Name() string    { return SourceKoreanSeed }
func (s *KoreanSeed) Available() bool { return len(s.recipes) > 0 }

// All returns every seed recipe.
func (s *KoreanSeed) All() []Detail { return s.recipes }

func (s *KoreanSeed) Get(ctx context.Context, id string) (*Detail, error) {
	for i := range s.recipes {
		if s.recipes[i].ID() == id {
			d := s.recipes[i].clone()
			return &d, nil
		}
	}
	return nil, nil
}

// Search matches the query against title, description and tags. Cuisine
// filters by category, the closest thing the seed data has.
func (s *KoreanSeed) Search(ctx context.Context, q SearchQuery) ([]Preview, int, error) {
	matches := s.filter(q.Query, q.Cuisine, "")
	total := len(matches)
	start := min(q.Offset, total)
	end := total
	if q.Number > 0 {
		end = min(start+q.Number, total)
	}
	out := make([]Preview, 0, end-start)
	for _, d := range matches[start:end] {
		out = append(out, d.Preview())
	}
	return out, total, nil
}

// Discover returns a random sample, skipped entirely for non-Korean cuisines.
func (s *KoreanSeed) Discover(ctx context.Context, q DiscoverQuery) ([]Preview, error) {
	if q.Cuisine != "" && !strings.Contains(strings.ToLower(q.Cuisine), "korean") {
		return []Preview{}, nil
	}
	return s.Sample(q.Category, "", q.Number), nil
}

// Sample picks up to n random recipes, optionally restricted to a category
// and a meal type.
func (s *KoreanSeed) Sample(category, mealType string, n int) []Preview {
	matches := s.filter("", category, mealType)
	rand.Shuffle(len(matches), func(i, j int) { matches[i], matches[j] = matches[j], matches[i] })
	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	out := make([]Preview, len(matches))
	for i := range matches {
		out[i] = matches[i].Preview()
	}
	return out
}

func (s *KoreanSeed) filter(query, category, mealType string) []Detail {
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.ToLower(strings.TrimSpace(category))
	var out []Detail
	for _, d := range s.recipes {
		if query != "" && !seedMatches(d, query) {
			continue
		}
		if category != "" && !slices.ContainsFunc(d.Categories, func(c string) bool { return strings.ToLower(c) == category }) {
			continue
		}
		if mealType != "" && !slices.Contains(d.MealTypes, mealType) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func seedMatches(d Detail, query string) bool {
	if strings.Contains(strings.ToLower(d.Title), query) {
		return true
	}
	if d.Description != nil && strings.Contains(strings.ToLower(*d.Description), query) {
		return true
	}
	return slices.ContainsFunc(d.Tags, func(t string) bool { return strings.Contains(strings.ToLower(t), query) })
}
