package recipe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"meal-planner/internal/apperr"
	"meal-planner/internal/shared"
)

// Store is the persistence surface the Service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, userID string, in CreateInput) (*Recipe, error)
	Get(ctx context.Context, id string) (*Recipe, error)
	List(ctx context.Context, userID string, p SearchParams) ([]Recipe, int, error)
	Update(ctx context.Context, rec *Recipe, ings []IngredientInput, steps []InstructionInput) (*Recipe, error)
	UpdateServings(ctx context.Context, rec *Recipe) error
	Delete(ctx context.Context, id string) error
	FindByExternal(ctx context.Context, userID, source, externalID string) (*Recipe, error)

	AddFavorite(ctx context.Context, userID, recipeID string) error
	RemoveFavorite(ctx context.Context, userID, recipeID string) (bool, error)
	IsFavorite(ctx context.Context, userID, recipeID string) (bool, error)
	ListFavorites(ctx context.Context, userID string, page, limit int) ([]Recipe, int, error)

	CreateRating(ctx context.Context, userID, recipeID string, rating int, review *string) (*Rating, error)
	UpdateRating(ctx context.Context, userID, recipeID string, rating int, review *string) (*Rating, error)
	DeleteRating(ctx context.Context, userID, recipeID string) (bool, error)
	GetRating(ctx context.Context, userID, recipeID string) (*Rating, error)
	ListRatings(ctx context.Context, recipeID string, page, limit int) ([]Rating, int, error)
	Stats(ctx context.Context, recipeID string) (*Stats, error)
}

// Service implements recipe use cases with ownership checks.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create validates and stores a new recipe for userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Recipe, error) {
	if err := ValidateCreate(&in); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, userID, in)
}

// Get returns the user's recipe. Recipes owned by someone else are reported
// as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (*Recipe, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID != userID {
		return nil, apperr.NotFound("Recipe", id)
	}
	return rec, nil
}

// GetPublic returns any user's recipe, for browsing.
func (s *Service) GetPublic(ctx context.Context, id string) (*Recipe, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.NotFound("Recipe", id)
	}
	return rec, nil
}

// List searches the user's own recipes.
func (s *Service) List(ctx context.Context, userID string, p SearchParams) (shared.Page[Recipe], error) {
	return s.list(ctx, userID, p)
}

// Browse searches recipes of all users.
func (s *Service) Browse(ctx context.Context, p SearchParams) (shared.Page[Recipe], error) {
	return s.list(ctx, "", p)
}

func (s *Service) list(ctx context.Context, userID string, p SearchParams) (shared.Page[Recipe], error) {
	pg := shared.Pagination{Page: p.Page, Limit: p.Limit}.Normalize(20, 100)
	p.Page, p.Limit = pg.Page, pg.Limit
	if err := validateCategories(p.Categories); err != nil {
		return shared.Page[Recipe]{}, err
	}
	items, total, err := s.store.List(ctx, userID, p)
	if err != nil {
		return shared.Page[Recipe]{}, err
	}
	return shared.NewPage(items, total, pg), nil
}

// Update applies a partial update to the user's recipe.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Recipe, error) {
	if err := ValidateUpdate(&in); err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		rec.Title = *in.Title
	}
	if in.Description != nil {
		rec.Description = in.Description
	}
	if in.ImageURL != nil {
		rec.ImageURL = in.ImageURL
	}
	if in.PrepTimeMinutes != nil {
		rec.PrepTimeMinutes = in.PrepTimeMinutes
	}
	if in.CookTimeMinutes != nil {
		rec.CookTimeMinutes = in.CookTimeMinutes
	}
	if in.Servings != nil {
		rec.Servings = *in.Servings
	}
	if in.Difficulty != nil {
		rec.Difficulty = *in.Difficulty
	}
	if in.Categories != nil {
		rec.Categories = in.Categories
	}
	if in.Tags != nil {
		rec.Tags = in.Tags
	}
	if in.SourceURL != nil {
		rec.SourceURL = in.SourceURL
	}
	if in.Calories != nil {
		rec.Calories = in.Calories
	}
	if in.ProteinGrams != nil {
		rec.ProteinGrams = in.ProteinGrams
	}
	if in.CarbsGrams != nil {
		rec.CarbsGrams = in.CarbsGrams
	}
	if in.FatGrams != nil {
		rec.FatGrams = in.FatGrams
	}

	return s.store.Update(ctx, rec, in.Ingredients, in.Instructions)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// AdjustServings rescales every ingredient to newServings and persists the
// result. Asking for the current servings is a no-op with no write.
func (s *Service) AdjustServings(ctx context.Context, recipeID, userID string, newServings int) (*Recipe, error) {
	if err := validateServings(newServings); err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}
	if rec.Servings == newServings {
		return rec, nil
	}

	rec.Ingredients = ScaleIngredients(rec.Ingredients, rec.Servings, newServings)
	rec.Servings = newServings
	if err := s.store.UpdateServings(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to adjust servings: %w", err)
	}
	return rec, nil
}

// FindImported returns the user's earlier import of an external recipe, or nil.
func (s *Service) FindImported(ctx context.Context, userID, source, externalID string) (*Recipe, error) {
	return s.store.FindByExternal(ctx, userID, source, externalID)
}

func (s *Service) AddFavorite(ctx context.Context, userID, recipeID string) error {
	if _, err := s.GetPublic(ctx, recipeID); err != nil {
		return err
	}
	return s.store.AddFavorite(ctx, userID, recipeID)
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	removed, err := s.store.RemoveFavorite(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("Favorite", recipeID)
	}
	return nil
}

func (s *Service) IsFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	return s.store.IsFavorite(ctx, userID, recipeID)
}

func (s *Service) ListFavorites(ctx context.Context, userID string, p shared.Pagination) (shared.Page[Recipe], error) {
	p = p.Normalize(20, 100)
	items, total, err := s.store.ListFavorites(ctx, userID, p.Page, p.Limit)
	if err != nil {
		return shared.Page[Recipe]{}, err
	}
	return shared.NewPage(items, total, p), nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Validation("rating must be between 1 and 5")
	}
	return nil
}

// Rate creates the user's rating for a recipe. A second rating is a conflict;
// use UpdateRating instead.
func (s *Service) Rate(ctx context.Context, userID, recipeID string, rating int, review *string) (*Rating, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	if _, err := s.GetPublic(ctx, recipeID); err != nil {
		return nil, err
	}
	out, err := s.store.CreateRating(ctx, userID, recipeID, rating, review)
	if errors.Is(err, ErrRatingExists) {
		return nil, apperr.Conflict("RATING_002", "You have already rated this recipe")
	}
	return out, err
}

func (s *Service) UpdateRating(ctx context.Context, userID, recipeID string, rating int, review *string) (*Rating, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	out, err := s.store.UpdateRating(ctx, userID, recipeID, rating, review)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, apperr.NotFound("Rating", recipeID)
	}
	return out, nil
}

func (s *Service) DeleteRating(ctx context.Context, userID, recipeID string) error {
	removed, err := s.store.DeleteRating(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("Rating", recipeID)
	}
	return nil
}

// MyRating returns the user's rating or nil when there is none.
func (s *Service) MyRating(ctx context.Context, userID, recipeID string) (*Rating, error) {
	return s.store.GetRating(ctx, userID, recipeID)
}

func (s *Service) ListRatings(ctx context.Context, recipeID string, p shared.Pagination) (shared.Page[Rating], error) {
	p = p.Normalize(20, 100)
	items, total, err := s.store.ListRatings(ctx, recipeID, p.Page, p.Limit)
	if err != nil {
		return shared.Page[Rating]{}, err
	}
	return shared.NewPage(items, total, p), nil
}

func (s *Service) Stats(ctx context.Context, recipeID string) (*Stats, error) {
	if _, err := s.GetPublic(ctx, recipeID); err != nil {
		return nil, err
	}
	st, err := s.store.Stats(ctx, recipeID)
	if err != nil {
		log.Printf("failed to load stats for recipe %s: %v", recipeID, err)
		return nil, err
	}
	return st, nil
}
