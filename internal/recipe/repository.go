package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is a Postgres-backed repository for recipes, favorites and ratings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recipeColumns = `id, user_id, title, description, image_url, prep_time_minutes, cook_time_minutes,
	servings, difficulty, categories, tags, source_url, external_source, external_id, imported_at,
	calories, protein_grams::float8, carbs_grams::float8, fat_grams::float8, created_at, updated_at`

func scanRecipe(row pgx.Row) (*Recipe, error) {
	var r Recipe
	err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.ImageURL, &r.PrepTimeMinutes, &r.CookTimeMinutes,
		&r.Servings, &r.Difficulty, &r.Categories, &r.Tags, &r.SourceURL, &r.ExternalSource, &r.ExternalID, &r.ImportedAt,
		&r.Calories, &r.ProteinGrams, &r.CarbsGrams, &r.FatGrams, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a recipe with its ingredients and instructions in one transaction.
func (r *Repository) Create(ctx context.Context, userID string, in CreateInput) (*Recipe, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var importedAt *time.Time
	if in.ExternalSource != nil {
		now := time.Now().UTC()
		importedAt = &now
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO recipes (id, user_id, title, description, image_url, prep_time_minutes, cook_time_minutes,
			servings, difficulty, categories, tags, source_url, external_source, external_id, imported_at,
			calories, protein_grams, carbs_grams, fat_grams)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING `+recipeColumns,
		uuid.NewString(), userID, in.Title, in.Description, in.ImageURL, in.PrepTimeMinutes, in.CookTimeMinutes,
		in.Servings, in.Difficulty, in.Categories, in.Tags, in.SourceURL, in.ExternalSource, in.ExternalID, importedAt,
		in.Calories, in.ProteinGrams, in.CarbsGrams, in.FatGrams)
	rec, err := scanRecipe(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}

	if rec.Ingredients, err = insertIngredients(ctx, tx, rec.ID, in.Ingredients); err != nil {
		return nil, err
	}
	if rec.Instructions, err = insertInstructions(ctx, tx, rec.ID, in.Instructions); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit recipe: %w", err)
	}
	return rec, nil
}

func insertIngredients(ctx context.Context, tx pgx.Tx, recipeID string, ings []IngredientInput) ([]Ingredient, error) {
	out := make([]Ingredient, 0, len(ings))
	batch := &pgx.Batch{}
	for _, in := range ings {
		ing := Ingredient{ID: uuid.NewString(), Name: in.Name, Amount: in.Amount, Unit: in.Unit, Notes: in.Notes, OrderIndex: in.OrderIndex}
		batch.Queue(`INSERT INTO ingredients (id, recipe_id, name, amount, unit, notes, order_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, ing.ID, recipeID, ing.Name, ing.Amount, ing.Unit, ing.Notes, ing.OrderIndex)
		out = append(out, ing)
	}
	if batch.Len() == 0 {
		return out, nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to insert ingredients: %w", err)
	}
	return out, nil
}

func insertInstructions(ctx context.Context, tx pgx.Tx, recipeID string, steps []InstructionInput) ([]Instruction, error) {
	out := make([]Instruction, 0, len(steps))
	batch := &pgx.Batch{}
	for _, in := range steps {
		st := Instruction{ID: uuid.NewString(), StepNumber: in.StepNumber, Description: in.Description, ImageURL: in.ImageURL}
		batch.Queue(`INSERT INTO instructions (id, recipe_id, step_number, description, image_url)
			VALUES ($1, $2, $3, $4, $5)`, st.ID, recipeID, st.StepNumber, st.Description, st.ImageURL)
		out = append(out, st)
	}
	if batch.Len() == 0 {
		return out, nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to insert instructions: %w", err)
	}
	return out, nil
}

// Get retrieves a recipe with its ingredients and instructions. It returns
// nil, nil when no recipe has the given id.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	rec, err := scanRecipe(r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe %s: %w", id, err)
	}
	if err := r.loadChildren(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository) loadChildren(ctx context.Context, rec *Recipe) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, amount::float8, unit, notes, order_index
		FROM ingredients WHERE recipe_id = $1 ORDER BY order_index, id`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query ingredients: %w", err)
	}
	rec.Ingredients, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Ingredient, error) {
		var ing Ingredient
		err := row.Scan(&ing.ID, &ing.Name, &ing.Amount, &ing.Unit, &ing.Notes, &ing.OrderIndex)
		return ing, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan ingredients: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, step_number, description, image_url
		FROM instructions WHERE recipe_id = $1 ORDER BY step_number, id`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query instructions: %w", err)
	}
	rec.Instructions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Instruction, error) {
		var st Instruction
		err := row.Scan(&st.ID, &st.StepNumber, &st.Description, &st.ImageURL)
		return st, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan instructions: %w", err)
	}
	return nil
}

// List returns one page of recipes matching p plus the total match count.
// An empty userID lists recipes of all users.
func (r *Repository) List(ctx context.Context, userID string, p SearchParams) ([]Recipe, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if userID != "" {
		conds = append(conds, "user_id = "+arg(userID))
	}
	if q := strings.TrimSpace(p.Query); q != "" {
		ph := arg("%" + q + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", ph, ph))
	}
	if len(p.Categories) > 0 {
		conds = append(conds, "categories && "+arg(p.Categories))
	}
	if len(p.Tags) > 0 {
		conds = append(conds, "tags && "+arg(p.Tags))
	}
	if p.Difficulty != "" {
		conds = append(conds, "difficulty = "+arg(p.Difficulty))
	}
	if p.MaxPrepTime != nil {
		conds = append(conds, "prep_time_minutes <= "+arg(*p.MaxPrepTime))
	}
	if p.MaxCookTime != nil {
		conds = append(conds, "cook_time_minutes <= "+arg(*p.MaxCookTime))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM recipes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes` + where +
		` ORDER BY (image_url IS NULL), created_at DESC LIMIT ` + arg(p.Limit) + ` OFFSET ` + arg((p.Page-1)*p.Limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}
	recipes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipe, error) {
		rec, err := scanRecipe(row)
		if err != nil {
			return Recipe{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan recipes: %w", err)
	}
	return recipes, total, nil
}

// Update writes rec's scalar fields and, when non-nil, replaces its
// ingredients and instructions.
func (r *Repository) Update(ctx context.Context, rec *Recipe, ings []IngredientInput, steps []InstructionInput) (*Recipe, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE recipes SET title = $2, description = $3, image_url = $4, prep_time_minutes = $5,
			cook_time_minutes = $6, servings = $7, difficulty = $8, categories = $9, tags = $10,
			source_url = $11, calories = $12, protein_grams = $13, carbs_grams = $14, fat_grams = $15,
			updated_at = now()
		WHERE id = $1`,
		rec.ID, rec.Title, rec.Description, rec.ImageURL, rec.PrepTimeMinutes, rec.CookTimeMinutes, rec.Servings,
		rec.Difficulty, rec.Categories, rec.Tags, rec.SourceURL, rec.Calories, rec.ProteinGrams, rec.CarbsGrams, rec.FatGrams)
	if err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	if ings != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM ingredients WHERE recipe_id = $1`, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to clear ingredients: %w", err)
		}
		if _, err := insertIngredients(ctx, tx, rec.ID, ings); err != nil {
			return nil, err
		}
	}
	if steps != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM instructions WHERE recipe_id = $1`, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to clear instructions: %w", err)
		}
		if _, err := insertInstructions(ctx, tx, rec.ID, steps); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit recipe update: %w", err)
	}
	return r.Get(ctx, rec.ID)
}

// UpdateServings persists rec.Servings and every ingredient amount atomically.
func (r *Repository) UpdateServings(ctx context.Context, rec *Recipe) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE recipes SET servings = $2, updated_at = now() WHERE id = $1`, rec.ID, rec.Servings)
	for _, ing := range rec.Ingredients {
		batch.Queue(`UPDATE ingredients SET amount = $2 WHERE id = $1`, ing.ID, ing.Amount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to update servings: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes a recipe; children cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete recipe %s: %w", id, err)
	}
	return nil
}

// FindByExternal returns the user's earlier import of an external recipe, or nil.
func (r *Repository) FindByExternal(ctx context.Context, userID, source, externalID string) (*Recipe, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM recipes WHERE user_id = $1 AND external_source = $2 AND external_id = $3
		ORDER BY created_at LIMIT 1`, userID, source, externalID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find imported recipe: %w", err)
	}
	return r.Get(ctx, id)
}

// AddFavorite marks a recipe as favorite; adding twice is a no-op.
func (r *Repository) AddFavorite(ctx context.Context, userID, recipeID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recipe_favorites (id, user_id, recipe_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, recipe_id) DO NOTHING`, uuid.NewString(), userID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite reports whether a favorite was removed.
func (r *Repository) RemoveFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipe_favorites WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) IsFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM recipe_favorites WHERE user_id = $1 AND recipe_id = $2)`,
		userID, recipeID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return ok, nil
}

// ListFavorites returns the user's favorite recipes, newest favorite first.
func (r *Repository) ListFavorites(ctx context.Context, userID string, page, limit int) ([]Recipe, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM recipe_favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count favorites: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+prefixed("r.", recipeColumns)+`
		FROM recipe_favorites f JOIN recipes r ON r.id = f.recipe_id
		WHERE f.user_id = $1 ORDER BY f.created_at DESC LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites: %w", err)
	}
	recipes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipe, error) {
		rec, err := scanRecipe(row)
		if err != nil {
			return Recipe{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan favorites: %w", err)
	}
	return recipes, total, nil
}

// prefixed qualifies every column in a comma separated list with a table alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ErrRatingExists is returned by CreateRating when the user already rated the recipe.
var ErrRatingExists = errors.New("rating already exists")

func (r *Repository) CreateRating(ctx context.Context, userID, recipeID string, rating int, review *string) (*Rating, error) {
	var out Rating
	err := r.pool.QueryRow(ctx, `
		INSERT INTO recipe_ratings (id, user_id, recipe_id, rating, review) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, recipe_id, rating, review, created_at, updated_at`,
		uuid.NewString(), userID, recipeID, rating, review).
		Scan(&out.ID, &out.UserID, &out.RecipeID, &out.Rating, &out.Review, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrRatingExists
		}
		return nil, fmt.Errorf("failed to create rating: %w", err)
	}
	return &out, nil
}

// UpdateRating returns nil, nil when the user has no rating for the recipe.
func (r *Repository) UpdateRating(ctx context.Context, userID, recipeID string, rating int, review *string) (*Rating, error) {
	var out Rating
	err := r.pool.QueryRow(ctx, `
		UPDATE recipe_ratings SET rating = $3, review = $4, updated_at = now()
		WHERE user_id = $1 AND recipe_id = $2
		RETURNING id, user_id, recipe_id, rating, review, created_at, updated_at`,
		userID, recipeID, rating, review).
		Scan(&out.ID, &out.UserID, &out.RecipeID, &out.Rating, &out.Review, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}
	return &out, nil
}

func (r *Repository) DeleteRating(ctx context.Context, userID, recipeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipe_ratings WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete rating: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetRating returns nil, nil when the user has not rated the recipe.
func (r *Repository) GetRating(ctx context.Context, userID, recipeID string) (*Rating, error) {
	var out Rating
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, recipe_id, rating, review, created_at, updated_at
		FROM recipe_ratings WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID).
		Scan(&out.ID, &out.UserID, &out.RecipeID, &out.Rating, &out.Review, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return &out, nil
}

func (r *Repository) ListRatings(ctx context.Context, recipeID string, page, limit int) ([]Rating, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM recipe_ratings WHERE recipe_id = $1`, recipeID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, recipe_id, rating, review, created_at, updated_at
		FROM recipe_ratings WHERE recipe_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		recipeID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ratings: %w", err)
	}
	ratings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Rating, error) {
		var out Rating
		err := row.Scan(&out.ID, &out.UserID, &out.RecipeID, &out.Rating, &out.Review, &out.CreatedAt, &out.UpdatedAt)
		return out, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan ratings: %w", err)
	}
	return ratings, total, nil
}

func (r *Repository) Stats(ctx context.Context, recipeID string) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT round(avg(rating)::numeric, 1)::float8 FROM recipe_ratings WHERE recipe_id = $1),
		       (SELECT count(*) FROM recipe_ratings WHERE recipe_id = $1),
		       (SELECT count(*) FROM recipe_favorites WHERE recipe_id = $1)`, recipeID).
		Scan(&s.AverageRating, &s.TotalRatings, &s.FavoritesCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe stats: %w", err)
	}
	return &s, nil
}
