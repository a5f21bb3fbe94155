package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meal-planner/internal/recipe"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Translation states of a cached recipe.
const (
	TranslationPending   = "pending"
	TranslationCompleted = "completed"
	TranslationFailed    = "failed"
	TranslationSkipped   = "skipped"
)

// CachedRecipe is a prefetched external recipe stored in cached_recipes.
type CachedRecipe struct {
	ID string
	Detail
	TranslationStatus string
	FetchedAt         time.Time
	TranslatedAt      *time.Time
}

// CachedSearch filters cached recipe searches.
type CachedSearch struct {
	Query      string
	Source     string
	Categories []string
	Offset     int
	Limit      int
}

// CachedRepository is the Postgres store for cached_recipes.
type CachedRepository struct {
	pool *pgxpool.Pool
}

func NewCachedRepository(pool *pgxpool.Pool) *CachedRepository {
	return &CachedRepository{pool: pool}
}

const cachedColumns = `id, external_source, external_id, title, title_original, description, image_url,
	prep_time_minutes, cook_time_minutes, servings, difficulty, categories, tags, source_url,
	ingredients_json, instructions_json, calories, protein_grams::float8, carbs_grams::float8, fat_grams::float8,
	meal_types, translation_status, fetched_at, translated_at`

func scanCached(row pgx.Row) (*CachedRecipe, error) {
	var (
		c             CachedRecipe
		source, extID string
		titleOriginal *string
	)
	err := row.Scan(&c.ID, &source, &extID, &c.Title, &titleOriginal, &c.Description, &c.ImageURL,
		&c.PrepTimeMinutes, &c.CookTimeMinutes, &c.Servings, &c.Difficulty, &c.Categories, &c.Tags, &c.SourceURL,
		&c.Ingredients, &c.Instructions, &c.Calories, &c.ProteinGrams, &c.CarbsGrams, &c.FatGrams,
		&c.MealTypes, &c.TranslationStatus, &c.FetchedAt, &c.TranslatedAt)
	if err != nil {
		return nil, err
	}
	c.ExternalSource = &source
	c.ExternalID = &extID
	c.TitleOriginal = deref(titleOriginal)
	return &c, nil
}

func collectCached(rows pgx.Rows) ([]CachedRecipe, error) {
	defer rows.Close()
	var out []CachedRecipe
	for rows.Next() {
		c, err := scanCached(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached recipe: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetBySource returns nil, nil when the recipe is not cached.
func (r *CachedRepository) GetBySource(ctx context.Context, source, externalID string) (*CachedRecipe, error) {
	c, err := scanCached(r.pool.QueryRow(ctx,
		`SELECT `+cachedColumns+` FROM cached_recipes WHERE external_source = $1 AND external_id = $2`,
		source, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached recipe %s/%s: %w", source, externalID, err)
	}
	return c, nil
}

// ExistingIDs returns which of ids are already cached for source.
func (r *CachedRepository) ExistingIDs(ctx context.Context, source string, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT external_id FROM cached_recipes WHERE external_source = $1 AND external_id = ANY($2)`, source, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check cached ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan cached ids: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// Upsert inserts or refreshes a cached recipe keyed by source and external id.
func (r *CachedRepository) Upsert(ctx context.Context, c *CachedRecipe) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.FetchedAt.IsZero() {
		c.FetchedAt = time.Now().UTC()
	}
	if c.TranslationStatus == "" {
		c.TranslationStatus = TranslationPending
	}
	ings, steps := nonNil(c.Ingredients), nonNil(c.Instructions)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO cached_recipes (id, external_source, external_id, title, title_original, description, image_url,
			prep_time_minutes, cook_time_minutes, servings, difficulty, categories, tags, source_url,
			ingredients_json, instructions_json, calories, protein_grams, carbs_grams, fat_grams,
			meal_types, translation_status, fetched_at, translated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT ON CONSTRAINT uq_cached_recipes_source_id DO UPDATE SET
			title = EXCLUDED.title, title_original = EXCLUDED.title_original, description = EXCLUDED.description,
			image_url = EXCLUDED.image_url, prep_time_minutes = EXCLUDED.prep_time_minutes,
			cook_time_minutes = EXCLUDED.cook_time_minutes, servings = EXCLUDED.servings,
			difficulty = EXCLUDED.difficulty, categories = EXCLUDED.categories, tags = EXCLUDED.tags,
			source_url = EXCLUDED.source_url, ingredients_json = EXCLUDED.ingredients_json,
			instructions_json = EXCLUDED.instructions_json, calories = EXCLUDED.calories,
			protein_grams = EXCLUDED.protein_grams, carbs_grams = EXCLUDED.carbs_grams, fat_grams = EXCLUDED.fat_grams,
			meal_types = EXCLUDED.meal_types, translation_status = EXCLUDED.translation_status,
			fetched_at = EXCLUDED.fetched_at, translated_at = EXCLUDED.translated_at, updated_at = now()
		RETURNING id`,
		c.ID, c.Source(), c.Detail.ID(), c.Title, optString(c.TitleOriginal), c.Description, c.ImageURL,
		c.PrepTimeMinutes, c.CookTimeMinutes, c.Servings, orDefault(c.Difficulty, recipe.DifficultyMedium),
		nonNil(c.Categories), nonNil(c.Tags), c.SourceURL, ings, steps,
		c.Calories, c.ProteinGrams, c.CarbsGrams, c.FatGrams,
		nonNil(c.MealTypes), c.TranslationStatus, c.FetchedAt, c.TranslatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert cached recipe %s/%s: %w", c.Source(), c.Detail.ID(), err)
	}
	return nil
}

// Search pages through cached recipes ordered by title.
func (r *CachedRepository) Search(ctx context.Context, s CachedSearch) ([]CachedRecipe, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if s.Source != "" {
		conds = append(conds, "external_source = "+arg(s.Source))
	}
	if q := strings.TrimSpace(s.Query); q != "" {
		ph := arg("%" + q + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR title_original ILIKE %s)", ph, ph))
	}
	if len(s.Categories) > 0 {
		conds = append(conds, "categories && "+arg(s.Categories))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cached_recipes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cached recipes: %w", err)
	}

	limit := s.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + cachedColumns + ` FROM cached_recipes` + where +
		` ORDER BY title, id LIMIT ` + arg(limit) + ` OFFSET ` + arg(s.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search cached recipes: %w", err)
	}
	out, err := collectCached(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Discover returns a random selection for one source.
func (r *CachedRepository) Discover(ctx context.Context, source, category, cuisine, mealType string, limit int) ([]CachedRecipe, error) {
	conds := []string{"external_source = $1"}
	args := []any{source}
	if category != "" {
		args = append(args, []string{category})
		conds = append(conds, fmt.Sprintf("categories && $%d", len(args)))
	}
	if cuisine != "" {
		args = append(args, []string{strings.ToLower(cuisine)})
		conds = append(conds, fmt.Sprintf("tags && $%d", len(args)))
	}
	if mealType != "" {
		args = append(args, []string{mealType})
		conds = append(conds, fmt.Sprintf("meal_types && $%d", len(args)))
	}
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, `SELECT `+cachedColumns+` FROM cached_recipes WHERE `+
		strings.Join(conds, " AND ")+fmt.Sprintf(` ORDER BY random() LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to discover cached recipes: %w", err)
	}
	return collectCached(rows)
}

// CountBySource returns the number of cached recipes per source.
func (r *CachedRepository) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT external_source, COUNT(*) FROM cached_recipes GROUP BY external_source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cached recipes: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		out[source] = n
	}
	return out, rows.Err()
}

// Untranslated returns recipes whose translation is pending or failed,
// after afterID in id order. An empty source means all sources.
func (r *CachedRepository) Untranslated(ctx context.Context, source, afterID string, limit int) ([]CachedRecipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cachedColumns+` FROM cached_recipes
		WHERE translation_status IN ('pending', 'failed') AND ($1 = '' OR external_source = $1) AND id > $2
		ORDER BY id LIMIT $3`, source, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query untranslated recipes: %w", err)
	}
	return collectCached(rows)
}

// UntranslatedTitles returns recipes whose title still equals the original,
// after afterID in id order.
func (r *CachedRepository) UntranslatedTitles(ctx context.Context, source, afterID string, limit int) ([]CachedRecipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cachedColumns+` FROM cached_recipes
		WHERE title = title_original AND ($1 = '' OR external_source = $1) AND id > $2
		ORDER BY id LIMIT $3`, source, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query untranslated titles: %w", err)
	}
	return collectCached(rows)
}

// SaveTranslation writes translated text and the translation state.
func (r *CachedRepository) SaveTranslation(ctx context.Context, c *CachedRecipe) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE cached_recipes SET title = $2, description = $3, tags = $4, ingredients_json = $5,
			instructions_json = $6, translation_status = $7, translated_at = $8, updated_at = now()
		WHERE id = $1`,
		c.ID, c.Title, c.Description, nonNil(c.Tags), nonNil(c.Ingredients), nonNil(c.Instructions),
		c.TranslationStatus, c.TranslatedAt)
	if err != nil {
		return fmt.Errorf("failed to save translation for %s: %w", c.ID, err)
	}
	return nil
}

// MissingMealTypes returns recipes with no meal types after afterID in id order.
func (r *CachedRepository) MissingMealTypes(ctx context.Context, afterID string, limit int) ([]CachedRecipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cachedColumns+` FROM cached_recipes
		WHERE cardinality(meal_types) = 0 AND id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes without meal types: %w", err)
	}
	return collectCached(rows)
}

func (r *CachedRepository) SetMealTypes(ctx context.Context, id string, mealTypes []string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE cached_recipes SET meal_types = $2, updated_at = now() WHERE id = $1`,
		id, nonNil(mealTypes)); err != nil {
		return fmt.Errorf("failed to set meal types for %s: %w", id, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
