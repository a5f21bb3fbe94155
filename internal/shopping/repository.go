package shopping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"meal-planner/internal/mealtype"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles persistence of shopping lists.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new shopping list repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listColumns = `id, user_id, meal_plan_id, name, created_at, updated_at`

func scanList(row pgx.Row) (*ShoppingList, error) {
	var l ShoppingList
	if err := row.Scan(&l.ID, &l.UserID, &l.MealPlanID, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

const itemColumns = `id, shopping_list_id, ingredient_name, amount::float8, unit, is_checked, category, notes, created_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ShoppingListID, &it.IngredientName, &it.Amount, &it.Unit, &it.IsChecked, &it.Category, &it.Notes, &it.CreatedAt)
	return it, err
}

// Create saves a new empty list.
func (r *Repository) Create(ctx context.Context, userID string, in CreateListInput) (*ShoppingList, error) {
	l, err := scanList(r.pool.QueryRow(ctx, `
		INSERT INTO shopping_lists (id, user_id, meal_plan_id, name) VALUES ($1, $2, $3, $4)
		RETURNING `+listColumns, uuid.NewString(), userID, in.MealPlanID, in.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to insert shopping list: %w", err)
	}
	l.Items = []Item{}
	return l, nil
}

// Get loads a list with its items, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*ShoppingList, error) {
	return getList(ctx, r.pool, id)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getList(ctx context.Context, q querier, id string) (*ShoppingList, error) {
	l, err := scanList(q.QueryRow(ctx, `SELECT `+listColumns+` FROM shopping_lists WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shopping list %s: %w", id, err)
	}
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM shopping_items WHERE shopping_list_id = $1
		ORDER BY category, created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query shopping items: %w", err)
	}
	l.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) { return scanItem(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan shopping items: %w", err)
	}
	return l, nil
}

// List returns the user's lists, newest first, without items.
func (r *Repository) List(ctx context.Context, userID string, page, limit int) ([]ShoppingList, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM shopping_lists WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count shopping lists: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+listColumns+` FROM shopping_lists WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list shopping lists: %w", err)
	}
	lists, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ShoppingList, error) {
		l, err := scanList(row)
		if err != nil {
			return ShoppingList{}, err
		}
		return *l, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan shopping lists: %w", err)
	}
	return lists, total, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM shopping_lists WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete shopping list %s: %w", id, err)
	}
	return nil
}

// RegenerateForMealPlan replaces the meal plan's generated list in one
// transaction. A per-plan advisory lock serializes concurrent regenerations,
// so exactly one list survives and a failure leaves the previous list intact.
func (r *Repository) RegenerateForMealPlan(ctx context.Context, userID, mealPlanID, name string, build func([]PlannedSlot) []Item) (*ShoppingList, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, mealPlanID); err != nil {
		return nil, fmt.Errorf("failed to lock meal plan %s: %w", mealPlanID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM shopping_lists WHERE meal_plan_id = $1`, mealPlanID); err != nil {
		return nil, fmt.Errorf("failed to delete previous shopping list: %w", err)
	}

	var listID string
	err = tx.QueryRow(ctx, `INSERT INTO shopping_lists (id, user_id, meal_plan_id, name) VALUES ($1, $2, $3, $4)
		RETURNING id`, uuid.NewString(), userID, mealPlanID, name).Scan(&listID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert shopping list: %w", err)
	}

	slots, err := loadPlannedSlots(ctx, tx, mealPlanID)
	if err != nil {
		return nil, err
	}

	items := build(slots)
	if len(items) > 0 {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(`INSERT INTO shopping_items (id, shopping_list_id, ingredient_name, amount, unit, is_checked, category, notes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				uuid.NewString(), listID, it.IngredientName, it.Amount, it.Unit, it.IsChecked, string(it.Category), it.Notes)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert shopping items: %w", err)
		}
	}

	list, err := getList(ctx, tx, listID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit shopping list: %w", err)
	}
	return list, nil
}

// loadPlannedSlots reads every slot of the plan with its recipe's ingredients,
// ordered by date, meal type and slot id.
func loadPlannedSlots(ctx context.Context, q querier, mealPlanID string) ([]PlannedSlot, error) {
	rows, err := q.Query(ctx, `
		SELECT s.id, s.date, s.meal_type, s.servings, r.id, r.servings
		FROM meal_slots s JOIN recipes r ON r.id = s.recipe_id
		WHERE s.meal_plan_id = $1`, mealPlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlannedSlot, error) {
		var (
			s   PlannedSlot
			day time.Time
		)
		err := row.Scan(&s.SlotID, &day, &s.MealType, &s.Servings, &s.RecipeID, &s.RecipeServings)
		s.Date = shared.NewDate(day)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan meal slots: %w", err)
	}
	if len(slots) == 0 {
		return slots, nil
	}

	recipeIDs := make([]string, 0, len(slots))
	for _, s := range slots {
		if !slices.Contains(recipeIDs, s.RecipeID) {
			recipeIDs = append(recipeIDs, s.RecipeID)
		}
	}
	rows, err = q.Query(ctx, `
		SELECT recipe_id, id, name, amount::float8, unit, order_index
		FROM ingredients WHERE recipe_id = ANY($1) ORDER BY recipe_id, order_index, id`, recipeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	byRecipe := make(map[string][]recipe.Ingredient)
	for rows.Next() {
		var (
			recipeID string
			ing      recipe.Ingredient
		)
		if err := rows.Scan(&recipeID, &ing.ID, &ing.Name, &ing.Amount, &ing.Unit, &ing.OrderIndex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		byRecipe[recipeID] = append(byRecipe[recipeID], ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ingredients: %w", err)
	}

	for i := range slots {
		slots[i].Ingredients = byRecipe[slots[i].RecipeID]
	}
	SortPlannedSlots(slots)
	return slots, nil
}

// SortPlannedSlots orders slots by date, meal type (breakfast first), then slot id.
func SortPlannedSlots(slots []PlannedSlot) {
	slices.SortStableFunc(slots, func(a, b PlannedSlot) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if c := mealtype.Order(a.MealType) - mealtype.Order(b.MealType); c != 0 {
			return c
		}
		return strings.Compare(a.SlotID, b.SlotID)
	})
}

// GetItem returns the item if it belongs to listID, else nil.
func (r *Repository) GetItem(ctx context.Context, listID, itemID string) (*Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM shopping_items
		WHERE id = $1 AND shopping_list_id = $2`, itemID, listID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shopping item %s: %w", itemID, err)
	}
	return &it, nil
}

func (r *Repository) AddItem(ctx context.Context, listID string, in ItemInput) (*Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `
		INSERT INTO shopping_items (id, shopping_list_id, ingredient_name, amount, unit, category, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+itemColumns,
		uuid.NewString(), listID, in.IngredientName, in.Amount, in.Unit, in.Category, in.Notes))
	if err != nil {
		return nil, fmt.Errorf("failed to insert shopping item: %w", err)
	}
	if err := r.touch(ctx, listID); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repository) UpdateItem(ctx context.Context, it *Item) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE shopping_items SET ingredient_name = $2, amount = $3, unit = $4, is_checked = $5, category = $6, notes = $7
		WHERE id = $1`, it.ID, it.IngredientName, it.Amount, it.Unit, it.IsChecked, string(it.Category), it.Notes)
	if err != nil {
		return fmt.Errorf("failed to update shopping item %s: %w", it.ID, err)
	}
	return r.touch(ctx, it.ShoppingListID)
}

func (r *Repository) DeleteItem(ctx context.Context, listID, itemID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shopping_items WHERE id = $1 AND shopping_list_id = $2`, itemID, listID)
	if err != nil {
		return false, fmt.Errorf("failed to delete shopping item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, r.touch(ctx, listID)
}

func (r *Repository) touch(ctx context.Context, listID string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE shopping_lists SET updated_at = now() WHERE id = $1`, listID); err != nil {
		return fmt.Errorf("failed to touch shopping list %s: %w", listID, err)
	}
	return nil
}
