package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"meal-planner/internal/mealtype"
	"meal-planner/internal/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSlotTaken is returned when the (plan, date, meal type) unique index rejects a write.
var ErrSlotTaken = errors.New("meal slot already taken")

const slotUniqueConstraint = "uq_meal_slots_plan_date_type"

// PlanRepository is a database-backed repository for meal plans.
type PlanRepository struct {
	pool *pgxpool.Pool
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

func scanPlan(row pgx.Row) (*MealPlan, error) {
	var (
		p    MealPlan
		week time.Time
	)
	if err := row.Scan(&p.ID, &p.UserID, &week, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.WeekStartDate = shared.NewDate(week)
	return &p, nil
}

const planColumns = `id, user_id, week_start_date, notes, created_at, updated_at`

// CreateOrGet inserts the plan for (user, week) or returns the existing one.
func (r *PlanRepository) CreateOrGet(ctx context.Context, userID string, weekStart shared.Date, notes *string) (*MealPlan, error) {
	plan, err := scanPlan(r.pool.QueryRow(ctx, `
		INSERT INTO meal_plans (id, user_id, week_start_date, notes) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, week_start_date) DO NOTHING
		RETURNING `+planColumns, uuid.NewString(), userID, weekStart.Time, notes))
	if err == nil {
		plan.Slots = []MealSlot{}
		return plan, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create meal plan: %w", err)
	}
	return r.GetByWeek(ctx, userID, weekStart)
}

// Get loads a plan with its slots. It returns nil, nil when the plan does not exist.
func (r *PlanRepository) Get(ctx context.Context, id string) (*MealPlan, error) {
	plan, err := scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM meal_plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meal plan %s: %w", id, err)
	}
	if plan.Slots, err = r.listSlots(ctx, plan.ID); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetByWeek loads the user's plan for the week, or nil.
func (r *PlanRepository) GetByWeek(ctx context.Context, userID string, weekStart shared.Date) (*MealPlan, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM meal_plans WHERE user_id = $1 AND week_start_date = $2`,
		userID, weekStart.Time).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meal plan by week: %w", err)
	}
	return r.Get(ctx, id)
}

// List returns the user's plans, most recent week first, without slots.
func (r *PlanRepository) List(ctx context.Context, userID string, page, limit int) ([]MealPlan, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM meal_plans WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count meal plans: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+planColumns+` FROM meal_plans WHERE user_id = $1
		ORDER BY week_start_date DESC LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list meal plans for user %s: %w", userID, err)
	}
	plans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MealPlan, error) {
		p, err := scanPlan(row)
		if err != nil {
			return MealPlan{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan meal plans: %w", err)
	}
	return plans, total, nil
}

func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM meal_plans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete meal plan %s: %w", id, err)
	}
	return nil
}

const slotSelect = `
	SELECT s.id, s.meal_plan_id, s.recipe_id, s.date, s.meal_type, s.servings, s.notes, s.created_at,
	       r.title, r.image_url, r.servings, r.prep_time_minutes, r.cook_time_minutes
	FROM meal_slots s JOIN recipes r ON r.id = s.recipe_id`

func scanSlot(row pgx.Row) (MealSlot, error) {
	var (
		s   MealSlot
		day time.Time
		rs  RecipeSummary
	)
	err := row.Scan(&s.ID, &s.MealPlanID, &s.RecipeID, &day, &s.MealType, &s.Servings, &s.Notes, &s.CreatedAt,
		&rs.Title, &rs.ImageURL, &rs.Servings, &rs.PrepTimeMinutes, &rs.CookTimeMinutes)
	if err != nil {
		return MealSlot{}, err
	}
	s.Date = shared.NewDate(day)
	rs.ID = s.RecipeID
	s.Recipe = &rs
	return s, nil
}

func (r *PlanRepository) listSlots(ctx context.Context, planID string) ([]MealSlot, error) {
	rows, err := r.pool.Query(ctx, slotSelect+` WHERE s.meal_plan_id = $1 ORDER BY s.date, s.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MealSlot, error) {
		return scanSlot(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan meal slots: %w", err)
	}
	SortSlots(slots)
	return slots, nil
}

// GetSlot returns the slot if it belongs to planID, else nil.
func (r *PlanRepository) GetSlot(ctx context.Context, planID, slotID string) (*MealSlot, error) {
	s, err := scanSlot(r.pool.QueryRow(ctx, slotSelect+` WHERE s.id = $1 AND s.meal_plan_id = $2`, slotID, planID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meal slot %s: %w", slotID, err)
	}
	return &s, nil
}

// SlotTaken reports whether another slot already occupies (date, meal type).
func (r *PlanRepository) SlotTaken(ctx context.Context, planID string, date shared.Date, mealType, excludeSlotID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM meal_slots
		WHERE meal_plan_id = $1 AND date = $2 AND meal_type = $3 AND id <> $4)`,
		planID, date.Time, mealType, excludeSlotID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check meal slot conflict: %w", err)
	}
	return taken, nil
}

// AddSlot inserts the slot, assigning its id.
func (r *PlanRepository) AddSlot(ctx context.Context, s *MealSlot) error {
	s.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO meal_slots (id, meal_plan_id, recipe_id, date, meal_type, servings, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		s.ID, s.MealPlanID, s.RecipeID, s.Date.Time, s.MealType, s.Servings, s.Notes).Scan(&s.CreatedAt)
	if err != nil {
		return mapSlotErr("insert", err)
	}
	return r.touch(ctx, s.MealPlanID)
}

func (r *PlanRepository) UpdateSlot(ctx context.Context, s *MealSlot) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE meal_slots SET recipe_id = $2, date = $3, meal_type = $4, servings = $5, notes = $6, updated_at = now()
		WHERE id = $1`, s.ID, s.RecipeID, s.Date.Time, s.MealType, s.Servings, s.Notes)
	if err != nil {
		return mapSlotErr("update", err)
	}
	return r.touch(ctx, s.MealPlanID)
}

func (r *PlanRepository) DeleteSlot(ctx context.Context, planID, slotID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meal_slots WHERE id = $1 AND meal_plan_id = $2`, slotID, planID)
	if err != nil {
		return false, fmt.Errorf("failed to delete meal slot %s: %w", slotID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, r.touch(ctx, planID)
}

func (r *PlanRepository) touch(ctx context.Context, planID string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE meal_plans SET updated_at = now() WHERE id = $1`, planID); err != nil {
		return fmt.Errorf("failed to touch meal plan %s: %w", planID, err)
	}
	return nil
}

func mapSlotErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotUniqueConstraint {
		return ErrSlotTaken
	}
	return fmt.Errorf("failed to %s meal slot: %w", op, err)
}

// SortSlots orders slots by date, then meal type (breakfast first), then id.
func SortSlots(slots []MealSlot) {
	slices.SortStableFunc(slots, func(a, b MealSlot) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if c := mealtype.Order(a.MealType) - mealtype.Order(b.MealType); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
