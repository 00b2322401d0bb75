package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// repository is the persistence collaborator: users, profiles, raw meal
// documents, and per-date day state. It never aggregates — the ledger owns
// turning documents into totals.
type repository struct {
	db *pgxpool.Pool
}

func newRepository(db *pgxpool.Pool) *repository {
	return &repository{db: db}
}

/* ─── Users / profiles ───────────────────────────────────────────────── */

func (r *repository) UserByUsername(ctx context.Context, username string) (user, error) {
	return queryOne[user](r.db, ctx,
		"SELECT * FROM users WHERE username = @username",
		pgx.NamedArgs{"username": username})
}

func (r *repository) UserIDByToken(ctx context.Context, token string) (int, error) {
	var userID int
	err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE auth_token = $1", token).Scan(&userID)
	return userID, err
}

func (r *repository) PushToken(ctx context.Context, userID int) (*string, error) {
	var token *string
	err := r.db.QueryRow(ctx, "SELECT push_token FROM users WHERE id = $1", userID).Scan(&token)
	return token, err
}

func (r *repository) SetPushToken(ctx context.Context, userID int, token string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE users SET push_token = @token WHERE id = @userID",
		pgx.NamedArgs{"token": token, "userID": userID})
	return err
}

func (r *repository) Profile(ctx context.Context, userID int) (userProfile, error) {
	return queryOne[userProfile](r.db, ctx,
		"SELECT * FROM profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
}

// UpdateProfile writes only the non-nil fields. COALESCE keeps the rest,
// the same pattern the item updates use.
func (r *repository) UpdateProfile(ctx context.Context, userID int, req updateProfileRequest) (userProfile, error) {
	return queryOne[userProfile](r.db, ctx,
		`UPDATE profiles SET
			name                = COALESCE(@name, name),
			gender              = COALESCE(@gender, gender),
			age                 = COALESCE(@age, age),
			height              = COALESCE(@height, height),
			weight              = COALESCE(@weight, weight),
			activity_level      = COALESCE(@activityLevel, activity_level),
			goal                = COALESCE(@goal, goal),
			onboarding_complete = COALESCE(@onboardingComplete, onboarding_complete),
			updated_at          = now()
		 WHERE user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": userID, "name": req.Name, "gender": req.Gender,
			"age": req.Age, "height": req.Height, "weight": req.Weight,
			"activityLevel": req.ActivityLevel, "goal": req.Goal,
			"onboardingComplete": req.OnboardingComplete,
		})
}

/* ─── Meal documents ─────────────────────────────────────────────────── */

// MealDocumentsByRange returns the raw documents for [start, end], ordered by
// creation so rehydrated days keep their logging order.
func (r *repository) MealDocumentsByRange(ctx context.Context, userID int, start, end string) ([]mealDocument, error) {
	docs, err := queryMany[mealDocument](r.db, ctx,
		`SELECT * FROM meal_documents
		 WHERE user_id = @userID AND date >= @start AND date <= @end
		 ORDER BY created_at`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		return nil, fmt.Errorf("meal documents %s..%s: %w", start, end, err)
	}
	return docs, nil
}

func (r *repository) SaveMealDocument(ctx context.Context, doc mealDocument) error {
	// Simple-protocol queries can't infer a wire type for a struct slice;
	// marshal the JSONB payload ourselves.
	items, err := json.Marshal(doc.Items)
	if err != nil {
		return fmt.Errorf("marshal meal items: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO meal_documents (id, user_id, date, type, items, photo_url, created_at)
		 VALUES (@id, @userID, @date, @type, @items, @photoURL, @createdAt)`,
		pgx.NamedArgs{
			"id": doc.ID, "userID": doc.UserID,
			"date": doc.Date.Time.Format("2006-01-02"), "type": doc.Type,
			"items": string(items), "photoURL": doc.PhotoURL, "createdAt": doc.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("save meal document: %w", err)
	}
	return nil
}

func (r *repository) DeleteMealDocument(ctx context.Context, userID int, id string) error {
	result, err := r.db.Exec(ctx,
		"DELETE FROM meal_documents WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
	if err != nil {
		return fmt.Errorf("delete meal document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

/* ─── Day state ──────────────────────────────────────────────────────── */

// DayState returns the saved non-meal fields for a date, or nil when none
// were ever written.
func (r *repository) DayState(ctx context.Context, userID int, date string) (*dayState, error) {
	st, err := queryOne[dayState](r.db, ctx,
		"SELECT * FROM day_state WHERE user_id = @userID AND date = @date",
		pgx.NamedArgs{"userID": userID, "date": date})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("day state %s: %w", date, err)
	}
	return &st, nil
}

// DayStatesByRange returns the saved non-meal rows for [start, end].
func (r *repository) DayStatesByRange(ctx context.Context, userID int, start, end string) ([]dayState, error) {
	states, err := queryMany[dayState](r.db, ctx,
		`SELECT * FROM day_state
		 WHERE user_id = @userID AND date >= @start AND date <= @end`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		return nil, fmt.Errorf("day states %s..%s: %w", start, end, err)
	}
	return states, nil
}

// UpsertDayState writes the full non-meal record for a date. The
// UNIQUE(user_id, date) key means repeated writes update in place.
func (r *repository) UpsertDayState(ctx context.Context, st dayState) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO day_state (user_id, date, water_intake_ml, steps, sleep_duration)
		 VALUES (@userID, @date, @waterIntakeML, @steps, @sleepDuration)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			water_intake_ml = EXCLUDED.water_intake_ml,
			steps           = EXCLUDED.steps,
			sleep_duration  = EXCLUDED.sleep_duration`,
		pgx.NamedArgs{
			"userID": st.UserID, "date": st.Date.Time.Format("2006-01-02"),
			"waterIntakeML": st.WaterIntakeML, "steps": st.Steps,
			"sleepDuration": st.SleepDuration,
		})
	if err != nil {
		return fmt.Errorf("upsert day state: %w", err)
	}
	return nil
}
