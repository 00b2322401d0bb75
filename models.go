package main

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

// dateKey is the canonical YYYY-MM-DD form of a calendar day, used as the
// history map key and the meal_documents date column.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

/* ─── Enums ──────────────────────────────────────────────────────────── */

// Gender values accepted on the profile. Anything other than "male" gets the
// female Mifflin-St Jeor offset and the 3000ml water target — see computeTargets.
const (
	genderMale   = "male"
	genderFemale = "female"
	genderOther  = "other"
)

// BMI status labels, assigned by bracket in computeTargets.
const (
	bmiUnderweight = "Underweight"
	bmiNormal      = "Normal"
	bmiOverweight  = "Overweight"
	bmiObese       = "Obese"
)

// validMealTypes is the set of allowed values for the meal_type enum.
// Reject unknown values with 400 rather than letting the DB return a cryptic 500.
var validMealTypes = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"snacks":    true,
}

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
type user struct {
	ID        int        `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	AuthToken string     `json:"-" db:"auth_token"`
	Password  string     `json:"-" db:"password"`
	PushToken *string    `json:"-" db:"push_token"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// userProfile maps to the profiles table — one row per user, edited by the
// onboarding and profile screens. Age, height and weight are kept as the raw
// text the form submitted; parsing (with fallbacks for garbage input) is owned
// entirely by the targets engine.
type userProfile struct {
	UserID             int        `json:"user_id" db:"user_id"`
	Name               string     `json:"name" db:"name"`
	Gender             string     `json:"gender" db:"gender"`
	Age                string     `json:"age" db:"age"`
	Height             string     `json:"height" db:"height"`
	Weight             string     `json:"weight" db:"weight"`
	ActivityLevel      string     `json:"activity_level" db:"activity_level"`
	Goal               string     `json:"goal" db:"goal"`
	OnboardingComplete bool       `json:"onboarding_complete" db:"onboarding_complete"`
	UpdatedAt          *time.Time `json:"updated_at" db:"updated_at"`
}

// derivedTargets is the full output of the targets engine. Recomputed from
// scratch on every profile read or edit — never partially updated.
type derivedTargets struct {
	BMR                int     `json:"bmr"`
	TDEE               int     `json:"tdee"`
	DailyCalorieTarget int     `json:"daily_calorie_target"`
	ProteinTargetG     int     `json:"protein_target_g"`
	CarbTargetG        int     `json:"carb_target_g"`
	FatTargetG         int     `json:"fat_target_g"`
	BMI                float64 `json:"bmi"`
	BMIStatus          string  `json:"bmi_status"`
	WaterTargetML      int     `json:"water_target_ml"`
}

// mealItem is one constituent food within a meal — the shape produced by the
// vision analysis and stored verbatim in the meal document's items column.
type mealItem struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// mealEntry is one logged meal as the ledger sees it: per-meal totals
// aggregated from its items, plus display metadata. Immutable once logged
// (deletion is the only mutation).
type mealEntry struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Calories int        `json:"calories"`
	ProteinG float64    `json:"protein_g"`
	CarbsG   float64    `json:"carbs_g"`
	FatG     float64    `json:"fat_g"`
	PhotoURL *string    `json:"photo_url,omitempty"`
	Items    []mealItem `json:"items,omitempty"`
	LoggedAt time.Time  `json:"logged_at"`
}

// entryName derives a meal's display label by joining its item names.
func entryName(items []mealItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	if len(names) == 0 {
		return "Meal"
	}
	return strings.Join(names, ", ")
}

// dailyLog is one calendar day's running log. The four consumed totals are an
// invariant: after every mutation they equal the sums over Meals.
type dailyLog struct {
	Date             string      `json:"date"`
	Meals            []mealEntry `json:"meals"`
	ConsumedCalories int         `json:"consumed_calories"`
	ConsumedProteinG float64     `json:"consumed_protein_g"`
	ConsumedCarbsG   float64     `json:"consumed_carbs_g"`
	ConsumedFatG     float64     `json:"consumed_fat_g"`
	WaterIntakeML    int         `json:"water_intake_ml"`
	Steps            int         `json:"steps"`
	SleepDuration    string      `json:"sleep_duration"`
}

// mealDocument maps to meal_documents — the persisted form of a logged meal.
// Items stay unaggregated in JSONB; the ledger derives per-meal totals itself
// when rehydrating a day.
type mealDocument struct {
	ID        string     `db:"id"`
	UserID    int        `db:"user_id"`
	Date      DateOnly   `db:"date"`
	Type      string     `db:"type"`
	Items     []mealItem `db:"items"`
	PhotoURL  *string    `db:"photo_url"`
	CreatedAt *time.Time `db:"created_at"`
}

// dayState maps to day_state — the non-meal fields tracked per date
// (water, steps, sleep). Kept separate from meal documents so a meal
// refresh never clobbers them.
type dayState struct {
	UserID        int      `db:"user_id"`
	Date          DateOnly `db:"date"`
	WaterIntakeML int      `db:"water_intake_ml"`
	Steps         int      `db:"steps"`
	SleepDuration string   `db:"sleep_duration"`
}

/* ─── Request / response types ───────────────────────────────────────── */

// updateProfileRequest is the body for PUT /api/profile. All fields are
// pointers — only non-nil fields get written (same pattern as the COALESCE
// updates elsewhere).
type updateProfileRequest struct {
	Name               *string `json:"name"`
	Gender             *string `json:"gender"`
	Age                *string `json:"age"`
	Height             *string `json:"height"`
	Weight             *string `json:"weight"`
	ActivityLevel      *string `json:"activity_level"`
	Goal               *string `json:"goal"`
	OnboardingComplete *bool   `json:"onboarding_complete"`
}

// profileResponse pairs the stored profile with freshly computed targets.
type profileResponse struct {
	Profile userProfile    `json:"profile"`
	Targets derivedTargets `json:"targets"`
}

// logMealRequest is the body for POST /api/log/meals — a meal type plus the
// analysis items (or manually entered equivalents).
type logMealRequest struct {
	Type     string     `json:"type"`
	Items    []mealItem `json:"items"`
	PhotoURL *string    `json:"photo_url"`
}

// addWaterRequest is the body for POST /api/log/water. AmountML is a signed
// delta; negative values undo earlier logging.
type addWaterRequest struct {
	AmountML int `json:"amount_ml"`
}

// activityRequest is the body for POST /api/log/activity — externally
// supplied metrics, not computed here.
type activityRequest struct {
	Steps         *int    `json:"steps"`
	SleepDuration *string `json:"sleep_duration"`
}

// dailySummary is the response shape for GET /api/log/daily.
type dailySummary struct {
	Log     dailyLog       `json:"log"`
	Targets derivedTargets `json:"targets"`
}

// weekDaySummary is one day's entry in the GET /api/log/week-summary response.
// Days with no logged meals have HasData=false and zero totals.
type weekDaySummary struct {
	Date             DateOnly `json:"date"`
	CalorieTarget    int      `json:"calorie_target"`
	ConsumedCalories int      `json:"consumed_calories"`
	CaloriesLeft     int      `json:"calories_left"`
	ProteinG         float64  `json:"protein_g"`
	CarbsG           float64  `json:"carbs_g"`
	FatG             float64  `json:"fat_g"`
	WaterIntakeML    int      `json:"water_intake_ml"`
	HasData          bool     `json:"has_data"`
}
