package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// targetsFor loads the user's profile and computes derived targets. A missing
// profile row still yields usable targets — the engine substitutes fallback
// body metrics for empty fields.
func (h *Handler) targetsFor(c *gin.Context, userID int) derivedTargets {
	profile, err := h.repo.Profile(c.Request.Context(), userID)
	if err != nil {
		h.log.Warnw("profile lookup failed, using fallback targets", "user_id", userID, "error", err)
	}
	return computeTargets(profile)
}

// getDailySummary returns the day's log and the user's targets.
// GET /api/log/daily?date=YYYY-MM-DD (defaults to today). Today comes from
// the live ledger; other dates are refreshed from the store into history.
func (h *Handler) getDailySummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	ledger := h.ledgers.Get(c.Request.Context(), userID)

	today := dateKey(time.Now().UTC())
	date := c.DefaultQuery("date", today)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	var log dailyLog
	if date == today {
		log = ledger.Today()
	} else {
		log = ledger.FetchDayLog(c.Request.Context(), date)
	}

	c.JSON(http.StatusOK, dailySummary{
		Log:     log,
		Targets: h.targetsFor(c, userID),
	})
}

// getWeekSummary returns per-day consumed totals for the Mon-Sun week
// containing week_start, gap-filled so all seven days are present.
// GET /api/log/week-summary?week_start=YYYY-MM-DD (defaults to current week).
func (h *Handler) getWeekSummary(c *gin.Context) {
	userID := c.GetInt("user_id")

	var weekStart time.Time
	if s := c.Query("week_start"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid week_start, expected YYYY-MM-DD")
			return
		}
		weekStart = t
	} else {
		weekStart = currentMonday()
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	targets := h.targetsFor(c, userID)
	ledger := h.ledgers.Get(c.Request.Context(), userID)

	// The store returns raw documents; aggregation happens here, not in SQL —
	// items live in JSONB and the document contract is unaggregated.
	docs, err := h.repo.MealDocumentsByRange(c.Request.Context(), userID,
		dateKey(weekStart), dateKey(weekEnd))
	if err != nil {
		h.log.Errorw("week summary fetch failed", "user_id", userID, "error", err)
		apiError(c, http.StatusInternalServerError, "failed to fetch week data")
		return
	}
	states, err := h.repo.DayStatesByRange(c.Request.Context(), userID,
		dateKey(weekStart), dateKey(weekEnd))
	if err != nil {
		// Degrade: water columns fall back to in-memory values only.
		h.log.Errorw("week day state fetch failed", "user_id", userID, "error", err)
	}

	result := weekDays(weekStart, docs, states, targets.DailyCalorieTarget)

	today := dateKey(time.Now().UTC())
	for i := range result {
		key := dateKey(result[i].Date.Time)
		// In-memory state may be ahead of the store (write failures never
		// roll back local mutations) — prefer the ledger where it has the date.
		if key == today {
			live := ledger.Today()
			result[i].HasData = result[i].HasData || len(live.Meals) > 0 || live.WaterIntakeML > 0
			result[i].ConsumedCalories = live.ConsumedCalories
			result[i].ProteinG = live.ConsumedProteinG
			result[i].CarbsG = live.ConsumedCarbsG
			result[i].FatG = live.ConsumedFatG
			result[i].WaterIntakeML = live.WaterIntakeML
			result[i].CaloriesLeft = targets.DailyCalorieTarget - live.ConsumedCalories
		} else if local, ok := ledger.Day(key); ok {
			result[i].WaterIntakeML = local.WaterIntakeML
		}
	}

	c.JSON(http.StatusOK, result)
}

// weekDays builds the seven gap-filled day summaries from persisted meal
// documents and day-state rows. Silent days carry zero totals and
// has_data=false. In-memory ledger overrides are the caller's job.
func weekDays(weekStart time.Time, docs []mealDocument, states []dayState, calorieTarget int) []weekDaySummary {
	type dayTotals struct {
		calories            int
		protein, carbs, fat float64
	}
	byDate := make(map[string]*dayTotals)
	for _, doc := range docs {
		key := dateKey(doc.Date.Time)
		t, ok := byDate[key]
		if !ok {
			t = &dayTotals{}
			byDate[key] = t
		}
		entry := entryFromDocument(doc)
		t.calories += entry.Calories
		t.protein += entry.ProteinG
		t.carbs += entry.CarbsG
		t.fat += entry.FatG
	}
	waterByDate := make(map[string]int)
	for _, st := range states {
		waterByDate[dateKey(st.Date.Time)] = st.WaterIntakeML
	}

	result := make([]weekDaySummary, 7)
	for i := 0; i < 7; i++ {
		d := weekStart.AddDate(0, 0, i)
		key := dateKey(d)
		day := weekDaySummary{
			Date:          DateOnly{d},
			CalorieTarget: calorieTarget,
		}
		if t, ok := byDate[key]; ok {
			day.HasData = true
			day.ConsumedCalories = t.calories
			day.ProteinG = t.protein
			day.CarbsG = t.carbs
			day.FatG = t.fat
		}
		day.WaterIntakeML = waterByDate[key]
		day.CaloriesLeft = calorieTarget - day.ConsumedCalories
		result[i] = day
	}
	return result
}

// logMeal appends a meal to the current day. POST /api/log/meals.
// The ledger mutation is authoritative: the document write and the reminder
// are side effects whose failure never rolls the meal back.
func (h *Handler) logMeal(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body logMealRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validMealTypes[body.Type] {
		apiError(c, http.StatusBadRequest, "type must be one of: breakfast, lunch, dinner, snacks")
		return
	}
	if len(body.Items) == 0 {
		apiError(c, http.StatusBadRequest, "items is required")
		return
	}
	for _, it := range body.Items {
		if it.Calories < 0 || it.ProteinG < 0 || it.CarbsG < 0 || it.FatG < 0 {
			apiError(c, http.StatusBadRequest, "item nutrition values must be non-negative")
			return
		}
	}

	targets := h.targetsFor(c, userID)
	ledger := h.ledgers.Get(c.Request.Context(), userID)
	entry := ledger.LogMeal(body, targets.DailyCalorieTarget)

	doc := mealDocument{
		ID:        entry.ID,
		UserID:    userID,
		Date:      DateOnly{entry.LoggedAt},
		Type:      entry.Type,
		Items:     entry.Items,
		PhotoURL:  entry.PhotoURL,
		CreatedAt: &entry.LoggedAt,
	}
	if err := h.repo.SaveMealDocument(c.Request.Context(), doc); err != nil {
		// Local state is the source of truth for the user; log and move on.
		h.log.Errorw("meal document write failed", "user_id", userID, "meal_id", entry.ID, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"entry": entry,
		"log":   ledger.Today(),
	})
}

// deleteMeal removes a meal from the current day and recomputes totals.
// DELETE /api/log/meals/:id. Returns 204 on success.
func (h *Handler) deleteMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		apiError(c, http.StatusBadRequest, "invalid meal id")
		return
	}

	ledger := h.ledgers.Get(c.Request.Context(), userID)
	if !ledger.DeleteMeal(id) {
		apiError(c, http.StatusNotFound, "meal not found")
		return
	}

	if err := h.repo.DeleteMealDocument(c.Request.Context(), userID, id); err != nil {
		h.log.Errorw("meal document delete failed", "user_id", userID, "meal_id", id, "error", err)
	}

	c.Status(http.StatusNoContent)
}

// addWater applies a signed water delta to today. POST /api/log/water.
func (h *Handler) addWater(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body addWaterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.AmountML == 0 {
		apiError(c, http.StatusBadRequest, "amount_ml must be non-zero")
		return
	}

	targets := h.targetsFor(c, userID)
	ledger := h.ledgers.Get(c.Request.Context(), userID)
	intake := ledger.AddWater(body.AmountML, targets.WaterTargetML)

	h.persistDayState(c, userID, ledger)

	c.JSON(http.StatusOK, gin.H{
		"water_intake_ml": intake,
		"water_target_ml": targets.WaterTargetML,
		"remaining_ml":    targets.WaterTargetML - intake,
	})
}

// setActivity records externally supplied steps/sleep for today.
// POST /api/log/activity.
func (h *Handler) setActivity(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body activityRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Steps == nil && body.SleepDuration == nil {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}
	if body.Steps != nil && *body.Steps < 0 {
		apiError(c, http.StatusBadRequest, "steps must be non-negative")
		return
	}

	ledger := h.ledgers.Get(c.Request.Context(), userID)
	log := ledger.SetActivity(body.Steps, body.SleepDuration)

	h.persistDayState(c, userID, ledger)

	c.JSON(http.StatusOK, log)
}

// persistDayState mirrors today's non-meal fields into the store. Failures
// are logged and swallowed — the in-memory ledger stays authoritative.
func (h *Handler) persistDayState(c *gin.Context, userID int, l *ledger) {
	today := l.Today()
	date, err := time.Parse("2006-01-02", today.Date)
	if err != nil {
		return
	}
	st := dayState{
		UserID:        userID,
		Date:          DateOnly{date},
		WaterIntakeML: today.WaterIntakeML,
		Steps:         today.Steps,
		SleepDuration: today.SleepDuration,
	}
	if err := h.repo.UpsertDayState(c.Request.Context(), st); err != nil {
		h.log.Errorw("day state write failed", "user_id", userID, "date", today.Date, "error", err)
	}
}
