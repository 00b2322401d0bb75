package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dayReader is the slice of the persistence layer the ledger needs: raw meal
// documents and the saved non-meal day state for one date. The ledger owns
// aggregation — the store never pre-aggregates.
type dayReader interface {
	MealDocumentsByRange(ctx context.Context, userID int, start, end string) ([]mealDocument, error)
	DayState(ctx context.Context, userID int, date string) (*dayState, error)
}

// reminderNotifier receives pre-computed nudge figures from ledger mutations.
// Implementations must never block: delivery is fire-and-forget and a failed
// or slow reminder must not delay or fail the logging path.
type reminderNotifier interface {
	NotifyMealInsight(userID, consumedCalories, calorieTarget int)
	NotifyWaterRemaining(userID, remainingML int)
}

// ledger maintains one user's current-day log plus a date-keyed history map.
// history[today] and the current log are the same *dailyLog, so every
// mutation is visible under both views at once. All methods take the mutex —
// gin serves requests concurrently, so unlike a single-threaded UI event
// loop the ledger must guard its own state.
type ledger struct {
	mu             sync.Mutex
	userID         int
	today          *dailyLog
	history        map[string]*dailyLog
	lastActiveDate string

	now      func() time.Time
	store    dayReader
	notifier reminderNotifier
	log      *zap.SugaredLogger
}

// newLedger creates an empty ledger for a user. now is injectable so tests
// can force day boundaries.
func newLedger(userID int, store dayReader, notifier reminderNotifier, log *zap.SugaredLogger, now func() time.Time) *ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	l := &ledger{
		userID:   userID,
		history:  make(map[string]*dailyLog),
		now:      now,
		store:    store,
		notifier: notifier,
		log:      log,
	}
	today := dateKey(l.now())
	l.today = emptyDayLog(today)
	l.history[today] = l.today
	l.lastActiveDate = today
	return l
}

func emptyDayLog(date string) *dailyLog {
	return &dailyLog{Date: date, Meals: []mealEntry{}}
}

// historyLimit caps the in-memory history map per user. Arbitrary ?date=
// queries would otherwise grow it forever; the oldest dates are evicted
// first and can always be refetched from the store.
const historyLimit = 60

func (l *ledger) trimHistoryLocked() {
	for len(l.history) > historyLimit {
		oldest := ""
		for k := range l.history {
			if k == l.lastActiveDate {
				continue
			}
			if oldest == "" || k < oldest {
				oldest = k
			}
		}
		if oldest == "" {
			return
		}
		delete(l.history, oldest)
	}
}

// CheckDailyReset rolls the ledger over to a fresh empty log when the
// calendar date has changed since the last activity. Idempotent within a
// day. This is the sole day-boundary mechanism — it must run on every
// request (the backend's equivalent of an app-foreground event).
func (l *ledger) CheckDailyReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

func (l *ledger) resetLocked() {
	today := dateKey(l.now())
	if today == l.lastActiveDate {
		return
	}
	// The outgoing day's entry is already in history; it freezes as-is.
	l.today = emptyDayLog(today)
	l.history[today] = l.today
	l.lastActiveDate = today
	l.trimHistoryLocked()
	l.log.Infow("daily rollover", "user_id", l.userID, "date", today)
}

// LogMeal appends a meal built from the given items to the current day,
// updates the four running totals, and fires a meal insight with the new
// consumed-vs-target figures. Returns the stored entry.
func (l *ledger) LogMeal(req logMealRequest, calorieTarget int) mealEntry {
	l.mu.Lock()
	l.resetLocked()

	entry := newMealEntry(req, l.now())
	l.today.Meals = append(l.today.Meals, entry)
	l.today.ConsumedCalories += entry.Calories
	l.today.ConsumedProteinG += entry.ProteinG
	l.today.ConsumedCarbsG += entry.CarbsG
	l.today.ConsumedFatG += entry.FatG
	consumed := l.today.ConsumedCalories
	l.mu.Unlock()

	// Outside the lock: the notifier only gets copies of numbers.
	l.notifier.NotifyMealInsight(l.userID, consumed, calorieTarget)
	return entry
}

// DeleteMeal removes the entry with the given id from the current day and
// recomputes all four totals from the remaining meals, keeping the
// totals-equal-sum-of-meals invariant provable. Returns false when no entry
// matches.
func (l *ledger) DeleteMeal(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()

	idx := -1
	for i, m := range l.today.Meals {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	l.today.Meals = append(l.today.Meals[:idx], l.today.Meals[idx+1:]...)
	recomputeTotals(l.today)
	return true
}

// AddWater applies a signed delta to today's water intake, clamped at zero,
// and fires a water reminder with the remaining amount (target minus intake;
// negative when over target — the collaborator decides whether to still nudge).
// Returns the new intake.
func (l *ledger) AddWater(deltaML, waterTargetML int) int {
	l.mu.Lock()
	l.resetLocked()

	intake := l.today.WaterIntakeML + deltaML
	if intake < 0 {
		intake = 0
	}
	l.today.WaterIntakeML = intake
	l.mu.Unlock()

	l.notifier.NotifyWaterRemaining(l.userID, waterTargetML-intake)
	return intake
}

// SetActivity records externally supplied metrics for today. Nil fields are
// left untouched.
func (l *ledger) SetActivity(steps *int, sleep *string) dailyLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()

	if steps != nil {
		l.today.Steps = *steps
	}
	if sleep != nil {
		l.today.SleepDuration = *sleep
	}
	return *l.today
}

// Today returns a snapshot of the current day's log.
func (l *ledger) Today() dailyLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
	return snapshot(l.today)
}

// Day returns a snapshot of the history entry for a date, if one exists
// in memory.
func (l *ledger) Day(date string) (dailyLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.history[date]
	if !ok {
		return dailyLog{}, false
	}
	return snapshot(d), true
}

// hydrate seeds a fresh ledger's current day from the store, so a process
// restart does not hide meals that were already persisted earlier today.
// Store failures are logged and leave the empty log in place; later reads
// refresh lazily via FetchDayLog.
func (l *ledger) hydrate(ctx context.Context) {
	date := dateKey(l.now())
	docs, err := l.store.MealDocumentsByRange(ctx, l.userID, date, date)
	if err != nil {
		l.log.Errorw("ledger hydration failed", "user_id", l.userID, "date", date, "error", err)
		return
	}
	fresh := emptyDayLog(date)
	for _, doc := range docs {
		fresh.Meals = append(fresh.Meals, entryFromDocument(doc))
	}
	recomputeTotals(fresh)

	if st, err := l.store.DayState(ctx, l.userID, date); err != nil {
		l.log.Errorw("ledger hydration day state failed", "user_id", l.userID, "date", date, "error", err)
	} else if st != nil {
		fresh.WaterIntakeML = st.WaterIntakeML
		fresh.Steps = st.Steps
		fresh.SleepDuration = st.SleepDuration
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.today = fresh
	l.history[date] = fresh
	l.lastActiveDate = date
}

// FetchDayLog refreshes one date's history entry from the store: meal
// documents are aggregated into per-meal totals, while any locally tracked
// water/steps/sleep for that date are preserved (falling back to the saved
// day state when the date was never seen in memory). A store failure is
// logged and leaves the in-memory state untouched — callers get the stale
// but consistent snapshot.
func (l *ledger) FetchDayLog(ctx context.Context, date string) dailyLog {
	docs, err := l.store.MealDocumentsByRange(ctx, l.userID, date, date)
	if err != nil {
		l.log.Errorw("fetch day log failed", "user_id", l.userID, "date", date, "error", err)
		l.mu.Lock()
		defer l.mu.Unlock()
		if existing, ok := l.history[date]; ok {
			return snapshot(existing)
		}
		return *emptyDayLog(date)
	}

	fresh := emptyDayLog(date)
	for _, doc := range docs {
		fresh.Meals = append(fresh.Meals, entryFromDocument(doc))
	}
	recomputeTotals(fresh)

	l.mu.Lock()
	if existing, ok := l.history[date]; ok {
		fresh.WaterIntakeML = existing.WaterIntakeML
		fresh.Steps = existing.Steps
		fresh.SleepDuration = existing.SleepDuration
		l.history[date] = fresh
		if existing == l.today {
			l.today = fresh
		}
		l.mu.Unlock()
		return snapshot(fresh)
	}
	l.mu.Unlock()

	// Never seen locally: pull the saved non-meal fields, if any.
	if st, err := l.store.DayState(ctx, l.userID, date); err != nil {
		l.log.Errorw("fetch day state failed", "user_id", l.userID, "date", date, "error", err)
	} else if st != nil {
		fresh.WaterIntakeML = st.WaterIntakeML
		fresh.Steps = st.Steps
		fresh.SleepDuration = st.SleepDuration
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[date] = fresh
	if date == l.lastActiveDate {
		l.today = fresh
	}
	l.trimHistoryLocked()
	return snapshot(fresh)
}

/* ─── Helpers ────────────────────────────────────────────────────────── */

// recomputeTotals rebuilds the four running sums from the meals slice.
func recomputeTotals(d *dailyLog) {
	d.ConsumedCalories = 0
	d.ConsumedProteinG = 0
	d.ConsumedCarbsG = 0
	d.ConsumedFatG = 0
	for _, m := range d.Meals {
		d.ConsumedCalories += m.Calories
		d.ConsumedProteinG += m.ProteinG
		d.ConsumedCarbsG += m.CarbsG
		d.ConsumedFatG += m.FatG
	}
}

// snapshot copies a log so callers never share the meals slice with the
// ledger's own mutable state.
func snapshot(d *dailyLog) dailyLog {
	out := *d
	out.Meals = make([]mealEntry, len(d.Meals))
	copy(out.Meals, d.Meals)
	return out
}

// newMealEntry builds a ledger entry from a log request, aggregating item
// totals and assigning a fresh id.
func newMealEntry(req logMealRequest, at time.Time) mealEntry {
	e := mealEntry{
		ID:       uuid.NewString(),
		Type:     req.Type,
		Name:     entryName(req.Items),
		PhotoURL: req.PhotoURL,
		Items:    req.Items,
		LoggedAt: at,
	}
	var cals float64
	for _, it := range req.Items {
		cals += it.Calories
		e.ProteinG += it.ProteinG
		e.CarbsG += it.CarbsG
		e.FatG += it.FatG
	}
	e.Calories = int(cals + 0.5)
	return e
}

// entryFromDocument aggregates a stored meal document's items into a ledger
// entry. Calories round to the nearest whole kcal; macros keep fractions.
func entryFromDocument(doc mealDocument) mealEntry {
	e := mealEntry{
		ID:       doc.ID,
		Type:     doc.Type,
		Name:     entryName(doc.Items),
		PhotoURL: doc.PhotoURL,
		Items:    doc.Items,
	}
	if doc.CreatedAt != nil {
		e.LoggedAt = *doc.CreatedAt
	}
	var cals float64
	for _, it := range doc.Items {
		cals += it.Calories
		e.ProteinG += it.ProteinG
		e.CarbsG += it.CarbsG
		e.FatG += it.FatG
	}
	e.Calories = int(cals + 0.5)
	return e
}

/* ─── Ledger registry ────────────────────────────────────────────────── */

// ledgerSet hands out one ledger per user, creating them on first use.
type ledgerSet struct {
	mu       sync.Mutex
	ledgers  map[int]*ledger
	store    dayReader
	notifier reminderNotifier
	log      *zap.SugaredLogger
}

func newLedgerSet(store dayReader, notifier reminderNotifier, log *zap.SugaredLogger) *ledgerSet {
	return &ledgerSet{
		ledgers:  make(map[int]*ledger),
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// Get returns the user's ledger. On first access the new ledger is hydrated
// from the store before it is published, so today's already-persisted meals
// survive a process restart.
func (s *ledgerSet) Get(ctx context.Context, userID int) *ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.ledgers[userID]; ok {
		return l
	}
	l := newLedger(userID, s.store, s.notifier, s.log, nil)
	l.hydrate(ctx)
	s.ledgers[userID] = l
	return l
}
