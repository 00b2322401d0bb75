package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reminder texts mirror what the mobile app shows. The queue passes
// pre-computed numbers; scheduling and timing policy live with the push
// provider and the device.
const (
	waterReminderTitle = "💧 Time to Hydrate!"
	mealInsightTitle   = "🥗 Calorie Check-in"
)

/* ─── Outbound event queue ───────────────────────────────────────────── */

const (
	reminderKindWater = "water_remaining"
	reminderKindMeal  = "meal_insight"
)

// reminderEvent is one queued nudge. Only the fields for its kind are set.
type reminderEvent struct {
	Kind             string
	UserID           int
	RemainingML      int
	ConsumedCalories int
	CalorieTarget    int
}

// pushSender delivers one rendered notification. Implementations own the
// transport; errors are logged by the queue and never surface to callers.
type pushSender interface {
	Send(ctx context.Context, userID int, title, body string) error
}

// reminderQueue decouples ledger mutations from notification delivery: the
// Notify methods enqueue without blocking (a full queue drops the event) and
// a single background goroutine drains to the sender. A slow or failing push
// provider can never delay or fail a logging operation.
type reminderQueue struct {
	events chan reminderEvent
	sender pushSender
	log    *zap.SugaredLogger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newReminderQueue(sender pushSender, log *zap.SugaredLogger) *reminderQueue {
	return &reminderQueue{
		events: make(chan reminderEvent, 64),
		sender: sender,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// NotifyMealInsight enqueues a consumed-vs-target nudge. Never blocks.
func (q *reminderQueue) NotifyMealInsight(userID, consumedCalories, calorieTarget int) {
	q.enqueue(reminderEvent{
		Kind:             reminderKindMeal,
		UserID:           userID,
		ConsumedCalories: consumedCalories,
		CalorieTarget:    calorieTarget,
	})
}

// NotifyWaterRemaining enqueues a hydration nudge with the amount left to
// the daily target (negative when over target). Never blocks.
func (q *reminderQueue) NotifyWaterRemaining(userID, remainingML int) {
	q.enqueue(reminderEvent{
		Kind:        reminderKindWater,
		UserID:      userID,
		RemainingML: remainingML,
	})
}

func (q *reminderQueue) enqueue(ev reminderEvent) {
	select {
	case q.events <- ev:
	default:
		q.log.Warnw("reminder queue full, dropping event", "kind", ev.Kind, "user_id", ev.UserID)
	}
}

// Start launches the drain goroutine. Call Stop to flush and exit.
func (q *reminderQueue) Start() {
	go q.run()
}

func (q *reminderQueue) run() {
	defer close(q.done)
	for {
		select {
		case ev := <-q.events:
			q.deliver(ev)
		case <-q.stop:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case ev := <-q.events:
					q.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Stop shuts the queue down, waiting for in-flight deliveries up to the
// context deadline.
func (q *reminderQueue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.stop) })
	select {
	case <-q.done:
	case <-ctx.Done():
	}
}

func (q *reminderQueue) deliver(ev reminderEvent) {
	if q.sender == nil {
		return
	}

	var title, body string
	switch ev.Kind {
	case reminderKindWater:
		if ev.RemainingML <= 0 {
			// Goal reached — stop nudging.
			return
		}
		title = waterReminderTitle
		body = fmt.Sprintf("You have %dml left to reach your daily goal. Drink up!", ev.RemainingML)
	case reminderKindMeal:
		remaining := ev.CalorieTarget - ev.ConsumedCalories
		if remaining < 0 {
			remaining = 0
		}
		title = mealInsightTitle
		body = fmt.Sprintf("You've eaten %d cal so far. You have %d cal left for today. Choose wisely!",
			ev.ConsumedCalories, remaining)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := q.sender.Send(ctx, ev.UserID, title, body); err != nil {
		q.log.Errorw("reminder delivery failed", "kind", ev.Kind, "user_id", ev.UserID, "error", err)
	}
}

/* ─── Expo push transport ────────────────────────────────────────────── */

// pushTokenSource looks up a user's registered device token.
type pushTokenSource interface {
	PushToken(ctx context.Context, userID int) (*string, error)
}

// expoPushSender posts notifications to the Expo push API. Raw net/http —
// the payload is three fields, an SDK would be overkill.
type expoPushSender struct {
	url    string
	tokens pushTokenSource
	client *http.Client
	log    *zap.SugaredLogger
}

func newExpoPushSender(url string, tokens pushTokenSource, log *zap.SugaredLogger) *expoPushSender {
	return &expoPushSender{
		url:    url,
		tokens: tokens,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (s *expoPushSender) Send(ctx context.Context, userID int, title, body string) error {
	token, err := s.tokens.PushToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up push token: %w", err)
	}
	if token == nil {
		// No device registered — nothing to deliver.
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"to":    *token,
		"title": title,
		"body":  body,
		"sound": "default",
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
	return nil
}
