// Package hevywebhook implements the webhook endpoint that syncs a Hevy
// workout, its routine and its exercises into Notion.
package hevywebhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/denishartl/workouts-to-notion/internal/cache"
	"github.com/denishartl/workouts-to-notion/internal/client"
	"github.com/denishartl/workouts-to-notion/internal/hevy"
	"github.com/denishartl/workouts-to-notion/internal/logger"
	"github.com/denishartl/workouts-to-notion/internal/notion"
	"github.com/denishartl/workouts-to-notion/internal/ratelimit"
	"github.com/denishartl/workouts-to-notion/internal/validate"
)

var log = logger.NewLogger()

// eventTTL is how long processed webhook IDs are remembered. Hevy retries
// deliveries well within a day.
const eventTTL = 24 * time.Hour

const maxIDLength = 100

// Handler processes Hevy workout webhooks.
type Handler struct {
	limiter *ratelimit.Limiter
	cache   cache.Cache
	hevy    *client.Client
	notion  *notion.Client
}

// New wires a handler from its collaborators. cache may be nil; event
// deduplication is then skipped.
func New(limiter *ratelimit.Limiter, c cache.Cache, hevyClient *client.Client, notionClient *notion.Client) *Handler {
	return &Handler{limiter: limiter, cache: c, hevy: hevyClient, notion: notionClient}
}

type webhook struct {
	ID      string `json:"id"`
	Payload struct {
		WorkoutID string `json:"workoutId"`
	} `json:"payload"`
}

type response struct {
	Status             string   `json:"status"`
	WebhookID          string   `json:"webhook_id"`
	WorkoutID          string   `json:"workout_id"`
	NotionPageID       string   `json:"notion_page_id,omitempty"`
	RoutineName        string   `json:"routine_name,omitempty"`
	ExercisesProcessed int      `json:"exercises_processed"`
	Exercises          []string `json:"exercises,omitempty"`
	Action             string   `json:"action,omitempty"`
	Message            string   `json:"message,omitempty"`
	Timestamp          string   `json:"timestamp"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.ContentLength > validate.MaxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	ip := clientIP(r)
	if allowed, retryAfter := h.limiter.Check(ip); !allowed {
		log.WithField("ip", ip).Warn("rate limit exceeded")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, validate.MaxRequestSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	if int64(len(body)) > validate.MaxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var hook webhook
	if err := json.Unmarshal(body, &hook); err != nil {
		log.Warnf("unable to unmarshal webhook payload: %s", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	webhookID := validate.SanitizeText(hook.ID, "webhook id", maxIDLength)
	workoutID := validate.SanitizeText(hook.Payload.WorkoutID, "workout id", maxIDLength)
	if webhookID == "" || workoutID == "" {
		writeError(w, http.StatusBadRequest, "missing id or payload.workoutId")
		return
	}

	if h.seenEvent(r, webhookID) {
		log.WithField("webhook_id", webhookID).Info("ignoring repeat event")
		writeJSON(w, http.StatusOK, response{
			Status:    "duplicate",
			WebhookID: webhookID,
			WorkoutID: workoutID,
			Message:   "event already processed",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	workout, routine, err := hevy.GetWorkoutWithRoutine(ctx, h.hevy, workoutID)
	if err != nil {
		log.WithField("workout_id", workoutID).Errorf("unable to fetch workout: %s", err)
		writeError(w, http.StatusBadGateway, "unable to fetch workout from Hevy")
		return
	}

	routineName := ""
	if routine != nil {
		routineName = routine.Title
	}

	exercises := h.syncExercises(r, workout)

	page, err := h.notion.UpsertWorkout(ctx, workout, routineName)
	if err != nil {
		log.WithField("workout_id", workoutID).Errorf("unable to sync workout: %s", err)
		writeError(w, http.StatusInternalServerError, "unable to sync workout")
		return
	}

	log.WithFields(logrus.Fields{
		"workout_id": workoutID,
		"page_id":    page.ID,
		"action":     page.Action(),
		"exercises":  len(exercises),
	}).Info("workout synced")

	for _, p := range workout.AggregatePerformance() {
		log.WithFields(logrus.Fields{
			"workout_id": workoutID,
			"exercise":   p.Title,
			"volume_kg":  p.TotalWeightKg,
			"reps":       p.TotalReps,
			"sets":       p.SetCount,
		}).Debug("exercise performance")
	}

	writeJSON(w, http.StatusOK, response{
		Status:             "success",
		WebhookID:          webhookID,
		WorkoutID:          workoutID,
		NotionPageID:       page.ID,
		RoutineName:        routineName,
		ExercisesProcessed: len(exercises),
		Exercises:          exercises,
		Action:             page.Action(),
		Message:            fmt.Sprintf("workout %s", page.Action()),
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	})
}

// seenEvent reports whether this webhook ID was already processed and
// records it otherwise. A cache failure only disables deduplication.
func (h *Handler) seenEvent(r *http.Request, webhookID string) bool {
	if h.cache == nil {
		return false
	}

	key := "hevy_event:" + webhookID
	seen, err := h.cache.Get(r.Context(), key)
	if err != nil {
		log.Warnf("event cache unavailable, skipping dedupe: %s", err)
		return false
	}
	if seen != "" {
		return true
	}

	if err := h.cache.SetTTL(r.Context(), key, "1", eventTTL); err != nil {
		log.Warnf("unable to record event id: %s", err)
	}
	return false
}

// syncExercises fetches the templates for every unique exercise in the
// workout and upserts them concurrently. A failed exercise is logged and
// dropped; the workout sync continues with the rest.
func (h *Handler) syncExercises(r *http.Request, workout *hevy.Workout) []string {
	refs := workout.UniqueExercises()
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.TemplateID)
	}

	templates := hevy.GetExerciseTemplates(r.Context(), h.hevy, ids)

	synced := make([]string, len(templates))
	var wg sync.WaitGroup
	for i, tmpl := range templates {
		wg.Add(1)
		go func(i int, tmpl *hevy.ExerciseTemplate) {
			defer wg.Done()
			if _, err := h.notion.UpsertExercise(r.Context(), tmpl); err != nil {
				log.WithField("template_id", tmpl.ID).Warnf("unable to sync exercise: %s", err)
				return
			}
			synced[i] = tmpl.Title
		}(i, tmpl)
	}
	wg.Wait()

	exercises := make([]string, 0, len(synced))
	for _, title := range synced {
		if title != "" {
			exercises = append(exercises, title)
		}
	}
	return exercises
}

// clientIP picks the rate-limit identifier: the first X-Forwarded-For hop
// when present, the remote address otherwise.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("unable to write response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
