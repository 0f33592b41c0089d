// Package hevy implements a read-only client for the Hevy fitness API and
// the computations derived from its workout payloads.
package hevy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/denishartl/workouts-to-notion/internal/client"
	"github.com/denishartl/workouts-to-notion/internal/logger"
)

var (
	log = logger.NewLogger()

	// BaseURL is the Hevy API endpoint. Overridable for tests.
	BaseURL = "https://api.hevyapp.com"
)

// requestTimeout applies to every individual Hevy API call.
const requestTimeout = 10 * time.Second

// Workout is a single workout as returned by the Hevy API. Numeric set
// values are kept loosely typed; the API is not consistent about them and a
// single malformed set must not sink the whole workout.
type Workout struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	RoutineID       string     `json:"routine_id"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	DurationSeconds *float64   `json:"duration_seconds"`
	Exercises       []Exercise `json:"exercises"`
}

// Exercise is one exercise entry within a workout.
type Exercise struct {
	TemplateID string `json:"exercise_template_id"`
	Title      string `json:"title"`
	Sets       []Set  `json:"sets"`
}

// Set is a single set of an exercise. Type is one of "normal", "warmup",
// "failure" or "dropset".
type Set struct {
	Type     string      `json:"type"`
	WeightKg interface{} `json:"weight_kg"`
	Reps     interface{} `json:"reps"`
}

// Routine is a workout routine (only the title is used downstream).
type Routine struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ExerciseTemplate describes an exercise and the muscles it works.
type ExerciseTemplate struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	PrimaryMuscleGroup    string   `json:"primary_muscle_group"`
	SecondaryMuscleGroups []string `json:"secondary_muscle_groups"`
}

// NewHTTPClient returns an http.Client that authenticates with the Hevy API
// key header and enforces the per-call timeout.
func NewHTTPClient(apiKey string) *http.Client {
	return &http.Client{
		Timeout:   requestTimeout,
		Transport: &client.KeyHeaderTransport{Header: "api-key", Key: apiKey},
	}
}

// GetWorkout fetches a single workout by ID.
func GetWorkout(ctx context.Context, c *client.Client, id string) (*Workout, error) {
	raw, err := getRaw(ctx, c, fmt.Sprintf("/v1/workouts/%s", id))
	if err != nil {
		return nil, fmt.Errorf("getting workout %s: %w", id, err)
	}

	var w Workout
	if err := json.Unmarshal(unwrap(raw, "workout"), &w); err != nil {
		return nil, fmt.Errorf("decoding workout %s: %w", id, err)
	}

	return &w, nil
}

// GetRoutine fetches a single routine by ID.
func GetRoutine(ctx context.Context, c *client.Client, id string) (*Routine, error) {
	raw, err := getRaw(ctx, c, fmt.Sprintf("/v1/routines/%s", id))
	if err != nil {
		return nil, fmt.Errorf("getting routine %s: %w", id, err)
	}

	var r Routine
	if err := json.Unmarshal(unwrap(raw, "routine"), &r); err != nil {
		return nil, fmt.Errorf("decoding routine %s: %w", id, err)
	}

	return &r, nil
}

// GetExerciseTemplate fetches a single exercise template by ID.
func GetExerciseTemplate(ctx context.Context, c *client.Client, id string) (*ExerciseTemplate, error) {
	raw, err := getRaw(ctx, c, fmt.Sprintf("/v1/exercise_templates/%s", id))
	if err != nil {
		return nil, fmt.Errorf("getting exercise template %s: %w", id, err)
	}

	var t ExerciseTemplate
	if err := json.Unmarshal(unwrap(raw, "exercise_template"), &t); err != nil {
		return nil, fmt.Errorf("decoding exercise template %s: %w", id, err)
	}

	return &t, nil
}

// GetWorkoutWithRoutine fetches a workout and, when the workout references a
// routine, the routine as well. The routine fetch can only start once the
// workout response reveals the routine ID, so this is a two-stage fetch, not
// a fan-out. A workout failure is fatal; a routine failure degrades to a nil
// routine.
func GetWorkoutWithRoutine(ctx context.Context, c *client.Client, id string) (*Workout, *Routine, error) {
	w, err := GetWorkout(ctx, c, id)
	if err != nil {
		return nil, nil, err
	}

	if w.RoutineID == "" {
		return w, nil, nil
	}

	r, err := GetRoutine(ctx, c, w.RoutineID)
	if err != nil {
		log.WithField("routine_id", w.RoutineID).Warnf("could not fetch routine: %s", err)
		return w, nil, nil
	}

	return w, r, nil
}

// GetExerciseTemplates fetches all given template IDs concurrently. Results
// are unordered and partial: a per-item failure is logged and the item is
// dropped, it never cancels the sibling fetches.
func GetExerciseTemplates(ctx context.Context, c *client.Client, ids []string) []*ExerciseTemplate {
	results := fanOut(ids, func(id string) (*ExerciseTemplate, error) {
		return GetExerciseTemplate(ctx, c, id)
	})

	templates := make([]*ExerciseTemplate, 0, len(ids))
	for i, r := range results {
		if r.err != nil {
			log.WithField("template_id", ids[i]).Warnf("dropping exercise template: %s", r.err)
			continue
		}
		templates = append(templates, r.value)
	}

	return templates
}

func getRaw(ctx context.Context, c *client.Client, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if _, err := c.Do(req, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// unwrap returns the sub-document nested under key when present, falling
// back to the raw document. The Hevy API wraps single resources in an
// envelope keyed by the resource kind, but not consistently across
// endpoints.
func unwrap(raw json.RawMessage, key string) json.RawMessage {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	if inner, ok := envelope[key]; ok {
		return inner
	}
	return raw
}
