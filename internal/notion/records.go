package notion

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/denishartl/workouts-to-notion/internal/hevy"
	"github.com/denishartl/workouts-to-notion/internal/vision"
)

// UpsertWorkout syncs a Hevy workout into the workouts database, keyed on
// the Hevy workout ID. Re-processing the same workout updates the existing
// page instead of creating a duplicate. Failure is fatal to the caller's
// request.
func (c *Client) UpsertWorkout(ctx context.Context, w *hevy.Workout, routineName string) (*Page, error) {
	properties := map[string]interface{}{
		"Hevy ID": titleProp(w.ID),
	}

	if w.StartTime != "" {
		properties["Workout Date"] = dateProp(dateOnly(w.StartTime))
	}

	if minutes, ok := w.DurationMinutes(); ok {
		properties["Duration"] = numberProp(round2(minutes))
	}

	if routineName != "" {
		// Notion creates unknown select options on the fly, no need to
		// manage them here
		properties["Routine"] = selectProp(routineName)
	}

	return c.upsert(ctx, c.WorkoutsDB, "Hevy ID", "title", w.ID, properties)
}

// UpsertExercise syncs an exercise template into the exercises database,
// keyed on the Hevy template ID. Callers treat a failure as degraded
// enrichment, not a fatal error.
func (c *Client) UpsertExercise(ctx context.Context, t *hevy.ExerciseTemplate) (*Page, error) {
	properties := map[string]interface{}{
		"Name":    titleProp(t.Title),
		"Hevy ID": richTextProp(t.ID),
	}

	if t.PrimaryMuscleGroup != "" {
		properties["Primary Muscle Group"] = selectProp(muscleGroupName(t.PrimaryMuscleGroup))
	}

	secondary := make([]string, 0, len(t.SecondaryMuscleGroups))
	for _, g := range t.SecondaryMuscleGroups {
		if strings.TrimSpace(g) == "" {
			continue
		}
		secondary = append(secondary, muscleGroupName(g))
	}
	if len(secondary) > 0 {
		properties["Secondary Muscle Groups"] = multiSelectProp(secondary)
	}

	return c.upsert(ctx, c.ExercisesDB, "Hevy ID", "rich_text", t.ID, properties)
}

// UpsertRunWorkout syncs a vision-extracted running workout into the runs
// database. Runs have no upstream identifier, so the workout date acts as
// the upsert key.
func (c *Client) UpsertRunWorkout(ctx context.Context, d *vision.WorkoutData, kneePain, comment, blobURL string) (*Page, error) {
	properties := map[string]interface{}{
		"Time (min)":         numberProp(d.Duration),
		"Distance":           numberProp(d.Distance),
		"Avg. Cadence (SPM)": numberProp(d.Cadence),
		"Avg. BPM":           numberProp(d.BPM),
		"Date":               dateProp(d.Date),
	}

	if option := kneePainOption(kneePain); option != "" {
		properties["Knee Pain"] = selectProp(option)
	}

	if comment != "" {
		properties["Comment"] = richTextProp(comment)
	}

	if blobURL != "" {
		properties["Image Blob URL"] = urlProp(blobURL)
	}

	return c.upsert(ctx, c.RunsDB, "Date", "date", d.Date, properties)
}

// kneePainOption maps the 0-5 pain scale to its select option. Zero pain
// gets a celebration, everything else a matching number of flames.
func kneePainOption(kneePain string) string {
	if kneePain == "" {
		return ""
	}

	level, err := strconv.Atoi(kneePain)
	if err != nil || level < 0 || level > 5 {
		log.Warnf("invalid knee pain value: %q", kneePain)
		return ""
	}

	if level == 0 {
		return "None 🥳"
	}
	return strings.Repeat("🔥", level)
}

func round2(n float64) float64 {
	return math.Round(n*100) / 100
}
