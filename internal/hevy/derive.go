package hevy

import (
	"math"
	"strconv"
	"time"
)

// ExerciseRef identifies a unique exercise appearing in a workout.
type ExerciseRef struct {
	TemplateID string
	Title      string
}

// Performance is the aggregated working volume of one exercise within a
// workout. Only qualifying sets count: warm-up and failure sets are
// excluded, as is any set missing both reps and weight.
type Performance struct {
	TemplateID    string  `json:"exercise_template_id"`
	Title         string  `json:"title"`
	TotalWeightKg float64 `json:"total_weight_kg"`
	TotalReps     int     `json:"total_reps"`
	SetCount      int     `json:"set_count"`
}

// DurationMinutes derives the workout duration in minutes. An explicit
// duration_seconds field wins; otherwise the duration is computed from the
// start and end timestamps, rounded to the nearest whole minute. When
// neither is available it returns false and logs a warning.
func (w *Workout) DurationMinutes() (float64, bool) {
	if w.DurationSeconds != nil {
		return *w.DurationSeconds / 60.0, true
	}

	if w.StartTime != "" && w.EndTime != "" {
		start, serr := time.Parse(time.RFC3339, w.StartTime)
		end, eerr := time.Parse(time.RFC3339, w.EndTime)
		if serr == nil && eerr == nil {
			return math.Round(end.Sub(start).Minutes()), true
		}
		log.WithField("workout_id", w.ID).Warnf("unparseable start/end times: %v / %v", serr, eerr)
		return 0, false
	}

	log.WithField("workout_id", w.ID).Warn("could not derive workout duration from available data")
	return 0, false
}

// UniqueExercises returns the distinct exercises in the workout, in first
// appearance order. On duplicate template IDs the first-seen title wins.
func (w *Workout) UniqueExercises() []ExerciseRef {
	seen := make(map[string]bool, len(w.Exercises))
	refs := make([]ExerciseRef, 0, len(w.Exercises))
	for _, e := range w.Exercises {
		if e.TemplateID == "" || seen[e.TemplateID] {
			continue
		}
		seen[e.TemplateID] = true
		refs = append(refs, ExerciseRef{TemplateID: e.TemplateID, Title: e.Title})
	}
	return refs
}

// AggregatePerformance sums reps and working volume (weight x reps) per
// exercise over the workout's qualifying sets. A set whose numeric values
// cannot be coerced is skipped with a warning; the rest of the exercise
// still counts.
func (w *Workout) AggregatePerformance() []Performance {
	index := make(map[string]int)
	perfs := make([]Performance, 0, len(w.Exercises))

	for _, e := range w.Exercises {
		if e.TemplateID == "" {
			continue
		}

		i, ok := index[e.TemplateID]
		if !ok {
			i = len(perfs)
			index[e.TemplateID] = i
			perfs = append(perfs, Performance{TemplateID: e.TemplateID, Title: e.Title})
		}

		for _, s := range e.Sets {
			if s.Type == "warmup" || s.Type == "failure" {
				continue
			}
			if s.WeightKg == nil && s.Reps == nil {
				continue
			}

			weight, werr := toFloat(s.WeightKg)
			reps, rerr := toFloat(s.Reps)
			if werr != nil || rerr != nil {
				log.WithField("exercise", e.Title).Warnf("skipping set with non-numeric values: weight=%v reps=%v", s.WeightKg, s.Reps)
				continue
			}

			perfs[i].TotalWeightKg += weight * reps
			perfs[i].TotalReps += int(reps)
			perfs[i].SetCount++
		}
	}

	return perfs
}

// toFloat coerces the loosely typed set values the Hevy API returns.
// A nil value coerces to zero.
func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, strconv.ErrSyntax
	}
}
