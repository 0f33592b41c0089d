// Package config centralises environment configuration for the service.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Config captures the runtime configuration. All values arrive as
// environment variables; secrets are never logged.
type Config struct {
	Port string

	HevyAPIKey string

	NotionAPIKey      string
	NotionWorkoutsDB  string
	NotionExercisesDB string
	NotionRunsDB      string

	RedisURL string

	ScreenshotBucket string

	VisionEndpoint string
	VisionAPIKey   string
	VisionModel    string
}

// Load reads the environment and fails when a required key is missing so
// a misconfigured deploy dies at startup rather than on the first webhook.
func Load() (*Config, error) {
	c := &Config{
		Port:              getEnv("PORT", "8080"),
		HevyAPIKey:        os.Getenv("HEVY_API_KEY"),
		NotionAPIKey:      os.Getenv("NOTION_API_KEY"),
		NotionWorkoutsDB:  os.Getenv("NOTION_WORKOUTS_DATABASE_ID"),
		NotionExercisesDB: os.Getenv("NOTION_EXERCISES_DATABASE_ID"),
		NotionRunsDB:      os.Getenv("NOTION_RUNS_DATABASE_ID"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		ScreenshotBucket:  os.Getenv("SCREENSHOT_BUCKET"),
		VisionEndpoint:    os.Getenv("VISION_ENDPOINT"),
		VisionAPIKey:      os.Getenv("VISION_API_KEY"),
		VisionModel:       getEnv("VISION_MODEL", "gpt-4o"),
	}

	required := map[string]string{
		"HEVY_API_KEY":                 c.HevyAPIKey,
		"NOTION_API_KEY":               c.NotionAPIKey,
		"NOTION_WORKOUTS_DATABASE_ID":  c.NotionWorkoutsDB,
		"NOTION_EXERCISES_DATABASE_ID": c.NotionExercisesDB,
		"NOTION_RUNS_DATABASE_ID":      c.NotionRunsDB,
		"VISION_ENDPOINT":              c.VisionEndpoint,
		"VISION_API_KEY":               c.VisionAPIKey,
	}

	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
