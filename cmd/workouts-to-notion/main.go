package main

import (
	"context"
	"net/http"
	"net/url"

	// Autoloads .env file to supply environment variables
	_ "github.com/joho/godotenv/autoload"

	"github.com/denishartl/workouts-to-notion/internal/cache"
	"github.com/denishartl/workouts-to-notion/internal/client"
	"github.com/denishartl/workouts-to-notion/internal/config"
	"github.com/denishartl/workouts-to-notion/internal/handlers/hevywebhook"
	"github.com/denishartl/workouts-to-notion/internal/handlers/runwebhook"
	"github.com/denishartl/workouts-to-notion/internal/hevy"
	"github.com/denishartl/workouts-to-notion/internal/logger"
	"github.com/denishartl/workouts-to-notion/internal/notion"
	"github.com/denishartl/workouts-to-notion/internal/ratelimit"
	"github.com/denishartl/workouts-to-notion/internal/storage"
	"github.com/denishartl/workouts-to-notion/internal/vision"
)

var log = logger.NewLogger()

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	hurl, _ := url.Parse(hevy.BaseURL)
	hevyClient := client.NewClient(hurl, hevy.NewHTTPClient(cfg.HevyAPIKey))

	notionClient := notion.NewClient(ctx, cfg.NotionAPIKey, cfg.NotionWorkoutsDB, cfg.NotionExercisesDB, cfg.NotionRunsDB)

	visionClient, err := vision.NewClient(cfg.VisionEndpoint, cfg.VisionAPIKey, cfg.VisionModel)
	if err != nil {
		log.Fatal(err)
	}

	// A dead Redis only disables event deduplication
	eventCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		log.Warnf("redis unavailable, webhook dedupe disabled: %s", err)
		eventCache = nil
	}

	// Same story for blob storage: screenshots are analyzed either way
	var uploader storage.Uploader
	if cfg.ScreenshotBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.ScreenshotBucket)
		if err != nil {
			log.Warnf("blob storage unavailable, screenshots will not be stored: %s", err)
		} else {
			uploader = gcs
		}
	}

	limiter := ratelimit.New()

	http.HandleFunc("/", indexHandler)
	http.Handle("/hevy_webhook", hevywebhook.New(limiter, eventCache, hevyClient, notionClient))
	http.Handle("/workout_webhook", runwebhook.New(limiter, uploader, visionClient, notionClient))

	log.Infof("starting server on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, nil)) //#nosec: G114
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("Workouts to Notion")); err != nil {
		log.Error(err)
	}
}
