// Package runwebhook implements the endpoint that turns a treadmill
// screenshot into a running-workout record: upload the image, extract the
// numbers with a vision model and sync the result into Notion.
package runwebhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/denishartl/workouts-to-notion/internal/logger"
	"github.com/denishartl/workouts-to-notion/internal/notion"
	"github.com/denishartl/workouts-to-notion/internal/ratelimit"
	"github.com/denishartl/workouts-to-notion/internal/storage"
	"github.com/denishartl/workouts-to-notion/internal/validate"
	"github.com/denishartl/workouts-to-notion/internal/vision"
)

var log = logger.NewLogger()

const maxCommentLength = 500

// Handler processes manual run-workout submissions.
type Handler struct {
	limiter  *ratelimit.Limiter
	uploader storage.Uploader
	vision   *vision.Client
	notion   *notion.Client
}

// New wires a handler from its collaborators. uploader may be nil; the
// screenshot is then analyzed without being stored.
func New(limiter *ratelimit.Limiter, uploader storage.Uploader, visionClient *vision.Client, notionClient *notion.Client) *Handler {
	return &Handler{limiter: limiter, uploader: uploader, vision: visionClient, notion: notionClient}
}

type runData struct {
	Duration     float64 `json:"duration"`
	Distance     float64 `json:"distance"`
	Cadence      float64 `json:"cadence"`
	BPM          float64 `json:"bpm"`
	Date         string  `json:"date"`
	KneePain     string  `json:"knee_pain,omitempty"`
	Comment      string  `json:"comment,omitempty"`
	ImageBlobURL string  `json:"image_blob_url,omitempty"`
}

type response struct {
	Status       string   `json:"status"`
	Message      string   `json:"message,omitempty"`
	Data         *runData `json:"data,omitempty"`
	NotionPageID string   `json:"notion_page_id,omitempty"`
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

	r.Body = http.MaxBytesReader(w, r.Body, validate.MaxRequestSize)
	if err := r.ParseMultipartForm(validate.MaxRequestSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	kneePain := validate.SanitizeText(r.FormValue("knee_pain"), "knee_pain", 10)
	if kneePain != "" {
		level, err := strconv.Atoi(kneePain)
		if err != nil || level < 0 || level > 5 {
			writeError(w, http.StatusBadRequest, "knee_pain must be an integer between 0 and 5")
			return
		}
	}

	comment := validate.SanitizeText(r.FormValue("comment"), "comment", maxCommentLength)

	image, filename, err := h.screenshot(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blobURL := ""
	if h.uploader != nil {
		blobURL, err = h.uploader.Upload(ctx, image, filename)
		if err != nil {
			// The image is only an artifact; losing it must not lose the workout
			log.Warnf("unable to upload screenshot: %s", err)
			blobURL = ""
		}
	}

	raw, err := h.vision.AnalyzeImage(ctx, image)
	if err != nil {
		log.Errorf("vision analysis failed: %s", err)
		writeError(w, http.StatusInternalServerError, "unable to analyze screenshot")
		return
	}

	data, err := vision.Parse(raw)
	if err != nil {
		log.Errorf("unable to parse vision response: %s", err)
		writeError(w, http.StatusInternalServerError, "unable to parse analysis result")
		return
	}

	rd := &runData{
		Duration:     data.Duration,
		Distance:     data.Distance,
		Cadence:      data.Cadence,
		BPM:          data.BPM,
		Date:         data.Date,
		KneePain:     kneePain,
		Comment:      comment,
		ImageBlobURL: blobURL,
	}

	page, err := h.notion.UpsertRunWorkout(ctx, data, kneePain, comment, blobURL)
	if err != nil {
		log.Errorf("unable to sync run workout: %s", err)
		// The analysis succeeded, so hand the caller the extracted data
		// even though the store write failed.
		writeJSON(w, http.StatusInternalServerError, response{
			Status:  "partial_success",
			Message: "screenshot analyzed but workout could not be synced",
			Data:    rd,
		})
		return
	}

	log.WithField("page_id", page.ID).Info("run workout synced")

	writeJSON(w, http.StatusOK, response{
		Status:       "success",
		Message:      fmt.Sprintf("run workout %s", page.Action()),
		Data:         rd,
		NotionPageID: page.ID,
	})
}

// screenshot extracts and validates the single uploaded image.
func (h *Handler) screenshot(r *http.Request) ([]byte, string, error) {
	files := r.MultipartForm.File["screenshot"]
	if len(files) != 1 {
		return nil, "", fmt.Errorf("exactly one screenshot file is required")
	}
	header := files[0]

	f, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("unable to read screenshot")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, validate.MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("unable to read screenshot")
	}

	if err := validate.FileSize(int64(len(data)), header.Size); err != nil {
		return nil, "", err
	}

	if _, err := validate.ImageType(data, header.Filename); err != nil {
		return nil, "", err
	}

	return data, header.Filename, nil
}

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
