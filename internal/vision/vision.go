// Package vision implements the image-analysis client. A workout
// screenshot goes in, structured workout numbers come out. The service
// behind it is an OpenAI-compatible chat-completions deployment with image
// input support.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/denishartl/workouts-to-notion/internal/client"
)

const requestTimeout = 60 * time.Second

// analysisPrompt instructs the model to extract the workout numbers as bare
// JSON. The example pins the exact field names the parser requires.
const analysisPrompt = `Analyze the provided image of an iOS running workout.
Extract the following information and output it in json format (example can be found at the end).

Required information:
- Workout time in minutes
- Distance in km (2 decimals)
- Avg. Cadence (only number)
- Avg heart rate (only number)
- Date

json should look like this:

{
    "duration": 62.5,
    "distance": 4.82,
    "cadence": 175,
    "bpm": 145,
    "date": "2024-06-15"
}`

// WorkoutData is the structured result extracted from a workout screenshot.
// All five fields are required; Parse rejects a response missing any.
type WorkoutData struct {
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
	Cadence  float64 `json:"cadence"`
	BPM      float64 `json:"bpm"`
	Date     string  `json:"date"`
}

// Client calls the vision deployment.
type Client struct {
	rc    *client.Client
	model string
}

// NewClient returns a vision client for the given endpoint, API key and
// model/deployment name.
func NewClient(endpoint, apiKey, model string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing vision endpoint: %w", err)
	}
	// Relative resolution needs the base path to end in a slash
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	hc := &http.Client{
		Timeout:   requestTimeout,
		Transport: &client.KeyHeaderTransport{Header: "api-key", Key: apiKey},
	}

	return &Client{rc: client.NewClient(u, hc), model: model}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzeImage sends the image to the vision model and returns the raw text
// of the model's reply, expected (but not guaranteed) to be JSON.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(image)

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: analysisPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + encoded}},
				},
			},
		},
	}

	req, err := c.rc.NewRequest(ctx, http.MethodPost, "chat/completions", body)
	if err != nil {
		return "", err
	}

	var cr chatResponse
	if _, err := c.rc.Do(req, &cr); err != nil {
		return "", fmt.Errorf("analyzing image: %w", err)
	}

	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from vision service")
	}

	return cr.Choices[0].Message.Content, nil
}

// Parse decodes the model's reply into WorkoutData and verifies all
// required fields are present. Models occasionally wrap the JSON in a
// markdown code fence; that is stripped first.
func Parse(raw string) (*WorkoutData, error) {
	raw = stripFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("parsing vision response as JSON: %w", err)
	}

	var missing []string
	for _, f := range []string{"duration", "distance", "cadence", "bpm", "date"} {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("vision response missing required fields: %s", strings.Join(missing, ", "))
	}

	var d WorkoutData
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decoding vision response: %w", err)
	}

	return &d, nil
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
