// Package notion implements the sync client for the Notion databases the
// workouts are mirrored into. Notion has no native update-if-exists
// primitive, so every upsert is a search-then-create-or-update protocol
// keyed on the record's external identifier.
package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/denishartl/workouts-to-notion/internal/client"
	"github.com/denishartl/workouts-to-notion/internal/logger"
)

var (
	log = logger.NewLogger()

	// BaseURL is the Notion API endpoint. Overridable for tests.
	BaseURL = "https://api.notion.com"
)

// Version is the Notion-Version header sent on every request.
const Version = "2022-06-28"

const requestTimeout = 10 * time.Second

// Client talks to the Notion API. One database ID per record kind.
type Client struct {
	rc *client.Client

	WorkoutsDB  string
	ExercisesDB string
	RunsDB      string
}

// NewClient returns a Notion client authenticating with the given bearer
// token. The token never rotates, so a static token source is sufficient.
func NewClient(ctx context.Context, token, workoutsDB, exercisesDB, runsDB string) *Client {
	base := &http.Client{
		Timeout: requestTimeout,
		Transport: &client.StaticHeadersTransport{
			Headers: map[string]string{"Notion-Version": Version},
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	tc.Timeout = requestTimeout

	burl, _ := url.Parse(BaseURL)

	return &Client{
		rc:          client.NewClient(burl, tc),
		WorkoutsDB:  workoutsDB,
		ExercisesDB: exercisesDB,
		RunsDB:      runsDB,
	}
}

// newClientWith is used by tests to point the client at a mock server.
func newClientWith(rc *client.Client, workoutsDB, exercisesDB, runsDB string) *Client {
	return &Client{rc: rc, WorkoutsDB: workoutsDB, ExercisesDB: exercisesDB, RunsDB: runsDB}
}

// Page is a Notion page as returned by the create, update and query calls.
type Page struct {
	ID             string `json:"id"`
	CreatedTime    string `json:"created_time"`
	LastEditedTime string `json:"last_edited_time"`
	URL            string `json:"url"`
}

// Action reports whether the page was just created or updated by comparing
// the store's creation and last-modification timestamps.
func (p *Page) Action() string {
	if p.CreatedTime == p.LastEditedTime {
		return "created"
	}
	return "updated"
}

type queryResponse struct {
	Results []Page `json:"results"`
}

// findPage queries a database for a page whose property exactly equals
// value. kind is the Notion filter kind for the property ("title",
// "rich_text" or "date"). A nil page with nil error means no match.
func (c *Client) findPage(ctx context.Context, databaseID, property, kind, value string) (*Page, error) {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"property": property,
			kind:       map[string]string{"equals": value},
		},
		"page_size": 1,
	}

	req, err := c.rc.NewRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/databases/%s/query", databaseID), body)
	if err != nil {
		return nil, err
	}

	var qr queryResponse
	if _, err := c.rc.Do(req, &qr); err != nil {
		return nil, fmt.Errorf("querying database %s: %w", databaseID, err)
	}

	if len(qr.Results) == 0 {
		return nil, nil
	}
	return &qr.Results[0], nil
}

// createPage creates a new page in the given database.
func (c *Client) createPage(ctx context.Context, databaseID string, properties map[string]interface{}) (*Page, error) {
	body := map[string]interface{}{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": properties,
	}

	req, err := c.rc.NewRequest(ctx, http.MethodPost, "/v1/pages", body)
	if err != nil {
		return nil, err
	}

	var p Page
	if _, err := c.rc.Do(req, &p); err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}

	return &p, nil
}

// updatePage patches the properties of an existing page.
func (c *Client) updatePage(ctx context.Context, pageID string, properties map[string]interface{}) (*Page, error) {
	body := map[string]interface{}{"properties": properties}

	req, err := c.rc.NewRequest(ctx, http.MethodPatch, fmt.Sprintf("/v1/pages/%s", pageID), body)
	if err != nil {
		return nil, err
	}

	var p Page
	if _, err := c.rc.Do(req, &p); err != nil {
		return nil, fmt.Errorf("updating page %s: %w", pageID, err)
	}

	return &p, nil
}

// upsert searches the database for an existing page keyed on property ==
// value and patches it, falling back to create when no page matches. A
// failed search is logged and also falls through to create: availability is
// preferred over the risk of a duplicate. Concurrent upserts of the same key
// can therefore both create; there is no conditional write in the Notion
// API to close that window.
func (c *Client) upsert(ctx context.Context, databaseID, property, kind, value string, properties map[string]interface{}) (*Page, error) {
	existing, err := c.findPage(ctx, databaseID, property, kind, value)
	if err != nil {
		log.WithField("database_id", databaseID).Warnf("search before upsert failed, creating instead: %s", err)
	}

	if existing != nil {
		return c.updatePage(ctx, existing.ID, properties)
	}
	return c.createPage(ctx, databaseID, properties)
}
