package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestKeyHeaderTransport(t *testing.T) {
	c, mux, teardown := setup()
	defer teardown()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "sekrit" {
			t.Errorf("expected api-key header to be set, got %q", r.Header.Get("api-key"))
		}
		fmt.Fprint(w, `{}`)
	})

	c.client = &http.Client{Transport: &KeyHeaderTransport{Header: "api-key", Key: "sekrit"}}

	req, _ := c.NewRequest(context.Background(), "GET", ".", nil)
	if _, err := c.Do(req, nil); err != nil { //nolint:bodyclose
		t.Errorf("expected nil error, got %q", err)
	}
	// The original request must not be mutated by the round trip
	if req.Header.Get("api-key") != "" {
		t.Error("expected original request headers to be untouched")
	}
}

func TestStaticHeadersTransport(t *testing.T) {
	c, mux, teardown := setup()
	defer teardown()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Notion-Version") != "2022-06-28" {
			t.Errorf("expected Notion-Version header, got %q", r.Header.Get("Notion-Version"))
		}
		fmt.Fprint(w, `{}`)
	})

	c.client = &http.Client{Transport: &StaticHeadersTransport{
		Headers: map[string]string{"Notion-Version": "2022-06-28"},
	}}

	req, _ := c.NewRequest(context.Background(), "GET", ".", nil)
	if _, err := c.Do(req, nil); err != nil { //nolint:bodyclose
		t.Errorf("expected nil error, got %q", err)
	}
}

func TestAPIErrorBody(t *testing.T) {
	c, mux, teardown := setup()
	defer teardown()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"validation_error"}`)
	})

	req, _ := c.NewRequest(context.Background(), "GET", ".", nil)
	_, err := c.Do(req, nil) //nolint:bodyclose

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "validation_error") {
		t.Errorf("expected body to contain upstream message, got %q", apiErr.Body)
	}
}

func TestAPIErrorTruncation(t *testing.T) {
	c, mux, teardown := setup()
	defer teardown()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, strings.Repeat("x", maxErrorBody+100))
	})

	req, _ := c.NewRequest(context.Background(), "GET", ".", nil)
	_, err := c.Do(req, nil) //nolint:bodyclose

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if len(apiErr.Body) != maxErrorBody+len("...") {
		t.Errorf("expected body truncated to %d chars, got %d", maxErrorBody+3, len(apiErr.Body))
	}
}
