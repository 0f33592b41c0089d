package validate

import (
	"os"
	"strings"
	"testing"

	"github.com/denishartl/workouts-to-notion/internal/logger"
)

func TestMain(m *testing.M) {
	// Discard logs to avoid polluting test output
	os.Setenv("ENV", "test")
	log = logger.NewLogger()
	os.Exit(m.Run())
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		maxLength int
		want      string
	}{
		{"empty input", "", 100, ""},
		{"whitespace only", "  \t \n ", 100, ""},
		{"trims whitespace", "  hello  ", 100, "hello"},
		{"truncates to max length", strings.Repeat("a", 600), 500, strings.Repeat("a", 500)},
		{"strips null bytes", "foo\x00bar", 100, "foobar"},
		{"strips control characters", "foo\x07\x1bbar", 100, "foobar"},
		{"keeps printable unicode", "ran 5k 🏃 héllo", 100, "ran 5k 🏃 héllo"},
		{"keeps inner whitespace", "line one\nline two", 100, "line one\nline two"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeText(tc.in, "test_field", tc.maxLength)
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSanitizeTextTruncatesRunes(t *testing.T) {
	in := strings.Repeat("🏃", 10)
	got := SanitizeText(in, "emoji", 5)
	if len([]rune(got)) != 5 {
		t.Errorf("expected 5 runes, got %d", len([]rune(got)))
	}
}

func TestFileSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		declared int64
		wantErr  bool
	}{
		{"valid file", 1024, 1024, false},
		{"declared too large", 1024, MaxFileSize + 1, true},
		{"actual too large", MaxFileSize + 1, 1024, true},
		{"empty file", 0, 1024, true},
		{"exactly at limit", MaxFileSize, MaxFileSize, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := FileSize(tc.size, tc.declared)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected nil error, got %q", err)
			}
		})
	}
}

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF")
)

func TestImageType(t *testing.T) {
	tests := []struct {
		name     string
		head     []byte
		filename string
		want     string
		wantErr  bool
	}{
		{"png with png extension", pngHeader, "screenshot.png", "png", false},
		{"jpeg with jpg extension", jpegHeader, "screenshot.jpg", "jpeg", false},
		{"jpeg with jpeg extension", jpegHeader, "IMG_1234.JPEG", "jpeg", false},
		{"jpeg content with heic extension", jpegHeader, "screenshot.heic", "jpeg", false},
		{"disallowed extension", pngHeader, "screenshot.gif", "", true},
		{"no extension", pngHeader, "screenshot", "", true},
		{"content not an image", []byte("just some text content"), "screenshot.png", "", true},
		{"html content with image extension", []byte("<!doctype html><html>"), "screenshot.jpg", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ImageType(tc.head, tc.filename)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("expected nil error, got %q", err)
			}
			if got != tc.want {
				t.Errorf("expected detected type %q, got %q", tc.want, got)
			}
		})
	}
}
