// Package validate implements sanitization and validation of untrusted
// webhook input: free-text fields, upload sizes and image content.
package validate

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/denishartl/workouts-to-notion/internal/logger"
)

var log = logger.NewLogger()

const (
	// MaxFileSize is the maximum accepted screenshot size.
	MaxFileSize = 10 * 1024 * 1024
	// MaxRequestSize is the maximum accepted request body size.
	MaxRequestSize = 10 * 1024 * 1024
	// sniffLen is how many leading bytes are inspected to detect the real
	// content type, matching net/http's sniffing window.
	sniffLen = 512
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
}

var allowedContentTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
}

// SanitizeText trims whitespace, strips non-printable characters and
// truncates the input to maxLength runes, logging a warning when it does.
// Empty or whitespace-only input returns the empty string.
func SanitizeText(raw, fieldName string, maxLength int) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if runes := []rune(text); len(runes) > maxLength {
		log.Warnf("%s exceeded max length (%d > %d)", fieldName, len(runes), maxLength)
		text = string(runes[:maxLength])
	}

	// Remove null bytes and other control characters
	text = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	return text
}

// FileSize checks the uploaded file against the declared Content-Length and
// the actual streamed size.
func FileSize(size, declaredContentLength int64) error {
	if declaredContentLength > MaxFileSize {
		return fmt.Errorf("file too large, maximum size is %dMB", MaxFileSize/(1024*1024))
	}
	if size > MaxFileSize {
		return fmt.Errorf("file too large, maximum size is %dMB", MaxFileSize/(1024*1024))
	}
	if size == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

// ImageType checks that the filename extension is an accepted image type and
// that the leading bytes of the content sniff as JPEG or PNG. Both checks are
// independent; a claimed extension with mismatched content is rejected.
// It returns the detected type ("jpeg" or "png") on success.
func ImageType(head []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("invalid file type %q, allowed: .jpg, .jpeg, .png, .heic", ext)
	}

	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	detected, ok := allowedContentTypes[http.DetectContentType(head)]
	if !ok {
		return "", fmt.Errorf("file content does not match image format")
	}

	return detected, nil
}
