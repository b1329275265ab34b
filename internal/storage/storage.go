package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/temcen/cardforge/pkg/models"
)

// Store is the persistence contract shared by the filesystem and cloud
// backends. The backend is selected once at process start; the rest of the
// system never branches on which one it got.
type Store interface {
	// SaveImage writes image bytes under a series- and date-keyed path and
	// returns a locator URL for retrieval.
	SaveImage(ctx context.Context, cardID string, data []byte, series string) (string, error)

	// SaveCard writes the full card record as JSON and returns the storage
	// path. SavedAt and StorageLocation are stamped on the record.
	SaveCard(ctx context.Context, cardID string, record *models.CardRecord) (string, error)

	// ListCards enumerates stored records, optionally filtered by series,
	// newest-first by SavedAt.
	ListCards(ctx context.Context, series string) ([]models.CardRecord, error)

	// SignedImageURL produces a fresh short-lived retrieval URL for a stored
	// image path. Paths outside the images/ prefix are rejected.
	SignedImageURL(ctx context.Context, path string) (string, error)

	// AppendLog appends a structured line to a level- and date-partitioned
	// log artifact. Existing entries are never overwritten.
	AppendLog(ctx context.Context, level, message string, metadata map[string]interface{}) error

	// Stats returns aggregate object counts for health reporting.
	Stats(ctx context.Context) (*models.StorageStats, error)

	// Ping verifies the backend is reachable and writable.
	Ping(ctx context.Context) error
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// sanitizeSegment reduces an arbitrary string to a safe path segment.
// Anything outside [a-zA-Z0-9_-] is replaced, so traversal sequences can
// never survive into a storage key.
func sanitizeSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" || strings.Trim(s, "_") == "" {
		return "default"
	}
	return s
}

func imageKey(cardID, series string, now time.Time) string {
	return fmt.Sprintf("images/%s/%s/%s.jpg",
		sanitizeSegment(series), now.UTC().Format("2006-01-02"), sanitizeSegment(cardID))
}

func cardKey(cardID, series string) string {
	return fmt.Sprintf("cards/%s/%s.json", sanitizeSegment(series), sanitizeSegment(cardID))
}

func logKey(level string, now time.Time) string {
	return fmt.Sprintf("logs/%s-%s.log", sanitizeSegment(level), now.UTC().Format("2006-01-02"))
}

// validateImagePath rejects retrieval paths that escape the images/ prefix.
func validateImagePath(path string) error {
	if !strings.HasPrefix(path, "images/") {
		return fmt.Errorf("path %q is outside the images/ prefix", path)
	}
	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q contains traversal segments", path)
	}
	return nil
}

type logEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func formatLogLine(level, message string, metadata map[string]interface{}, now time.Time) ([]byte, error) {
	line, err := json.Marshal(logEntry{
		Timestamp: now.UTC(),
		Level:     level,
		Message:   message,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode log entry: %w", err)
	}
	return append(line, '\n'), nil
}

func sortNewestFirst(records []models.CardRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].SavedAt, records[j].SavedAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
}
