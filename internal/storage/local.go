package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/pkg/models"
)

// LocalStore persists everything under a root directory on the local
// filesystem. Locator URLs are static paths served by the file route.
type LocalStore struct {
	root          string
	publicBaseURL string
	logger        *logrus.Logger
}

func NewLocalStore(root, publicBaseURL string, logger *logrus.Logger) (*LocalStore, error) {
	for _, dir := range []string{"images", "cards", "logs"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &LocalStore{
		root:          root,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// Root returns the directory the store writes under.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) SaveImage(ctx context.Context, cardID string, data []byte, series string) (string, error) {
	key := imageKey(cardID, series, time.Now())

	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":   key,
		"bytes": len(data),
	}).Debug("Image saved to local storage")

	return s.publicBaseURL + "/" + key, nil
}

func (s *LocalStore) SaveCard(ctx context.Context, cardID string, record *models.CardRecord) (string, error) {
	key := cardKey(cardID, record.Series)

	now := time.Now().UTC()
	record.SavedAt = &now
	record.StorageLocation = key

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode card record: %w", err)
	}

	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create card directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write card record: %w", err)
	}

	return key, nil
}

func (s *LocalStore) ListCards(ctx context.Context, series string) ([]models.CardRecord, error) {
	dir := filepath.Join(s.root, "cards")
	if series != "" {
		dir = filepath.Join(dir, sanitizeSegment(series))
	}

	records := []models.CardRecord{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var record models.CardRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.WithError(err).WithField("path", path).Warn("Skipping unreadable card record")
			return nil
		}
		records = append(records, record)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	sortNewestFirst(records)
	return records, nil
}

func (s *LocalStore) SignedImageURL(ctx context.Context, path string) (string, error) {
	if err := validateImagePath(path); err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(path))); err != nil {
		return "", fmt.Errorf("image not found: %w", err)
	}
	return s.publicBaseURL + "/" + path, nil
}

func (s *LocalStore) AppendLog(ctx context.Context, level, message string, metadata map[string]interface{}) error {
	line, err := formatLogLine(level, message, metadata, time.Now())
	if err != nil {
		return err
	}

	full := filepath.Join(s.root, filepath.FromSlash(logKey(level, time.Now())))
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func (s *LocalStore) Stats(ctx context.Context) (*models.StorageStats, error) {
	stats := &models.StorageStats{}

	counts := map[string]*int{
		"images": &stats.Images,
		"cards":  &stats.Cards,
		"logs":   &stats.Logs,
	}
	for dir, counter := range counts {
		err := filepath.Walk(filepath.Join(s.root, dir), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !info.IsDir() {
				*counter++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", dir, err)
		}
	}

	stats.TotalFiles = stats.Images + stats.Cards + stats.Logs
	return stats, nil
}

func (s *LocalStore) Ping(ctx context.Context) error {
	probe := filepath.Join(s.root, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	return os.Remove(probe)
}
