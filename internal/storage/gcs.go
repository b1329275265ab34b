package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"

	"github.com/temcen/cardforge/pkg/models"
)

// GCSStore persists to a Google Cloud Storage bucket using the same key
// layout as LocalStore. Locator URLs are V4 signed URLs.
type GCSStore struct {
	client       *gcs.Client
	bucket       *gcs.BucketHandle
	bucketName   string
	signedURLTTL time.Duration
	logger       *logrus.Logger
}

func NewGCSStore(ctx context.Context, bucketName string, signedURLTTL time.Duration, logger *logrus.Logger) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewGCSStoreWithClient(client, bucketName, signedURLTTL, logger), nil
}

// NewGCSStoreWithClient wraps an existing client. Lets tests point the store
// at an emulator.
func NewGCSStoreWithClient(client *gcs.Client, bucketName string, signedURLTTL time.Duration, logger *logrus.Logger) *GCSStore {
	return &GCSStore{
		client:       client,
		bucket:       client.Bucket(bucketName),
		bucketName:   bucketName,
		signedURLTTL: signedURLTTL,
		logger:       logger,
	}
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) SaveImage(ctx context.Context, cardID string, data []byte, series string) (string, error) {
	key := imageKey(cardID, series, time.Now())

	if err := s.writeObject(ctx, key, data, "image/jpeg"); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.bucketName,
		"bytes":  len(data),
	}).Debug("Image saved to GCS")

	return s.signURL(key)
}

func (s *GCSStore) SaveCard(ctx context.Context, cardID string, record *models.CardRecord) (string, error) {
	key := cardKey(cardID, record.Series)

	now := time.Now().UTC()
	record.SavedAt = &now
	record.StorageLocation = fmt.Sprintf("gs://%s/%s", s.bucketName, key)

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode card record: %w", err)
	}

	if err := s.writeObject(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("failed to write card record: %w", err)
	}

	return key, nil
}

func (s *GCSStore) ListCards(ctx context.Context, series string) ([]models.CardRecord, error) {
	prefix := "cards/"
	if series != "" {
		prefix = "cards/" + sanitizeSegment(series) + "/"
	}

	records := []models.CardRecord{}
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list cards: %w", err)
		}
		if !strings.HasSuffix(attrs.Name, ".json") {
			continue
		}

		data, err := s.readObject(ctx, attrs.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read card record %s: %w", attrs.Name, err)
		}
		var record models.CardRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.WithError(err).WithField("object", attrs.Name).Warn("Skipping unreadable card record")
			continue
		}
		records = append(records, record)
	}

	sortNewestFirst(records)
	return records, nil
}

func (s *GCSStore) SignedImageURL(ctx context.Context, path string) (string, error) {
	if err := validateImagePath(path); err != nil {
		return "", err
	}
	if _, err := s.bucket.Object(path).Attrs(ctx); err != nil {
		return "", fmt.Errorf("image not found: %w", err)
	}
	return s.signURL(path)
}

// AppendLog emulates append on GCS: read the existing object, concatenate the
// new line, write back. Overwriting without the read would silently destroy
// audit history.
func (s *GCSStore) AppendLog(ctx context.Context, level, message string, metadata map[string]interface{}) error {
	line, err := formatLogLine(level, message, metadata, time.Now())
	if err != nil {
		return err
	}

	key := logKey(level, time.Now())

	existing, err := s.readObject(ctx, key)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to read log object: %w", err)
	}

	if err := s.writeObject(ctx, key, append(existing, line...), "text/plain"); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func (s *GCSStore) Stats(ctx context.Context) (*models.StorageStats, error) {
	stats := &models.StorageStats{}

	it := s.bucket.Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate bucket: %w", err)
		}

		stats.TotalFiles++
		switch {
		case strings.HasPrefix(attrs.Name, "images/"):
			stats.Images++
		case strings.HasPrefix(attrs.Name, "cards/"):
			stats.Cards++
		case strings.HasPrefix(attrs.Name, "logs/"):
			stats.Logs++
		}
	}

	return stats, nil
}

func (s *GCSStore) Ping(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s not reachable: %w", s.bucketName, err)
	}
	return nil
}

func (s *GCSStore) writeObject(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *GCSStore) readObject(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) signURL(key string) (string, error) {
	url, err := s.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.signedURLTTL),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", key, err)
	}
	return url, nil
}
