package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cardforge/pkg/models"
)

// backendFixture runs the contract suite against one Store implementation.
// readLog retrieves the raw bytes of a log object so append semantics can be
// checked backend-independently.
type backendFixture struct {
	name    string
	store   Store
	readLog func(t *testing.T, key string) []byte
}

func contractBackends(t *testing.T) []backendFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	local, err := NewLocalStore(t.TempDir(), "/files", logger)
	require.NoError(t, err)

	server := fakestorage.NewServer(nil)
	t.Cleanup(server.Stop)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: "cardforge-test"})
	gcsStore := NewGCSStoreWithClient(server.Client(), "cardforge-test", 15*time.Minute, logger)

	return []backendFixture{
		{
			name:  "local",
			store: local,
			readLog: func(t *testing.T, key string) []byte {
				data, err := os.ReadFile(filepath.Join(local.Root(), filepath.FromSlash(key)))
				require.NoError(t, err)
				return data
			},
		},
		{
			name:  "gcs",
			store: gcsStore,
			readLog: func(t *testing.T, key string) []byte {
				data, err := gcsStore.readObject(context.Background(), key)
				require.NoError(t, err)
				return data
			},
		},
	}
}

func contractRecord(id, series string) *models.CardRecord {
	return &models.CardRecord{
		ID:     id,
		Title:  "Card " + id,
		Series: series,
		Stats:  map[string]int{"attack": 5},
	}
}

// Both backends must return the same logical listing for the same save
// sequence: same paths, same newest-first order, same series filtering.
func TestBackendsAgreeOnSaveAndList(t *testing.T) {
	ctx := context.Background()

	type listing struct {
		paths []string
		ids   []string
	}
	results := map[string]listing{}

	for _, fx := range contractBackends(t) {
		var paths []string
		for _, id := range []string{"card-1", "card-2", "card-3"} {
			path, err := fx.store.SaveCard(ctx, id, contractRecord(id, "beasts"))
			require.NoError(t, err, "%s: save %s", fx.name, id)
			paths = append(paths, path)
			time.Sleep(5 * time.Millisecond)
		}
		_, err := fx.store.SaveCard(ctx, "card-4", contractRecord("card-4", "machines"))
		require.NoError(t, err)

		cards, err := fx.store.ListCards(ctx, "beasts")
		require.NoError(t, err, "%s: list", fx.name)

		var ids []string
		for _, card := range cards {
			ids = append(ids, card.ID)
			require.NotNil(t, card.SavedAt, "%s: %s missing SavedAt", fx.name, card.ID)
			assert.NotEmpty(t, card.StorageLocation, "%s: %s missing StorageLocation", fx.name, card.ID)
		}
		results[fx.name] = listing{paths: paths, ids: ids}

		all, err := fx.store.ListCards(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 4, "%s: unfiltered listing", fx.name)
	}

	assert.Equal(t, results["local"].paths, results["gcs"].paths, "storage paths diverge")
	assert.Equal(t, []string{"card-3", "card-2", "card-1"}, results["local"].ids)
	assert.Equal(t, results["local"].ids, results["gcs"].ids, "listing order diverges")
}

func TestBackendsAgreeOnKeySanitization(t *testing.T) {
	ctx := context.Background()

	paths := map[string]string{}
	for _, fx := range contractBackends(t) {
		path, err := fx.store.SaveCard(ctx, "card-1", contractRecord("card-1", "../../etc"))
		require.NoError(t, err, fx.name)
		assert.NotContains(t, path, "..", fx.name)
		paths[fx.name] = path
	}

	assert.Equal(t, paths["local"], paths["gcs"])
}

// Appends must be non-destructive on both backends, including the GCS
// read-concat-write emulation.
func TestBackendsAppendLogNonDestructive(t *testing.T) {
	ctx := context.Background()

	for _, fx := range contractBackends(t) {
		for i := 0; i < 3; i++ {
			err := fx.store.AppendLog(ctx, "info", "entry", map[string]interface{}{"n": i})
			require.NoError(t, err, fx.name)
		}

		data := fx.readLog(t, logKey("info", time.Now()))
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Len(t, lines, 3, "%s: append lost entries", fx.name)
		for _, line := range lines {
			assert.Contains(t, line, `"message":"entry"`, fx.name)
		}
	}
}

func TestBackendsRejectTraversalSignedURLs(t *testing.T) {
	ctx := context.Background()

	for _, fx := range contractBackends(t) {
		for _, path := range []string{
			"../../etc/passwd",
			"images/../cards/x.json",
			"cards/beasts/card-1.json",
			"/images/card.jpg",
		} {
			_, err := fx.store.SignedImageURL(ctx, path)
			assert.Error(t, err, "%s: %q must be rejected", fx.name, path)
		}
	}
}

func TestBackendsAgreeOnStats(t *testing.T) {
	ctx := context.Background()

	stats := map[string]*models.StorageStats{}
	for _, fx := range contractBackends(t) {
		_, err := fx.store.SaveCard(ctx, "card-1", contractRecord("card-1", "beasts"))
		require.NoError(t, err, fx.name)
		require.NoError(t, fx.store.AppendLog(ctx, "info", "entry", nil), fx.name)
		require.NoError(t, fx.store.AppendLog(ctx, "warn", "entry", nil), fx.name)

		s, err := fx.store.Stats(ctx)
		require.NoError(t, err, fx.name)
		stats[fx.name] = s
	}

	assert.Equal(t, stats["local"], stats["gcs"])
	assert.Equal(t, 1, stats["local"].Cards)
	assert.Equal(t, 2, stats["local"].Logs)
	assert.Equal(t, 3, stats["local"].TotalFiles)
}
