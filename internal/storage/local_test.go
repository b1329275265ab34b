package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cardforge/pkg/models"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	store, err := NewLocalStore(t.TempDir(), "/files", logger)
	require.NoError(t, err)
	return store
}

func testRecord(id, series string) *models.CardRecord {
	return &models.CardRecord{
		ID:     id,
		Title:  "Card " + id,
		Series: series,
		Stats:  map[string]int{"attack": 5},
	}
}

func TestSaveImageReturnsLocatorURL(t *testing.T) {
	store := newTestStore(t)

	url, err := store.SaveImage(context.Background(), "card-1", bytes.Repeat([]byte{0xFF}, 64), "beasts")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "/files/images/beasts/"), "got %q", url)
	assert.True(t, strings.HasSuffix(url, "/card-1.jpg"), "got %q", url)

	// The file landed where the locator points.
	rel := strings.TrimPrefix(url, "/files/")
	_, err = os.Stat(filepath.Join(store.Root(), filepath.FromSlash(rel)))
	assert.NoError(t, err)
}

func TestSaveCardStampsRecord(t *testing.T) {
	store := newTestStore(t)

	record := testRecord("card-1", "beasts")
	path, err := store.SaveCard(context.Background(), record.ID, record)
	require.NoError(t, err)

	assert.Equal(t, "cards/beasts/card-1.json", path)
	require.NotNil(t, record.SavedAt)
	assert.WithinDuration(t, time.Now(), *record.SavedAt, time.Minute)
	assert.Equal(t, path, record.StorageLocation)
}

func TestListCardsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"card-1", "card-2", "card-3"} {
		record := testRecord(id, "beasts")
		_, err := store.SaveCard(ctx, id, record)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	cards, err := store.ListCards(ctx, "beasts")
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, "card-3", cards[0].ID)
	assert.Equal(t, "card-2", cards[1].ID)
	assert.Equal(t, "card-1", cards[2].ID)
}

func TestListCardsFiltersBySeries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveCard(ctx, "card-1", testRecord("card-1", "beasts"))
	require.NoError(t, err)
	_, err = store.SaveCard(ctx, "card-2", testRecord("card-2", "machines"))
	require.NoError(t, err)

	beasts, err := store.ListCards(ctx, "beasts")
	require.NoError(t, err)
	require.Len(t, beasts, 1)
	assert.Equal(t, "card-1", beasts[0].ID)

	all, err := store.ListCards(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListCardsEmptySeriesReturnsEmptySlice(t *testing.T) {
	store := newTestStore(t)

	cards, err := store.ListCards(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestSaveCardSanitizesTraversalSeries(t *testing.T) {
	store := newTestStore(t)

	record := testRecord("card-1", "../../etc")
	path, err := store.SaveCard(context.Background(), record.ID, record)
	require.NoError(t, err)

	assert.NotContains(t, path, "..")

	// Nothing may exist outside the storage root.
	full := filepath.Join(store.Root(), filepath.FromSlash(path))
	abs, err := filepath.Abs(full)
	require.NoError(t, err)
	root, err := filepath.Abs(store.Root())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(abs, root), "record escaped the storage root: %s", abs)

	_, err = os.Stat(full)
	assert.NoError(t, err)
}

func TestSignedImageURLRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SignedImageURL(ctx, "../../etc/passwd")
	assert.Error(t, err)

	_, err = store.SignedImageURL(ctx, "images/../cards/x.json")
	assert.Error(t, err)

	_, err = store.SignedImageURL(ctx, "cards/beasts/card-1.json")
	assert.Error(t, err)
}

func TestSignedImageURLResolvesStoredImage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url, err := store.SaveImage(ctx, "card-1", bytes.Repeat([]byte{0xFF}, 64), "beasts")
	require.NoError(t, err)

	path := strings.TrimPrefix(url, "/files/")
	signed, err := store.SignedImageURL(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, url, signed)
}

func TestAppendLogIsNonDestructive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.AppendLog(ctx, "info", "entry", map[string]interface{}{"n": i})
		require.NoError(t, err)
	}

	name := logKey("info", time.Now())
	data, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(name)))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 5)
	for _, line := range lines {
		assert.Contains(t, line, `"message":"entry"`)
	}
}

func TestStatsCountsByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveImage(ctx, "card-1", bytes.Repeat([]byte{0xFF}, 64), "beasts")
	require.NoError(t, err)
	_, err = store.SaveCard(ctx, "card-1", testRecord("card-1", "beasts"))
	require.NoError(t, err)
	require.NoError(t, store.AppendLog(ctx, "info", "entry", nil))
	require.NoError(t, store.AppendLog(ctx, "warn", "entry", nil))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Images)
	assert.Equal(t, 1, stats.Cards)
	assert.Equal(t, 2, stats.Logs)
	assert.Equal(t, 4, stats.TotalFiles)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
