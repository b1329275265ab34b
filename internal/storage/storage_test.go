package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSegment(t *testing.T) {
	cases := map[string]string{
		"beasts":        "beasts",
		"Beasts_2024":   "Beasts_2024",
		"my-series":     "my-series",
		"../../etc":     "______etc",
		"a/b\\c":        "a_b_c",
		"  spaced  ":    "spaced",
		"":              "default",
		"../..":         "default",
		"série":         "s_rie",
	}
	for input, want := range cases {
		assert.Equal(t, want, sanitizeSegment(input), "input %q", input)
	}
}

func TestKeyLayout(t *testing.T) {
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "images/beasts/2026-08-25/card-1.jpg", imageKey("card-1", "beasts", at))
	assert.Equal(t, "cards/beasts/card-1.json", cardKey("card-1", "beasts"))
	assert.Equal(t, "logs/info-2026-08-25.log", logKey("info", at))
}

func TestKeyLayoutSanitizesTraversal(t *testing.T) {
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "images/______etc/2026-08-25/card.jpg", imageKey("card", "../../etc", at))
	assert.Equal(t, "cards/______etc/___cfg.json", cardKey("../cfg", "../../etc"))
}

func TestValidateImagePath(t *testing.T) {
	assert.NoError(t, validateImagePath("images/beasts/2026-08-25/card-1.jpg"))

	assert.Error(t, validateImagePath("cards/beasts/card-1.json"))
	assert.Error(t, validateImagePath("images/../cards/secret.json"))
	assert.Error(t, validateImagePath("../images/card.jpg"))
	assert.Error(t, validateImagePath("/images/card.jpg"))
	assert.Error(t, validateImagePath(""))
}
