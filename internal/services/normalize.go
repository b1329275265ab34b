package services

import (
	"fmt"

	"github.com/temcen/cardforge/pkg/models"
)

// The text model is inconsistent about field names. Each field accepts an
// ordered synonym list; the first key present wins, later synonyms are
// ignored even when set.
var (
	titleKeys       = []string{"title", "card_title", "name"}
	statsKeys       = []string{"stats", "statistics", "attributes"}
	imagePromptKeys = []string{"imagePrompt", "image_prompt", "prompt"}
)

// NormalizationError names the field that could not be resolved from any of
// its accepted synonyms.
type NormalizationError struct {
	Field string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("card idea is missing a usable %q field", e.Field)
}

// NormalizeCardIdea maps one raw card-idea object onto the canonical shape.
// Missing or mistyped fields fail loudly instead of defaulting.
func NormalizeCardIdea(obj map[string]interface{}) (models.CardIdea, error) {
	idea := models.CardIdea{}

	title, ok := firstString(obj, titleKeys)
	if !ok {
		return idea, &NormalizationError{Field: "title"}
	}
	idea.Title = title

	stats, ok := firstStats(obj, statsKeys)
	if !ok {
		return idea, &NormalizationError{Field: "stats"}
	}
	idea.Stats = stats

	prompt, ok := firstString(obj, imagePromptKeys)
	if !ok {
		return idea, &NormalizationError{Field: "imagePrompt"}
	}
	idea.ImagePrompt = prompt

	return idea, nil
}

// NormalizeCardIdeas normalizes a parsed JSON array of card-idea objects.
func NormalizeCardIdeas(data interface{}) ([]models.CardIdea, error) {
	items, ok := data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of card ideas, got %T", data)
	}

	ideas := make([]models.CardIdea, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("card idea %d is not an object", i)
		}
		idea, err := NormalizeCardIdea(obj)
		if err != nil {
			return nil, fmt.Errorf("card idea %d: %w", i, err)
		}
		ideas = append(ideas, idea)
	}

	return ideas, nil
}

func firstString(obj map[string]interface{}, keys []string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func firstStats(obj map[string]interface{}, keys []string) (map[string]int, bool) {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		raw, ok := v.(map[string]interface{})
		if !ok {
			continue
		}

		stats := make(map[string]int, len(raw))
		for name, val := range raw {
			num, ok := val.(float64)
			if !ok {
				return nil, false
			}
			stats[name] = int(num)
		}
		if len(stats) > 0 {
			return stats, true
		}
	}
	return nil, false
}
