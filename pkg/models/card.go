package models

import "time"

// CardRecord is the full structured record persisted after a successful
// generation and image save. Records are written once and never updated.
type CardRecord struct {
	ID         string         `json:"id" validate:"required"`
	Title      string         `json:"title" validate:"required,min=1,max=255"`
	Series     string         `json:"series" validate:"required,min=1,max=64"`
	Stats      map[string]int `json:"stats" validate:"required"`
	CardNumber int            `json:"cardNumber"`
	TotalCards int            `json:"totalCards"`
	Rarity     string         `json:"rarity,omitempty"`

	Theme       string `json:"theme,omitempty"`
	ColorScheme string `json:"colorScheme,omitempty"`
	ImageStyle  string `json:"imageStyle,omitempty"`
	ImagePrompt string `json:"imagePrompt,omitempty"`

	PersistentImageURL string     `json:"persistentImageUrl,omitempty"`
	ImageFilename      string     `json:"imageFilename,omitempty"`
	GeneratedAt        *time.Time `json:"generatedAt,omitempty"`
	SavedAt            *time.Time `json:"savedAt,omitempty"`
	StorageLocation    string     `json:"storageLocation,omitempty"`
}

// FullyRecreatable reports whether the record carries everything needed to
// redisplay the card without calling the generation provider again.
func (r *CardRecord) FullyRecreatable() bool {
	return r.ID != "" &&
		r.Title != "" &&
		r.Series != "" &&
		len(r.Stats) > 0 &&
		r.Theme != "" &&
		r.ColorScheme != "" &&
		r.ImageStyle != "" &&
		r.ImagePrompt != ""
}

type SaveCardResponse struct {
	Success     bool   `json:"success"`
	CardID      string `json:"cardId"`
	StoragePath string `json:"storagePath"`
	Message     string `json:"message"`
}

type ListCardsResponse struct {
	Success bool         `json:"success"`
	Cards   []CardRecord `json:"cards"`
	Total   int          `json:"total"`
	Series  string       `json:"series,omitempty"`
}

type StorageStats struct {
	TotalFiles int `json:"totalFiles"`
	Images     int `json:"images"`
	Cards      int `json:"cards"`
	Logs       int `json:"logs"`
}
