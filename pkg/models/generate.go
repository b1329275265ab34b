package models

// Model kinds accepted by the generation endpoint.
const (
	ModelKindText  = "text"
	ModelKindImage = "image"
)

// Response envelope discriminants.
const (
	ResponseKindJSON  = "json"
	ResponseKindImage = "image"
)

type GenerationRequest struct {
	Prompt    string `json:"prompt" validate:"required,min=1"`
	ModelKind string `json:"modelKind" validate:"required,oneof=text image"`
	CardID    string `json:"cardId,omitempty"`
	Series    string `json:"series,omitempty"`
}

// GenerationResponse is a discriminated union on Kind. Consumers must branch
// on Kind before touching Data: for "json" Data holds parsed JSON, for
// "image" Data holds base64-encoded JPEG bytes.
type GenerationResponse struct {
	Kind          string      `json:"kind"`
	Data          interface{} `json:"data"`
	MIME          string      `json:"mime,omitempty"`
	PersistentURL string      `json:"persistentUrl,omitempty"`
}

// CardIdea is the normalized shape of one card suggestion returned by the
// text model.
type CardIdea struct {
	Title       string         `json:"title"`
	Stats       map[string]int `json:"stats"`
	ImagePrompt string         `json:"imagePrompt"`
}
