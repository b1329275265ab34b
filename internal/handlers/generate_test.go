package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/services"
)

type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	return p.text, p.err
}

func (p *stubProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return nil, p.err
}

func newGenerateTestRouter(t *testing.T, provider *stubProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	service := services.NewGenerateService(&config.Config{}, logger, provider, &failingStore{})
	handler := NewGenerateHandler(service, logger)

	router := gin.New()
	router.POST("/generate", handler.Generate)
	return router
}

func postGenerate(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateRejectsMissingPrompt(t *testing.T) {
	router := newGenerateTestRouter(t, &stubProvider{})

	w := postGenerate(router, `{"modelKind": "text"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp["error"])
}

func TestGenerateRejectsUnknownModelKind(t *testing.T) {
	router := newGenerateTestRouter(t, &stubProvider{})

	w := postGenerate(router, `{"prompt": "p", "modelKind": "video"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateRejectsMalformedJSON(t *testing.T) {
	router := newGenerateTestRouter(t, &stubProvider{})

	w := postGenerate(router, `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateReturnsEnvelopeForValidRequest(t *testing.T) {
	router := newGenerateTestRouter(t, &stubProvider{text: `{"ok": true}`})

	w := postGenerate(router, `{"prompt": "p", "modelKind": "text"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "json", resp["kind"])
}
