package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
)

// Client is the outbound surface of the generative-AI provider. It is
// constructor-injected into the generation service so tests can substitute
// fakes.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// GeminiClient talks to the Gemini REST API.
type GeminiClient struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	logger     *logrus.Logger
	policy     Policy
}

func NewGeminiClient(cfg config.ProviderConfig, logger *logrus.Logger) *GeminiClient {
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		policy:     LinearBackoff(cfg.RetryAttempts, cfg.RetryBaseDelay),
	}
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateText asks the text model for a JSON-formatted reply and returns the
// raw candidate text. Parsing is the caller's concern.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	body := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
		},
	}

	resp, err := c.call(ctx, c.cfg.TextModel, c.cfg.TextTimeout, body)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}

	return "", &ContentError{Reason: "response contained no text candidate"}
}

// GenerateImage asks the image model for exactly one image and returns the
// decoded bytes.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	body := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			CandidateCount:     1,
		},
	}

	resp, err := c.call(ctx, c.cfg.ImageModel, c.cfg.ImageTimeout, body)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, &ContentError{Reason: "image payload is not valid base64"}
				}
				return data, nil
			}
		}
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			return nil, &ContentError{Reason: fmt.Sprintf("generation stopped: %s", cand.FinishReason)}
		}
	}

	return nil, &ContentError{Reason: "response contained no image data"}
}

// call performs one generateContent request under the retry policy.
func (c *GeminiClient) call(ctx context.Context, model string, timeout time.Duration, body generateContentRequest) (*generateContentResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)

	var result *generateContentResponse
	err = Do(ctx, c.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build provider request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("provider request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read provider response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.WithFields(logrus.Fields{
				"model":  model,
				"status": resp.StatusCode,
			}).Warn("Provider call failed")
			return &APIError{StatusCode: resp.StatusCode, Message: truncate(string(respBody), 512)}
		}

		var parsed generateContentResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}

		result = &parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
