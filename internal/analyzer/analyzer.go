// Package analyzer sends item photos to a vision model and extracts
// structured produce facts from the reply.
package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	apiVersion = "2023-06-01"
	model      = "claude-3-haiku-20240307"
	maxTokens  = 1024
)

// Client defines the interface for photo analysis.
type Client interface {
	AnalyzeImage(ctx context.Context, image []byte, mime string) (*Result, error)
}

// Result holds what the model could read off the photo. Fields the model
// was unsure about are nil; the caller applies its own defaults.
type Result struct {
	Name     *string  `json:"name"`
	Label    *string  `json:"label"`
	Store    *string  `json:"store"`
	Storage  *string  `json:"storage"`
	QtyType  *string  `json:"qty_type"`
	QtyUnit  *string  `json:"qty_unit"`
	QtyValue *float64 `json:"qty_value"`
	BestBy   *string  `json:"best_by"` // YYYY-MM-DD if a date is printed on the packaging
}

const systemPrompt = `You are an assistant that catalogs groceries from photos.
Look at the photo and output ONLY a JSON object with these fields, using null
for anything you cannot read or infer with confidence:
{
  "name": (short generic name, e.g. "Strawberries"),
  "label": (exact label text on the packaging, or null),
  "store": (store name if a logo or receipt is visible, or null),
  "storage": ("counter", "fridge" or "freezer" - where this is usually kept),
  "qty_type": ("count", "weight", "volume", "bunch" or "other"),
  "qty_unit": (unit matching qty_type, e.g. "ea", "g", "kg", "lb", "oz", "ml", "l"),
  "qty_value": (number, or null if not readable),
  "best_by": ("YYYY-MM-DD" if a best-by or use-by date is printed, else null)
}`

type apiClient struct {
	httpClient *resty.Client
}

// NewClient creates a configured analyzer client. baseURL is overridable for
// self-hosted gateways; pass an empty string for the public endpoint.
func NewClient(baseURL, apiKey string) Client {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(30 * time.Second)

	return &apiClient{httpClient: client}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *apiClient) AnalyzeImage(ctx context.Context, image []byte, mime string) (*Result, error) {
	reqBody := messageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []message{
			{
				Role: "user",
				Content: []contentBlock{
					{
						Type: "image",
						Source: &imageSource{
							Type:      "base64",
							MediaType: mime,
							Data:      base64.StdEncoding.EncodeToString(image),
						},
					},
					{Type: "text", Text: "Catalog this item."},
				},
			},
			// Prefill the opening brace to force a bare JSON reply.
			{
				Role:    "assistant",
				Content: []contentBlock{{Type: "text", Text: "{"}},
			},
		},
	}

	var respBody messageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("analyzer api call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analyzer api error: %s", resp.String())
	}
	if len(respBody.Content) == 0 {
		return nil, fmt.Errorf("empty analyzer response")
	}

	text := stripFences("{" + respBody.Content[0].Text)

	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parsing analyzer response: %w (response was: %s)", err, text)
	}
	return &result, nil
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
