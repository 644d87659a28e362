// Package openai implements the listing.Invoker contract on top of the OpenAI
// chat completions API, with photos attached as inline data URLs.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/listing"
)

type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

type Client struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

const (
	defaultModel   = "gpt-4.1-mini"
	defaultBaseURL = "https://api.openai.com/v1"
	// Backstop only; per-call deadlines come from the caller's context.
	defaultClientTimeout = 2 * time.Minute
)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}, nil
}

// Complete performs exactly one chat completion call and returns the raw text
// of the first choice. It never retries; failure classification is carried in
// the returned *listing.Failure.
func (c *Client) Complete(ctx context.Context, p listing.Prompt) (string, error) {
	parts := make([]contentPart, 0, len(p.Images)+1)
	parts = append(parts, contentPart{Type: "text", Text: p.Instruction})
	for _, img := range p.Images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: toDataURL(img)},
		})
	}
	payload := chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: parts}},
		Temperature:    0.2,
		ResponseFormat: &chatFormat{Type: "json_object"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", unavailable("encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", unavailable("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", unavailable("openai request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, resp.Body)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", unavailable("decode response", err)
	}
	return extractText(out)
}

func extractText(resp chatResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", unavailable("openai returned no choices", nil)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		return "", &listing.Failure{
			Kind:   listing.FailModelRefused,
			Reason: "model declined to generate a listing",
			Cause:  fmt.Errorf("openai refusal: %s", coalesce(choice.Message.Refusal, choice.FinishReason)),
		}
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", unavailable("openai returned empty content", nil)
	}
	return text, nil
}

func classifyStatus(status int, body io.Reader) *listing.Failure {
	detail := readErrorMessage(body)
	switch {
	case status == http.StatusTooManyRequests:
		return &listing.Failure{
			Kind:   listing.FailRateLimited,
			Reason: "model API rate limit exceeded",
			Cause:  fmt.Errorf("openai: status %d: %s", status, detail),
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return unavailable("model API rejected credentials", fmt.Errorf("openai: status %d: %s", status, detail))
	default:
		return unavailable("model API error", fmt.Errorf("openai: status %d: %s", status, detail))
	}
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}

func unavailable(reason string, cause error) *listing.Failure {
	return &listing.Failure{
		Kind:   listing.FailModelUnavailable,
		Reason: reason,
		Cause:  cause,
	}
}

func toDataURL(img listing.ImageRef) string {
	mime := img.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ listing.Invoker = (*Client)(nil)
