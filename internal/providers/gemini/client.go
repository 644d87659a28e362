// Package gemini implements the listing.Invoker contract on top of the Google
// generative language API, with photos attached as inline_data parts.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/listing"
)

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

const (
	defaultModel         = "gemini-1.5-flash"
	defaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultClientTimeout = 2 * time.Minute
)

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	CandidateCount   int     `json:"candidateCount,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		FinishReason string  `json:"finishReason"`
		Content      content `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
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
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Complete performs exactly one generateContent call and returns the raw text
// of the first candidate. It never retries.
func (c *Client) Complete(ctx context.Context, p listing.Prompt) (string, error) {
	parts := make([]part, 0, len(p.Images)+1)
	parts = append(parts, part{Text: p.Instruction})
	for _, img := range p.Images {
		mime := img.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: mime,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			Temperature:      0.2,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", unavailable("encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), &buf)
	if err != nil {
		return "", unavailable("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", unavailable("gemini request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", &listing.Failure{
				Kind:   listing.FailRateLimited,
				Reason: "model API rate limit exceeded",
				Cause:  cause,
			}
		}
		return "", unavailable("model API error", cause)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", unavailable("decode response", err)
	}
	return extractText(out)
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
}

func extractText(resp generateResponse) (string, error) {
	if resp.PromptFeedback.BlockReason != "" {
		return "", refused("gemini blocked the prompt: " + resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", unavailable("gemini returned no candidates", nil)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
		return "", refused("gemini stopped for safety: " + cand.FinishReason)
	}
	for _, p := range cand.Content.Parts {
		if strings.TrimSpace(p.Text) != "" {
			return p.Text, nil
		}
	}
	return "", unavailable("gemini returned empty content", nil)
}

func refused(detail string) *listing.Failure {
	return &listing.Failure{
		Kind:   listing.FailModelRefused,
		Reason: "model declined to generate a listing",
		Cause:  errors.New(detail),
	}
}

func unavailable(reason string, cause error) *listing.Failure {
	return &listing.Failure{
		Kind:   listing.FailModelUnavailable,
		Reason: reason,
		Cause:  cause,
	}
}

var _ listing.Invoker = (*Client)(nil)
