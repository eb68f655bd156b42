package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Completion is a fully resolved provider call.
type Completion struct {
	Prompt    string
	Model     string
	APIKey    string
	MaxTokens int
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	DefaultModel() string
	CredentialEnv() string
	Complete(ctx context.Context, c Completion) (string, error)
}

// defaultTemperature is sent by providers whose APIs accept one.
const defaultTemperature = 0.7

// maxErrorBody limits how much of an error response ends up in messages.
const maxErrorBody = 512

// anthropicProvider calls the Anthropic Messages API.
type anthropicProvider struct {
	client  *http.Client
	baseURL string
}

func newAnthropic(client *http.Client, baseURL string) *anthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &anthropicProvider{client: client, baseURL: baseURL}
}

func (p *anthropicProvider) Name() string          { return ProviderAnthropic }
func (p *anthropicProvider) DefaultModel() string  { return "claude-3-5-sonnet-20241022" }
func (p *anthropicProvider) CredentialEnv() string { return "ANTHROPIC_API_KEY" }

func (p *anthropicProvider) Complete(ctx context.Context, c Completion) (string, error) {
	payload := map[string]any{
		"model":      c.Model,
		"max_tokens": c.MaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": c.Prompt},
		},
	}
	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := postJSON(ctx, p.client, "Anthropic", p.baseURL+"/v1/messages", headers, payload, &result); err != nil {
		return "", err
	}

	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no summary returned")
}

// openAIProvider calls the OpenAI Chat Completions API.
type openAIProvider struct {
	client  *http.Client
	baseURL string
}

func newOpenAI(client *http.Client, baseURL string) *openAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &openAIProvider{client: client, baseURL: baseURL}
}

func (p *openAIProvider) Name() string          { return ProviderOpenAI }
func (p *openAIProvider) DefaultModel() string  { return "gpt-4o-mini" }
func (p *openAIProvider) CredentialEnv() string { return "OPENAI_API_KEY" }

func (p *openAIProvider) Complete(ctx context.Context, c Completion) (string, error) {
	payload := map[string]any{
		"model":       c.Model,
		"max_tokens":  c.MaxTokens,
		"temperature": defaultTemperature,
		"messages": []map[string]string{
			{"role": "user", "content": c.Prompt},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, p.client, "OpenAI", p.baseURL+"/v1/chat/completions", headers, payload, &result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no summary returned")
	}
	return result.Choices[0].Message.Content, nil
}

// geminiProvider calls the Gemini generateContent API.
type geminiProvider struct {
	client  *http.Client
	baseURL string
}

func newGemini(client *http.Client, baseURL string) *geminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &geminiProvider{client: client, baseURL: baseURL}
}

func (p *geminiProvider) Name() string          { return ProviderGemini }
func (p *geminiProvider) DefaultModel() string  { return "gemini-2.5-flash" }
func (p *geminiProvider) CredentialEnv() string { return "GEMINI_API_KEY" }

func (p *geminiProvider) Complete(ctx context.Context, c Completion) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": c.Prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": c.MaxTokens,
			"temperature":     defaultTemperature,
		},
	}
	headers := map[string]string{
		"x-goog-api-key": c.APIKey,
	}
	endpoint := p.baseURL + "/v1beta/models/" + url.PathEscape(c.Model) + ":generateContent"

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := postJSON(ctx, p.client, "Gemini", endpoint, headers, payload, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no summary returned")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no summary returned")
	}
	return sb.String(), nil
}

// postJSON sends payload as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, api, endpoint string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", api, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s API error (%d): %s", api, resp.StatusCode, apiErrorMessage(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// apiErrorMessage pulls error.message out of a provider error body,
// falling back to the raw (shortened) body.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
