// Package tools provides the LLM client used by the advisory pass. The
// client is a thin completion interface over the OpenAI, Anthropic, and
// Ollama HTTP APIs; provider selection and credentials come from the
// environment (see FromEnv).
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Config selects and tunes an LLM provider.
type Config struct {
	Provider    string // "openai", "anthropic", "ollama"
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RetryPolicy RetryPolicy
}

// RetryPolicy retries failed calls with linear backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Client is the completion surface the advisor consumes.
type Client interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
}

var defaults = map[string]Config{
	"openai": {
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		BaseURL:     "https://api.openai.com/v1",
		MaxTokens:   1024,
		Temperature: 0.2,
		Timeout:     60 * time.Second,
	},
	"anthropic": {
		Provider:    "anthropic",
		Model:       "claude-sonnet-4-20250514",
		BaseURL:     "https://api.anthropic.com/v1",
		MaxTokens:   1024,
		Temperature: 0.2,
		Timeout:     60 * time.Second,
	},
	"ollama": {
		Provider:    "ollama",
		Model:       "llama3.2",
		BaseURL:     "http://localhost:11434",
		MaxTokens:   1024,
		Temperature: 0.2,
		Timeout:     120 * time.Second,
	},
}

// Defaults returns the baseline config for a provider name.
func Defaults(provider string) (Config, bool) {
	c, ok := defaults[provider]
	return c, ok
}

type llmClient struct {
	config Config
	client *http.Client
}

// New builds a Client for the configured provider. LLM APIs respond
// slowly, so the transport keeps connections warm and waits generously
// for response headers.
func New(config Config) Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
	}
	return &llmClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// Complete sends one prompt and returns the model's text reply. Failed
// calls are retried with linear backoff until the policy or the context
// runs out.
func (c *llmClient) Complete(ctx context.Context, prompt, system string) (string, error) {
	maxRetries := c.config.RetryPolicy.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var content string
	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.config.RetryPolicy.Backoff * time.Duration(i)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		switch c.config.Provider {
		case "openai":
			content, err = c.callOpenAI(ctx, prompt, system)
		case "anthropic":
			content, err = c.callAnthropic(ctx, prompt, system)
		case "ollama":
			content, err = c.callOllama(ctx, prompt, system)
		default:
			return "", fmt.Errorf("unknown provider: %s", c.config.Provider)
		}
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", err
}

func (c *llmClient) callOpenAI(ctx context.Context, prompt, system string) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body, _ := json.Marshal(map[string]any{
		"model":       c.config.Model,
		"messages":    messages,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *llmClient) callAnthropic(ctx context.Context, prompt, system string) (string, error) {
	payload := map[string]any{
		"model":      c.config.Model,
		"max_tokens": c.config.MaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if system != "" {
		payload["system"] = system
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	content := ""
	for _, block := range out.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

func (c *llmClient) callOllama(ctx context.Context, prompt, system string) (string, error) {
	payload := map[string]any{
		"model":  c.config.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.config.Temperature,
			"num_predict": c.config.MaxTokens,
		},
	}
	if system != "" {
		payload["system"] = system
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Response, nil
}
