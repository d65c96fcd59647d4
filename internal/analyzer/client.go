package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/metrics"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
)

// Analyzer sends one prompt to the classification service and returns the raw
// message content. Whether that content is valid JSON is the caller's concern.
type Analyzer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Provider selects the wire dialect of the chat completion endpoint.
type Provider string

const (
	// ProviderAzure targets Azure OpenAI deployments (api-key header, api-version query).
	ProviderAzure Provider = "azure"
	// ProviderOpenAI targets OpenAI-compatible endpoints such as OpenRouter (bearer token, model field).
	ProviderOpenAI Provider = "openai"
)

type Config struct {
	Provider   Provider
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

type chatClient struct {
	cfg    Config
	url    string
	logger *utils.Logger
	client *http.Client
}

type ChatRequest struct {
	Model          string            `json:"model,omitempty"`
	Messages       []Message         `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

type Choice struct {
	Message Message `json:"message"`
}

// StatusError is a non-success response from the classification service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classification service returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func NewChatClient(cfg Config, logger *utils.Logger) Analyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderAzure
	}
	return &chatClient{
		cfg:    cfg,
		url:    completionURL(cfg),
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func completionURL(cfg Config) string {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.Provider == ProviderOpenAI {
		if strings.HasSuffix(endpoint, "/chat/completions") {
			return endpoint
		}
		return endpoint + "/chat/completions"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		endpoint, url.PathEscape(cfg.Deployment), url.QueryEscape(cfg.APIVersion))
}

func (c *chatClient) Complete(ctx context.Context, prompt Prompt) (content string, err error) {
	defer func() { metrics.ExternalCall("classifier", err) }()

	reqBody := ChatRequest{
		Messages: []Message{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	}
	if prompt.JSONMode {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}
	if c.cfg.Provider == ProviderOpenAI {
		reqBody.Model = c.cfg.Deployment
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Provider == ProviderOpenAI {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Classification API error", "status", resp.StatusCode, "body", truncate(string(body), 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("classification API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}
