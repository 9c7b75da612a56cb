package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPProviderConfig configures the OpenAI-compatible chat completion
// client.
type HTTPProviderConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"-"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPProvider talks to any OpenAI-compatible /chat/completions endpoint.
// It is the one concrete Provider shipped with the engine; anything else
// plugs in behind the Provider interface.
type HTTPProvider struct {
	config HTTPProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPProvider creates the client. A nil logger disables logging.
func NewHTTPProvider(config HTTPProviderConfig, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPProvider{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "http_provider")),
	}
}

func (p *HTTPProvider) Name() string { return "openai_compatible" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *HTTPProvider) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", &Error{Code: ErrRejected, Message: "failed to encode request", Provider: p.Name(), Cause: err}
	}

	url := p.config.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Code: ErrRejected, Message: "failed to build request", Provider: p.Name(), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Code: ErrTimeout, Message: "completion request timed out", Provider: p.Name(), Retryable: true, Cause: err}
		}
		return "", &Error{Code: ErrRejected, Message: "completion request failed", Provider: p.Name(), Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Code: ErrRejected, Message: "failed to read response", Provider: p.Name(), Retryable: true, Cause: err}
	}

	p.logger.Debug("completion finished",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{Code: ErrRateLimited, Message: "provider throttled the request", Provider: p.Name(), Retryable: true}
	case resp.StatusCode >= 500:
		return "", &Error{Code: ErrRejected, Message: fmt.Sprintf("provider returned status %d", resp.StatusCode), Provider: p.Name(), Retryable: true}
	case resp.StatusCode >= 400:
		return "", &Error{Code: ErrRejected, Message: fmt.Sprintf("provider rejected the request with status %d", resp.StatusCode), Provider: p.Name()}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Code: ErrRejected, Message: "failed to decode response", Provider: p.Name(), Cause: err}
	}
	if parsed.Error != nil {
		return "", &Error{Code: ErrRejected, Message: parsed.Error.Message, Provider: p.Name()}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &Error{Code: ErrEmptyOutput, Message: "provider returned no choices", Provider: p.Name()}
	}
	return parsed.Choices[0].Message.Content, nil
}
