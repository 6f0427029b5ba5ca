package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"miniarima/internal/domain"
)

// TimeoutClass selects the fixed deadline applied to one provider round
// trip. Interactive calls get generous budgets; health probes are kept
// short so a sweep finishes quickly.
type TimeoutClass int

const (
	TimeoutChat TimeoutClass = iota
	TimeoutImage
	TimeoutProbeChat
	TimeoutProbeImage
)

// Duration returns the wall-clock budget for the class.
func (c TimeoutClass) Duration() time.Duration {
	switch c {
	case TimeoutImage:
		return 180 * time.Second
	case TimeoutProbeChat:
		return 20 * time.Second
	case TimeoutProbeImage:
		return 45 * time.Second
	default:
		return 120 * time.Second
	}
}

func (c TimeoutClass) probe() bool {
	return c == TimeoutProbeChat || c == TimeoutProbeImage
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to an OpenAI-compatible HTTP endpoint. It is safe for
// concurrent use; each call is an independent round trip with its own
// deadline.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient validates options and builds a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("provider api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		// Per-call deadlines come from the timeout class, not the client.
		client = &http.Client{}
	}
	return &Client{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteChat submits the conversation to one model and returns its text.
// Zero choices or missing content are reported as a successful empty
// response; callers must handle empty text explicitly.
func (c *Client) CompleteChat(ctx context.Context, model string, messages []Message, temperature float64, class TimeoutClass) (string, error) {
	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
	if class.probe() {
		payload.MaxTokens = 10
	}

	body, err := c.post(ctx, "/chat/completions", payload, class, model)
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat response from %s: %w", model, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *out.Choices[0].Message.Content, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	N              int    `json:"n,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage renders one or more images and returns their references
// (URLs). An empty data list is a successful empty response.
func (c *Client) GenerateImage(ctx context.Context, model, prompt string, width, height int, format string, class TimeoutClass) ([]string, error) {
	payload := imageRequest{
		Model:          model,
		Prompt:         prompt,
		Width:          width,
		Height:         height,
		ResponseFormat: format,
	}
	if class.probe() {
		payload.N = 1
	}

	body, err := c.post(ctx, "/images/generations", payload, class, model)
	if err != nil {
		return nil, err
	}

	var out imageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode image response from %s: %w", model, err)
	}
	urls := make([]string, 0, len(out.Data))
	for _, d := range out.Data {
		urls = append(urls, d.URL)
	}
	return urls, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, class TimeoutClass, model string) ([]byte, error) {
	start := time.Now()
	callID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, class.Duration())
	defer cancel()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", callID)

	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn().Str("model", model).Str("call_id", callID).
				Dur("elapsed", elapsed).Msg("provider call timed out")
			return nil, fmt.Errorf("%s: %w", model, domain.ErrUpstreamTimeout)
		}
		c.logger.Warn().Err(err).Str("model", model).Str("call_id", callID).
			Dur("elapsed", elapsed).Msg("provider call failed")
		return nil, fmt.Errorf("call %s: %w", model, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", model, err)
	}
	if resp.StatusCode >= 300 {
		c.logger.Warn().Str("model", model).Str("call_id", callID).Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).Msg("provider returned non-success status")
		return nil, fmt.Errorf("%s: %w", model, &domain.UpstreamError{Code: resp.StatusCode, Body: string(body)})
	}

	c.logger.Debug().Str("model", model).Str("call_id", callID).
		Dur("elapsed", elapsed).Msg("provider call completed")
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
