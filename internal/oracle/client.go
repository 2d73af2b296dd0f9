// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 180 * time.Second
)

// Client calls an OpenRouter-compatible chat completions API. It performs
// a single attempt per call; retry policy belongs to the batch executor.
type Client struct {
	cfg    types.OracleConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a Client from config, applying defaults for the base
// URL and timeout.
func NewClient(cfg types.OracleConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate sends one chat completion request and returns the completion
// text. Failures are classified into the oracle error taxonomy.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Kind: KindMalformed, Msg: "encoding request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindOther, Msg: "building request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		kind := KindOther
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			kind = KindTimeout
		}
		return "", &Error{Kind: kind, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindOther, Msg: "reading response", Err: err}
	}

	c.logger.Debug("oracle call",
		zap.String("task", req.TaskType),
		zap.String("model", c.cfg.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Msg: "decoding response", Err: err}
	}
	if parsed.Error != nil {
		return "", &Error{Kind: KindOther, Status: resp.StatusCode, Msg: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Msg: "response has no choices"}
	}

	choice := parsed.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", &Error{Kind: KindRefusal, Status: resp.StatusCode, Msg: "completion refused by content filter"}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Msg: "empty completion"}
	}
	return choice.Message.Content, nil
}

// classifyStatus maps a non-200 status into the error taxonomy.
func classifyStatus(status int, body []byte) *Error {
	msg := fmt.Sprintf("HTTP %d", status)
	if len(body) > 0 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		msg = fmt.Sprintf("HTTP %d: %s", status, snippet)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Status: status, Msg: msg}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Status: status, Msg: msg}
	case status == http.StatusForbidden || status == http.StatusUnprocessableEntity:
		// Policy refusals surface as 403/422 on OpenRouter.
		return &Error{Kind: KindRefusal, Status: status, Msg: msg}
	case status >= 500:
		return &Error{Kind: KindOther, Status: status, Msg: msg}
	default:
		return &Error{Kind: KindMalformed, Status: status, Msg: msg}
	}
}
