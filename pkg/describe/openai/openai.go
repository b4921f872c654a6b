// Package openai implements the Describer capability on top of the OpenAI
// chat completions API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/MDGrey33/visionai/pkg/retry"
)

// DefaultModel is the vision model used when none is configured.
const DefaultModel = "gpt-4o"

// Config configures a Client.
type Config struct {
	APIKey string
	// Model is the chat model, e.g. "gpt-4o".
	Model string
	// BaseURL overrides the API base URL. This also makes the client usable
	// against any OpenAI-compatible server.
	BaseURL string
	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration

	MaxTokens int
}

// Client describes images and generates text through the OpenAI API.
type Client struct {
	api       *gopenai.Client
	model     string
	maxTokens int
}

// NewClient constructs a Client. The API key is required; no network activity
// happens here.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	cc := gopenai.DefaultConfig(key)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	return &Client{
		api:       gopenai.NewClientWithConfig(cc),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// DescribeImage sends the image inline as a data URL with the prompt.
func (c *Client) DescribeImage(ctx context.Context, imagePath, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeForPath(imagePath), base64.StdEncoding.EncodeToString(data))

	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []gopenai.ChatCompletionMessage{{
			Role: gopenai.ChatMessageRoleUser,
			MultiContent: []gopenai.ChatMessagePart{
				{Type: gopenai.ChatMessagePartTypeText, Text: prompt},
				{Type: gopenai.ChatMessagePartTypeImageURL, ImageURL: &gopenai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return "", wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	desc := strings.TrimSpace(resp.Choices[0].Message.Content)
	if desc == "" {
		return "", fmt.Errorf("openai returned an empty description")
	}
	return desc, nil
}

// Generate runs a plain text completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 4000,
		Messages: []gopenai.ChatCompletionMessage{{
			Role:    gopenai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// wrapErr tags SDK errors that carry an HTTP status so the retry classifier
// sees the structured code instead of falling back to message matching.
func wrapErr(err error) error {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &retry.StatusError{Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &retry.StatusError{Code: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}

func mimeForPath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
