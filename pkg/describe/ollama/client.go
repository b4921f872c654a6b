// Package ollama is a minimal HTTP client for a local or remote Ollama server,
// covering the chat (vision), generate, and tags endpoints this module uses.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultHost is used when no host is configured.
const DefaultHost = "http://localhost:11434"

// Config configures a Client.
type Config struct {
	// Host is the Ollama server base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the vision model to chat with, e.g. "llama3.2-vision".
	Model string
	// GenerateModel is the text model used for plain completions. Defaults to
	// Model when empty.
	GenerateModel string
	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration
}

// Client talks to one Ollama server.
type Client struct {
	baseURL       *url.URL
	model         string
	generateModel string
	http          *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ollama host must include a host (got %q)", cfg.Host)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	genModel := strings.TrimSpace(cfg.GenerateModel)
	if genModel == "" {
		genModel = model
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:       u,
		model:         model,
		generateModel: genModel,
		http:          &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// DescribeImage sends the image and prompt to the chat endpoint and returns
// the model's description.
func (c *Client) DescribeImage(ctx context.Context, imagePath, prompt string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(data)},
		}},
		Stream: false,
	}

	var out chatResponse
	if err := c.post(ctx, "chat", "/api/chat", reqBody, &out); err != nil {
		return "", err
	}
	desc := strings.TrimSpace(out.Message.Content)
	if desc == "" {
		return "", fmt.Errorf("ollama chat returned an empty description")
	}
	return desc, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs a plain text completion against the generate endpoint.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  c.generateModel,
		Prompt: prompt,
		Stream: false,
	}

	var out generateResponse
	if err := c.post(ctx, "generate", "/api/generate", reqBody, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("ollama generate returned an empty response")
	}
	return text, nil
}

// Ping checks that the server is reachable. It lets callers fail fast with a
// clear message instead of burning retry attempts against a host that is down.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/api/tags"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama server at %s is not reachable: %w", c.baseURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return newHTTPError("tags", resp, b)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return newHTTPError(op, resp, b)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	return c.baseURL.String() + path
}
