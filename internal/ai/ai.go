// Package ai generates content drafts for planned posts through an
// Anthropic-compatible messages endpoint. Every helper degrades
// gracefully; the board works fine when no key is configured.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"planboard/internal/model"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-sonnet-4-20250514"
	defaultTimeout = 60 * time.Second
)

// Client talks to the messages API.
type Client struct {
	baseURL string
	key     string
	model   string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }
func WithModel(m string) Option   { return func(c *Client) { c.model = m } }
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client. An empty key yields a disabled client;
// calls return ErrDisabled.
func NewClient(key string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		key:     key,
		model:   defaultModel,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "ai").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = fmt.Errorf("ai: no api key configured")

// Enabled reports whether the client can make calls.
func (c *Client) Enabled() bool { return c.key != "" }

// Idea is one repurposing suggestion for an existing post.
type Idea struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Platform    model.SocialPlatform `json:"platform"`
}

// GenerateScript drafts a script for the task's platform and topic.
func (c *Client) GenerateScript(ctx context.Context, t model.Task) (string, error) {
	prompt := fmt.Sprintf(
		"Write a short %s script for a post titled %q.", platformLabel(t.Platform), t.Title)
	if t.Description != "" {
		prompt += " Context: " + t.Description
	}
	prompt += " Reply with the script text only."
	return c.complete(ctx, prompt)
}

// GenerateSlides drafts n carousel slides on a topic.
func (c *Client) GenerateSlides(ctx context.Context, topic string, n int) ([]model.Slide, error) {
	if n <= 0 {
		n = 5
	}
	prompt := fmt.Sprintf(
		`Create %d carousel slides about %q. Reply with a JSON array only, each element {"title": "...", "text": "..."}.`,
		n, topic)
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var slides []model.Slide
	if err := decodeLoose(raw, &slides); err != nil {
		return nil, fmt.Errorf("ai: parse slides: %w", err)
	}
	return slides, nil
}

// Repurpose suggests adaptations of a post for other platforms.
func (c *Client) Repurpose(ctx context.Context, t model.Task) ([]Idea, error) {
	prompt := fmt.Sprintf(
		`Suggest 3 ways to repurpose the %s post %q for other platforms. Reply with a JSON array only, each element {"title": "...", "description": "...", "platform": "..."}; platform is one of instagram_reels, instagram_post, telegram, tiktok, youtube, threads.`,
		platformLabel(t.Platform), t.Title)
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var ideas []Idea
	if err := decodeLoose(raw, &ideas); err != nil {
		return nil, fmt.Errorf("ai: parse ideas: %w", err)
	}
	return ideas, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.key)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ai: read response: %w", err)
	}

	var out messagesResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("ai: %s: %s", out.Error.Type, out.Error.Message)
		}
		return "", fmt.Errorf("ai: unexpected status %d", resp.StatusCode)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("ai: empty completion")
}

// decodeLoose parses JSON out of a completion that may be wrapped in a
// code fence or surrounded by prose.
func decodeLoose(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexAny(s, "[{")
	end := strings.LastIndexAny(s, "]}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON payload in completion")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func platformLabel(p model.SocialPlatform) string {
	switch p {
	case model.PlatformInstagramReels:
		return "Instagram Reels"
	case model.PlatformInstagramPost:
		return "Instagram carousel"
	case model.PlatformTelegram:
		return "Telegram"
	case model.PlatformTikTok:
		return "TikTok"
	case model.PlatformYouTube:
		return "YouTube"
	case model.PlatformThreads:
		return "Threads"
	default:
		return "social media"
	}
}
