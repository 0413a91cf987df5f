package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recipe-resolver/internal/core/ai/provider"
	"recipe-resolver/internal/infrastructure/config"

	genai "google.golang.org/genai"
)

const defaultTimeout = 60 * time.Second

// Client Gemini 提供者，包裝官方 genai 客戶端
type Client struct {
	cli     *genai.Client
	model   string
	maxTok  int32
	timeout time.Duration
}

// NewClient 建立 Gemini 客戶端
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cli:     cli,
		model:   cfg.Model,
		maxTok:  int32(cfg.MaxTokens),
		timeout: timeout,
	}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) GetModel() string { return c.model }

func (c *Client) GetTimeout() time.Duration { return c.timeout }

// Generate 將訊息串成單一提示並要求 JSON 輸出
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{}
	if req.JSONMode {
		genCfg.ResponseMIMEType = "application/json"
	}
	if maxTok := int32(req.MaxTokens); maxTok > 0 {
		genCfg.MaxOutputTokens = maxTok
	} else if c.maxTok > 0 {
		genCfg.MaxOutputTokens = c.maxTok
	}

	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(req.Text(), genai.RoleUser)},
		genCfg,
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, provider.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, provider.ErrEmptyResponse
	}

	out := &provider.Response{Content: sb.String()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = provider.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *Client) Close() error { return nil }
