// Package openai streams completions from OpenAI-compatible endpoints,
// xAI's Grok API being the default.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	modelpkg "github.com/cexll/grokrelay/pkg/model"
)

// DefaultBaseURL is the xAI API root.
const DefaultBaseURL = "https://api.x.ai/v1"

const defaultName = "xai"

var _ modelpkg.Provider = (*Provider)(nil)

// Provider opens chat completion streams through the official OpenAI SDK.
type Provider struct {
	name   string
	client openaisdk.Client
}

// New builds a provider from cfg. BaseURL defaults to the xAI endpoint.
func New(cfg modelpkg.ProviderConfig, extra ...option.RequestOption) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = defaultName
	}
	return &Provider{name: name, client: openaisdk.NewClient(opts...)}, nil
}

// Factory adapts New to the provider registry.
func Factory(cfg modelpkg.ProviderConfig) (modelpkg.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string { return p.name }

// OpenStream starts a streaming chat completion. The request is sent lazily
// by the SDK; transport failures surface through the stream's Err.
func (p *Provider) OpenStream(ctx context.Context, conv *modelpkg.Conversation, cfg modelpkg.StreamConfig) (modelpkg.Stream, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model is required")
	}
	params, err := buildParams(conv, cfg)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	return newStream(p.client.Chat.Completions.NewStreaming(ctx, params)), nil
}
