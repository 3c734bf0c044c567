// Package anthropic streams completions from the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	modelpkg "github.com/cexll/grokrelay/pkg/model"
)

const (
	defaultName      = "anthropic"
	defaultMaxTokens = 4096
)

var _ modelpkg.Provider = (*Provider)(nil)

// messagesService is the slice of the SDK the provider depends on.
type messagesService interface {
	NewStreaming(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropicsdk.MessageStreamEventUnion]
}

// Provider opens Messages API streams.
type Provider struct {
	name string
	msgs messagesService
}

// New builds a provider from cfg.
func New(cfg modelpkg.ProviderConfig, extra ...option.RequestOption) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)
	client := anthropicsdk.NewClient(opts...)
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = defaultName
	}
	return &Provider{name: name, msgs: &client.Messages}, nil
}

// Factory adapts New to the provider registry.
func Factory(cfg modelpkg.ProviderConfig) (modelpkg.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string { return p.name }

// OpenStream starts a Messages stream for conv.
func (p *Provider) OpenStream(ctx context.Context, conv *modelpkg.Conversation, cfg modelpkg.StreamConfig) (modelpkg.Stream, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("anthropic: model is required")
	}
	params, err := buildParams(conv, cfg)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	sdk := p.msgs.NewStreaming(ctx, params)
	if sdk == nil {
		return nil, errors.New("anthropic: stream unavailable")
	}
	return newStream(sdk), nil
}
