package mapper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

// ClaudeProvider implements Provider using the Anthropic API. It handles the
// tax document types, whose prompts are short enough for a standard context
// window.
type ClaudeProvider struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

var _ Provider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "claude-haiku-3-5-20241022"
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	timeout := common.Duration(config.Timeout, 2*time.Minute)

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(config.Endpoint))
	}
	client := anthropic.NewClient(opts...)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude provider initialized")

	return &ClaudeProvider{
		config:    config,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

func (p *ClaudeProvider) ModelID() string {
	return p.config.Model
}

// Complete sends one extraction prompt and returns the completion text
func (p *ClaudeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.config.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	resp, err := p.client.Messages.New(timeoutCtx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewProcessError(models.ErrKindCancelled, "mapper.claude", ctx.Err())
		}
		kind := models.ErrKindUpstreamPermanent
		if IsTransientError(err) {
			kind = models.ErrKindUpstreamTransient
		}
		return "", models.NewProcessError(kind, "mapper.claude", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", models.NewProcessError(models.ErrKindUpstreamPermanent, "mapper.claude",
			fmt.Errorf("no response generated"))
	}

	p.logger.Debug().
		Int("response_length", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude completion finished")

	return response.String(), nil
}
