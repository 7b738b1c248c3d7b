package mapper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

// GeminiProvider implements Provider using the Gemini API. Bank statements
// route here: a full statement with hundreds of transaction rows exceeds what
// the tax-document provider can hold in context.
type GeminiProvider struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *RetryConfig
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance
func NewGeminiProvider(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required (set via GEMINI_API_KEY or gemini.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "gemini-3-flash-preview"
	}
	timeout := common.Duration(config.Timeout, 2*time.Minute)

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.Endpoint != "" {
		clientConfig.HTTPOptions.BaseURL = config.Endpoint
	}
	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return &GeminiProvider{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
	}, nil
}

func (p *GeminiProvider) ModelID() string {
	return p.config.Model
}

// Complete sends one extraction prompt, riding out rate-limit windows with
// backoff before giving up.
func (p *GeminiProvider) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := p.retry.NextBackoff(attempt-1, lastErr)
			p.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("Gemini rate limited, backing off")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", models.NewProcessError(models.ErrKindCancelled, "mapper.gemini", ctx.Err())
			}
		}

		response, err := p.generate(ctx, system, user)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if models.KindOf(err) == models.ErrKindCancelled || !IsRateLimitError(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (p *GeminiProvider) generate(ctx context.Context, system, user string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.config.Temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(user)}},
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(timeoutCtx, p.config.Model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewProcessError(models.ErrKindCancelled, "mapper.gemini", ctx.Err())
		}
		kind := models.ErrKindUpstreamPermanent
		if IsTransientError(err) {
			kind = models.ErrKindUpstreamTransient
		}
		return "", models.NewProcessError(kind, "mapper.gemini", err)
	}

	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}
	if response.Len() == 0 {
		return "", models.NewProcessError(models.ErrKindUpstreamPermanent, "mapper.gemini",
			fmt.Errorf("no response generated"))
	}

	p.logger.Debug().
		Int("response_length", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Gemini completion finished")

	return response.String(), nil
}
