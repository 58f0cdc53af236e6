package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

const systemPrompt = "You are a professional crypto market analyst. You write detailed analyses grounded in the technical data you are given."

// ErrEmptyCompletion is returned when the API answers without choices.
var ErrEmptyCompletion = errors.New("openai returned empty choices")

// Client wraps the OpenAI API client
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      zerolog.Logger
}

// Options configures the client. BaseURL is only set in tests.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
}

// NewClient creates a new OpenAI client
func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		maxTokens:   opts.MaxTokens,
		logger:      log.With().Str("component", "openai_client").Logger(),
	}
}

// GenerateCompletion sends a prompt to OpenAI and returns the completion
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Int("prompt_len", len(prompt)).Msg("Sending prompt to OpenAI")

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)

	if err != nil {
		metrics.AIRequests.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", err
	}

	if len(resp.Choices) == 0 {
		metrics.AIRequests.WithLabelValues("empty").Inc()
		c.logger.Warn().Msg("OpenAI returned empty choices")
		return "", ErrEmptyCompletion
	}

	metrics.AIRequests.WithLabelValues("ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

// TechnicalSummary asks for a narrative analysis of a scored snapshot.
func (c *Client) TechnicalSummary(ctx context.Context, symbol, interval string, v models.SignalVerdict, mc analyze.MarketContext) (string, error) {
	prompt, err := FormatTechnicalPrompt(symbol, interval, v, mc)
	if err != nil {
		return "", err
	}
	return c.GenerateCompletion(ctx, prompt)
}

// FormatTechnicalPrompt creates the prompt for a technical summary
func FormatTechnicalPrompt(symbol, interval string, v models.SignalVerdict, mc analyze.MarketContext) (string, error) {
	indicators, err := json.MarshalIndent(v.Indicators, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding indicators: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Technical data for %s on the %s timeframe.\n\n", symbol, interval)
	fmt.Fprintf(&sb, "Rule-based signal: %s (score %+d)\n", v.Signal, v.Score)
	if len(v.Reasons) > 0 {
		fmt.Fprintf(&sb, "Triggered rules: %s\n", strings.Join(v.Reasons, ", "))
	}
	fmt.Fprintf(&sb, "Order flow: %s, volatility: %s, expected move (ATR5): %.8g\n", mc.Flow, mc.Volatility, mc.Expected)
	if mc.Regime.Type != "" {
		fmt.Fprintf(&sb, "Market regime: %s %s (strength %.2f, structure %s)\n",
			mc.Regime.Direction, mc.Regime.Type, mc.Regime.Strength, mc.Regime.PriceStructure)
	}
	if mc.Anomaly.IsAnomaly {
		fmt.Fprintf(&sb, "Anomaly on the last candle: %s (score %.2f). %s\n",
			mc.Anomaly.AnomalyType, mc.Anomaly.AnomalyScore, mc.Anomaly.Details)
	}
	sb.WriteString("\n")
	sb.WriteString("Indicators (VWAP is cumulative over the supplied window):\n")
	sb.Write(indicators)
	sb.WriteString(`

Write the analysis with these sections:
1. Trend and momentum
2. Support and resistance implied by the bands and moving averages
3. Risks
4. Short-term outlook (not financial advice)
`)

	return sb.String(), nil
}
