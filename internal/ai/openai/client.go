// Package openai adapts OpenAI-compatible chat models (via langchaingo) to ai.Generator.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/logger"
)

const defaultModel = "gpt-4o-mini"

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

type Generator struct {
	llm    llms.Model
	model  string
	opts   []llms.CallOption
	logger *zap.Logger
}

func NewGenerator(cfg Config, log *zap.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	options := []lcopenai.Option{
		lcopenai.WithToken(strings.TrimSpace(cfg.APIKey)),
		lcopenai.WithModel(model),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		options = append(options, lcopenai.WithBaseURL(base))
	}

	llm, err := lcopenai.New(options...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}

	return newGenerator(llm, model, cfg, log), nil
}

func newGenerator(llm llms.Model, model string, cfg Config, log *zap.Logger) *Generator {
	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}

	return &Generator{
		llm:    llm,
		model:  model,
		opts:   opts,
		logger: logger.WithCommonFields(log, "openai", model),
	}
}

func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	messages := make([]llms.MessageContent, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	resp, err := g.llm.GenerateContent(ctx, messages, g.opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}

	output := strings.TrimSpace(resp.Choices[0].Content)
	if output == "" {
		return "", errors.New("openai returned empty response")
	}

	g.logger.Debug("openai response received", zap.Int("response_length", len(output)))
	return output, nil
}

func (g *Generator) Model() string { return g.model }
