package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/ai"
	"github.com/spigell/h1b-finder/internal/ai/gemini"
	"github.com/spigell/h1b-finder/internal/ai/openai"
	"github.com/spigell/h1b-finder/internal/dates"
	"github.com/spigell/h1b-finder/internal/eligibility"
	"github.com/spigell/h1b-finder/internal/posting"
	"github.com/spigell/h1b-finder/internal/profile"
	"github.com/spigell/h1b-finder/internal/secrets"
	"github.com/spigell/h1b-finder/internal/sources"
	"github.com/spigell/h1b-finder/internal/sponsorship"
)

// Keychain entries used by `secret set` and as the last fallback for every key.
const (
	keyringRapidAPI = "rapidapi-key"
	keyringAdzuna   = "adzuna-app-key"
	keyringGemini   = "gemini-api-key"
	keyringOpenAI   = "openai-api-key"
)

var keyringEntries = []string{keyringRapidAPI, keyringAdzuna, keyringGemini, keyringOpenAI}

// collaborators are built once per command and shared by every posting.
type collaborators struct {
	profile    *profile.Profile
	scorer     *sponsorship.Scorer
	classifier ai.Classifier
	judge      ai.Judge
	writer     ai.Writer
}

func buildCollaborators(ctx context.Context, config *Config, logger *zap.Logger) (*collaborators, error) {
	prof, err := profile.Load(config.Profile.Path, config.Profile.Chunk)
	if err != nil {
		return nil, fmt.Errorf("loading candidate profile: %w", err)
	}
	logger.Info("candidate profile loaded",
		zap.String("path", prof.Path),
		zap.Int("chunks", len(prof.Chunks)),
	)

	scorer, err := buildScorer(config)
	if err != nil {
		return nil, err
	}
	logger.Info("sponsor registry loaded",
		zap.String("path", config.Sponsorship.RegistryFile),
		zap.Int("sponsors", scorer.Registry().Len()),
	)

	c := &collaborators{profile: prof, scorer: scorer}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping AI provider", zap.Error(err))
	}

	if generator == nil {
		judge, err := profile.NewKeywordJudge(prof, config.Profile.KeywordScale)
		if err != nil {
			return nil, err
		}
		c.judge = judge
		logger.Warn("no AI provider configured",
			zap.String("judge", "keyword overlap"),
			zap.String("hint", "set GEMINI_API_KEY or OPENAI_API_KEY to enable the classifier and artifacts"),
		)
		return c, nil
	}

	c.classifier = ai.NewClassifier(generator, logger, config.AI.MaxLogLength)
	c.judge = ai.NewJudge(generator, logger, config.AI.MaxLogLength)
	c.writer = ai.NewWriter(generator, logger)

	return c, nil
}

func buildScorer(config *Config) (*sponsorship.Scorer, error) {
	registry, err := sponsorship.LoadRegistry(config.Sponsorship.RegistryFile)
	if err != nil {
		return nil, fmt.Errorf("loading sponsor registry: %w", err)
	}
	return sponsorship.NewScorer(registry, config.Sponsorship.Config), nil
}

func buildEligibility(config *Config, classifier ai.Classifier, logger *zap.Logger) (*eligibility.Filter, error) {
	var rules *eligibility.Rules
	if len(config.Filter.Patterns) > 0 {
		compiled, err := eligibility.CompileRules(config.Filter.Patterns)
		if err != nil {
			return nil, fmt.Errorf("compiling exclusion patterns: %w", err)
		}
		rules = compiled
	}

	if config.Filter.UseClassifier && classifier == nil {
		logger.Warn("semantic eligibility stage disabled", zap.String("reason", "no AI provider"))
	}

	return eligibility.New(eligibility.Config{
		Rules:         rules,
		UseClassifier: config.Filter.UseClassifier,
	}, classifier, logger.With(zap.String("component", "eligibility"))), nil
}

// newGenerator returns nil without error when AI is switched off or no key is available.
func newGenerator(ctx context.Context, config *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(config.Provider))

	switch provider {
	case "none", "off":
		return nil, nil
	case "gemini":
		return newGemini(ctx, config.Gemini, logger)
	case "openai":
		return newOpenAI(config.OpenAI, logger)
	case "":
		if gen, err := newGemini(ctx, config.Gemini, logger); err == nil {
			return gen, nil
		}
		if gen, err := newOpenAI(config.OpenAI, logger); err == nil {
			return gen, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}
}

func newGemini(ctx context.Context, config *GeminiConfig, logger *zap.Logger) (ai.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:    "gemini api key",
		Value:   config.APIKey,
		File:    config.APIKeyFile,
		Keyring: &secrets.Keyring{User: keyringGemini},
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Model, config.MaxRetries,
		logger.With(zap.Int("ai_retry_attempts", config.MaxRetries)))
	if err != nil {
		return nil, err
	}
	if config.Temperature > 0 {
		generator.WithTemperature(config.Temperature)
	}
	return generator, nil
}

func newOpenAI(config *OpenAIConfig, logger *zap.Logger) (ai.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:    "openai api key",
		Value:   config.APIKey,
		File:    config.APIKeyFile,
		Keyring: &secrets.Keyring{User: keyringOpenAI},
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
	}

	generator, err := openai.NewGenerator(openai.Config{
		APIKey:      apiKey,
		Model:       config.Model,
		BaseURL:     config.BaseURL,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
	}, logger)
	if err != nil {
		return nil, err
	}
	return generator, nil
}

// buildFetchers returns the sources that can run. Sources without credentials are skipped with a
// warning.
func buildFetchers(config *Config, normalizer *dates.Normalizer, logger *zap.Logger) []sources.Fetcher {
	client := sources.NewClient(
		sources.NewHostLimiter(config.Sources.RatePerSecond, config.Sources.Burst),
		logger.With(zap.String("component", "http")),
	)
	if ua := strings.TrimSpace(config.Sources.UserAgent); ua != "" {
		client.UserAgent = ua
	}

	names := make([]string, 0, len(config.Search.Sources)+1)
	for _, n := range config.Search.Sources {
		names = append(names, strings.ToLower(strings.TrimSpace(n)))
	}
	if strings.TrimSpace(config.Sources.File) != "" && !slices.Contains(names, string(posting.SourceFile)) {
		names = append(names, string(posting.SourceFile))
	}

	var fetchers []sources.Fetcher
	for _, name := range names {
		fetcher, err := buildFetcher(name, config, client, normalizer, logger)
		if err != nil {
			logger.Warn("skipping source", zap.String("source", name), zap.Error(err))
			continue
		}
		fetchers = append(fetchers, fetcher)
	}
	return fetchers
}

func buildFetcher(name string, config *Config, client *sources.Client, normalizer *dates.Normalizer, logger *zap.Logger) (sources.Fetcher, error) {
	switch posting.Source(name) {
	case posting.SourceJSearch:
		key, err := secrets.Load(secrets.Source{
			Name:    "rapidapi key",
			Value:   config.Sources.JSearch.APIKey,
			File:    config.Sources.JSearch.APIKeyFile,
			Keyring: &secrets.Keyring{User: keyringRapidAPI},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sources.ErrMissingCredentials, err)
		}
		return sources.NewJSearch(client, key, normalizer, logger)
	case posting.SourceAdzuna:
		key, err := secrets.Load(secrets.Source{
			Name:    "adzuna app key",
			Value:   config.Sources.Adzuna.AppKey,
			File:    config.Sources.Adzuna.AppKeyFile,
			Keyring: &secrets.Keyring{User: keyringAdzuna},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sources.ErrMissingCredentials, err)
		}
		return sources.NewAdzuna(client, config.Sources.Adzuna.AppID, key, normalizer, logger)
	case posting.SourceIndeed:
		return sources.NewIndeed(client, normalizer, logger), nil
	case posting.SourceFile:
		if strings.TrimSpace(config.Sources.File) == "" {
			return nil, errors.New("sources.file is not set")
		}
		return sources.NewFile(config.Sources.File, normalizer, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}
