package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/h1b-finder/internal/pipeline"
	"github.com/spigell/h1b-finder/internal/profile"
	"github.com/spigell/h1b-finder/internal/sponsorship"
)

const (
	app       = "h1b-finder"
	envPrefix = "H1B"
)

type Config struct {
	Search      *SearchConfig      `mapstructure:"search"`
	Sources     *SourcesConfig     `mapstructure:"sources"`
	Filter      *FilterConfig      `mapstructure:"filter"`
	ExcludeFile string             `mapstructure:"exclude-file"`
	Sponsorship *SponsorshipConfig `mapstructure:"sponsorship"`
	Profile     *ProfileConfig     `mapstructure:"profile"`
	Pipeline    pipeline.Config    `mapstructure:"pipeline"`
	Report      *ReportConfig      `mapstructure:"report"`
	AI          *AIConfig          `mapstructure:"ai"`
}

type SearchConfig struct {
	// Keywords may hold a comma separated list; each entry is searched on every source.
	Keywords string   `mapstructure:"keywords"`
	Location string   `mapstructure:"location"`
	Pages    int      `mapstructure:"pages"`
	Window   string   `mapstructure:"date-window"`
	Sources  []string `mapstructure:"sources"`
}

type SourcesConfig struct {
	UserAgent     string         `mapstructure:"user-agent"`
	RatePerSecond float64        `mapstructure:"rate-per-second"`
	Burst         int            `mapstructure:"burst"`
	JSearch       *JSearchConfig `mapstructure:"jsearch"`
	Adzuna        *AdzunaConfig  `mapstructure:"adzuna"`
	File          string         `mapstructure:"file"`
}

type JSearchConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type AdzunaConfig struct {
	AppID      string `mapstructure:"app-id"`
	AppKey     string `mapstructure:"app-key"`
	AppKeyFile string `mapstructure:"app-key-file"`
}

type FilterConfig struct {
	// Patterns replaces the built-in exclusion list when set. Order is significant.
	Patterns         []string `mapstructure:"patterns"`
	UseClassifier    bool     `mapstructure:"use-classifier"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
}

type SponsorshipConfig struct {
	RegistryFile string `mapstructure:"registry-file"`

	sponsorship.Config `mapstructure:",squash"`
}

type ProfileConfig struct {
	Path  string              `mapstructure:"path"`
	Chunk profile.ChunkConfig `mapstructure:"chunk"`
	// KeywordScale stretches the offline keyword judge score.
	KeywordScale float64 `mapstructure:"keyword-scale"`
}

type ReportConfig struct {
	Path string `mapstructure:"path"`
}

type AIConfig struct {
	// Provider is gemini, openai or none. Empty picks the first provider with a key.
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api-key"`
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Model       string  `mapstructure:"model"`
	MaxRetries  int     `mapstructure:"max-retries"`
	Temperature float32 `mapstructure:"temperature"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api-key"`
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base-url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max-tokens"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "h1b-finder searches job boards for postings open to visa-sponsored candidates and ranks them against your résumé",
	}
)

// envBindings are the well-known variable names for provider credentials.
var envBindings = map[string]string{
	"sources.jsearch.api-key": "RAPIDAPI_KEY",
	"sources.adzuna.app-id":   "ADZUNA_APP_ID",
	"sources.adzuna.app-key":  "ADZUNA_APP_KEY",
	"ai.gemini.api-key":       "GEMINI_API_KEY",
	"ai.openai.api-key":       "OPENAI_API_KEY",
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is h1b-finder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.pages", 1)
	v.SetDefault("search.date-window", "7d")
	v.SetDefault("search.sources", []string{"jsearch", "adzuna", "indeed"})
	v.SetDefault("sources.rate-per-second", 1.0)
	v.SetDefault("sources.burst", 1)
	v.SetDefault("filter.use-classifier", true)
	v.SetDefault("sponsorship.registry-file", "h1b_sponsors.txt")
	v.SetDefault("profile.keyword-scale", 2.0)
	v.SetDefault("pipeline.sponsorship-threshold", pipeline.DefaultSponsorshipThreshold)
	v.SetDefault("pipeline.match-threshold", pipeline.DefaultMatchThreshold)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.generate-resume", true)
	v.SetDefault("pipeline.generate-gap-plan", true)
	v.SetDefault("pipeline.output-dir", "output")
	v.SetDefault("report.path", "output/h1b_report.csv")
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.max-retries", 3)
}

func initConfig() {
	// A missing .env is fine; values may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %s", err)
	}

	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %s", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default or a flag, so only an explicitly requested file is mandatory.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// BindEnv replaces the automatic name, so the prefixed one is listed again.
	for key, env := range envBindings {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(envKeyReplacer.Replace(key)), env); err != nil {
			return err
		}
	}
	return nil
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Sources == nil {
		config.Sources = &SourcesConfig{}
	}
	if config.Sources.JSearch == nil {
		config.Sources.JSearch = &JSearchConfig{}
	}
	if config.Sources.Adzuna == nil {
		config.Sources.Adzuna = &AdzunaConfig{}
	}
	if config.Filter == nil {
		config.Filter = &FilterConfig{}
	}
	if config.Sponsorship == nil {
		config.Sponsorship = &SponsorshipConfig{}
	}
	if config.Profile == nil {
		config.Profile = &ProfileConfig{}
	}
	if config.Report == nil {
		config.Report = &ReportConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}
	return config, nil
}
