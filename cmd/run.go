package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/dates"
	"github.com/spigell/h1b-finder/internal/filtering"
	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/pipeline"
	"github.com/spigell/h1b-finder/internal/posting"
	"github.com/spigell/h1b-finder/internal/profile"
	"github.com/spigell/h1b-finder/internal/report"
	"github.com/spigell/h1b-finder/internal/sources"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search job boards, drop postings closed to sponsored candidates and score the rest",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("keywords", "k", "", "comma separated search keywords")
	runCmd.Flags().StringP("location", "l", "", "search location")
	runCmd.Flags().Int("pages", 0, "pages to fetch per source and keyword")
	runCmd.Flags().StringP("date-window", "w", "", "only keep postings newer than this (24h, 7d, \"Last 30 days\", all)")
	runCmd.Flags().StringSlice("sources", nil, "sources to query (jsearch, adzuna, indeed, file)")
	runCmd.Flags().String("file", "", "local CSV file with postings, used as the file source")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Excluded postings are appended to it")
	runCmd.Flags().StringP("profile", "p", "", "candidate résumé (.pdf, .docx, .txt, .md)")
	runCmd.Flags().StringP("report", "o", "", "report CSV path")
	runCmd.Flags().String("output-dir", "", "directory for tailored résumés and gap plans")
	runCmd.Flags().Int("workers", 0, "postings processed in parallel")
	runCmd.Flags().Bool("no-classifier", false, "skip the semantic eligibility stage")
	runCmd.Flags().Bool("no-artifacts", false, "do not generate résumés or gap plans")
	runCmd.Flags().Bool("dump", false, "dump eligible postings to a temporary JSON file")
}

// runFlags maps viper keys to run flags. Keys are shared with other commands, so binding happens
// when the command starts.
var runFlags = map[string]string{
	"search.keywords":     "keywords",
	"search.location":     "location",
	"search.pages":        "pages",
	"search.date-window":  "date-window",
	"search.sources":      "sources",
	"sources.file":        "file",
	"exclude-file":        "exclude-file",
	"profile.path":        "profile",
	"report.path":         "report",
	"pipeline.output-dir": "output-dir",
	"pipeline.workers":    "workers",
}

// bindFlags binds flags to viper keys; a flag only wins when it is set explicitly.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			log.Fatalf("binding flag %s: %s", flag, err)
		}
	}
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	bindFlags(cmd, runFlags)

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if flagSet(cmd, "no-classifier") {
		config.Filter.UseClassifier = false
	}
	if flagSet(cmd, "no-artifacts") {
		config.Pipeline.GenerateResume = false
		config.Pipeline.GenerateGapPlan = false
	}

	logger.Info("starting the h1b-finder", zap.String("version", version))

	// do not bother error since the search section is plain data
	pretty, _ := json.MarshalIndent(config.Search, "", "  ")
	logger.Debug(fmt.Sprintf("starting with search: \n %s", pretty))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var controller atomic.Pointer[pipeline.Controller]
	go handleSignals(ctx, logger, cancel, &controller)

	window, ok := dates.ParseWindow(config.Search.Window)
	if !ok {
		logger.Fatal("invalid date window", zap.String("date_window", config.Search.Window))
	}
	normalizer := &dates.Normalizer{Now: time.Now}
	cutoff := dates.Cutoff(normalizer.Current(), window)

	collab, err := buildCollaborators(ctx, config, logger)
	if err != nil {
		if errors.Is(err, profile.ErrNoProfile) {
			logger.Fatal("a candidate profile is required to score postings",
				zap.Error(err),
				zap.String("hint", "pass --profile or set profile.path in the configuration file"),
			)
		}
		logger.Fatal("preparing collaborators", zap.Error(err))
	}

	fetchers := buildFetchers(config, normalizer, logger)
	if len(fetchers) == 0 {
		logger.Fatal("no sources available", zap.Strings("configured", config.Search.Sources))
	}

	logger.Info("starting the search",
		zap.String("keywords", config.Search.Keywords),
		zap.String("location", config.Search.Location),
		zap.String("date_window", windowLabel(config.Search.Window, cutoff)),
	)

	manager := sources.NewManager(fetchers, 0, logger)
	postings := manager.Search(ctx, sources.Query{
		Keywords:    config.Search.Keywords,
		Location:    config.Search.Location,
		Pages:       config.Search.Pages,
		PostedAfter: cutoff,
	}, cutoff)
	scraped := postings.Len()

	if scraped == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	filters, err := prepareFilters(config, collab, logger)
	if err != nil {
		logger.Fatal("preparing filters", zap.Error(err))
	}

	filtered, err := filters.RunFilters(ctx, postings)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	if viper.GetBool("debug") {
		pretty, _ := json.MarshalIndent(filtered.ReportByCompany(), "", "  ")
		logger.Debug(string(pretty), zap.Int("postings count", filtered.Len()))
	}

	if flagSet(cmd, "dump") {
		filename, err := filtered.DumpToTmpFile()
		if err != nil {
			logger.Error("dump postings to file", zap.Error(err))
		} else {
			logger.Info("dumping eligible postings to file", zap.String("filename", filename))
		}
	}

	if filtered.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"), zap.Int("scraped", scraped))
		return
	}

	summary, err := score(ctx, config, collab, filtered, logger, &controller)
	if err != nil {
		logger.Fatal("scoring postings", zap.Error(err))
	}
	summary.Scraped = scraped

	logger.Info("run finished", summary.Field(), zap.String("report", config.Report.Path))
}

func score(ctx context.Context, config *Config, collab *collaborators, postings *posting.Postings, logger *zap.Logger, holder *atomic.Pointer[pipeline.Controller]) (*pipeline.Summary, error) {
	sink, err := report.NewCSV(config.Report.Path, logger)
	if err != nil {
		return nil, err
	}
	defer sink.Close()

	controller, err := pipeline.New(config.Pipeline, pipeline.Deps{
		Scorer:  collab.scorer,
		Judge:   collab.judge,
		Writer:  collab.writer,
		Profile: collab.profile,
		Sink:    sink,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	holder.Store(controller)

	summary, err := controller.Run(ctx, postings)
	if err != nil {
		// Rows that were written stay valid; report the loss and keep the summary.
		logger.Error("some report rows were not written", zap.Error(err))
	}
	return summary, nil
}

func prepareFilters(config *Config, collab *collaborators, logger *zap.Logger) (*filtering.Filtering, error) {
	elig, err := buildEligibility(config, collab.classifier, logger)
	if err != nil {
		return nil, err
	}

	steps := []filtering.Filter{
		filtering.NewExcludedCompanies(config.Filter.ExcludeCompanies, logger),
		filtering.NewExcludeFile(config.ExcludeFile, logger),
		filtering.NewEligibility(&filtering.EligibilityConfig{
			Workers: config.Pipeline.Workers,
		}, &filtering.EligibilityDeps{
			Logger:      logger,
			Filter:      elig,
			ExcludeFile: config.ExcludeFile,
		}),
	}

	filters := filtering.New(steps, logger)
	for _, status := range filters.Describe() {
		logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.Any("details", status.Details),
		)
	}
	return filters, nil
}

// handleSignals stops the pipeline gracefully on the first interrupt and aborts on the second.
func handleSignals(ctx context.Context, logger *zap.Logger, cancel context.CancelFunc, holder *atomic.Pointer[pipeline.Controller]) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-ctx.Done():
		return
	case <-sigs:
	}

	if c := holder.Load(); c != nil {
		logger.Warn("interrupt received, finishing postings in flight", zap.String("hint", "interrupt again to abort"))
		c.Stop()

		select {
		case <-ctx.Done():
			return
		case <-sigs:
		}
	}

	logger.Warn("aborting")
	cancel()
}

func flagSet(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Value.String() == "true"
}

func windowLabel(raw string, cutoff *time.Time) string {
	if cutoff == nil {
		return "all"
	}
	return fmt.Sprintf("%s (since %s)", raw, cutoff.Format(time.RFC3339))
}
