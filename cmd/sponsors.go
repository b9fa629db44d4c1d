package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/posting"
)

var sponsorsCmd = &cobra.Command{
	Use:   "sponsors <company>",
	Short: "Score a company and an optional description against the sponsor registry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sponsors(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(sponsorsCmd)

	sponsorsCmd.Flags().String("description", "", "posting description searched for sponsorship keywords")
	sponsorsCmd.Flags().String("registry", "", "sponsor registry file, one company per line")
}

func sponsors(cmd *cobra.Command, company string) {
	bindFlags(cmd, map[string]string{"sponsorship.registry-file": "registry"})

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	scorer, err := buildScorer(config)
	if err != nil {
		logger.Fatal("preparing sponsorship scorer", zap.Error(err))
	}

	evidence := scorer.Evaluate(&posting.Posting{
		Company:     company,
		Description: cmd.Flag("description").Value.String(),
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sponsorship score: %.2f\n", evidence.Score)
	fmt.Fprintf(out, "Registry matches: %s\n", listOrNone(evidence.Sponsors))
	fmt.Fprintf(out, "Keywords: %s\n", listOrNone(evidence.Keywords))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
