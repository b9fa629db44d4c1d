package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/pipeline"
	"github.com/spigell/h1b-finder/internal/posting"
	"github.com/spigell/h1b-finder/internal/profile"
	"github.com/spigell/h1b-finder/internal/report"
)

// endMarker terminates a pasted description.
const endMarker = "END"

const (
	PromptBoth    = "Tailored résumé and gap plan"
	PromptResume  = "Tailored résumé only"
	PromptGapPlan = "Gap plan only"
	PromptSkip    = "Skip"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single pasted posting: eligibility, sponsorship, match and optional artifacts",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("title", "t", "", "posting title")
	evaluateCmd.Flags().StringP("company", "c", "", "company name")
	evaluateCmd.Flags().StringP("location", "l", "", "posting location")
	evaluateCmd.Flags().String("url", "", "posting url")
	evaluateCmd.Flags().StringP("profile", "p", "", "candidate résumé (.pdf, .docx, .txt, .md)")
	evaluateCmd.Flags().String("output-dir", "", "directory for tailored résumés and gap plans")
	evaluateCmd.Flags().BoolP("auto-approve", "y", false, "generate artifacts for a candidate without asking")
	evaluateCmd.Flags().Bool("no-classifier", false, "skip the semantic eligibility stage")
}

func evaluate(cmd *cobra.Command) {
	bindFlags(cmd, map[string]string{
		"profile.path":        "profile",
		"pipeline.output-dir": "output-dir",
	})

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

	ctx := context.Background()
	out := cmd.OutOrStdout()

	collab, err := buildCollaborators(ctx, config, logger)
	if err != nil {
		if errors.Is(err, profile.ErrNoProfile) {
			logger.Fatal("a candidate profile is required to evaluate a posting",
				zap.Error(err),
				zap.String("hint", "pass --profile or set profile.path in the configuration file"),
			)
		}
		logger.Fatal("preparing collaborators", zap.Error(err))
	}

	fmt.Fprintf(out, "Paste the job description, then a line with %s:\n", endMarker)
	description, err := readUntilMarker(cmd.InOrStdin(), endMarker)
	if err != nil {
		logger.Fatal("reading description", zap.Error(err))
	}
	if strings.TrimSpace(description) == "" {
		logger.Fatal("empty job description")
	}

	p := &posting.Posting{
		Title:       cmd.Flag("title").Value.String(),
		Company:     cmd.Flag("company").Value.String(),
		Location:    cmd.Flag("location").Value.String(),
		URL:         cmd.Flag("url").Value.String(),
		Description: description,
		Source:      posting.SourceFile,
	}
	p.EnsureID()

	elig, err := buildEligibility(config, collab.classifier, logger)
	if err != nil {
		logger.Fatal("preparing eligibility filter", zap.Error(err))
	}

	verdict := elig.Evaluate(ctx, p)
	p.Verdict = &verdict
	fmt.Fprintf(out, "\nEligible: %t (%s, %s)\nReason: %s\n", verdict.Eligible, verdict.Stage, verdict.Outcome, verdict.Reason)
	if !verdict.Eligible {
		return
	}

	controller, err := pipeline.New(config.Pipeline, pipeline.Deps{
		Scorer:  collab.scorer,
		Judge:   collab.judge,
		Writer:  collab.writer,
		Profile: collab.profile,
		Sink:    report.NewMemory(),
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("preparing pipeline", zap.Error(err))
	}

	assessment := controller.Assess(ctx, p)
	printAssessment(out, assessment)

	if !assessment.Candidate || !controller.HasWriter() {
		return
	}

	resume, gapPlan := config.Pipeline.GenerateResume, config.Pipeline.GenerateGapPlan
	if !flagSet(cmd, "auto-approve") {
		resume, gapPlan, err = chooseArtifacts()
		if err != nil {
			logger.Info("skipping artifacts", zap.Error(err))
			return
		}
	}

	resumePath, gapPlanPath := controller.WriteArtifacts(ctx, assessment, resume, gapPlan)
	if resumePath != "" {
		fmt.Fprintf(out, "Tailored résumé: %s\n", resumePath)
	}
	if gapPlanPath != "" {
		fmt.Fprintf(out, "Gap plan: %s\n", gapPlanPath)
	}
}

func chooseArtifacts() (resume, gapPlan bool, err error) {
	prompt := promptui.Select{
		Label: "Generate artifacts?",
		Items: []string{PromptBoth, PromptResume, PromptGapPlan, PromptSkip},
	}

	_, choice, err := prompt.Run()
	if err != nil {
		return false, false, err
	}

	switch choice {
	case PromptBoth:
		return true, true, nil
	case PromptResume:
		return true, false, nil
	case PromptGapPlan:
		return false, true, nil
	default:
		return false, false, nil
	}
}

// readUntilMarker returns the lines before the first line equal to marker. EOF also ends input.
func readUntilMarker(r io.Reader, marker string) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == marker {
			break
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func printAssessment(out io.Writer, a *pipeline.Assessment) {
	row := a.Row()

	match := "n/a (judge answer could not be parsed)"
	if row.MatchScore != nil {
		match = fmt.Sprintf("%.2f", *row.MatchScore)
	}

	fmt.Fprintf(out, "Sponsorship score: %.2f\n", row.SponsorshipScore)
	if len(a.Evidence.Sponsors) > 0 {
		fmt.Fprintf(out, "  known sponsors: %s\n", strings.Join(a.Evidence.Sponsors, ", "))
	}
	if len(a.Evidence.Keywords) > 0 {
		fmt.Fprintf(out, "  keywords: %s\n", strings.Join(a.Evidence.Keywords, ", "))
	}
	fmt.Fprintf(out, "Match score: %s\n", match)
	if s := report.JoinList(row.Strengths); s != "" {
		fmt.Fprintf(out, "Strengths: %s\n", s)
	}
	if g := report.JoinList(row.Gaps); g != "" {
		fmt.Fprintf(out, "Gaps: %s\n", g)
	}
	if summary := strings.TrimSpace(a.Match.Summary); summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", summary)
	}
	fmt.Fprintf(out, "Candidate: %t\n", row.IsCandidate)
}
