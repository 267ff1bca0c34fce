package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datamorph-ai/datamorph/internal/config"
	"github.com/datamorph-ai/datamorph/internal/spec"
	"github.com/datamorph-ai/datamorph/internal/workflow"
)

var (
	runShowSQL  bool
	runSpecFile string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a transformation from a natural language prompt",
	Long: `Run translates the prompt into a transformation specification,
generates and executes the SQL artifact, validates the output, and
remediates failures until the run succeeds or the iteration budget is
exhausted.

With --spec, the specification is read from a JSON file instead of being
translated from a prompt.

Example:
  datamorph run "total order amount per customer, joined with customer names"`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runSpecFile == "" && len(args) == 0 {
			return fmt.Errorf("a prompt or --spec file is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := buildRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.close()

		var res *workflow.Result
		if runSpecFile != "" {
			raw, err := os.ReadFile(runSpecFile)
			if err != nil {
				return fmt.Errorf("reading spec file: %w", err)
			}
			sp, err := spec.Parse(raw)
			if err != nil {
				return fmt.Errorf("parsing spec file: %w", err)
			}
			res, err = rt.coordinator.RunWithSpec(ctx, "", sp)
			if err != nil {
				return err
			}
		} else {
			res, err = rt.coordinator.Run(ctx, "", strings.Join(args, " "))
			if err != nil {
				return err
			}
		}

		printResult(res)
		if res.Status == workflow.StatusExhausted {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runShowSQL, "show-sql", false, "Print the final SQL artifact")
	runCmd.Flags().StringVar(&runSpecFile, "spec", "", "Read the transformation specification from a JSON file")
}

// printResult renders the terminal state of a run.
func printResult(res *workflow.Result) {
	fmt.Println()
	if res.Status == workflow.StatusSuccess {
		fmt.Printf("%s run %s succeeded\n", color.GreenString("✓"), res.RunID)
	} else {
		fmt.Printf("%s run %s exhausted its remediation budget\n", color.RedString("✗"), res.RunID)
	}

	if res.Spec != nil {
		fmt.Printf("  target table:  %s\n", res.Spec.Target)
	}
	fmt.Printf("  iterations:    %d\n", res.IterationsUsed)
	if res.FinalReport != nil {
		fmt.Printf("  validation:    %s\n", res.FinalReport.Summary())
	}
	if res.ArtifactRef != "" {
		fmt.Printf("  artifact:      %s\n", res.ArtifactRef)
	}

	if len(res.RootCauses) > 0 {
		fmt.Printf("\n%s\n", color.YellowString("root cause trail:"))
		for i, rc := range res.RootCauses {
			fmt.Printf("  %d. %s\n", i+1, rc)
		}
	}

	if runShowSQL && res.ArtifactSQL != "" {
		fmt.Printf("\n%s\n%s\n", color.CyanString("final artifact:"), res.ArtifactSQL)
	}
}
