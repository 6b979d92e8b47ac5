package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/pipeline"
)

var (
	runSkip     []string
	runWithDemo bool
	runContinue bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full dataset pipeline",
		Long: `Run every pipeline stage in order, the boundary first and the tabular
		datasets last. Failed stages are logged and the run continues unless
		--continue-on-error=false, in which case the rest are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := pipeline.Run(cmd.Context(), cfg, pipeline.Options{
				Skip:            runSkip,
				WithDemo:        runWithDemo,
				ContinueOnError: runContinue,
			})

			fmt.Print(pipeline.Summary(results))

			if failed := pipeline.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d stages failed", failed, len(results))
			}
			return nil
		},
	}
)

func init() {
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "Stage names to leave out.")
	runCmd.Flags().BoolVar(&runWithDemo, "with-demo", false, "Append the synthetic demo stage.")
	runCmd.Flags().BoolVar(&runContinue, "continue-on-error", true, "Keep going past a failed stage.")
}
