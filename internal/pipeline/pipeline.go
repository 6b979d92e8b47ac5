// Package pipeline runs the dataset stages in dependency order: the AOI
// boundary first, then every layer that clips against it, then the tables
// that join onto the community layers.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/config"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// StageResult records how one stage ended.
type StageResult struct {
	Name     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Stage is one unit of the run. Run receives the shared config and must
// honour context cancellation for anything long.
type Stage struct {
	Name string
	Run  func(ctx context.Context, cfg *config.Config) error
}

type Options struct {
	// Skip lists stage names to leave out, case-insensitive.
	Skip []string

	// WithDemo appends the synthetic demo stage after the real datasets.
	WithDemo bool

	// ContinueOnError keeps going past a failed stage. When false, the
	// remaining stages are marked skipped.
	ContinueOnError bool
}

// Stages returns the ordered stage list for a run.
func Stages(opts Options) []Stage {
	stages := []Stage{
		{Name: "aoi", Run: runAOI},
		{Name: "layers", Run: runLayers},
		{Name: "fire", Run: runFire},
		{Name: "fuel", Run: runFuel},
		{Name: "dem", Run: runDEM},
		{Name: "ndvi", Run: runNDVI},
		{Name: "landcover", Run: runLandcover},
		{Name: "communities", Run: runCommunities},
		{Name: "tables", Run: runTables},
	}
	if opts.WithDemo {
		stages = append(stages, Stage{Name: "demo", Run: runDemo})
	}
	return stages
}

// Run executes the full stage list and returns a result per stage, in
// order. Failures never panic out of the run.
func Run(ctx context.Context, cfg *config.Config, opts Options) []StageResult {
	return runStages(ctx, cfg, Stages(opts), opts)
}

func runStages(ctx context.Context, cfg *config.Config, stages []Stage, opts Options) []StageResult {
	skip := make(map[string]bool, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[strings.ToLower(strings.TrimSpace(name))] = true
	}

	results := make([]StageResult, 0, len(stages))
	halted := false

	for _, stage := range stages {
		if halted || skip[stage.Name] || ctx.Err() != nil {
			log.Info().Str("stage", stage.Name).Msg("stage skipped")
			results = append(results, StageResult{Name: stage.Name, Status: StatusSkipped})
			continue
		}

		logger := log.With().Str("stage", stage.Name).Logger()
		logger.Info().Msg("stage starting")

		start := time.Now()
		err := stage.Run(ctx, cfg)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error().Err(err).Dur("duration", elapsed).Msg("stage failed")
			results = append(results, StageResult{Name: stage.Name, Status: StatusFailed, Err: err, Duration: elapsed})
			if !opts.ContinueOnError {
				halted = true
			}
			continue
		}

		logger.Info().Dur("duration", elapsed).Msg("stage finished")
		results = append(results, StageResult{Name: stage.Name, Status: StatusSuccess, Duration: elapsed})
	}

	return results
}

// Failed counts the stages that ended in failure.
func Failed(results []StageResult) int {
	n := 0
	for _, r := range results {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Summary renders the run as a fixed-width table for the terminal.
func Summary(results []StageResult) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tDURATION\tDETAIL")
	for _, r := range results {
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Status, r.Duration.Round(time.Millisecond), detail)
	}
	w.Flush()
	return b.String()
}
