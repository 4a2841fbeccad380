package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	logpkg "github.com/kailas-cloud/vecshift/internal/logger"
)

func newRunCmd(opts *globalOpts) *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a migration and wait for it to finish",
		Long: `Run a full migration: validate, snapshot, provision the target index,
reindex, verify, and move the alias. The command blocks until the run is
terminal. Ctrl-C requests cancellation; the run then rolls back.

The plan comes from --plan (YAML) or from flags. Flags override file values.
--count-tolerance and --sample-match-threshold have no defaults.

Examples:
  vecshift run --plan plan.yaml
  vecshift run --source docs-v1 --target docs-v2 --alias docs \
    --vector-field embedding:384:cosinesimil:faiss \
    --snapshot-repo backups --count-tolerance 0 --sample-match-threshold 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var params dommig.PlanParams
			if planPath != "" {
				p, err := loadPlanFile(planPath)
				if err != nil {
					return err
				}
				params = p
			}
			params, err := applyPlanFlags(params, cmd.Flags(), planPath != "")
			if err != nil {
				return err
			}
			plan, err := dommig.NewPlan(params)
			if err != nil {
				return err
			}
			return runMigration(cmd, opts, plan)
		},
	}

	f := cmd.Flags()
	f.StringVar(&planPath, "plan", "", "YAML plan file")
	f.String("source", "", "source index")
	f.String("target", "", "target index to create")
	f.String("alias", "", "alias that serves traffic")
	f.StringArray("vector-field", nil, "name:dimension[:space_type[:engine[:m[:ef_construction]]]] (repeatable)")
	f.String("snapshot-repo", "", "registered snapshot repository")
	f.Float64("count-tolerance", 0, "allowed document count difference as a fraction of the source count")
	f.Float64("sample-match-threshold", 0, "minimum fraction of sampled documents that must match")
	f.Int("sample-size", defaultSampleSize, "documents sampled for verification")
	f.Int64("sample-seed", 0, "sampling seed (default derived from the run ID)")
	f.Bool("allow-replace", false, "replace a conflicting target index that no alias serves")
	return cmd
}

func runMigration(cmd *cobra.Command, opts *globalOpts, plan *dommig.Plan) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, logger, err := opts.bootstrap(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

	logger.Info("Starting migration",
		zap.String("source", plan.Source()),
		zap.String("target", plan.Target()),
		zap.String("alias", plan.Alias()),
		zap.Strings("vector_fields", plan.NewFieldNames()),
	)

	// A run that reached a terminal state comes back with its stage error;
	// the run itself carries everything worth printing.
	run, err := a.Migrations.Execute(logpkg.ContextWithLogger(ctx, logger), plan)
	if run == nil {
		return err
	}
	if err != nil {
		logger.Error("Migration did not complete", zap.String("run_id", run.ID),
			zap.String("state", string(run.State)), zap.Error(err))
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput() {
		if err := writeJSON(out, run); err != nil {
			return err
		}
	} else {
		printRun(out, run)
	}
	return runExitError(run)
}

func printRun(w io.Writer, run *dommig.Run) {
	fmt.Fprintf(w, "Run:    %s\n", run.ID)
	fmt.Fprintf(w, "State:  %s\n", run.State)
	if run.Plan != nil {
		fmt.Fprintf(w, "Alias:  %s (%s -> %s)\n", run.Plan.Alias(), run.Plan.Source(), run.Plan.Target())
	}
	if run.SnapshotID != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", run.SnapshotID)
	}
	if run.LastError != "" {
		fmt.Fprintf(w, "Error:  %s\n", run.LastError)
	}
	if run.RollbackFailed {
		fmt.Fprintf(w, "Rollback failed: alias %s needs manual repair\n", aliasOf(run))
	}

	if len(run.Stages) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STAGE\tOUTCOME\tDURATION\tERROR")
		for _, s := range run.Stages {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.State, s.Outcome, s.Duration().Round(time.Millisecond), s.Error)
		}
		_ = tw.Flush()
	}

	if r := run.Report; r != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Counts: source=%d target=%d delta=%d allowed=%d\n",
			r.SourceCount, r.TargetCount, r.CountDelta, r.AllowedDelta)
		fmt.Fprintf(w, "Sample: %d/%d matched (%.2f%%)\n", r.Matched, r.SampleSize, r.MatchRate*100)
		if len(r.Reasons) > 0 {
			fmt.Fprintf(w, "Reasons: %s\n", strings.Join(r.Reasons, "; "))
		}
	}
}

func aliasOf(run *dommig.Run) string {
	if run.Plan == nil {
		return "?"
	}
	return run.Plan.Alias()
}
