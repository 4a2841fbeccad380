package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
	logpkg "github.com/kailas-cloud/vecshift/internal/logger"
)

func newRollbackCmd(opts *globalOpts) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Point the alias back at the source index of a completed run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			res, err := a.Migrations.Rollback(logpkg.ContextWithLogger(ctx, logger), runID)
			if err != nil {
				return err
			}
			run, err := a.Migrations.Get(ctx, runID)
			if err != nil {
				return err
			}
			logger.Info("Rolled back",
				zap.String("run_id", runID),
				zap.Duration("duration", res.Duration),
				zap.Bool("within_bound", res.WithinBound))

			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				return writeJSON(out, map[string]any{
					"run_id":        runID,
					"alias":         run.Plan.Alias(),
					"index":         run.Plan.Source(),
					"duration_ms":   res.Duration.Milliseconds(),
					"within_bound":  res.WithinBound,
					"already_bound": res.AlreadyBound,
				})
			}
			fmt.Fprintf(out, "Alias %s -> %s in %s\n", run.Plan.Alias(), run.Plan.Source(), res.Duration.Round(time.Millisecond))
			if !res.WithinBound {
				fmt.Fprintln(out, "warning: rollback exceeded the configured time bound")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to roll back")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func newStatusCmd(opts *globalOpts) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a run, or list all runs",
		Long: `Show the state and stage timeline of a run. Without --run-id, lists
known runs. With the sqlite audit driver run records are kept in memory,
so a separate process falls back to the last audit entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			out := cmd.OutOrStdout()
			if runID == "" {
				runs, err := a.Migrations.List(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput() {
					return writeJSON(out, runs)
				}
				printRunList(out, runs)
				return nil
			}

			run, err := a.Migrations.Get(ctx, runID)
			if errors.Is(err, dommig.ErrRunNotFound) {
				entries, aerr := a.Migrations.Audit(ctx, runID, 0)
				if aerr != nil || len(entries) == 0 {
					return err
				}
				last := entries[len(entries)-1]
				if opts.jsonOutput() {
					return writeJSON(out, last)
				}
				fmt.Fprintf(out, "Run:    %s\n", runID)
				fmt.Fprintf(out, "Last:   %s %s at %s\n", last.Stage, last.Outcome, last.Timestamp.Format(time.RFC3339))
				if last.Detail != "" {
					fmt.Fprintf(out, "Detail: %s\n", last.Detail)
				}
				return nil
			}
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return writeJSON(out, run)
			}
			printRun(out, run)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to show")
	return cmd
}

func newAuditCmd(opts *globalOpts) *cobra.Command {
	var (
		runID string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			entries, err := a.Migrations.Audit(ctx, runID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				return writeJSON(out, entries)
			}
			printAudit(out, entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run whose trail to print")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 = all)")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func newRestoreCmd(opts *globalOpts) *cobra.Command {
	var repo, snap, idx, as string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore an index from a pre-migration snapshot",
		Long: `Restore one index from a snapshot taken before a migration. The index is
restored under --as (default: its original name); an existing index with
that name is never overwritten.

Example:
  vecshift restore --repo backups --snapshot vecshift-docs-v1-1a2b --index docs-v1 --as docs-v1-restored`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			if err := a.Snapshots.Restore(logpkg.ContextWithLogger(ctx, logger), repo, snap, idx, as); err != nil {
				return err
			}
			name := as
			if name == "" {
				name = idx
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s/%s as %s\n", idx, repo, snap, name)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&repo, "repo", "", "snapshot repository")
	f.StringVar(&snap, "snapshot", "", "snapshot name")
	f.StringVar(&idx, "index", "", "index inside the snapshot")
	f.StringVar(&as, "as", "", "name for the restored index")
	for _, name := range []string{"repo", "snapshot", "index"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func printRunList(w io.Writer, runs []*dommig.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tALIAS\tSOURCE\tTARGET\tUPDATED")
	for _, r := range runs {
		var alias, source, target string
		if r.Plan != nil {
			alias, source, target = r.Plan.Alias(), r.Plan.Source(), r.Plan.Target()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.State, alias, source, target, r.UpdatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func printAudit(w io.Writer, entries []domaudit.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTAGE\tOUTCOME\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339Nano), e.Stage, e.Outcome, e.Detail)
	}
	_ = tw.Flush()
}
