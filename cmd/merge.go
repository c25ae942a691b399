package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"dupdup/internal/errlog"
	"dupdup/internal/processor"
	"dupdup/internal/report"
	"dupdup/internal/tui"
)

var (
	mergeSource string
	mergeDest   string
	mergeScript string
)

var mergeCmd = &cobra.Command{
	Use:   "merge --source <dir> --dest <dir>",
	Short: "Write a shell script moving content missing from dest out of source",
	Long:  "merge compares two trees by content, ignoring names. Every file content found under " +
		"--source but nowhere under --dest gets a mkdir/mv pair in the script, keeping its path " +
		"relative to the source. Nothing is moved until the script is run.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		fsys := afero.NewOsFs()

		if err := report.CheckDestination(fsys, mergeScript); err != nil {
			return err
		}
		errLog := errorLogName()
		errs, err := errlog.Create(fsys, errLog)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := processorOptions(cfg, logger)
		opts.Exclude = []string{errLog, mergeScript}

		view := startProgress(ctx, stop, os.Stdout, "dupdup merge", cfg.IntervalDuration(), false)
		plan, runErr := processor.PlanMerge(ctx, fsys, mergeSource, mergeDest, opts, view.Reporter, errs)
		view.Stop()

		if runErr == nil {
			if err := report.Place(fsys, mergeScript, plan.Script()); err != nil {
				errs.Record(err)
			}
		}

		kept, closeErr := errs.Close()
		if closeErr != nil {
			logger.Warn("closing error log", "path", errs.Path(), "err", closeErr)
		}
		if runErr != nil {
			return fmt.Errorf("merge interrupted: %w", runErr)
		}

		rows := []tui.SummaryRow{
			tui.Count("Files hashed", plan.Summary.Files),
			tui.Count("Contents missing from dest", plan.Missing),
			tui.Count("Renamed on conflict", plan.Conflicts),
			tui.Count("Errors", plan.Summary.Errors),
			tui.Text("Script", mergeScript),
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		if kept {
			fmt.Fprintf(os.Stdout, "Merge plan completed, with reported errors, see %s.\n", errs.Path())
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeSource, "source", "", "tree whose content should end up in dest")
	mergeCmd.Flags().StringVar(&mergeDest, "dest", "", "tree receiving the missing content")
	mergeCmd.Flags().StringVarP(&mergeScript, "file", "f", "merge_script.sh", "script to write")
	_ = mergeCmd.MarkFlagRequired("source")
	_ = mergeCmd.MarkFlagRequired("dest")

	rootCmd.AddCommand(mergeCmd)
}
