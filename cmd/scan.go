package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"dupdup/internal/errlog"
	"dupdup/internal/processor"
	"dupdup/internal/report"
	"dupdup/internal/scanerr"
	"dupdup/internal/tui"
)

var (
	outputPath   string
	reportFormat string
	interactive  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Find duplicate files under a directory and write a report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		format, err := report.ParseFormat(cfg.Report.Format)
		if err != nil {
			return scanerr.New(scanerr.CodeConfigInvalid, "", err)
		}
		if !cmd.Flags().Changed("format") && report.FormatFor(cfg.Report.Output) == report.FormatYAML {
			format = report.FormatYAML
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runScan(ctx, afero.NewOsFs(), scanParams{
			Root:        root,
			Output:      cfg.Report.Output,
			Format:      format,
			ErrorLog:    errorLogName(),
			Options:     processorOptions(cfg, newLogger(cfg)),
			Interval:    cfg.IntervalDuration(),
			Interactive: interactive,
		}, os.Stdout)
	},
}

type scanParams struct {
	Root        string
	Output      string
	Format      report.Format
	ErrorLog    string
	Options     processor.Options
	Interval    time.Duration
	Interactive bool
}

// runScan checks the report destination, opens the error log, scans, writes
// the report and prints the summary to out, in that order. Nothing is created
// when the destination already exists.
func runScan(ctx context.Context, fsys afero.Fs, p scanParams, out io.Writer) error {
	logger := p.Options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := report.CheckDestination(fsys, p.Output); err != nil {
		return err
	}
	errs, err := errlog.Create(fsys, p.ErrorLog)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := p.Options
	opts.Exclude = append([]string{p.ErrorLog, p.Output}, p.Options.Exclude...)

	view := startProgress(ctx, cancel, out, "dupdup scan", p.Interval, p.Interactive)
	summary, rep, runErr := processor.Run(ctx, fsys, p.Root, opts, view.Reporter, errs)
	view.Stop()

	if runErr == nil {
		if err := report.Write(fsys, p.Output, rep, p.Format); err != nil {
			if errors.Is(err, scanerr.ErrOutputExists) {
				errs.Record(err)
			} else {
				errs.Record(scanerr.Report(p.Output, err))
			}
			summary.Errors++
		}
	}

	kept, closeErr := errs.Close()
	if closeErr != nil {
		logger.Warn("closing error log", "path", errs.Path(), "err", closeErr)
	}
	if runErr != nil {
		return fmt.Errorf("scan interrupted: %w", runErr)
	}

	fmt.Fprintln(out, tui.RenderSummary(scanRows(summary, p.Output)))
	if kept {
		fmt.Fprintf(out, "Duplication search completed, with reported errors, see %s.\n",
			scanWarnStyle.Render(errs.Path()))
	} else {
		fmt.Fprintln(out, "Duplication search completed, without errors.")
	}
	return nil
}

func scanRows(summary processor.Summary, output string) []tui.SummaryRow {
	return []tui.SummaryRow{
		tui.Count("Files scanned", summary.Files),
		tui.Count("Prefilter candidates", summary.Candidates),
		tui.Count("Duplicate groups", summary.Groups),
		tui.Count("Duplicated files", summary.Duplicates),
		tui.Size("Wasted space", summary.Wasted),
		tui.Count("Errors", summary.Errors),
		tui.Text("Report", output),
	}
}

var scanWarnStyle = lipgloss.NewStyle().Foreground(tui.ColorWarn)

func init() {
	scanCmd.Flags().StringVarP(&outputPath, "output", "o", "results.json", "report file; .gz or .zst compresses it")
	scanCmd.Flags().StringVar(&reportFormat, "format", "json", "report format: json or yaml")
	scanCmd.Flags().BoolVar(&interactive, "tui", false, "show an interactive progress view")

	rootCmd.AddCommand(scanCmd)
}
