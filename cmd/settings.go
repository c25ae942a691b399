package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"dupdup/internal/config"
	"dupdup/internal/errlog"
	"dupdup/internal/processor"
	"dupdup/internal/progress"
	"dupdup/internal/scanerr"
	"dupdup/internal/tui"
)

// resolveConfig layers the flags the user actually set on top of the config
// file and environment.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, required := configPath, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Scan.Interval = interval
	}
	if flags.Changed("partial-size") {
		cfg.Scan.PartialSize = partialSize
	}
	if flags.Changed("partial-buffer") {
		cfg.Scan.PartialBuffer = partialBuffer
	}
	if flags.Changed("full-buffer") {
		cfg.Scan.FullBuffer = fullBuffer
	}
	if flags.Changed("workers") {
		cfg.Scan.Workers = workers
	}
	if flags.Changed("output") {
		cfg.Report.Output = outputPath
	}
	if flags.Changed("format") {
		cfg.Report.Format = reportFormat
	}
	switch {
	case verbosity == 1:
		cfg.Log.Level = "info"
	case verbosity > 1:
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, scanerr.New(scanerr.CodeConfigInvalid, "", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

func processorOptions(cfg *config.Config, logger *slog.Logger) processor.Options {
	return processor.Options{
		PartialSize:   cfg.PartialSizeBytes(),
		PartialBuffer: cfg.PartialBufferBytes(),
		FullBuffer:    cfg.FullBufferBytes(),
		Workers:       cfg.Scan.Workers,
		Logger:        logger,
	}
}

// errorLogName returns the error log path, timestamped unless -e was given.
func errorLogName() string {
	if errorLogPath != "" {
		return errorLogPath
	}
	return errlog.DefaultName(time.Now())
}

// progressView drives either the single-line printer or the interactive
// view. Stop must be called once the run is over.
type progressView struct {
	Reporter *progress.Reporter
	events   chan progress.Event
	exited   chan struct{}
}

// startProgress starts the progress output. The interactive view calls
// interrupt on Ctrl+C; once it exits, or ctx is done, events are no longer
// waited on so the run can never stall on a closed view.
func startProgress(ctx context.Context, interrupt context.CancelFunc, out io.Writer, title string, every time.Duration, interactive bool) *progressView {
	if !interactive {
		return &progressView{Reporter: progress.New(every, progress.NewLinePrinter(out))}
	}

	events := make(chan progress.Event, 64)
	exited := make(chan struct{})
	stopped := make(chan struct{})
	view := &progressView{
		Reporter: progress.New(every, progress.NewChannelPrinter(events, stopped)),
		events:   events,
		exited:   exited,
	}

	program := tea.NewProgram(tui.NewModel(title, events, interrupt), tea.WithOutput(out))
	go func() {
		_, _ = program.Run()
		close(exited)
	}()
	go func() {
		select {
		case <-exited:
		case <-ctx.Done():
		}
		close(stopped)
	}()
	return view
}

// Stop closes the interactive view, if any, and waits for it to exit.
func (v *progressView) Stop() {
	if v.events == nil {
		return
	}
	close(v.events)
	<-v.exited
}
