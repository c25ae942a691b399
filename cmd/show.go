package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"dupdup/internal/progress"
	"dupdup/internal/report"
	"dupdup/internal/tui"
)

var showCmd = &cobra.Command{
	Use:   "show <report>",
	Short: "Print the duplicate groups of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys := afero.NewOsFs()
		rep, err := report.Load(fsys, args[0])
		if err != nil {
			return err
		}

		var wasted int64
		for i, digest := range rep.Digests() {
			paths := rep[digest]
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}

			var size int64 = -1
			if info, err := fsys.Stat(paths[0]); err == nil {
				size = info.Size()
				wasted += int64(len(paths)-1) * size
			}

			header := showDigestStyle.Render(digest)
			if size >= 0 {
				header += " " + showDimStyle.Render(progress.Bytes(size))
			} else {
				header += " " + showDimStyle.Render("(missing)")
			}
			fmt.Fprintln(os.Stdout, header)
			for _, path := range paths {
				fmt.Fprintf(os.Stdout, "  %s %s\n", showBulletStyle.Render("-"), showPathStyle.Render(path))
			}
		}

		rows := []tui.SummaryRow{
			tui.Count("Duplicate groups", len(rep)),
			tui.Count("Duplicated files", rep.Files()),
			tui.Size("Wasted space", wasted),
		}
		if len(rep) > 0 {
			fmt.Fprintln(os.Stdout)
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		return nil
	},
}

var (
	showDigestStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorDigest)
	showPathStyle   = lipgloss.NewStyle().Foreground(tui.ColorPath)
	showDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorMuted)
	showBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorMuted)
)

func init() {
	rootCmd.AddCommand(showCmd)
}
