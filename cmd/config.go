package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dupdup/internal/config"
)

var configWrite bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "config prints the settings a scan would use, after the config file, DUPDUP_* " +
		"environment variables and flags are applied. With --write the result is saved to the " +
		"config file.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		if configWrite {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if path == "" {
				return fmt.Errorf("no config directory available, use --config")
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Configuration written to %s\n", path)
			return nil
		}

		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().BoolVar(&configWrite, "write", false, "save the effective configuration")
	rootCmd.AddCommand(configCmd)
}
