package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exynostools/xeno/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective settings",
	Long:  "Print the effective settings in config file syntax, with environment overrides applied.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	s, source, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if source == "" {
		source = "(defaults)"
	}
	fmt.Printf("# source: %s\n", source)
	fmt.Print(config.Format(s))
	return nil
}
