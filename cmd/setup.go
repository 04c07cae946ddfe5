package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/planhaus/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	updated, err := tui.RunSetup(cfg)
	if err != nil {
		return err
	}
	if err := saveConfig(updated); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", configPath())
	fmt.Println("  Next: `planhaus login`, then `planhaus tui`.")
	fmt.Println()
	return nil
}
