package cmd

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/logging"
	"github.com/theirongolddev/planhaus/internal/tui"
	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	theme.SetActive(cfg.Appearance.Theme)

	// The alt screen owns the terminal, so logs go to a file.
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(config.StateDir(), "tui.log")
		l, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		log = l
	}

	// Force TrueColor so background styling produces ANSI codes even when
	// lipgloss would detect the Ascii profile.
	lipgloss.SetColorProfile(termenv.TrueColor)

	q := newQueries()
	q.Cache().StartCleanup(cfg.Cache.CleanupInterval.Duration, cfg.Cache.MaxAge.Duration)
	defer q.Cache().Close()

	app := tui.NewApp(tui.Options{
		Queries:   q,
		Config:    cfg,
		Project:   flagProject,
		NeedSetup: flagConfig == "" && !config.Exists(),
		Log:       log,
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
