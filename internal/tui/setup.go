package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

// setupValues are the answers collected by the setup wizard.
type setupValues struct {
	serverURL      string
	defaultProject string
	theme          string
	realtime       bool
}

func defaultSetupValues(cfg config.Config) setupValues {
	return setupValues{
		serverURL:      cfg.Client.ServerURL,
		defaultProject: cfg.Client.DefaultProject,
		theme:          theme.ByName(cfg.Appearance.Theme).Name,
		realtime:       cfg.Realtime.Enabled,
	}
}

// apply writes the answers into cfg.
func (v setupValues) apply(cfg config.Config) config.Config {
	cfg.Client.ServerURL = strings.TrimRight(strings.TrimSpace(v.serverURL), "/")
	cfg.Client.DefaultProject = strings.TrimSpace(v.defaultProject)
	cfg.Appearance.Theme = v.theme
	cfg.Realtime.Enabled = v.realtime
	return cfg
}

func validateServerURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter an http(s) URL such as http://127.0.0.1:8686")
	}
	return nil
}

// newSetupForm builds the first-run wizard bound to vals.
func newSetupForm(vals *setupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], len(theme.All))
	for i, t := range theme.All {
		themeOpts[i] = huh.NewOption(t.Name, t.Name)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to PlanHaus").
				Description("Point the dashboard at your PlanHaus server.\nRun `planhaus setup` anytime to change these."),
			huh.NewInput().
				Title("Server URL").
				Placeholder("http://127.0.0.1:8686").
				Validate(validateServerURL).
				Value(&vals.serverURL),
			huh.NewInput().
				Title("Default project").
				Description("Name or id to open first. Leave blank for the first project.").
				Value(&vals.defaultProject),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.theme),
			huh.NewConfirm().
				Title("Live updates").
				Description("Keep a WebSocket open so collaborators' changes show up right away.").
				Affirmative("On").
				Negative("Off").
				Value(&vals.realtime),
		),
	).WithShowHelp(true)
}

// RunSetup runs the wizard standalone and returns the updated config.
func RunSetup(cfg config.Config) (config.Config, error) {
	vals := defaultSetupValues(cfg)
	if err := newSetupForm(&vals).Run(); err != nil {
		return cfg, fmt.Errorf("setup: %w", err)
	}
	return vals.apply(cfg), nil
}
