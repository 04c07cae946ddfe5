// Package cmd implements the planhaus CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/logging"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/querycache"
)

var (
	flagConfig  string
	flagServer  string
	flagProject string
	flagQuiet   bool
)

// Resolved once per invocation in PersistentPreRunE.
var (
	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "planhaus",
	Short:         "Wedding planning dashboard and API server",
	Long:          "Plan a wedding from the terminal: budget, tasks, guests and vendors, shared live with collaborators.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initRuntime()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	RunE: runDashboard,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %s\n", describeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "API server URL")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Project id or name")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")
}

func initRuntime() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if flagServer != "" {
		cfg.Client.ServerURL = strings.TrimRight(flagServer, "/")
	}
	if flagQuiet {
		cfg.Log.Level = "warn"
	}

	log, err = logging.New(cfg.Log)
	return err
}

func saveConfig(c config.Config) error {
	if flagConfig != "" {
		return config.SaveFile(flagConfig, c)
	}
	return config.Save(c)
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.Path()
}

func newClient() *apiclient.Client {
	return apiclient.New(cfg.Client.ServerURL,
		apiclient.NewFileTokenStore(apiclient.DefaultTokenPath()),
		apiclient.WithLogger(log),
		apiclient.WithTimeout(cfg.Client.Timeout.Duration),
	)
}

func newQueries() *apiclient.Queries {
	return apiclient.NewQueries(newClient(), querycache.New(querycache.WithLogger(log)))
}

// resolveProject picks the project named by --project, then the configured
// default, then the first project the user can see.
func resolveProject(ctx context.Context, q *apiclient.Queries) (model.WeddingProject, error) {
	projects, err := q.Projects(ctx)
	if err != nil {
		return model.WeddingProject{}, err
	}
	if len(projects) == 0 {
		return model.WeddingProject{}, errors.New("no projects yet, create one with `planhaus project create`")
	}

	want := flagProject
	if want == "" {
		want = cfg.Client.DefaultProject
	}
	if want == "" {
		return projects[0], nil
	}
	for _, p := range projects {
		if p.ID.String() == want || strings.EqualFold(p.Name, want) {
			return p, nil
		}
	}
	return model.WeddingProject{}, fmt.Errorf("project %q not found", want)
}

func describeError(err error) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrLoginRequired):
		return "not signed in, run `planhaus login`"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s (HTTP %d)", apiErr.Message, apiErr.Status)
	}
	return err.Error()
}
