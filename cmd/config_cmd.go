package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	fmt.Printf("  Config file: %s\n", configPath())
	if flagConfig != "" || config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [Client]")
	fmt.Printf("    Server URL:      %s\n", cfg.Client.ServerURL)
	if cfg.Client.DefaultProject != "" {
		fmt.Printf("    Default project: %s\n", cfg.Client.DefaultProject)
	}
	creds, err := apiclient.NewFileTokenStore(apiclient.DefaultTokenPath()).Load()
	switch {
	case err != nil:
		fmt.Printf("    Session:         unreadable (%v)\n", err)
	case creds.Valid():
		fmt.Printf("    Session:         %s\n", creds.Email)
	default:
		fmt.Println("    Session:         not signed in")
	}
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Listen:      %s\n", cfg.Server.Addr)
	fmt.Printf("    Database:    %s\n", config.DatabasePath(cfg))
	fmt.Printf("    Session TTL: %s\n", cfg.Server.SessionTTL.Duration)
	fmt.Printf("    Rate limit:  %d/min (burst %d), auth %d/min\n",
		cfg.Server.RateLimit.RequestsPerMinute, cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.AuthPerMinute)
	if len(cfg.Server.RateLimit.TrustedProxies) > 0 {
		fmt.Printf("    Proxies:     %s\n", strings.Join(cfg.Server.RateLimit.TrustedProxies, ", "))
	}
	if cfg.Events.NATSURL != "" {
		fmt.Printf("    NATS:        %s\n", cfg.Events.NATSURL)
	}
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    Prefetch:  %s, then %s\n", cfg.Cache.PrefetchDelay.Duration, cfg.Cache.SecondaryDelay.Duration)
	fmt.Printf("    Cleanup:   every %s, evicting after %s\n", cfg.Cache.CleanupInterval.Duration, cfg.Cache.MaxAge.Duration)
	fmt.Printf("    Autosave:  %s debounce\n", cfg.Autosave.Debounce.Duration)
	fmt.Println()

	fmt.Println("  [Realtime]")
	fmt.Printf("    Enabled:   %v\n", cfg.Realtime.Enabled)
	fmt.Printf("    Reconnect: %s x attempt, %d attempts\n", cfg.Realtime.ReconnectDelay.Duration, cfg.Realtime.MaxAttempts)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `planhaus setup` to reconfigure.")
	return nil
}
