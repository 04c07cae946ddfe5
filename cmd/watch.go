package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/planhaus/internal/events"
	"github.com/theirongolddev/planhaus/internal/realtime"
)

var flagWatchAll bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream project activity as it happens",
	Long: "Follows a project's activity. With events.nats_url set it reads the NATS bus " +
		"(--all follows every project); otherwise it connects to the server's /ws channel.",
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&flagWatchAll, "all", false, "Follow every project (NATS only)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Events.NATSURL != "" {
		return watchNATS(ctx)
	}
	if flagWatchAll {
		return errors.New("--all needs events.nats_url")
	}
	return watchWebSocket(ctx)
}

func watchNATS(ctx context.Context) error {
	subject := events.SubjectPrefix + ".>"
	if !flagWatchAll {
		p, err := resolveProject(ctx, newQueries())
		if err != nil {
			return err
		}
		subject = events.Subject(p.ID.String())
	}

	sub, err := events.NewNATSSubscriber(cfg.Events.NATSURL)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	ch, unsubscribe, err := sub.Subscribe(subject)
	if err != nil {
		return err
	}
	defer unsubscribe()

	fmt.Printf("  Watching %s (ctrl+c to stop)\n", subject)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printEvent(msg)
		}
	}
}

func watchWebSocket(ctx context.Context) error {
	client := newClient()
	p, err := resolveProject(ctx, newQueries())
	if err != nil {
		return err
	}

	live := realtime.New(realtime.Config{
		ServerURL:      client.BaseURL(),
		ProjectID:      p.ID.String(),
		ReconnectDelay: cfg.Realtime.ReconnectDelay.Duration,
		MaxAttempts:    cfg.Realtime.MaxAttempts,
	}, client.Tokens(), realtime.WithLogger(log))
	live.OnMessage(printEvent)

	fmt.Printf("  Watching %s (ctrl+c to stop)\n", p.Name)
	err = live.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printEvent(msg events.Message) {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	switch msg.Type {
	case events.TypeHello:
	case events.TypePresence:
		fmt.Printf("  %s  %d online\n", at.Local().Format(time.TimeOnly), len(msg.Online))
	default:
		fmt.Printf("  %s  %-8s %s %s\n", at.Local().Format(time.TimeOnly), msg.Action, msg.EntityType, msg.EntityID)
	}
}
