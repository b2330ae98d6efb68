package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/lanpeer/internal/app"
	"github.com/rescp17/lanpeer/internal/config"
	"github.com/rescp17/lanpeer/pkg/node"
	"github.com/rescp17/lanpeer/pkg/transfer"
	"github.com/rescp17/lanpeer/pkg/ui"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var accept bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node with the interactive TUI, or headless with --accept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("accept") {
				s.AcceptAll = accept
			}
			closeLog, err := setupLogging(flags.logLevel, !s.AcceptAll)
			if err != nil {
				return err
			}
			defer closeLog()

			if s.AcceptAll {
				return serveHeadless(cmd.Context(), s)
			}
			return serveTUI(cmd.Context(), s)
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "run without the TUI and accept every offer")
	return cmd
}

func serveTUI(ctx context.Context, s config.Settings) error {
	a, err := app.New(s.Node, newMetrics(s))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	name := s.Node.Name
	if name == "" {
		name = "(picking a name)"
	}
	p := tea.NewProgram(ui.NewModel(a, name))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	cancel()
	return <-runErr
}

func serveHeadless(ctx context.Context, s config.Settings) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(s.Node, node.Options{
		Decider: app.AcceptAll,
		Metrics: newMetrics(s),
		OnResult: func(r transfer.Result) {
			if r.Succeeded() {
				fmt.Printf("received %s from %s -> %s\n", r.FileName, r.Peer, r.Path)
				return
			}
			fmt.Printf("receive of %s from %s failed: %s\n", r.FileName, r.Peer, r.Reason)
		},
	})
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}
	defer n.Stop()

	self := n.Self()
	slog.Info("Serving", "name", self.Name, "control", self.Key(), "downloadDir", s.Node.Transfer.DownloadDir)
	fmt.Printf("%s listening on %s, saving to %s\n", self.Name, self.Key(), s.Node.Transfer.DownloadDir)

	<-ctx.Done()
	return nil
}
