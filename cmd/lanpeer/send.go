package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rescp17/lanpeer/internal/app"
	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/node"
	"github.com/rescp17/lanpeer/pkg/transfer"
	"github.com/spf13/cobra"
)

const resolvePollInterval = 200 * time.Millisecond

func newSendCmd(flags *rootFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "send <peer> <file>",
		Short: "Offer one file to a peer, given by name or ip:port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(flags.logLevel, false)
			if err != nil {
				return err
			}
			defer closeLog()
			return send(cmd.Context(), s.Node, args[0], args[1], wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to look for the peer")
	return cmd
}

func send(ctx context.Context, cfg node.Config, target, path string, wait time.Duration) error {
	n, err := node.New(cfg, node.Options{
		Decider: app.RejectAll,
		OnProgress: func(p transfer.Progress) {
			fmt.Printf("\r%s %s / %s  %s", p.FileName,
				util.FormatSize(p.Bytes), util.FormatSize(p.Total), util.FormatPercent(p.Bytes, p.Total))
		},
	})
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}
	defer n.Stop()

	if err := awaitPeer(ctx, n, target, wait); err != nil {
		return err
	}

	results := make(chan transfer.Result, 1)
	if _, err := n.SendFile(target, path, func(r transfer.Result) { results <- r }); err != nil {
		return err
	}
	fmt.Printf("offered %s to %s, waiting for an answer\n", filepath.Base(path), target)

	select {
	case r := <-results:
		fmt.Println()
		if !r.Succeeded() {
			return fmt.Errorf("%s: %s", r.FileName, r.Reason)
		}
		fmt.Printf("sent %s (%s) in %s\n", r.FileName, util.FormatSize(r.Bytes), r.Elapsed.Round(time.Millisecond))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitPeer polls until target resolves. An ip:port resolves at once.
func awaitPeer(ctx context.Context, n *node.Node, target string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		_, err := n.ResolveTarget(target)
		if err == nil || !errors.Is(err, node.ErrUnknownPeer) || time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resolvePollInterval):
		}
	}
}
