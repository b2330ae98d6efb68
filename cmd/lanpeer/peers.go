package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rescp17/lanpeer/internal/app"
	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/node"
	"github.com/spf13/cobra"
)

var peerColumns = []int{20, 22, 10, 10}

func newPeersCmd(flags *rootFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "List the peers announcing on the network",
		Args:  cobra.NoArgs,
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
			return listPeers(cmd.Context(), s.Node, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to listen for announces")
	return cmd
}

func listPeers(ctx context.Context, cfg node.Config, wait time.Duration) error {
	if cfg.Name == "" {
		// a listing node never needs a unique name
		cfg.Name = "lanpeer-list"
	}
	n, err := node.New(cfg, node.Options{Decider: app.RejectAll})
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}
	defer n.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	peers := n.Peers()
	if len(peers) == 0 {
		fmt.Println("no peers found")
		return nil
	}
	fmt.Println(util.Row(peerColumns, "NAME", "ADDRESS", "PLATFORM", "SEEN"))
	for _, p := range peers {
		seen := time.Since(p.LastSeen).Round(time.Second).String() + " ago"
		fmt.Println(util.Row(peerColumns, p.Name, p.Key(), p.Platform, seen))
	}
	return nil
}
