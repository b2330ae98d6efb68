package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/rescp17/lanpeer/internal/config"
	"github.com/rescp17/lanpeer/internal/metrics"
	"github.com/rescp17/lanpeer/pkg/protocol"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	envFile     string
	logLevel    string
	name        string
	port        int
	downloadDir string
	mdns        bool
	metricsAddr string
}

func main() {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:          "lanpeer",
		Short:        "Peer-to-peer file sharing for local networks",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env", "", "env file to load (default .env if present)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&flags.name, "name", "", "node name; picked automatically when empty")
	pf.IntVar(&flags.port, "port", protocol.DefaultControlPort, "first control port to try")
	pf.StringVar(&flags.downloadDir, "download-dir", "", "directory for received files")
	pf.BoolVar(&flags.mdns, "mdns", false, "also discover peers over mDNS")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newSendCmd(&flags))
	cmd.AddCommand(newPeersCmd(&flags))

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// loadSettings merges the env file, the environment and any flag the user set, in that order.
func loadSettings(cmd *cobra.Command, flags *rootFlags) (config.Settings, error) {
	s, err := config.Load(flags.envFile)
	if err != nil {
		return config.Settings{}, err
	}
	changed := cmd.Flags().Changed
	if changed("name") {
		s.Node.Name = flags.name
	}
	if changed("port") {
		s.Node.ControlPort = flags.port
	}
	if changed("download-dir") {
		s.Node.Transfer.DownloadDir = flags.downloadDir
	}
	if changed("mdns") {
		s.Node.EnableMDNS = flags.mdns
	}
	if changed("metrics-addr") {
		s.Node.MetricsAddr = flags.metricsAddr
	}
	if err := s.Node.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func newMetrics(s config.Settings) *metrics.Metrics {
	if s.Node.MetricsAddr == "" {
		return nil
	}
	return metrics.New("lanpeer")
}

// setupLogging installs the default slog handler. With toFile set, logs go
// to debug.log so they do not corrupt the TUI.
func setupLogging(level string, toFile bool) (func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	var out io.Writer = os.Stderr
	closer := func() {}
	if toFile {
		f, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		out = f
		closer = func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
			}
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})))
	return closer, nil
}
