// Package config builds a node configuration from an optional .env file and
// LANPEER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rescp17/lanpeer/pkg/node"
)

const DefaultEnvFile = ".env"

const (
	EnvName          = "LANPEER_NAME"
	EnvPort          = "LANPEER_PORT"
	EnvDiscoveryPort = "LANPEER_DISCOVERY_PORT"
	EnvBroadcastAddr = "LANPEER_BROADCAST_ADDR"
	EnvDownloadDir   = "LANPEER_DOWNLOAD_DIR"
	EnvMDNS          = "LANPEER_MDNS"
	EnvMetricsAddr   = "LANPEER_METRICS_ADDR"
	EnvAccept        = "LANPEER_ACCEPT"
)

type Settings struct {
	Node node.Config
	// AcceptAll makes a headless node accept every offer.
	AcceptAll bool
}

// Load reads envFile and then the environment. An empty envFile means the
// default .env, which may be absent; a named file must exist. Variables
// already set in the environment win over the file.
func Load(envFile string) (Settings, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Settings{}, err
	}

	s := Settings{Node: node.DefaultConfig()}
	cfg := &s.Node

	if v, ok := lookup(EnvName); ok {
		cfg.Name = v
	}
	if err := intVar(EnvPort, &cfg.ControlPort); err != nil {
		return Settings{}, err
	}
	if err := intVar(EnvDiscoveryPort, &cfg.DiscoveryPort); err != nil {
		return Settings{}, err
	}
	if v, ok := lookup(EnvBroadcastAddr); ok {
		cfg.BroadcastAddr = v
	}
	if v, ok := lookup(EnvDownloadDir); ok {
		cfg.Transfer.DownloadDir = v
	}
	if err := boolVar(EnvMDNS, &cfg.EnableMDNS); err != nil {
		return Settings{}, err
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if err := boolVar(EnvAccept, &s.AcceptAll); err != nil {
		return Settings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func loadEnvFile(envFile string) error {
	optional := envFile == ""
	if optional {
		envFile = DefaultEnvFile
	}
	err := godotenv.Load(envFile)
	if err == nil || (optional && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", envFile, err)
}

// lookup treats a variable set to blanks as unset.
func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func intVar(name string, dst *int) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", name, v)
	}
	*dst = n
	return nil
}

func boolVar(name string, dst *bool) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", name, v)
	}
	*dst = b
	return nil
}
