package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rescp17/lanpeer/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads; blank counts as unset.
func clearEnv(t *testing.T) {
	for _, name := range []string{EnvName, EnvPort, EnvDiscoveryPort, EnvBroadcastAddr,
		EnvDownloadDir, EnvMDNS, EnvMetricsAddr, EnvAccept} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, node.DefaultConfig(), s.Node)
	assert.False(t, s.AcceptAll)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(EnvName, "desk")
	t.Setenv(EnvPort, "12100")
	t.Setenv(EnvDiscoveryPort, "24444")
	t.Setenv(EnvBroadcastAddr, "192.168.1.255")
	t.Setenv(EnvDownloadDir, "/srv/inbox")
	t.Setenv(EnvMDNS, "true")
	t.Setenv(EnvMetricsAddr, ":9100")
	t.Setenv(EnvAccept, "1")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "desk", s.Node.Name)
	assert.Equal(t, 12100, s.Node.ControlPort)
	assert.Equal(t, 24444, s.Node.DiscoveryPort)
	assert.Equal(t, "192.168.1.255", s.Node.BroadcastAddr)
	assert.Equal(t, "/srv/inbox", s.Node.Transfer.DownloadDir)
	assert.True(t, s.Node.EnableMDNS)
	assert.Equal(t, ":9100", s.Node.MetricsAddr)
	assert.True(t, s.AcceptAll)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "lanpeer.env")
	require.NoError(t, os.WriteFile(path, []byte("LANPEER_PORT=13000\nLANPEER_NAME=filebox\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv(EnvPort)
		os.Unsetenv(EnvName)
	})
	// godotenv never overrides what is already set, so unset the blanks first
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvName)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 13000, s.Node.ControlPort)
	assert.Equal(t, "filebox", s.Node.Name)
}

func TestLoadMissingNamedFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", EnvPort, "twelve"},
		{"port out of range", EnvPort, "70000"},
		{"mdns not a bool", EnvMDNS, "sometimes"},
		{"accept not a bool", EnvAccept, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
		})
	}
}
