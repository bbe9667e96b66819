package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster.cfg")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCluster(t *testing.T) {
	path := writeConfig(t, "B: 2\nmetadata: localhost:6000\nblock1: localhost:5001\nblock2: localhost:5002\n")

	cluster, err := LoadCluster(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cluster.BlockCount)
	assert.Equal(t, "localhost:6000", cluster.MetadataAddr)
	assert.Equal(t, []string{"localhost:5001", "localhost:5002"}, cluster.BlockAddrs)
}

func TestLoadClusterIPv6Hosts(t *testing.T) {
	path := writeConfig(t, "B: 1\nmetadata: ::1:6000\nblock1: 2001:db8::42:5001\n")

	cluster, err := LoadCluster(path)
	require.NoError(t, err)

	host, port, err := SplitEndpoint(cluster.MetadataAddr)
	require.NoError(t, err)
	assert.Equal(t, "::1", host)
	assert.Equal(t, 6000, port)

	host, port, err = SplitEndpoint(cluster.BlockAddrs[0])
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::42", host)
	assert.Equal(t, 5001, port)
}

func TestLoadClusterRejectsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{name: "zero shards", contents: "B: 0\nmetadata: localhost:6000\n"},
		{name: "negative shards", contents: "B: -1\nmetadata: localhost:6000\n"},
		{name: "missing metadata line", contents: "B: 1\nblock1: localhost:5001\n"},
		{name: "missing block line", contents: "B: 2\nmetadata: localhost:6000\nblock1: localhost:5001\n"},
		{name: "wrong block index", contents: "B: 1\nmetadata: localhost:6000\nblock2: localhost:5001\n"},
		{name: "endpoint without port", contents: "B: 1\nmetadata: localhost\nblock1: localhost:5001\n"},
		{name: "empty file", contents: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCluster(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:5001", BaseURL("localhost:5001"))
	assert.Equal(t, "http://[::1]:5001", BaseURL("::1:5001"))
	assert.Equal(t, "http://[2001:db8::42]:80", BaseURL("2001:db8::42:80"))
}

func TestLoadSettingsDefaults(t *testing.T) {
	settings := LoadSettings()
	assert.Equal(t, "info", settings.LogLevel)
	assert.Equal(t, 30, settings.RequestTimeout)
	assert.Equal(t, 3, settings.MaxTransportRetry)
	assert.False(t, settings.Quiet)
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("BLOCKSYNC_LOG_LEVEL", "debug")
	t.Setenv("BLOCKSYNC_QUIET", "true")
	settings := LoadSettings()
	assert.Equal(t, "debug", settings.LogLevel)
	assert.True(t, settings.Quiet)
}
