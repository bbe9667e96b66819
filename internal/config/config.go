package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Cluster describes one deployment: the metadata endpoint and the fixed,
// index-ordered list of block shards. Shard indexes never change for the
// lifetime of a cluster; hash routing depends on the ordering here.
type Cluster struct {
	BlockCount   int
	MetadataAddr string
	BlockAddrs   []string
}

// Settings holds runtime tuning shared by all three binaries, sourced from
// the environment with sane defaults.
type Settings struct {
	LogLevel          string
	RequestTimeout    int // seconds, per RPC
	MaxTransportRetry int // bounded retries on transport errors only
	PresenceCacheSize int // metastore positive has() cache entries
	Quiet             bool
}

// LoadSettings reads BLOCKSYNC_* environment overrides.
func LoadSettings() Settings {
	v := viper.New()
	v.SetEnvPrefix("blocksync")
	v.AutomaticEnv()
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 30)
	v.SetDefault("max_transport_retry", 3)
	v.SetDefault("presence_cache_size", 65536)
	v.SetDefault("quiet", false)

	return Settings{
		LogLevel:          v.GetString("log_level"),
		RequestTimeout:    v.GetInt("request_timeout"),
		MaxTransportRetry: v.GetInt("max_transport_retry"),
		PresenceCacheSize: v.GetInt("presence_cache_size"),
		Quiet:             v.GetBool("quiet"),
	}
}

// LoadCluster parses the line-oriented cluster file:
//
//	B: <N>
//	metadata: <host>:<port>
//	block<i>: <host>:<port>   (i = 1..N, index order)
func LoadCluster(path string) (*Cluster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	key, value, err := readField(scanner)
	if err != nil {
		return nil, err
	}
	if key != "B" {
		return nil, fmt.Errorf("config %s: first line must declare B, got %q", path, key)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("config %s: invalid shard count %q", path, value)
	}

	key, value, err = readField(scanner)
	if err != nil {
		return nil, err
	}
	if key != "metadata" {
		return nil, fmt.Errorf("config %s: second line must be metadata endpoint, got %q", path, key)
	}
	cluster := &Cluster{BlockCount: n, MetadataAddr: value}
	if _, _, err := SplitEndpoint(value); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	for i := 1; i <= n; i++ {
		key, value, err = readField(scanner)
		if err != nil {
			return nil, fmt.Errorf("config %s: missing block%d line: %w", path, i, err)
		}
		if key != fmt.Sprintf("block%d", i) {
			return nil, fmt.Errorf("config %s: expected block%d, got %q", path, i, key)
		}
		if _, _, err := SplitEndpoint(value); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cluster.BlockAddrs = append(cluster.BlockAddrs, value)
	}
	return cluster, nil
}

// SplitEndpoint splits host:port at the LAST colon so bare IPv6 literals in
// the host part survive.
func SplitEndpoint(endpoint string) (host string, port int, err error) {
	idx := strings.LastIndex(endpoint, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("endpoint %q has no port", endpoint)
	}
	port, err = strconv.Atoi(endpoint[idx+1:])
	if err != nil || port <= 0 {
		return "", 0, fmt.Errorf("endpoint %q has invalid port", endpoint)
	}
	return endpoint[:idx], port, nil
}

func readField(scanner *bufio.Scanner) (key, value string, err error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", "", err
		}
		return "", "", fmt.Errorf("unexpected end of config")
	}
	line := strings.TrimRight(scanner.Text(), "\r\n")
	key, value, ok := strings.Cut(line, ": ")
	if !ok {
		return "", "", fmt.Errorf("malformed config line %q", line)
	}
	return key, strings.TrimSpace(value), nil
}

// BaseURL renders an endpoint as an http URL, bracketing IPv6 literal hosts.
func BaseURL(endpoint string) string {
	host, port, err := SplitEndpoint(endpoint)
	if err != nil {
		return "http://" + endpoint
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}
