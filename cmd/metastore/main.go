package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/blocksync/internal/blockstore"
	"github.com/zzenonn/blocksync/internal/config"
	"github.com/zzenonn/blocksync/internal/logging"
	"github.com/zzenonn/blocksync/internal/metastore"
	"github.com/zzenonn/blocksync/internal/placement"
)

var rootCmd = &cobra.Command{
	Use:   "metastore <config-file>",
	Short: "Serve the file metadata registry",
	Long:  "Per-filename version and hashlist registry. Validates referenced blocks against their owning shard before committing a modify.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(args[0])
	},
}

func serve(configPath string) error {
	settings := config.LoadSettings()
	logging.Init(settings)

	cluster, err := config.LoadCluster(configPath)
	if err != nil {
		return err
	}
	ring, err := placement.NewRing(cluster.BlockCount)
	if err != nil {
		return err
	}

	// Shard connections are established at startup and live for the process
	// lifetime, in cluster index order.
	shards := make([]metastore.BlockChecker, 0, cluster.BlockCount)
	for _, addr := range cluster.BlockAddrs {
		shards = append(shards, blockstore.NewClient(addr, settings))
	}
	registry, err := metastore.NewRegistry(ring, shards, settings.PresenceCacheSize)
	if err != nil {
		return err
	}

	_, port, err := config.SplitEndpoint(cluster.MetadataAddr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metastore.NewServer(registry),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("metadata service listening on :%d, %d block shards", port, cluster.BlockCount)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("metadata service shutting down")
	return server.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
