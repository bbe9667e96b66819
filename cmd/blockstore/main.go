package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/blocksync/internal/blockstore"
	"github.com/zzenonn/blocksync/internal/config"
	"github.com/zzenonn/blocksync/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "blockstore <port>",
	Short: "Serve one in-memory block shard",
	Long:  "Content-addressed block shard: stores raw chunk bytes keyed by their SHA-256 hash. State is process-lifetime only.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		return serve(port)
	},
}

func serve(port int) error {
	settings := config.LoadSettings()
	logging.Init(settings)

	store := blockstore.NewStore()
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: blockstore.NewServer(store),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("block shard listening on :%d", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("block shard shutting down")
	return server.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
