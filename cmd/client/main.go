package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/blocksync/internal/config"
	"github.com/zzenonn/blocksync/internal/logging"
	"github.com/zzenonn/blocksync/internal/service"
)

// The config file comes before the operation, so dispatch is manual rather
// than via cobra subcommands:
//
//	client <config-file> upload <filepath>
//	client <config-file> download <filename> <dst-dir>
//	client <config-file> delete <filename>
var rootCmd = &cobra.Command{
	Use:           "client <config-file> <upload|download|delete> ...",
	Short:         "One-shot sync client",
	Long:          "Uploads, downloads, and deletes files against the metadata service and block shards. Prints OK or Not Found on stdout.",
	Args:          cobra.MinimumNArgs(2),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.LoadSettings()
		logging.Init(settings)

		cluster, err := config.LoadCluster(args[0])
		if err != nil {
			log.Errorf("loading cluster config: %v", err)
			return err
		}
		sync, err := service.NewSyncService(cluster, settings)
		if err != nil {
			log.Error(err)
			return err
		}

		ctx := context.Background()
		var outcome service.Outcome
		switch op, rest := args[1], args[2:]; op {
		case "upload":
			if len(rest) != 1 {
				return usageError(cmd, "upload <filepath>")
			}
			outcome, err = sync.Upload(ctx, rest[0])
		case "download":
			if len(rest) != 2 {
				return usageError(cmd, "download <filename> <dst-dir>")
			}
			outcome, err = sync.Download(ctx, rest[0], rest[1])
		case "delete":
			if len(rest) != 1 {
				return usageError(cmd, "delete <filename>")
			}
			outcome, err = sync.Delete(ctx, rest[0])
		default:
			return usageError(cmd, fmt.Sprintf("unknown operation %q", op))
		}
		if err != nil {
			log.Errorf("%s failed: %v", args[1], err)
			return err
		}
		fmt.Println(outcome)
		return nil
	},
}

func usageError(cmd *cobra.Command, detail string) error {
	fmt.Fprintln(os.Stderr, detail)
	fmt.Fprintln(os.Stderr, cmd.UsageString())
	return fmt.Errorf("usage: %s", detail)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
