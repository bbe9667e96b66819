package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/blocksync/internal/blockstore"
	"github.com/zzenonn/blocksync/internal/config"
	storeerrors "github.com/zzenonn/blocksync/internal/errors"
	"github.com/zzenonn/blocksync/internal/metastore"
	"github.com/zzenonn/blocksync/internal/placement"
)

// Outcome is what an operation prints on stdout.
type Outcome string

const (
	OutcomeOK       Outcome = "OK"
	OutcomeNotFound Outcome = "Not Found"
)

// SyncService coordinates one client operation against the metadata service
// and the block shards.
type SyncService struct {
	settings config.Settings
	meta     *metastore.Client
	shards   []*blockstore.Client
	ring     *placement.Ring
}

// NewSyncService wires clients for every endpoint in the cluster config.
func NewSyncService(cluster *config.Cluster, settings config.Settings) (*SyncService, error) {
	ring, err := placement.NewRing(cluster.BlockCount)
	if err != nil {
		return nil, err
	}
	if len(cluster.BlockAddrs) != cluster.BlockCount {
		return nil, fmt.Errorf("cluster declares %d shards but lists %d endpoints", cluster.BlockCount, len(cluster.BlockAddrs))
	}
	shards := make([]*blockstore.Client, 0, cluster.BlockCount)
	for _, addr := range cluster.BlockAddrs {
		shards = append(shards, blockstore.NewClient(addr, settings))
	}
	return &SyncService{
		settings: settings,
		meta:     metastore.NewClient(cluster.MetadataAddr, settings),
		shards:   shards,
		ring:     ring,
	}, nil
}

// Upload chunks the local file and commits its hashlist under the file's
// basename, pushing blocks to their shards as the metadata service reports
// them missing and rebasing the version on conflicts.
func (s *SyncService) Upload(ctx context.Context, localPath string) (Outcome, error) {
	info, err := os.Stat(localPath)
	if err != nil || !info.Mode().IsRegular() {
		log.Errorf("%s is not a regular file on disk", localPath)
		return OutcomeNotFound, nil
	}

	hashlist, blocks, err := ChunkFile(localPath)
	if err != nil {
		return "", err
	}
	filename := filepath.Base(localPath)
	log.Infof("upload %s: %d blocks", filename, len(hashlist))

	current, _, err := s.meta.ReadFile(ctx, filename)
	if err != nil {
		return "", err
	}
	version := current + 1
	for {
		err := s.meta.ModifyFile(ctx, filename, version, hashlist)
		if err == nil {
			return OutcomeOK, nil
		}

		var missingBlocks *storeerrors.MissingBlocksError
		var wrongVersion *storeerrors.WrongVersionError
		switch {
		case errors.As(err, &missingBlocks):
			log.Debugf("upload %s v%d: pushing %d missing blocks", filename, version, len(missingBlocks.Missing))
			if err := s.pushBlocks(ctx, missingBlocks.Missing, blocks); err != nil {
				return "", err
			}
		case errors.As(err, &wrongVersion):
			log.Debugf("upload %s: rebasing from v%d onto v%d", filename, version, wrongVersion.Current+1)
			version = wrongVersion.Current + 1
		default:
			return "", err
		}
	}
}

// Delete tombstones the filename, rebasing the version on conflicts.
func (s *SyncService) Delete(ctx context.Context, filename string) (Outcome, error) {
	current, _, err := s.meta.ReadFile(ctx, filename)
	if err != nil {
		return "", err
	}
	version := current + 1
	for {
		err := s.meta.DeleteFile(ctx, filename, version)
		if err == nil {
			return OutcomeOK, nil
		}

		var wrongVersion *storeerrors.WrongVersionError
		switch {
		case errors.As(err, &wrongVersion):
			log.Debugf("delete %s: rebasing from v%d onto v%d", filename, version, wrongVersion.Current+1)
			version = wrongVersion.Current + 1
		case errors.Is(err, storeerrors.ErrFileNotFound):
			log.Errorf("delete %s: not found on server", filename)
			return OutcomeNotFound, nil
		default:
			return "", err
		}
	}
}

// Download reassembles the filename into dstDir, reusing any blocks already
// present in local files there and fetching the rest from their shards.
func (s *SyncService) Download(ctx context.Context, filename, dstDir string) (Outcome, error) {
	_, hashlist, err := s.meta.ReadFile(ctx, filename)
	if err != nil {
		return "", err
	}
	if len(hashlist) == 0 {
		log.Errorf("download %s: not found on server", filename)
		return OutcomeNotFound, nil
	}

	wanted := mapset.NewThreadUnsafeSet(hashlist...)
	cache := scanLocalBlocks(dstDir, wanted)
	log.Debugf("download %s: %d of %d blocks reusable locally", filename, len(cache), wanted.Cardinality())

	if err := s.fetchBlocks(ctx, hashlist, cache); err != nil {
		return "", err
	}

	out, err := os.Create(filepath.Join(dstDir, filename))
	if err != nil {
		return "", err
	}
	for _, hash := range hashlist {
		if _, err := out.Write(cache[hash]); err != nil {
			out.Close()
			return "", err
		}
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return OutcomeOK, nil
}

// pushBlocks uploads the named blocks to their owning shards. Every hash
// must come from the local chunking pass.
func (s *SyncService) pushBlocks(ctx context.Context, missing []string, blocks map[string][]byte) error {
	grouped, err := s.ring.Group(dedupe(missing))
	if err != nil {
		return err
	}
	bar := s.progress(countGrouped(grouped), "uploading blocks")
	for _, shard := range sortedShards(grouped) {
		for _, hash := range grouped[shard] {
			block, ok := blocks[hash]
			if !ok {
				return fmt.Errorf("shard reports missing block %s that is not part of the local file", hash)
			}
			if err := s.shards[shard].StoreBlock(ctx, hash, block); err != nil {
				return err
			}
			bar.Add(1)
		}
	}
	return bar.Finish()
}

// fetchBlocks fills cache with every hashlist entry it does not yet hold,
// grouping fetches by owning shard.
func (s *SyncService) fetchBlocks(ctx context.Context, hashlist []string, cache map[string][]byte) error {
	var needed []string
	for _, hash := range dedupe(hashlist) {
		if _, ok := cache[hash]; !ok {
			needed = append(needed, hash)
		}
	}
	grouped, err := s.ring.Group(needed)
	if err != nil {
		return err
	}
	bar := s.progress(len(needed), "downloading blocks")
	for _, shard := range sortedShards(grouped) {
		for _, hash := range grouped[shard] {
			block, err := s.shards[shard].GetBlock(ctx, hash)
			if err != nil {
				return err
			}
			cache[hash] = block
			bar.Add(1)
		}
	}
	return bar.Finish()
}

// progress renders block-transfer progress on stderr; stdout stays reserved
// for the operation outcome.
func (s *SyncService) progress(total int, description string) *progressbar.ProgressBar {
	if s.settings.Quiet || total == 0 {
		return progressbar.NewOptions(-1, progressbar.OptionSetWriter(os.Stderr), progressbar.OptionSetVisibility(false))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func dedupe(hashes []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		if seen.Add(hash) {
			out = append(out, hash)
		}
	}
	return out
}

func sortedShards(grouped map[int][]string) []int {
	shards := make([]int, 0, len(grouped))
	for shard := range grouped {
		shards = append(shards, shard)
	}
	sort.Ints(shards)
	return shards
}

func countGrouped(grouped map[int][]string) int {
	total := 0
	for _, hashes := range grouped {
		total += len(hashes)
	}
	return total
}
