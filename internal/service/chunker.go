// Package service implements the sync client's business logic: chunking
// local files, negotiating versions with the metadata service, and moving
// blocks to and from their owning shards.
package service

import (
	"io"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/blocksync/internal/domain"
)

// ChunkFile reads a file sequentially and splits it into fixed-size blocks.
// It returns the ordered hashlist and the hash -> bytes mapping. An empty
// file yields an empty hashlist.
func ChunkFile(path string) ([]string, map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return chunkReader(f)
}

func chunkReader(r io.Reader) ([]string, map[string][]byte, error) {
	hashlist := []string{}
	blocks := make(map[string][]byte)
	buf := make([]byte, domain.ChunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			block := make([]byte, n)
			copy(block, buf[:n])
			hash := domain.HashBlock(block)
			hashlist = append(hashlist, hash)
			blocks[hash] = block
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return hashlist, blocks, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}
}

// scanLocalBlocks walks the regular files directly under dir, chunks each
// one, and collects the blocks whose hashes appear in wanted. Files that
// cannot be read are logged and skipped.
func scanLocalBlocks(dir string, wanted mapset.Set[string]) map[string][]byte {
	found := make(map[string][]byte)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Errorf("scanning %s for reusable blocks: %v", dir, err)
		return found
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		_, blocks, err := ChunkFile(path)
		if err != nil {
			log.Errorf("chunking %s: %v", path, err)
			continue
		}
		for hash, block := range blocks {
			if wanted.Contains(hash) {
				found[hash] = block
			}
		}
	}
	return found
}
