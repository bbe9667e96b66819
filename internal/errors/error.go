package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrBlockNotFound = errors.New("block not found")
	ErrInvalidHash   = errors.New("malformed block hash")
)

// Error kinds carried on the wire between the metadata service and clients.
// Protocol errors are structured so the client retry loop can dispatch on
// them; transport failures stay ordinary errors.
const (
	KindMissingBlocks = "missing_blocks"
	KindWrongVersion  = "wrong_version"
	KindFileNotFound  = "file_not_found"
)

// MissingBlocksError reports hashes a modify referenced that are absent from
// their owning shard, in the order they appeared in the request.
type MissingBlocksError struct {
	Missing []string
}

func (e *MissingBlocksError) Error() string {
	return fmt.Sprintf("%d missing blocks: %s", len(e.Missing), strings.Join(e.Missing, ", "))
}

// WrongVersionError reports a modify/delete whose version was not exactly
// one past the stored version. Current is the version the registry holds.
type WrongVersionError struct {
	Current int64
}

func (e *WrongVersionError) Error() string {
	return fmt.Sprintf("requires version %d", e.Current+1)
}
