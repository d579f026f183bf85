package chunkserver

import (
	"github.com/NebulousLabs/errors"
)

// Status is the wire-level result code carried by CSTOCL_READ_STATUS and
// CSTOCL_WRITE_STATUS packets (§7). It is sent as a single byte in both
// dialects.
type Status uint8

// The status taxonomy this core produces. Values mirror
// original_source/src/errors/sfserr.h ordering where it matters for wire
// compatibility; unlisted upstream codes (e.g. master-only statuses) are
// out of scope per spec.md §1.
const (
	StatusOK Status = iota
	StatusWrongSize
	StatusWrongOffset
	StatusWrongChunkID
	StatusCantConnect
	StatusDisconnected
	StatusNotDone
	StatusIO
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongSize:
		return "WRONGSIZE"
	case StatusWrongOffset:
		return "WRONGOFFSET"
	case StatusWrongChunkID:
		return "WRONGCHUNKID"
	case StatusCantConnect:
		return "CANTCONNECT"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusNotDone:
		return "NOTDONE"
	case StatusIO:
		return "IO"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors composed via github.com/NebulousLabs/errors, the way
// Sia's host/gateway packages build up layered error context instead of
// ad hoc fmt.Errorf chains.
var (
	errProtocolViolation = errors.New("protocol violation")
	errBadPacketLength   = errors.New("malformed packet length")
	errUnknownPacketType = errors.New("unrecognized packet type for current state")
	errJobQueueFull      = errors.New("background job queue is full")
	errNoJobSlot         = errors.New("no job id available")
	errChainConnectFail  = errors.New("exhausted forward-connect retries")
	errSerializerLatched = errors.New("packet dialect does not match the connection's latched dialect")
)

// statusFromStoreError maps an error returned by a ChunkStore operation to
// a wire Status. A nil error always maps to StatusOK.
func statusFromStoreError(err error) Status {
	if err == nil {
		return StatusOK
	}
	if errors.Contains(err, errChunkNotDone) {
		return StatusNotDone
	}
	return StatusIO
}
