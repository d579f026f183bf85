// Package build exposes process-wide build metadata (release channel,
// version string) and debug-time invariant helpers shared by every
// long-lived component of the chunkserver.
package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// Version is the chunkserver's version string.
const Version = "4.0.0"

// Release identifies which build channel this binary was compiled for. It
// is swapped to "testing" by tests via -ldflags, and defaults to
// "standard" otherwise.
var Release = "standard"

// TempDir joins the system temp dir with the provided subdirectories and
// removes any preexisting contents, returning a fresh path for a test to use.
func TempDir(dirs ...string) string {
	path := filepath.Join(os.TempDir(), "SFSChunkserverTesting", filepath.Join(dirs...))
	err := os.RemoveAll(path)
	if err != nil {
		panic(err)
	}
	return path
}

// Critical panics with the given message. It is used to flag violations of
// invariants that should never happen if the rest of the code is correct -
// analogous to an assertion in the original C++ (massert.h).
func Critical(v ...interface{}) {
	s := fmt.Sprintln(v...)
	panic("critical failure: " + s)
}

// Severe logs a severe (non-fatal) condition to stderr without panicking.
// Used for invariant violations that are recoverable but should never be
// silently ignored, e.g. a job pool completion for an unknown connection.
func Severe(v ...interface{}) {
	s := fmt.Sprintln(v...)
	fmt.Fprintln(os.Stderr, "SEVERE:", s)
}

// DebugAssert panics if cond is false. Mirrors the original's sassert used
// throughout folder_chunks.cc / chunk.h for internal consistency checks.
func DebugAssert(cond bool, v ...interface{}) {
	if !cond {
		Critical(append([]interface{}{"assertion failed:"}, v...)...)
	}
}
