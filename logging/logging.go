// Package logging provides the file-backed logger used by the
// sfschunkserver entrypoint. It brackets a log file with STARTUP/SHUTDOWN
// markers the way an operator greps for a clean restart.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// Logger wraps the standard library logger with lifecycle markers and a
// Close method that records a clean shutdown.
type Logger struct {
	*log.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger that appends to the file at path, creating the file
// if necessary. The parent directory is not created and must already exist.
func New(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		Logger: log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile|log.LUTC),
		file:   f,
	}
	l.Println("STARTUP: chunkserver logging initialized")
	return l, nil
}

// NewDiscard returns a Logger whose output is discarded, for tests that do
// not want log files on disk but still want to exercise logging call sites.
func NewDiscard() *Logger {
	return &Logger{Logger: log.New(io.Discard, "", 0)}
}

// Close writes the shutdown marker and closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Println("SHUTDOWN: chunkserver logging terminated")
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Critical logs a message at CRITICAL severity. Unlike build.Critical it
// does not panic; it is used for conditions worth an operator's attention
// but which the caller has already decided how to recover from.
func (l *Logger) Critical(v ...interface{}) {
	l.Println(append([]interface{}{"CRITICAL:"}, v...)...)
}
