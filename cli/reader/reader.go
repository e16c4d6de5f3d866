// Package reader replays recorded uv logs through a session.
//
// Replay feeds a captured log file chunk by chunk, the same way the
// runner feeds a live pipe, so the session reconstructs phases,
// downloads, and timings from the log clock alone.
package reader

import (
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/uvlens/iox"
	"github.com/justapithecus/uvlens/session"
)

// DefaultChunkSize matches the read size the runner uses on live pipes.
const DefaultChunkSize = 4096

// Replay streams the log file at path through guard. chunkSize bounds
// each feed so line reassembly across chunk boundaries is exercised;
// values <= 0 fall back to DefaultChunkSize. The caller closes the
// session afterwards.
func Replay(path string, guard *session.Guard, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer iox.DiscardClose(f)

	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			guard.Feed(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
	}
}
