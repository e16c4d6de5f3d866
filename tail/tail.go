// Package tail follows a growing installer log file.
//
// A Tailer reads the file from the start, remembers its offset, and
// forwards newly appended bytes in order. Filesystem events drive the
// reads, with a polling tick as fallback for filesystems that deliver
// events late or not at all. Truncation rewinds to the start;
// replacing the file (rotation) reopens it.
package tail

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/justapithecus/uvlens/iox"
	"github.com/justapithecus/uvlens/log"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	defaultChunkSize    = 4096
)

// Config configures a Tailer.
type Config struct {
	// Path is the file to follow. It may not exist yet.
	Path string
	// PollInterval is the fallback read tick.
	PollInterval time.Duration
	// ChunkSize is the read buffer size.
	ChunkSize int
	// Logger receives follow diagnostics. Nop when nil.
	Logger *log.Logger
}

// Tailer follows one file.
type Tailer struct {
	cfg    Config
	logger *log.Logger
}

// New constructs a tailer. Zero config fields take defaults.
func New(cfg Config) *Tailer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Tailer{cfg: cfg, logger: logger}
}

// Run follows the file until ctx is done, invoking sink with each
// chunk of new bytes in file order. The chunk is only valid for the
// duration of the call. Run is resilient: a missing file is waited
// for, and read failures reopen rather than abort.
func (t *Tailer) Run(ctx context.Context, sink func(chunk []byte)) error {
	var events <-chan fsnotify.Event
	var watchErrs <-chan error

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("filesystem events unavailable, polling only", map[string]any{
			"error": err.Error(),
		})
	} else {
		defer iox.DiscardClose(watcher)
		if err := watcher.Add(filepath.Dir(t.cfg.Path)); err != nil {
			t.logger.Warn("watch failed, polling only", map[string]any{
				"path":  t.cfg.Path,
				"error": err.Error(),
			})
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	var f *os.File
	var offset int64
	defer func() {
		if f != nil {
			iox.DiscardClose(f)
		}
	}()

	buf := make([]byte, t.cfg.ChunkSize)
	for {
		if f == nil {
			if file, openErr := os.Open(t.cfg.Path); openErr == nil {
				f = file
				offset = 0
				t.logger.Debug("following file", map[string]any{"path": t.cfg.Path})
			}
		}
		if f != nil {
			f, offset = t.drain(f, offset, buf, sink)
		}

		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Name != t.cfg.Path {
				continue
			}
		case err := <-watchErrs:
			t.logger.Warn("watcher error", map[string]any{"error": err.Error()})
		case <-ticker.C:
		}
	}
}

// drain reads every byte past offset. Truncation rewinds; a replaced
// or unreadable file comes back nil so the caller reopens.
func (t *Tailer) drain(f *os.File, offset int64, buf []byte, sink func([]byte)) (*os.File, int64) {
	st, err := f.Stat()
	if err != nil {
		iox.DiscardClose(f)
		return nil, 0
	}
	if st.Size() < offset {
		t.logger.Info("file truncated, rewinding", map[string]any{"path": t.cfg.Path})
		offset = 0
	}

	for {
		n, readErr := f.ReadAt(buf, offset)
		if n > 0 {
			sink(buf[:n])
			offset += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			iox.DiscardClose(f)
			return nil, 0
		}
	}

	if cur, statErr := os.Stat(t.cfg.Path); statErr == nil && !os.SameFile(st, cur) {
		t.logger.Info("file replaced, reopening", map[string]any{"path": t.cfg.Path})
		iox.DiscardClose(f)
		return nil, 0
	}
	return f, offset
}
