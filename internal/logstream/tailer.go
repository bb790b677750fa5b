package logstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// maxReadChunk bounds how much of a file is read per pass.
const maxReadChunk = 1 << 20

// Publisher receives parsed log entries.
type Publisher interface {
	Publish(Entry)
}

// TailerConfig configures a Tailer.
type TailerConfig struct {
	Dir             string
	Pattern         string // glob relative to Dir, e.g. "*.log"
	PollInterval    time.Duration
	MaxTrackedFiles int
}

// Tailer follows every file matching Pattern in Dir and publishes each new
// complete line. It reacts to fsnotify events and also rescans on a fixed
// interval so that missed events and directories created later are picked up.
type Tailer struct {
	cfg     TailerConfig
	pub     Publisher
	offsets *lru.Cache[string, int64]
	// parked holds offsets pushed out of the cache until the file is read
	// again or leaves the directory.
	parked map[string]int64
	now    func() time.Time
	lines  atomic.Int64
}

// NewTailer creates a tailer publishing to pub.
func NewTailer(cfg TailerConfig, pub Publisher) (*Tailer, error) {
	if cfg.Dir == "" {
		return nil, errors.New("logstream: tailer directory must not be empty")
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "*.log"
	}
	if _, err := filepath.Match(cfg.Pattern, "x"); err != nil {
		return nil, fmt.Errorf("logstream: bad pattern %q: %w", cfg.Pattern, err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxTrackedFiles <= 0 {
		cfg.MaxTrackedFiles = 256
	}

	t := &Tailer{cfg: cfg, pub: pub, parked: make(map[string]int64), now: time.Now}
	offsets, err := lru.NewWithEvict(cfg.MaxTrackedFiles, func(path string, offset int64) {
		t.parked[path] = offset
	})
	if err != nil {
		return nil, fmt.Errorf("logstream: offset cache: %w", err)
	}
	t.offsets = offsets
	return t, nil
}

// LinesPublished returns how many lines the tailer has published.
func (t *Tailer) LinesPublished() int64 {
	return t.lines.Load()
}

// Run tails until ctx is cancelled. Files that already exist when Run starts
// are followed from their current end; files that appear later are read
// from the beginning.
func (t *Tailer) Run(ctx context.Context) error {
	t.skipExisting()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("logstream: creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	watching := t.tryWatch(fsw)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if !watching {
				watching = t.tryWatch(fsw)
			}
			t.Scan()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !t.matches(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				t.forget(event.Name)
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				t.readNew(event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("component", "logstream").Msg("tailer watcher error")
		}
	}
}

func (t *Tailer) tryWatch(fsw *fsnotify.Watcher) bool {
	if err := fsw.Add(t.cfg.Dir); err != nil {
		log.Debug().Err(err).Str("dir", t.cfg.Dir).Msg("log directory not watchable yet, polling")
		return false
	}
	return true
}

func (t *Tailer) matches(path string) bool {
	if filepath.Dir(path) != filepath.Clean(t.cfg.Dir) {
		return false
	}
	ok, _ := filepath.Match(t.cfg.Pattern, filepath.Base(path))
	return ok
}

func (t *Tailer) files() []string {
	paths, err := filepath.Glob(filepath.Join(t.cfg.Dir, t.cfg.Pattern))
	if err != nil {
		return nil
	}
	return paths
}

func (t *Tailer) skipExisting() {
	for _, p := range t.files() {
		if fi, err := os.Stat(p); err == nil {
			t.offsets.Add(p, fi.Size())
		}
	}
}

// Scan reads new lines from every matching file once. It must not be called
// while Run is active.
func (t *Tailer) Scan() {
	paths := t.files()
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
		t.readNew(p)
	}
	for p := range t.parked {
		if !present[p] {
			delete(t.parked, p)
		}
	}
}

// forget drops every offset kept for path.
func (t *Tailer) forget(path string) {
	t.offsets.Remove(path)
	delete(t.parked, path)
}

// offset returns where reading of path resumes. Unknown files start at 0.
func (t *Tailer) offset(path string) int64 {
	if off, ok := t.offsets.Get(path); ok {
		return off
	}
	if off, ok := t.parked[path]; ok {
		delete(t.parked, path)
		return off
	}
	return 0
}

// readNew publishes the complete lines appended to path since the last read.
// A file that shrank was truncated or rotated and is re-read from the start.
func (t *Tailer) readNew(path string) {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", path).Msg("open log file")
		}
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return
	}

	offset := t.offset(path)
	size := fi.Size()
	if size < offset {
		offset = 0
	}
	if size == offset {
		t.offsets.Add(path, offset)
		return
	}

	n := size - offset
	if n > maxReadChunk {
		n = maxReadChunk
	}
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Str("file", path).Msg("read log file")
		return
	}
	buf = buf[:read]

	// Only consume up to the last newline; a partial line waits for the rest.
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		if int64(read) == maxReadChunk {
			end = read - 1
		} else {
			t.offsets.Add(path, offset)
			return
		}
	}

	source := filepath.Base(path)
	now := t.now()
	for _, raw := range bytes.Split(buf[:end+1], []byte{'\n'}) {
		line := string(bytes.TrimSpace(raw))
		if line == "" {
			continue
		}
		t.pub.Publish(ParseLine(source, line, now))
		t.lines.Add(1)
	}
	t.offsets.Add(path, offset+int64(end+1))
}
