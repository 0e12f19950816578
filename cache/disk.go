package cache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

var diskMagic = [4]byte{'C', 'A', 'T', '1'}

// diskLevel is the optional L3 cache: files under a configured
// directory, named by the hex xxhash of their key, in the CAT1 format
// spec.md section 6 names: 4-byte magic, 1-byte flags, 4-byte
// big-endian payload length, payload. Entries past ttl are treated as
// a miss; when the directory exceeds maxBytes, the least-recently
// modified files are evicted first.
type diskLevel struct {
	dir      string
	ttl      time.Duration
	maxBytes int64
	stats    counters

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

func newDiskLevel(dir string, ttl time.Duration, maxBytes int64) (*diskLevel, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = 512 << 20
	}

	d := &diskLevel{dir: dir, ttl: ttl, maxBytes: maxBytes}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cache: failed to build disk watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("cache: failed to watch %s: %w", dir, err)
	}
	d.watcher = watcher
	go d.watchLoop()

	return d, nil
}

// watchLoop observes the disk directory for changes made outside this
// process (an operator pruning the cache, a shared volume mutated by a
// sibling instance) and logs them; diskLevel itself reads straight from
// disk on every Get, so there is no in-memory index to invalidate.
func (d *diskLevel) watchLoop() {
	for {
		select {
		case e, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("cache: disk entry removed externally", "path", e.Name)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("cache: disk watcher error", "error", err)
		}
	}
}

// close releases the directory watcher.
func (d *diskLevel) close() error {
	return d.watcher.Close()
}

func (d *diskLevel) path(key string) string {
	sum := xxhash.Sum64String(key)
	name := hex.EncodeToString(binary.BigEndian.AppendUint64(nil, sum))
	return filepath.Join(d.dir, name)
}

func (d *diskLevel) get(key string) ([]byte, bool) {
	p := d.path(key)

	fi, err := os.Stat(p)
	if err != nil {
		d.stats.recordMiss()
		return nil, false
	}
	if d.ttl > 0 && time.Since(fi.ModTime()) > d.ttl {
		os.Remove(p)
		d.stats.recordMiss()
		return nil, false
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		d.stats.recordMiss()
		return nil, false
	}

	blob, err := decodeDiskFrame(raw)
	if err != nil {
		os.Remove(p)
		d.stats.recordMiss()
		return nil, false
	}

	d.stats.recordHit(len(blob))
	return blob, true
}

func (d *diskLevel) set(key string, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("cache: empty entry")
	}

	frame := encodeDiskFrame(blob)
	if err := os.WriteFile(d.path(key), frame, 0o644); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.evictIfOverBudget()
}

func (d *diskLevel) del(key string) {
	os.Remove(d.path(key))
}

func (d *diskLevel) health() string {
	if _, err := os.Stat(d.dir); err != nil {
		return "down"
	}
	return "ok"
}

// encodeDiskFrame reuses blob's own leading flags byte as the frame's
// flags byte, so the on-disk payload length matches the in-memory blob
// length minus one.
func encodeDiskFrame(blob []byte) []byte {
	flags := blob[0]
	payload := blob[1:]

	frame := make([]byte, 4+1+4+len(payload))
	copy(frame[0:4], diskMagic[:])
	frame[4] = flags
	binary.BigEndian.PutUint32(frame[5:9], uint32(len(payload)))
	copy(frame[9:], payload)
	return frame
}

func decodeDiskFrame(raw []byte) ([]byte, error) {
	if len(raw) < 9 || [4]byte(raw[0:4]) != diskMagic {
		return nil, fmt.Errorf("cache: corrupt disk frame")
	}

	flags := raw[4]
	n := binary.BigEndian.Uint32(raw[5:9])
	if uint32(len(raw)-9) < n {
		return nil, fmt.Errorf("cache: truncated disk frame")
	}

	payload := raw[9 : 9+n]
	blob := make([]byte, 1+len(payload))
	blob[0] = flags
	copy(blob[1:], payload)
	return blob, nil
}

// evictIfOverBudget removes the least-recently-modified files until the
// directory's total size is back under maxBytes. Caller holds d.mu.
func (d *diskLevel) evictIfOverBudget() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []fileInfo
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		p := filepath.Join(d.dir, e.Name())
		files = append(files, fileInfo{path: p, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	if total <= d.maxBytes {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for _, f := range files {
		if total <= d.maxBytes {
			break
		}
		if err := os.Remove(f.path); err == nil {
			total -= f.size
		}
	}
	return nil
}
