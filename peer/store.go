// Package peer implements both halves of a peer process: the inbound file
// server and the outbound orchestrator that talks to the tracker.
package peer

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	bencode "github.com/jackpal/bencode-go"
)

// debugEnabled is an atomic boolean for thread-safe debug toggle
var debugEnabled atomic.Bool

// SetDebug enables or disables debug logging for this package.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

func debug(format string, v ...any) {
	if debugEnabled.Load() {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func info(format string, v ...any) {
	log.Printf("[INFO] "+format, v...)
}

// manifestName is the bencoded per-folder index the store maintains.
// Hidden files are never listed or shared, so the manifest shares the
// folder with the payload files without leaking into the network.
const manifestName = ".manifest"

// ErrBadName reports a file name that could escape the shared folder.
var ErrBadName = errors.New("peer: invalid file name")

// Store is the peer's local byte store: a single directory of files keyed
// by name. Names are opaque bytes to the protocol but must stay inside the
// directory, so anything with a path separator is rejected.
type Store struct {
	dir string
}

// OpenStore opens (creating if needed) the shared folder at dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return ErrBadName
	}
	return nil
}

// List returns the names of every shareable file, sorted. Directories and
// hidden files are skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Has reports whether the store holds name.
func (s *Store) Has(name string) bool {
	if checkName(name) != nil {
		return false
	}
	fi, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && fi.Mode().IsRegular()
}

// Size returns the size in bytes of name.
func (s *Store) Size(name string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	fi, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Read returns the full contents of name. A missing file surfaces as
// fs.ErrNotExist; a name that could escape the folder as ErrBadName.
func (s *Store) Read(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.dir, name))
}

// Write stores data under name, replacing any previous contents, and
// refreshes the manifest.
func (s *Store) Write(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return err
	}
	if err := s.WriteManifest(); err != nil {
		// The payload landed; a stale manifest is only a bookkeeping gap.
		info("failed to refresh manifest: %v", err)
	}
	return nil
}

// WriteManifest scans the folder and persists the name -> size index as a
// bencoded dictionary.
func (s *Store) WriteManifest() error {
	names, err := s.List()
	if err != nil {
		return err
	}

	files := make(map[string]int64, len(names))
	for _, name := range names {
		fi, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue // raced with a delete; skip
		}
		files[name] = fi.Size()
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, map[string]any{"files": files}); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, manifestName), buf.Bytes(), 0o644)
}

// ReadManifest loads the persisted name -> size index.
func (s *Store) ReadManifest() (map[string]int64, error) {
	f, err := os.Open(filepath.Join(s.dir, manifestName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := bencode.Decode(f)
	if err != nil {
		return nil, err
	}

	dict, ok := data.(map[string]any)
	if !ok {
		return nil, errors.New("peer: manifest is not a dictionary")
	}
	rawFiles, ok := dict["files"].(map[string]any)
	if !ok {
		return nil, errors.New("peer: manifest has no files dictionary")
	}

	files := make(map[string]int64, len(rawFiles))
	for name, v := range rawFiles {
		size, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("peer: manifest size for %q is not an integer", name)
		}
		files[name] = size
	}
	return files, nil
}
