package dedup

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stlalpha/v3toss/internal/store"
)

// FileGate tracks admitted MSGIDs in memory and persists them to a JSON file.
type FileGate struct {
	mu      sync.Mutex
	path    string
	entries map[string]int64 // "AREA msgid" -> Unix timestamp when first seen
	maxAge  time.Duration    // How long to keep entries
}

// dupeFile is the on-disk representation.
type dupeFile struct {
	Entries map[string]int64 `json:"entries"`
}

// NewFileGate creates or loads a file-backed gate.
func NewFileGate(path string, maxAge time.Duration) (*FileGate, error) {
	g := &FileGate{
		path:    path,
		entries: make(map[string]int64),
		maxAge:  maxAge,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil // Fresh database
		}
		return nil, err
	}

	if len(data) > 0 {
		var f dupeFile
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("WARN: Corrupt dupe DB at %s, starting fresh: %v", path, err)
			return g, nil
		}
		if f.Entries != nil {
			g.entries = f.Entries
		}
	}

	return g, nil
}

func fileKey(area store.Area, msgid string) string {
	return area.Name + " " + msgid
}

func (g *FileGate) Seen(_ context.Context, area store.Area, msgid string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.entries[fileKey(area, msgid)]
	return exists, nil
}

func (g *FileGate) Admit(_ context.Context, area store.Area, msgid string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := fileKey(area, msgid)
	if _, exists := g.entries[k]; exists {
		return false, nil
	}
	g.entries[k] = time.Now().Unix()
	return true, nil
}

func (g *FileGate) Forget(_ context.Context, area store.Area, msgid string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, fileKey(area, msgid))
	return nil
}

// Purge removes entries older than maxAge and saves to disk.
func (g *FileGate) Purge() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxAge > 0 {
		cutoff := time.Now().Add(-g.maxAge).Unix()
		for k, ts := range g.entries {
			if ts < cutoff {
				delete(g.entries, k)
			}
		}
	}

	return g.saveLocked()
}

// Save persists the database to disk.
func (g *FileGate) Save() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saveLocked()
}

func (g *FileGate) saveLocked() error {
	data, err := json.MarshalIndent(dupeFile{Entries: g.entries}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return err
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, g.path)
}

// Count returns the number of entries in the database.
func (g *FileGate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
