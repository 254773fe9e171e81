package tosser

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/v3toss/internal/ftn"
)

// skipInbound reports whether a directory entry is a transfer in progress
// or a mailer control file rather than a received artifact.
func skipInbound(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") {
		return true
	}
	for _, ext := range []string{".tmp", ".bsy", ".csy", ".lck"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// TossDir tosses every artifact in dir, oldest name first, and removes each
// one once tossed. Artifacts that were malformed or failed the password check
// are moved to the bad directory instead. Packets are attributed to links by
// their origin address; secure marks the directory as the protected-session
// inbound.
func (t *Tosser) TossDir(ctx context.Context, dir string, secure bool) (*Result, error) {
	total := newResult()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return total, nil
		}
		return total, fmt.Errorf("read inbound dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		name := entry.Name()
		if entry.IsDir() || skipInbound(name) {
			continue
		}
		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("ERROR: Failed to read %s: %v", path, err)
			continue
		}
		res, err := t.Toss(ctx, Inbound{Name: name, Data: data, Secure: secure})
		total.Merge(res)
		if err != nil {
			log.Printf("ERROR: Failed to toss %s: %v", name, err)
			continue
		}
		if res.Bad {
			t.moveToBad(dir, path)
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Printf("WARN: Failed to remove tossed %s: %v", path, err)
		}
	}
	return total, nil
}

// moveToBad keeps a rejected artifact for inspection. A name already taken
// in the bad directory gets a unique prefix.
func (t *Tosser) moveToBad(inbound, path string) {
	badDir := t.cfg.BadPath
	if badDir == "" {
		badDir = filepath.Join(inbound, "bad")
	}
	if err := os.MkdirAll(badDir, 0755); err != nil {
		log.Printf("WARN: Failed to create bad directory %s: %v", badDir, err)
		return
	}
	name := filepath.Base(path)
	dst := filepath.Join(badDir, name)
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(badDir, strings.TrimSuffix(ftn.NewArtifactName("x"), ".x")+"_"+name)
	}
	if err := os.Rename(path, dst); err != nil {
		log.Printf("WARN: Failed to move bad %s to %s: %v", path, dst, err)
		return
	}
	log.Printf("WARN: Moved bad %s to %s", name, dst)
}
