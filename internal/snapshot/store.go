package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// timeLayout stamps snapshot names. UTC with zero-padded fields, so the
// lexicographic order of names matches capture order.
const timeLayout = "20060102T150405Z"

// Store persists raw provider payloads under one directory per domain.
// Snapshots are immutable once published: a new capture of the same target
// gets a new timestamped name instead of overwriting the old one.
type Store struct {
	rawRoot string
	log     *logger.Log
}

func NewStore(rawRoot string) *Store {
	return &Store{
		rawRoot: rawRoot,
		log:     logger.GetLogger(),
	}
}

// Write publishes one payload as
// <rawRoot>/<domain dir>/<targetKey>_<timestamp>.json. The payload lands in
// a temporary file first and is renamed into place, so a concurrent reader
// never sees a partially written snapshot.
func (s *Store) Write(d domain.Domain, targetKey string, at time.Time, payload []byte) (string, error) {
	dir := filepath.Join(s.rawRoot, d.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", targetKey, at.UTC().Format(timeLayout))
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp")
	if err != nil {
		return "", fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("publishing snapshot: %w", err)
	}

	logger.IncrementSnapshotWrite(len(payload))
	s.log.WithComponent("snapshot_store").WithFields(logger.Fields{
		"domain": string(d),
		"target": targetKey,
		"bytes":  len(payload),
	}).Info("snapshot written")

	return final, nil
}

// Read loads a snapshot payload.
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// List returns every snapshot path for a domain in name order. A domain
// that has never been extracted yields an empty list.
func (s *Store) List(d domain.Domain) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.rawRoot, d.Dir(), "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Latest maps each target key to its most recent snapshot path. Files whose
// names do not carry a valid timestamp suffix are ignored.
func (s *Store) Latest(d domain.Domain) (map[string]string, error) {
	paths, err := s.List(d)
	if err != nil {
		return nil, err
	}

	newest := make(map[string]string, len(paths))
	stamps := make(map[string]string, len(paths))
	for _, path := range paths {
		key, ts, ok := splitName(filepath.Base(path))
		if !ok {
			s.log.WithComponent("snapshot_store").WithFields(logger.Fields{
				"domain": string(d),
				"file":   filepath.Base(path),
			}).Warn("ignoring file without snapshot naming")
			continue
		}
		if prev, seen := stamps[key]; seen && prev >= ts {
			continue
		}
		stamps[key] = ts
		newest[key] = path
	}
	return newest, nil
}

// splitName separates <targetKey>_<timestamp>.json. Target keys may contain
// underscores themselves, so the split happens at the last one.
func splitName(base string) (key, ts string, ok bool) {
	trimmed := strings.TrimSuffix(base, ".json")
	if trimmed == base {
		return "", "", false
	}
	i := strings.LastIndex(trimmed, "_")
	if i <= 0 {
		return "", "", false
	}
	key, ts = trimmed[:i], trimmed[i+1:]
	if _, err := time.Parse(timeLayout, ts); err != nil {
		return "", "", false
	}
	return key, ts, true
}
