package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"qcping/internal/model"
)

// Snapshot is a point-in-time view of the stream table.
type Snapshot struct {
	GeneratedAt time.Time    `yaml:"generated_at" json:"generated_at"`
	Streams     []StreamInfo `yaml:"streams" json:"streams"`
}

// StreamInfo describes one catalog entry.
type StreamInfo struct {
	ID         string `yaml:"id" json:"id"`
	Configured bool   `yaml:"configured" json:"configured"`
	Address    string `yaml:"address,omitempty" json:"address,omitempty"`
}

// FromEntries converts catalog entries into a snapshot, keeping their order.
func FromEntries(entries []model.StreamEntry, at time.Time) *Snapshot {
	snap := &Snapshot{GeneratedAt: at.UTC(), Streams: make([]StreamInfo, 0, len(entries))}
	for _, e := range entries {
		info := StreamInfo{ID: e.ID.String(), Configured: e.Configured}
		if e.Address != nil {
			info.Address = e.Address.String()
		}
		snap.Streams = append(snap.Streams, info)
	}
	return snap
}

// Addressed counts the streams that carry an address.
func (s *Snapshot) Addressed() int {
	n := 0
	for _, info := range s.Streams {
		if info.Address != "" {
			n++
		}
	}
	return n
}

// LoadSnapshot loads a snapshot from disk. If the file is missing, returns an empty snapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

// SaveSnapshot writes the snapshot to disk.
func SaveSnapshot(path string, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Change kinds reported by Diff.
const (
	ChangeAdded     = "added"
	ChangeRemoved   = "removed"
	ChangeAddressed = "readdressed"
	ChangeBinding   = "binding"
)

// Change is one difference between two snapshots.
type Change struct {
	Kind string
	ID   string
	From string
	To   string
}

// Diff lists the streams that appeared, disappeared, changed address or
// changed configured state between prev and next. Changes follow next's order,
// then removals in prev's order.
func Diff(prev, next *Snapshot) []Change {
	old := make(map[string]StreamInfo, len(prev.Streams))
	for _, info := range prev.Streams {
		old[info.ID] = info
	}

	var changes []Change
	seen := make(map[string]struct{}, len(next.Streams))
	for _, info := range next.Streams {
		seen[info.ID] = struct{}{}
		before, ok := old[info.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, ID: info.ID, To: info.Address})
		case before.Configured != info.Configured:
			changes = append(changes, Change{
				Kind: ChangeBinding,
				ID:   info.ID,
				From: fmt.Sprint(before.Configured),
				To:   fmt.Sprint(info.Configured),
			})
		case before.Address != info.Address:
			changes = append(changes, Change{Kind: ChangeAddressed, ID: info.ID, From: before.Address, To: info.Address})
		}
	}
	for _, info := range prev.Streams {
		if _, ok := seen[info.ID]; !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, ID: info.ID, From: info.Address})
		}
	}
	return changes
}
