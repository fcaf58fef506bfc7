package store

import (
	"path/filepath"
	"testing"
	"time"

	"qcping/internal/model"
)

func TestLoadSnapshot_MissingFile_ReturnsEmpty(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	snap, err := LoadSnapshot(filepath.Join(tmp, "streams.yaml"))
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap == nil {
		t.Fatalf("snapshot is nil")
	}
	if len(snap.Streams) != 0 {
		t.Fatalf("streams=%d", len(snap.Streams))
	}
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "out", "streams.yaml")

	addr := &model.Address{IP: "10.0.0.5", Port: 18000}
	entries := []model.StreamEntry{
		{ID: model.StreamID{Network: "GE", Station: "APE", Channel: "BHZ"}, Configured: true, Address: addr},
		{ID: model.StreamID{Network: "GE", Station: "APE", Channel: "BHN"}},
	}
	in := FromEntries(entries, time.Unix(100, 0))
	if err := SaveSnapshot(path, in); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	out, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(out.Streams) != 2 {
		t.Fatalf("streams=%d", len(out.Streams))
	}
	if out.Streams[0].ID != "GE.APE..BHZ" || out.Streams[0].Address != "10.0.0.5:18000" || !out.Streams[0].Configured {
		t.Fatalf("stream[0]=%+v", out.Streams[0])
	}
	if out.Streams[1].Address != "" || out.Streams[1].Configured {
		t.Fatalf("stream[1]=%+v", out.Streams[1])
	}
	if out.Addressed() != 1 {
		t.Fatalf("addressed=%d", out.Addressed())
	}
	if !out.GeneratedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("generated_at=%v", out.GeneratedAt)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	prev := &Snapshot{Streams: []StreamInfo{
		{ID: "GE.APE..BHZ", Configured: true, Address: "10.0.0.5:18000"},
		{ID: "GE.BKB..BHZ", Configured: true, Address: "10.0.0.6:18000"},
		{ID: "GE.KBS..BHZ", Configured: false},
		{ID: "GE.OLD..BHZ", Configured: true, Address: "10.0.0.9:18000"},
	}}
	next := &Snapshot{Streams: []StreamInfo{
		{ID: "GE.APE..BHZ", Configured: true, Address: "10.0.0.5:18000"},
		{ID: "GE.BKB..BHZ", Configured: true, Address: "10.0.0.7:18000"},
		{ID: "GE.KBS..BHZ", Configured: true},
		{ID: "GE.NEW..BHZ", Configured: true, Address: "10.0.0.8:18000"},
	}}

	got := Diff(prev, next)
	want := []Change{
		{Kind: ChangeAddressed, ID: "GE.BKB..BHZ", From: "10.0.0.6:18000", To: "10.0.0.7:18000"},
		{Kind: ChangeBinding, ID: "GE.KBS..BHZ", From: "false", To: "true"},
		{Kind: ChangeAdded, ID: "GE.NEW..BHZ", To: "10.0.0.8:18000"},
		{Kind: ChangeRemoved, ID: "GE.OLD..BHZ", From: "10.0.0.9:18000"},
	}
	if len(got) != len(want) {
		t.Fatalf("changes=%+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("change[%d]=%+v want %+v", i, got[i], want[i])
		}
	}

	if changes := Diff(&Snapshot{}, &Snapshot{}); len(changes) != 0 {
		t.Fatalf("empty diff=%+v", changes)
	}
}
