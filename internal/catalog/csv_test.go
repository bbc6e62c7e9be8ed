package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	logx "adventbot/pkg/logx"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()
	in := strings.Join([]string{
		"id,title,artist,link,from,message,audio,date,slot",
		`1, Silent Night ,Choir,https://x/1,Maria,"Merry, merry!",,2025-12-01,1`,
		"2,Carol,,,,,file123,,",
		",Headless,,,,,,,", // no id, skipped
		"3,Last,Band,,,,,2025-12-24,3",
	}, "\n")

	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	want := []Track{
		{ID: "1", Title: "Silent Night", Artist: "Choir", Link: "https://x/1", From: "Maria", Message: "Merry, merry!", Date: "2025-12-01", Slot: "1"},
		{ID: "2", Title: "Carol", AudioID: "file123"},
		{ID: "3", Title: "Last", Artist: "Band", Date: "2025-12-24", Slot: "3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tracks mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSVColumnOrderIndependent(t *testing.T) {
	t.Parallel()
	in := "title,id,extra\nSong,42,ignored\n"

	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	want := []Track{{ID: "42", Title: "Song"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tracks mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSVMissingIDColumn(t *testing.T) {
	t.Parallel()
	if _, err := ParseCSV(strings.NewReader("title,artist\nA,B\n")); err == nil {
		t.Fatal("want error for csv without id column")
	}
}

func TestParseCSVEmptyInput(t *testing.T) {
	t.Parallel()
	got, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("tracks = %v, want none", got)
	}
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	t.Parallel()
	snap, err := LoadFile(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("snapshot len = %d, want 0", snap.Len())
	}
}

func TestReloadKeepsSnapshotOnParseError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tracks.csv")
	if err := os.WriteFile(path, []byte("id,title\n1,Good\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewService(path, logx.Nop())
	if n, err := svc.Reload(); err != nil || n != 1 {
		t.Fatalf("Reload = %d, %v, want 1 track", n, err)
	}

	// Broken quoting makes the file unparseable.
	if err := os.WriteFile(path, []byte("id,title\n1,\"broken\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := svc.Reload(); err == nil {
		t.Fatal("want parse error from Reload")
	}
	if svc.Snapshot().Len() != 1 {
		t.Fatalf("snapshot len = %d, want previous snapshot kept", svc.Snapshot().Len())
	}
}

func TestSnapshotForSlotSkipsEmptyTracks(t *testing.T) {
	t.Parallel()
	snap := NewSnapshot([]Track{
		{ID: "1", Title: "A", Date: "2025-12-01", Slot: "1"},
		{ID: "2", Date: "2025-12-01", Slot: "1"}, // nothing deliverable
		{ID: "3", Title: "C", Date: "2025-12-01", Slot: "2"},
	})

	got := snap.ForSlot("2025-12-01", "1")
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("ForSlot = %v, want only track 1", got)
	}
}
