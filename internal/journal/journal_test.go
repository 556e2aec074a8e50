package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndRecentRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.sqlite")
	j, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open journal failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	first := Entry{At: time.Now().Add(-time.Minute), ApkPath: "/builds/app-v1.apk", SizeBytes: 400000, ExitCode: 1}
	second := Entry{At: time.Now(), ApkPath: "/builds/app-v2.apk", SizeBytes: 500000, ExitCode: 0, Succeeded: true}
	if err := j.Record(first); err != nil {
		t.Fatalf("record first failed: %v", err)
	}
	if err := j.Record(second); err != nil {
		t.Fatalf("record second failed: %v", err)
	}

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ApkPath != "/builds/app-v2.apk" || !entries[0].Succeeded {
		t.Fatalf("expected newest successful entry first, got %+v", entries[0])
	}
	if entries[1].ExitCode != 1 || entries[1].Succeeded {
		t.Fatalf("expected failed v1 entry second, got %+v", entries[1])
	}
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	if err := j.Record(Entry{ApkPath: "/x.apk"}); err != nil {
		t.Fatalf("nil journal record must be a no-op: %v", err)
	}
	if entries, err := j.Recent(5); err != nil || entries != nil {
		t.Fatalf("nil journal recent must return nothing: %v %v", entries, err)
	}
}
