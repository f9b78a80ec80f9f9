package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	appErrors "carelite/internal/errors"
	"carelite/internal/update"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func version(t *testing.T, s string) update.Version {
	t.Helper()
	v, err := update.ParseVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("Open() should reject an empty path")
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)

	results := []update.Result{
		{SessionID: "a", Outcome: update.OutcomeUpToDate, State: update.StateIdle,
			Current: version(t, "2.1.0"), Latest: version(t, "2.1.0"),
			Started: base, Finished: base.Add(time.Second)},
		{SessionID: "b", Outcome: update.OutcomeFailed, State: update.StateAborted,
			Current: version(t, "1.9.0"), Latest: version(t, "2.1.0"),
			Err:     appErrors.New(appErrors.CodeNetwork, "download carelite.exe", nil),
			Started: base.Add(time.Hour), Finished: base.Add(time.Hour + 2*time.Second)},
		{Outcome: update.OutcomeBusy},
		{SessionID: "c", Outcome: update.OutcomeSkipped, State: update.StateIdle,
			Started: base.Add(2 * time.Hour), Finished: base.Add(2 * time.Hour)},
	}
	for _, r := range results {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error: %v", r.SessionID, err)
		}
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (busy results are not stored)", len(entries))
	}
	if entries[0].SessionID != "c" || entries[1].SessionID != "b" || entries[2].SessionID != "a" {
		t.Errorf("order = %s,%s,%s; want newest first", entries[0].SessionID, entries[1].SessionID, entries[2].SessionID)
	}

	failed := entries[1]
	if failed.Outcome != "failed" || failed.State != "aborted" {
		t.Errorf("failed entry = %+v", failed)
	}
	if failed.ErrorCode != string(appErrors.CodeNetwork) || failed.Error != "download carelite.exe" {
		t.Errorf("error fields = %q %q", failed.ErrorCode, failed.Error)
	}
	if failed.Current != "1.9.0" || failed.Latest != "2.1.0" {
		t.Errorf("versions = %s -> %s", failed.Current, failed.Latest)
	}
	if !failed.Started.Equal(base.Add(time.Hour)) {
		t.Errorf("started = %v", failed.Started)
	}
	if entries[0].Current != "" {
		t.Errorf("skipped session current = %q, want empty", entries[0].Current)
	}

	limited, err := s.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Recent(1) = %d entries, %v", len(limited), err)
	}
}

func TestLastCheck(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, ok, err := s.LastCheck(ctx); err != nil || ok {
		t.Fatalf("LastCheck() on empty store = %v, %v", ok, err)
	}

	base := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)
	_ = s.Record(ctx, update.Result{SessionID: "a", Outcome: update.OutcomeUpToDate, Started: base, Finished: base.Add(time.Second)})
	_ = s.Record(ctx, update.Result{SessionID: "b", Outcome: update.OutcomeSkipped, Started: base.Add(time.Hour), Finished: base.Add(time.Hour)})

	last, ok, err := s.LastCheck(ctx)
	if err != nil || !ok {
		t.Fatalf("LastCheck() = %v, %v", ok, err)
	}
	if !last.Equal(base.Add(time.Second)) {
		t.Errorf("LastCheck() = %v, want %v", last, base.Add(time.Second))
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := s.Record(ctx, update.Result{SessionID: "x", Outcome: update.OutcomeDeclined, Started: now, Finished: now}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	entries, err := s.Recent(ctx, 0)
	if err != nil || len(entries) != 1 || entries[0].Outcome != "declined" {
		t.Errorf("entries after reopen = %+v, %v", entries, err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
}
