package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeRecord creates a test record with the given timestamp and request ID.
func makeRecord(ts time.Time, reqID string) audit.Record {
	return audit.Record{
		Timestamp: ts,
		RequestID: reqID,
		Stage:     audit.StageShield,
		Decision:  audit.DecisionDeny,
		Reason:    "sql injection signature",
		Method:    "GET",
		Path:      "/search",
	}
}

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "decisions")
	store, err := NewFileStore(FileConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory, got file")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0700 {
		t.Errorf("directory mode = %o, want 0700", info.Mode().Perm())
	}
}

func TestFileStore_AppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(FileConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	if err := store.Append(context.Background(), makeRecord(now, "r-1"), makeRecord(now, "r-2")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("decisions-%s.log", now.Format("2006-01-02")))
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	var ids []string
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		ids = append(ids, rec.RequestID)
	}
	if len(ids) != 2 || ids[0] != "r-1" || ids[1] != "r-2" {
		t.Errorf("ids = %v, want [r-1 r-2]", ids)
	}
}

func TestFileStore_DateRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(FileConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	day1 := time.Now().UTC()
	day2 := day1.AddDate(0, 0, 1)

	if err := store.Append(context.Background(), makeRecord(day1, "r-1")); err != nil {
		t.Fatalf("Append() day1 error: %v", err)
	}
	if err := store.Append(context.Background(), makeRecord(day2, "r-2")); err != nil {
		t.Fatalf("Append() day2 error: %v", err)
	}

	for _, d := range []time.Time{day1, day2} {
		path := filepath.Join(dir, fmt.Sprintf("decisions-%s.log", d.Format("2006-01-02")))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected log file for %s: %v", d.Format("2006-01-02"), err)
		}
	}
}

func TestFileStore_SizeRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// 1MB cap; pad records so a handful of appends cross it.
	store, err := NewFileStore(FileConfig{Dir: dir, MaxFileSizeMB: 1}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	rec := makeRecord(now, "r-big")
	rec.Reason = strings.Repeat("x", 256*1024)

	for i := 0; i < 6; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	date := now.Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("decisions-%s-1.log", date))); err != nil {
		t.Errorf("expected suffixed rollover file: %v", err)
	}
}

func TestFileStore_ResumesHighestSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	date := time.Now().UTC().Format("2006-01-02")
	for _, name := range []string{
		fmt.Sprintf("decisions-%s.log", date),
		fmt.Sprintf("decisions-%s-1.log", date),
		fmt.Sprintf("decisions-%s-2.log", date),
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}

	store, err := NewFileStore(FileConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Append(context.Background(), makeRecord(time.Now().UTC(), "r-1")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, fmt.Sprintf("decisions-%s-2.log", date)))
	if err != nil {
		t.Fatalf("stat suffix-2 file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("append did not resume the highest suffix file")
	}
}

func TestFileStore_RetentionCleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	oldPath := filepath.Join(dir, fmt.Sprintf("decisions-%s.log", old))
	if err := os.WriteFile(oldPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("seed old file: %v", err)
	}
	keepPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(keepPath, []byte("keep"), 0600); err != nil {
		t.Fatalf("seed unrelated file: %v", err)
	}

	store, err := NewFileStore(FileConfig{Dir: dir, RetentionDays: 7}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("expired log file not deleted at startup")
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Error("cleanup touched a file outside the log naming scheme")
	}
}

func TestFileStore_AppendAfterClose(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(FileConfig{Dir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if err := store.Append(context.Background(), makeRecord(time.Now().UTC(), "r-1")); err == nil {
		t.Error("Append() after Close() expected error, got nil")
	}
}

func TestParseLogFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		wantOK   bool
		wantDate string
		wantSfx  int
	}{
		{"decisions-2025-06-01.log", true, "2025-06-01", 0},
		{"decisions-2025-06-01-3.log", true, "2025-06-01", 3},
		{"decisions-2025-06-01.log.gz", false, "", 0},
		{"audit-2025-06-01.log", false, "", 0},
		{"decisions-20250601.log", false, "", 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info, ok := parseLogFilename(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if info.date != tt.wantDate || info.suffix != tt.wantSfx {
				t.Errorf("parsed = %+v, want date %s suffix %d", info, tt.wantDate, tt.wantSfx)
			}
		})
	}
}
