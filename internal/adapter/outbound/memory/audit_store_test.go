package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
)

// makeRecord creates a test record with the given request ID.
func makeRecord(reqID string) audit.Record {
	return audit.Record{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		RequestID: reqID,
		Stage:     audit.StageRateLimit,
		Decision:  audit.DecisionDeny,
		Method:    "GET",
		Path:      "/dashboard",
	}
}

func TestAuditStore_AppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := NewAuditStoreWithWriter(&buf)

	if err := store.Append(context.Background(), makeRecord("r-1"), makeRecord("r-2")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Errorf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestAuditStore_RecentNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewAuditStoreWithWriter(&bytes.Buffer{})
	for i := 0; i < 5; i++ {
		if err := store.Append(context.Background(), makeRecord(fmt.Sprintf("r-%d", i))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	recent := store.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) len = %d, want 3", len(recent))
	}
	if recent[0].RequestID != "r-4" || recent[2].RequestID != "r-2" {
		t.Errorf("Recent(3) order = %s..%s, want r-4..r-2", recent[0].RequestID, recent[2].RequestID)
	}
}

func TestAuditStore_RingBufferBounded(t *testing.T) {
	t.Parallel()

	store := NewAuditStoreWithWriter(&bytes.Buffer{}, 3)
	for i := 0; i < 10; i++ {
		if err := store.Append(context.Background(), makeRecord(fmt.Sprintf("r-%d", i))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	recent := store.Recent(100)
	if len(recent) != 3 {
		t.Fatalf("Recent len = %d, want capacity 3", len(recent))
	}
	if recent[0].RequestID != "r-9" {
		t.Errorf("newest = %s, want r-9", recent[0].RequestID)
	}
	if recent[2].RequestID != "r-7" {
		t.Errorf("oldest retained = %s, want r-7", recent[2].RequestID)
	}
}

func TestAuditStore_RecentEmpty(t *testing.T) {
	t.Parallel()

	store := NewAuditStoreWithWriter(&bytes.Buffer{})
	if got := store.Recent(5); got != nil {
		t.Errorf("Recent() on empty store = %v, want nil", got)
	}
}

func TestAuditStore_FlushAndCloseAreSafe(t *testing.T) {
	t.Parallel()

	store := NewAuditStoreWithWriter(&bytes.Buffer{})
	if err := store.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
