package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/portwatch/internal/history"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	now := time.Now().UTC()

	restart := history.NewEvent(history.EventRestart, "5011", 5011, now)
	restart.Command = "python serve.py"
	restart.Attempts = 1
	if err := sink.Send(ctx, restart); err != nil {
		t.Fatalf("Failed to send restart event: %v", err)
	}

	failed := history.NewEvent(history.EventLaunchFailed, "5011", 5011, now.Add(time.Second))
	failed.Attempts = 2
	failed.Error = "exit status 1"
	if err := sink.Send(ctx, failed); err != nil {
		t.Fatalf("Failed to send launch_failed event: %v", err)
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restart_history WHERE target = ?", "5011").Scan(&count); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events in history, got %d", count)
	}

	var errText sql.NullString
	if err := sink.db.QueryRowContext(ctx, "SELECT error FROM restart_history WHERE type = ?", "restart").Scan(&errText); err != nil {
		t.Fatalf("Failed to read error column: %v", err)
	}
	if errText.Valid {
		t.Errorf("Expected NULL error for restart event, got %q", errText.String)
	}

	var attempts int
	if err := sink.db.QueryRowContext(ctx, "SELECT attempts FROM restart_history WHERE id = ?", failed.ID).Scan(&attempts); err != nil {
		t.Fatalf("Failed to read attempts: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected attempts 2, got %d", attempts)
	}
}

func TestSQLiteSink_Memory(t *testing.T) {
	sink, err := New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Send(context.Background(), history.NewEvent(history.EventRecovered, "80", 80, time.Now())); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
