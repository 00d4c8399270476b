package tui

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherSignalsOnDatabaseWrite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mcoda.db")
	w, err := WatchWorkspaceDB(dbPath)
	if err != nil {
		t.Fatalf("WatchWorkspaceDB: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(dbPath, []byte("x"), 0644); err != nil {
		t.Fatalf("write db file: %v", err)
	}

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal after database write")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchWorkspaceDB(filepath.Join(dir, "mcoda.db"))
	if err != nil {
		t.Fatalf("WatchWorkspaceDB: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}

	select {
	case <-w.Changes():
		t.Error("unrelated file should not signal a change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherCloseDuringWrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mcoda.db")
	w, err := WatchWorkspaceDB(dbPath)
	if err != nil {
		t.Fatalf("WatchWorkspaceDB: %v", err)
	}

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			default:
				os.WriteFile(dbPath, []byte("x"), 0644)
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	w.Close()
	close(stop)
	<-writerDone

	// The watch goroutine closes the channel; drain any coalesced signal
	// until then.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Changes():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("changes channel not closed after Close")
		}
	}
}
