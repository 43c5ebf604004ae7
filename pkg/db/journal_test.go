package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const journalTestPrefix = "db:journal_test"

type recordingExecer struct {
	mu   sync.Mutex
	rows [][]any
	gate chan struct{}
	fail error
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, args)
	return pgconn.CommandTag{}, r.fail
}

func (r *recordingExecer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func TestJournal_WritesEntries(t *testing.T) {
	ex := &recordingExecer{}
	j := NewJournal(ex, 8)

	j.Record(CommandEntry{ObjectID: "Page@1", ObjectType: "Page", Command: "goto", DurationMs: 12})
	j.Record(CommandEntry{ObjectID: "Page@1", ObjectType: "Page", Command: "bogus", IsError: true, ErrorKind: "capability"})

	if err := j.Close(context.Background()); err != nil {
		t.Fatalf("%s - Close: %v", journalTestPrefix, err)
	}
	if ex.count() != 2 {
		t.Fatalf("%s - wrote %d rows, want 2", journalTestPrefix, ex.count())
	}

	first, second := ex.rows[0], ex.rows[1]
	id1, id2 := first[0].(string), second[0].(string)
	if len(id1) != 26 || id1 >= id2 {
		t.Errorf("%s - ids must be increasing ULIDs, got %q then %q", journalTestPrefix, id1, id2)
	}
	if first[3] != "goto" || second[4] != true || second[5] != "capability" {
		t.Errorf("%s - unexpected rows %v / %v", journalTestPrefix, first, second)
	}
	if created, ok := first[7].(time.Time); !ok || created.IsZero() {
		t.Errorf("%s - created not set: %v", journalTestPrefix, first[7])
	}
}

func TestJournal_DropsWhenFull(t *testing.T) {
	ex := &recordingExecer{gate: make(chan struct{})}
	j := NewJournal(ex, 1)

	// one entry is held by the blocked writer, one fills the buffer
	for i := 0; i < 5; i++ {
		j.Record(CommandEntry{ObjectID: "Page@1", Command: "title"})
		time.Sleep(5 * time.Millisecond)
	}
	if j.Dropped() < 3 {
		t.Errorf("%s - dropped = %d, want at least 3", journalTestPrefix, j.Dropped())
	}
	close(ex.gate)
	if err := j.Close(context.Background()); err != nil {
		t.Fatalf("%s - Close: %v", journalTestPrefix, err)
	}
}

func TestJournal_CloseDeadlineAndWriteErrors(t *testing.T) {
	ex := &recordingExecer{gate: make(chan struct{}), fail: errors.New("relation does not exist")}
	j := NewJournal(ex, 4)
	j.Record(CommandEntry{ObjectID: "Browser@1", Command: "newPage"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := j.Close(ctx); err == nil {
		t.Errorf("%s - expected deadline error while the writer is blocked", journalTestPrefix)
	}

	close(ex.gate)
	if err := j.Close(context.Background()); err != nil {
		t.Errorf("%s - second Close: %v", journalTestPrefix, err)
	}
	// closed journals ignore new entries
	j.Record(CommandEntry{ObjectID: "Browser@1", Command: "close"})
	if ex.count() != 1 {
		t.Errorf("%s - rows = %d, want 1", journalTestPrefix, ex.count())
	}
}
