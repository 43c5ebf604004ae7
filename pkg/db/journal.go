package db

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
)

const journalLogPrefix = "db:journal"

const insertCommandSQL = `INSERT INTO bridge_commands
	(id, object_id, object_type, command, is_error, error_kind, duration_ms, created)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`

// Execer is the part of a pgx pool the journal writes through.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Journal writes command entries in the background. Record never blocks the caller: when
// the buffer is full the entry is dropped and counted.
type Journal struct {
	db      Execer
	entries chan *CommandEntry
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
	entropy *ulid.MonotonicEntropy
}

// NewJournal starts a journal writer with room for buffer pending entries.
func NewJournal(db Execer, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 256
	}
	j := &Journal{
		db:      db,
		entries: make(chan *CommandEntry, buffer),
		done:    make(chan struct{}),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	go j.loop()
	return j
}

// Record queues e for writing, assigning its id and timestamp when unset.
func (j *Journal) Record(e CommandEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	if e.Created.IsZero() {
		e.Created = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.Created), j.entropy).String()
	}
	select {
	case j.entries <- &e:
	default:
		j.dropped++
		if j.dropped == 1 || j.dropped%100 == 0 {
			slog.Warn(fmt.Sprintf("%s - buffer full, %d entries dropped", journalLogPrefix, j.dropped))
		}
	}
}

// Dropped returns the number of entries dropped because the buffer was full.
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

func (j *Journal) loop() {
	defer close(j.done)
	for e := range j.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := j.db.Exec(ctx, insertCommandSQL,
			e.ID, e.ObjectID, e.ObjectType, e.Command, e.IsError, e.ErrorKind, e.DurationMs, e.Created)
		cancel()
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to write entry %s: %v", journalLogPrefix, e.ID, err))
		}
	}
}

// Close stops accepting entries and waits until the pending ones are written or ctx ends.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.entries)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - pending entries not written: %w", journalLogPrefix, ctx.Err())
	}
}
