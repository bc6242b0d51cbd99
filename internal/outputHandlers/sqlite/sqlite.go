package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/AlfredBerg/green-scraper/internal/record"
)

type row struct {
	runID    string
	position int
	url      string
	record   string
}

type SqliteOutput struct {
	Database string
	db       *sql.DB
	rowChan  chan row
	wg       sync.WaitGroup

	errMu sync.Mutex
	err   error
}

func (o *SqliteOutput) Init() error {
	if o.Database == "" {
		return errors.New("sqlite database file not set")
	}

	db, err := sql.Open("sqlite3", o.Database)
	if err != nil {
		return err
	}
	o.db = db

	createListings := `CREATE TABLE IF NOT EXISTS listings (
		id integer not null primary key,
		run_id text not null,
		position integer not null,
		url text not null,
		record text not null,
		created_at timestamp not null
	);`
	if _, err := db.Exec(createListings); err != nil {
		db.Close()
		return fmt.Errorf("failed to create table listings: %w", err)
	}

	//Buffered channel as a whole run is handed over at once
	o.rowChan = make(chan row, 20)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		insert := "INSERT into listings(run_id, position, url, record, created_at) values(?, ?, ?, ?, ?);"
		for r := range o.rowChan {
			_, err := db.Exec(insert, r.runID, r.position, r.url, r.record, time.Now().UTC())
			if err != nil {
				o.errMu.Lock()
				o.err = multierr.Append(o.err, fmt.Errorf("failed to insert listing %s: %w", r.url, err))
				o.errMu.Unlock()
			}
		}
	}()
	return nil
}

// Cleanup flushes pending rows and closes the database. Insert failures are
// reported here since Handle only queues.
func (o *SqliteOutput) Cleanup() error {
	close(o.rowChan)
	o.wg.Wait()

	o.errMu.Lock()
	err := o.err
	o.errMu.Unlock()
	return multierr.Append(err, o.db.Close())
}

// Handle queues the records of a run. The go sqlite driver does not allow for
// concurrent writes, so all inserts go through one goroutine.
func (o *SqliteOutput) Handle(ctx context.Context, runID string, records []record.Record) error {
	for i, rec := range records {
		rjson, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		r := row{runID: runID, position: i + 1, url: rec.Get(record.ListingURL), record: string(rjson)}
		select {
		case o.rowChan <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Records reads back the records of a run in listing order. Call it after
// Cleanup or on a separately opened output.
func Records(ctx context.Context, database, runID string) ([]record.Record, error) {
	db, err := sql.Open("sqlite3", database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT record FROM listings WHERE run_id = ? ORDER BY position;", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("corrupt record in run %s: %w", runID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestRun returns the id of the most recently written run.
func LatestRun(ctx context.Context, database string) (string, error) {
	db, err := sql.Open("sqlite3", database)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var runID string
	err = db.QueryRowContext(ctx, "SELECT run_id FROM listings ORDER BY id DESC LIMIT 1;").Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no runs in %s", database)
	}
	return runID, err
}
