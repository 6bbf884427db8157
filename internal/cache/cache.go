package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/FelixSchausberger/trotd/internal/repo"
	_ "modernc.org/sqlite"
)

const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type Cache struct {
	readDB  *sql.DB
	writeDB *sql.DB
	now     func() time.Time
}

func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &Cache{readDB: readDB, writeDB: writeDB, now: time.Now}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			fingerprint TEXT PRIMARY KEY,
			provider    TEXT NOT NULL,
			fetched_at  INTEGER NOT NULL,
			ttl_ns      INTEGER NOT NULL,
			payload     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_provider ON records(provider);
		CREATE INDEX IF NOT EXISTS idx_records_fetched_at ON records(fetched_at);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	return errors.Join(errs...)
}

// GetFresh returns the record for fingerprint if it is still within its TTL.
// It returns nil, nil when there is no record or the record has expired.
func (c *Cache) GetFresh(ctx context.Context, fingerprint string) (*Record, error) {
	rec, err := c.get(ctx, fingerprint)
	if err != nil || rec == nil {
		return nil, err
	}
	if !rec.Fresh(c.now()) {
		return nil, nil
	}
	return rec, nil
}

// GetStale returns the record for fingerprint regardless of its age.
func (c *Cache) GetStale(ctx context.Context, fingerprint string) (*Record, error) {
	return c.get(ctx, fingerprint)
}

func (c *Cache) get(ctx context.Context, fingerprint string) (*Record, error) {
	var (
		rec       Record
		fetchedAt int64
		ttl       int64
		payload   string
	)
	err := c.readDB.QueryRowContext(ctx,
		"SELECT fingerprint, provider, fetched_at, ttl_ns, payload FROM records WHERE fingerprint = ?",
		fingerprint,
	).Scan(&rec.Fingerprint, &rec.Provider, &fetchedAt, &ttl, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", fingerprint, err)
	}

	if err := json.Unmarshal([]byte(payload), &rec.Entries); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", fingerprint, err)
	}
	rec.FetchedAt = time.Unix(0, fetchedAt).UTC()
	rec.TTL = time.Duration(ttl)
	return &rec, nil
}

// Put stores rec, replacing any earlier record with the same fingerprint.
func (c *Cache) Put(ctx context.Context, rec Record) error {
	if rec.Fingerprint == "" {
		return fmt.Errorf("record has no fingerprint")
	}
	entries := rec.Entries
	if entries == nil {
		entries = []repo.Entry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.Fingerprint, err)
	}

	tx, err := c.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (fingerprint, provider, fetched_at, ttl_ns, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			provider = excluded.provider,
			fetched_at = excluded.fetched_at,
			ttl_ns = excluded.ttl_ns,
			payload = excluded.payload
	`, rec.Fingerprint, rec.Provider, rec.FetchedAt.UnixNano(), int64(rec.TTL), string(payload))
	if err != nil {
		return fmt.Errorf("writing record %s: %w", rec.Fingerprint, err)
	}
	return tx.Commit()
}

func (c *Cache) Delete(ctx context.Context, fingerprint string) error {
	_, err := c.writeDB.ExecContext(ctx, "DELETE FROM records WHERE fingerprint = ?", fingerprint)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", fingerprint, err)
	}
	return nil
}

// Prune removes records fetched more than olderThan ago. Expired records are
// still useful as fallbacks, so the cutoff is the retention period, not the TTL.
func (c *Cache) Prune(olderThan time.Duration) (int64, error) {
	cutoff := c.now().Add(-olderThan).UnixNano()
	res, err := c.writeDB.Exec("DELETE FROM records WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := c.writeDB.Exec("VACUUM"); err != nil {
			return n, fmt.Errorf("vacuum: %w", err)
		}
	}
	return n, nil
}

// Stats reports record counts per provider and the on-disk size of dbPath.
func (c *Cache) Stats(dbPath string) (Stats, error) {
	st := Stats{Providers: make(map[string]int)}

	rows, err := c.readDB.Query("SELECT provider, COUNT(*) FROM records GROUP BY provider ORDER BY provider")
	if err != nil {
		return st, fmt.Errorf("counting records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			provider string
			n        int
		)
		if err := rows.Scan(&provider, &n); err != nil {
			return st, fmt.Errorf("scanning stats: %w", err)
		}
		st.Providers[provider] = n
		st.Records += n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	if fi, err := os.Stat(dbPath); err == nil {
		st.Size = fi.Size()
	}
	st.LastRun, _ = c.LastRun()
	return st, nil
}

func (c *Cache) NeedsRefresh(interval time.Duration) bool {
	t, err := c.LastRun()
	if err != nil {
		return true
	}
	return c.now().Sub(t) > interval
}

func (c *Cache) LastRun() (time.Time, error) {
	value, err := c.getMeta("last_run")
	if err != nil {
		return time.Time{}, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last_run: %w", err)
	}
	return time.Unix(0, n).UTC(), nil
}

func (c *Cache) SetLastRun() error {
	return c.setMeta("last_run", strconv.FormatInt(c.now().UnixNano(), 10))
}

func (c *Cache) getMeta(key string) (string, error) {
	var value string
	err := c.readDB.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	return value, err
}

func (c *Cache) setMeta(key, value string) error {
	_, err := c.writeDB.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
