// Package ledger keeps an append-only SQLite record of committed point movements.
// The JSON documents stay authoritative; the ledger answers history questions.
package ledger

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bsoera/econ"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

type Entry struct {
	ID      int64  `db:"id"`
	At      int64  `db:"at"`
	Account string `db:"account"`
	Delta   int    `db:"delta"`
	Balance int    `db:"balance"`
	Reason  string `db:"reason"`
}

func (e Entry) Time() time.Time {
	return time.Unix(0, e.At)
}

type Total struct {
	Account string `db:"account"`
	Earned  int    `db:"earned"`
	Spent   int    `db:"spent"`
	Count   int    `db:"count"`
}

type Ledger struct {
	db *sqlx.DB
}

func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("empty ledger path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, econ.WithStack(err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, econ.WithStack(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			account TEXT NOT NULL,
			delta INTEGER NOT NULL,
			balance INTEGER NOT NULL,
			reason TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS points_account ON points (account, at);",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "initializing ledger %q", path)
		}
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return econ.WithStack(l.db.Close())
}

// Record appends entries in one transaction. Entries without a time get now.
func (l *Ledger) Record(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return econ.WithStack(err)
	}
	defer tx.Rollback()
	now := time.Now().UnixNano()
	for _, e := range entries {
		if e.At == 0 {
			e.At = now
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO points (at, account, delta, balance, reason)
			VALUES (:at, :account, :delta, :balance, :reason)`, e); err != nil {
			return econ.WithStack(err)
		}
	}
	return econ.WithStack(tx.Commit())
}

// History returns the latest entries of account, newest first.
func (l *Ledger) History(ctx context.Context, account string, limit int) ([]Entry, error) {
	result := []Entry{}
	if err := l.db.SelectContext(ctx, &result,
		"SELECT * FROM points WHERE account = ? ORDER BY at DESC, id DESC LIMIT ?", account, limit); err != nil {
		return nil, econ.WithStack(err)
	}
	return result, nil
}

// Totals sums movements per account, biggest earners first.
func (l *Ledger) Totals(ctx context.Context, limit int) ([]Total, error) {
	result := []Total{}
	if err := l.db.SelectContext(ctx, &result, `SELECT account,
			COALESCE(SUM(CASE WHEN delta > 0 THEN delta ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN delta < 0 THEN -delta ELSE 0 END), 0) AS spent,
			COUNT(*) AS count
		FROM points GROUP BY account ORDER BY earned DESC, account LIMIT ?`, limit); err != nil {
		return nil, econ.WithStack(err)
	}
	return result, nil
}
