package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"CoinSentinel/internal/model"

	_ "modernc.org/sqlite"
)

// payloadVersion tags the current archive payload shape.
const payloadVersion = 2

// archivePayload is the persisted record for one ticker. Version 1 files
// carried the whole history under a single "history" key; those are
// normalized into the fine-grained tier on read.
type archivePayload struct {
	Version  int                `json:"version"`
	Detailed []model.PricePoint `json:"detailed"`
	Hourly   []model.HourBar    `json:"hourly"`
	Daily    []model.DayBar     `json:"daily"`
	History  []model.PricePoint `json:"history,omitempty"`
}

// SQLiteArchive persists ticker archives to a SQLite database, one row per
// ticker.
type SQLiteArchive struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteArchive opens (or creates) the database and runs migrations.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode: the capture cycle writes while the selection cycle reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite archive opened: %s", dbPath)
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticker_archives (
			ticker       TEXT PRIMARY KEY,
			payload      TEXT NOT NULL,
			last_updated INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_updated ON ticker_archives(last_updated)`,
	}
	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (a *SQLiteArchive) Load(ticker string) (*model.TickerArchive, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var raw string
	var updated int64
	err := a.db.QueryRow(
		`SELECT payload, last_updated FROM ticker_archives WHERE ticker = ?`, ticker,
	).Scan(&raw, &updated)
	if err == sql.ErrNoRows {
		return emptyArchive(ticker), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load archive %s: %w", ticker, err)
	}

	var payload archivePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Malformed persisted data is treated as empty history, not fatal.
		log.Printf("[WARN] malformed archive for %s, treating as empty: %v", ticker, err)
		return emptyArchive(ticker), nil
	}

	// Legacy shape: a bare history list becomes the fine-grained tier.
	if payload.Version < payloadVersion && len(payload.Detailed) == 0 && len(payload.History) > 0 {
		payload.Detailed = payload.History
	}

	return &model.TickerArchive{
		Ticker:      ticker,
		Detailed:    payload.Detailed,
		Hourly:      payload.Hourly,
		Daily:       payload.Daily,
		LastUpdated: time.Unix(updated, 0),
	}, nil
}

func (a *SQLiteArchive) Save(arch *model.TickerArchive) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload := archivePayload{
		Version:  payloadVersion,
		Detailed: arch.Detailed,
		Hourly:   arch.Hourly,
		Daily:    arch.Daily,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal archive %s: %w", arch.Ticker, err)
	}

	_, err = a.db.Exec(
		`INSERT INTO ticker_archives (ticker, payload, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET payload = excluded.payload, last_updated = excluded.last_updated`,
		arch.Ticker, string(raw), arch.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save archive %s: %w", arch.Ticker, err)
	}
	return nil
}

// Tickers lists every archived ticker, sorted.
func (a *SQLiteArchive) Tickers() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`SELECT ticker FROM ticker_archives ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	log.Println("[INFO] closing sqlite archive")
	return a.db.Close()
}
