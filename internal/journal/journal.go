package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// --- Transaction Journal ---
//
// Local audit trail of terminal operations. Every completed orchestrator
// call is appended here; the status API reads it back for on-site
// diagnostics. This is not the device configuration store.

type Entry struct {
	ID         int64     `json:"id"`
	Operation  string    `json:"operation"`
	Reference  string    `json:"reference"`
	Amount     string    `json:"amount,omitempty"`
	ResultCode string    `json:"resultCode"`
	Message    string    `json:"message,omitempty"`
	Success    bool      `json:"success"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS transactions(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		reference TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '',
		result_code TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`)
	return err
}

func (j *Journal) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO transactions(operation, reference, amount, result_code, message, success, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?);`,
		e.Operation, e.Reference, e.Amount, e.ResultCode, e.Message, e.Success, e.CreatedAt,
	)
	return err
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(
		`SELECT id, operation, reference, amount, result_code, message, success, created_at
		 FROM transactions ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Operation, &e.Reference, &e.Amount,
			&e.ResultCode, &e.Message, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
