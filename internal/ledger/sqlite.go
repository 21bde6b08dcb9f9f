package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// SchemaVersion is the current schema version of the SQLite ledger.
const SchemaVersion = 1

// SQLiteStore keeps every vote as one row; row ids preserve insertion order.
// Appends are single INSERT statements, so several processes can share the file.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (or creates) the ledger database at dbPath and applies migrations.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("open: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("open: create db dir: %w", err)
	}

	dsn := "file:" + dbPath + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// migrate ensures the schema exists and is at SchemaVersion.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			log TEXT NOT NULL,
			subject TEXT NOT NULL,
			voter TEXT NOT NULL,
			data TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create votes table: %w", err)
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_votes_log_subject ON votes(log, subject);`); err != nil {
		return fmt.Errorf("create idx_votes_log_subject: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

// Append inserts one vote row.
func (s *SQLiteStore) Append(ctx context.Context, log model.LogName, subjectID string, vote model.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes(log, subject, voter, data) VALUES (?, ?, ?, ?);`,
		string(log), subjectID, vote.User, vote.Data)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// ReadAll rebuilds the subject mapping of log in insertion order.
func (s *SQLiteStore) ReadAll(ctx context.Context, log model.LogName) (model.Votes, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, voter, data FROM votes WHERE log = ? ORDER BY id;`, string(log))
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	votes := model.Votes{}
	for rows.Next() {
		var subject string
		var vote model.Vote
		if err := rows.Scan(&subject, &vote.User, &vote.Data); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes[subject] = append(votes[subject], vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}

// Import appends every vote of votes to log inside one transaction.
// Subjects are imported in the order given by subjects.
func (s *SQLiteStore) Import(ctx context.Context, log model.LogName, subjects []string, votes model.Votes) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for _, subject := range subjects {
		for _, vote := range votes[subject] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO votes(log, subject, voter, data) VALUES (?, ?, ?, ?);`,
				string(log), subject, vote.User, vote.Data); err != nil {
				return n, fmt.Errorf("import vote: %w", err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
