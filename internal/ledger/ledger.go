// Package ledger keeps the append-only vote logs for works whose motifs
// are disputed ("no motif depicted") or uncertain ("motif unknown").
// Curators review the logs later; nothing is ever deleted or rewritten
// except by appending.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// Store persists vote logs keyed by subject id.
// Implementations serialize appends to the same log.
type Store interface {
	Append(ctx context.Context, log model.LogName, subjectID string, vote model.Vote) error
	ReadAll(ctx context.Context, log model.LogName) (model.Votes, error)
	Close() error
}

// VoteObserver is notified after every successful append.
type VoteObserver interface {
	ObserveVote(log string)
}

// Ledger validates and records votes on top of a Store.
type Ledger struct {
	store    Store
	observer VoteObserver
	logger   *slog.Logger
}

// New creates a ledger over store. observer may be nil.
func New(store Store, observer VoteObserver, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, observer: observer, logger: logger}
}

// AppendVote appends {user, at} to the sequence of subjectID in log.
func (l *Ledger) AppendVote(ctx context.Context, log model.LogName, subjectID, user string, at time.Time) error {
	subjectID = strings.TrimSpace(subjectID)
	if !log.Valid() {
		return apperr.LedgerIO("ledger.append", fmt.Errorf("unknown log %q", log))
	}
	if subjectID == "" {
		return apperr.Malformed("ledger.append", "empty subject id")
	}

	vote := model.NewVote(user, at)
	if err := l.store.Append(ctx, log, subjectID, vote); err != nil {
		return apperr.LedgerIO("ledger.append", err)
	}

	if l.observer != nil {
		l.observer.ObserveVote(string(log))
	}
	l.logger.Info("vote recorded", "log", log, "subject", subjectID, "user", user)
	return nil
}

// ReadAll returns the full mapping of log.
func (l *Ledger) ReadAll(ctx context.Context, log model.LogName) (model.Votes, error) {
	if !log.Valid() {
		return nil, apperr.LedgerIO("ledger.read", fmt.Errorf("unknown log %q", log))
	}
	votes, err := l.store.ReadAll(ctx, log)
	if err != nil {
		return nil, apperr.LedgerIO("ledger.read", err)
	}
	return votes, nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// Open builds the store selected by cfg.
func Open(cfg model.LedgerConfig) (Store, error) {
	switch cfg.Backend {
	case model.LedgerBackendJSON, "":
		return NewJSONStore(cfg.Dir, map[model.LogName]string{
			model.LogNoMotif:      cfg.NoMotifFile,
			model.LogUnknownMotif: cfg.UnknownFile,
		})
	case model.LedgerBackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", cfg.Backend)
	}
}
