package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// JSONStore keeps each log as one JSON object mapping subject id to
// its list of votes. Every append rewrites the whole file through a
// temp file and a rename, under a per-log mutex. The mutex only covers
// this process; run a single writer process or use the SQLite store.
type JSONStore struct {
	dir   string
	files map[model.LogName]string
	locks map[model.LogName]*sync.Mutex
}

// NewJSONStore creates a store writing the given file names under dir.
func NewJSONStore(dir string, files map[model.LogName]string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	s := &JSONStore{
		dir:   dir,
		files: make(map[model.LogName]string),
		locks: make(map[model.LogName]*sync.Mutex),
	}
	for log, name := range files {
		if name == "" {
			name = string(log) + ".json"
		}
		s.files[log] = name
		s.locks[log] = &sync.Mutex{}
	}
	return s, nil
}

// Append loads the log, appends vote under subjectID and writes the log back.
func (s *JSONStore) Append(ctx context.Context, log model.LogName, subjectID string, vote model.Vote) error {
	mu, path, err := s.lookup(log)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	votes, err := readFile(path)
	if err != nil {
		return err
	}
	votes[subjectID] = append(votes[subjectID], vote)

	return writeFile(path, votes)
}

// ReadAll loads the whole log. A missing file is an empty log.
func (s *JSONStore) ReadAll(ctx context.Context, log model.LogName) (model.Votes, error) {
	mu, path, err := s.lookup(log)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	return readFile(path)
}

// Close is a no-op; files are closed after every operation.
func (s *JSONStore) Close() error {
	return nil
}

// Path returns the file backing log.
func (s *JSONStore) Path(log model.LogName) string {
	return filepath.Join(s.dir, s.files[log])
}

func (s *JSONStore) lookup(log model.LogName) (*sync.Mutex, string, error) {
	mu, ok := s.locks[log]
	if !ok {
		return nil, "", fmt.Errorf("log %q not configured", log)
	}
	return mu, s.Path(log), nil
}

func readFile(path string) (model.Votes, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Votes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return model.Votes{}, nil
	}

	var votes model.Votes
	if err := json.Unmarshal(data, &votes); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if votes == nil {
		votes = model.Votes{}
	}
	return votes, nil
}

func writeFile(path string, votes model.Votes) (err error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(votes); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
