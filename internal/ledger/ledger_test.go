package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

var at = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

type countingObserver struct {
	mu    sync.Mutex
	count map[string]int
}

func (o *countingObserver) ObserveVote(log string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.count == nil {
		o.count = map[string]int{}
	}
	o.count[log]++
}

func newJSONLedger(t *testing.T) (*Ledger, *JSONStore) {
	t.Helper()
	store, err := NewJSONStore(t.TempDir(), map[model.LogName]string{
		model.LogNoMotif:      "nomotifs.json",
		model.LogUnknownMotif: "unknownmotifs.json",
	})
	require.NoError(t, err)
	return New(store, nil, nil), store
}

func newSQLiteLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil, nil)
}

func backends(t *testing.T) map[string]*Ledger {
	l, _ := newJSONLedger(t)
	return map[string]*Ledger{
		"json":   l,
		"sqlite": newSQLiteLedger(t),
	}
}

func TestAppendVote_AppendsAtEndAndPreservesOthers(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, l.AppendVote(ctx, model.LogUnknownMotif, "Q1", "Alice", at))
			require.NoError(t, l.AppendVote(ctx, model.LogUnknownMotif, "Q2", "Bob", at))
			before, err := l.ReadAll(ctx, model.LogUnknownMotif)
			require.NoError(t, err)

			require.NoError(t, l.AppendVote(ctx, model.LogUnknownMotif, "Q1", "Carol", at.Add(time.Minute)))

			after, err := l.ReadAll(ctx, model.LogUnknownMotif)
			require.NoError(t, err)

			require.Len(t, after["Q1"], 2)
			assert.Equal(t, model.Vote{User: "Carol", Data: "2024-03-09T14:31:05"}, after["Q1"][1])
			assert.Equal(t, before["Q1"][0], after["Q1"][0])
			assert.Equal(t, before["Q2"], after["Q2"])
		})
	}
}

func TestAppendVote_LogsAreIndependent(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, l.AppendVote(ctx, model.LogNoMotif, "Q42", "", at))

			unknown, err := l.ReadAll(ctx, model.LogUnknownMotif)
			require.NoError(t, err)
			assert.Empty(t, unknown)

			none, err := l.ReadAll(ctx, model.LogNoMotif)
			require.NoError(t, err)
			assert.Equal(t, []model.Vote{{User: "", Data: "2024-03-09T14:30:05"}}, none["Q42"])
		})
	}
}

func TestAppendVote_Validation(t *testing.T) {
	l, _ := newJSONLedger(t)
	ctx := context.Background()

	err := l.AppendVote(ctx, model.LogName("other"), "Q1", "Alice", at)
	assert.True(t, apperr.Is(err, apperr.KindLedgerIO))

	err = l.AppendVote(ctx, model.LogNoMotif, "  ", "Alice", at)
	assert.True(t, apperr.Is(err, apperr.KindMalformedSubmission))
}

func TestAppendVote_ConcurrentWritersLoseNothing(t *testing.T) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 25

			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, l.AppendVote(ctx, model.LogNoMotif, "Q7", "user", at))
				}()
			}
			wg.Wait()

			votes, err := l.ReadAll(ctx, model.LogNoMotif)
			require.NoError(t, err)
			assert.Len(t, votes["Q7"], writers)
		})
	}
}

func TestJSONStore_FileFormat(t *testing.T) {
	l, store := newJSONLedger(t)
	ctx := context.Background()

	require.NoError(t, l.AppendVote(ctx, model.LogNoMotif, "Q42", "José", at))

	data, err := os.ReadFile(store.Path(model.LogNoMotif))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Q42":[{"user":"José","data":"2024-03-09T14:30:05"}]}`, string(data))
	assert.Contains(t, string(data), "José", "non-ASCII names are written unescaped")

	entries, err := os.ReadDir(filepath.Dir(store.Path(model.LogNoMotif)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestJSONStore_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := map[string][]model.Vote{"Q9": {{User: "Old", Data: "2021-01-01T00:00:00"}}}
	data, _ := json.Marshal(existing)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unknownmotifs.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nomotifs.json"), []byte(""), 0o644))

	store, err := NewJSONStore(dir, map[model.LogName]string{
		model.LogNoMotif:      "nomotifs.json",
		model.LogUnknownMotif: "unknownmotifs.json",
	})
	require.NoError(t, err)
	l := New(store, nil, nil)

	require.NoError(t, l.AppendVote(context.Background(), model.LogUnknownMotif, "Q9", "New", at))
	votes, err := l.ReadAll(context.Background(), model.LogUnknownMotif)
	require.NoError(t, err)
	assert.Equal(t, []model.Vote{
		{User: "Old", Data: "2021-01-01T00:00:00"},
		{User: "New", Data: "2024-03-09T14:30:05"},
	}, votes["Q9"])

	empty, err := l.ReadAll(context.Background(), model.LogNoMotif)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestJSONStore_CorruptFileIsLedgerIO(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nomotifs.json"), []byte("{not json"), 0o644))

	store, err := NewJSONStore(dir, map[model.LogName]string{model.LogNoMotif: "nomotifs.json"})
	require.NoError(t, err)
	l := New(store, nil, nil)

	err = l.AppendVote(context.Background(), model.LogNoMotif, "Q1", "A", at)
	assert.True(t, apperr.Is(err, apperr.KindLedgerIO))

	data, _ := os.ReadFile(filepath.Join(dir, "nomotifs.json"))
	assert.Equal(t, "{not json", string(data), "a failed append leaves the file untouched")
}

func TestLedger_NotifiesObserver(t *testing.T) {
	store, err := NewJSONStore(t.TempDir(), map[model.LogName]string{model.LogNoMotif: ""})
	require.NoError(t, err)
	obs := &countingObserver{}
	l := New(store, obs, nil)

	require.NoError(t, l.AppendVote(context.Background(), model.LogNoMotif, "Q1", "A", at))
	assert.Equal(t, 1, obs.count["nomotifs"])
}

func TestSQLiteStore_Import(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	votes := model.Votes{
		"Q1": {{User: "A", Data: "2020-01-01T00:00:00"}, {User: "B", Data: "2020-01-02T00:00:00"}},
		"Q2": {{User: "C", Data: "2020-01-03T00:00:00"}},
	}
	n, err := store.Import(context.Background(), model.LogNoMotif, []string{"Q1", "Q2"}, votes)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.ReadAll(context.Background(), model.LogNoMotif)
	require.NoError(t, err)
	assert.Equal(t, votes, got)
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(model.LedgerConfig{Backend: model.LedgerBackendJSON, Dir: dir, NoMotifFile: "a.json", UnknownFile: "b.json"})
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(model.LedgerConfig{Backend: model.LedgerBackendSQLite, SQLitePath: filepath.Join(dir, "l.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	_ = s.Close()

	_, err = Open(model.LedgerConfig{Backend: "redis"})
	assert.Error(t, err)
}
