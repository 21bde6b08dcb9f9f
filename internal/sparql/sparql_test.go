package sparql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimovimentobrasil/wikimotivos/internal/cache"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

const resultsBody = `{
  "head": {"vars": ["item", "itemLabel", "image"]},
  "results": {"bindings": [
    {"item": {"type": "uri", "value": "http://www.wikidata.org/entity/Q59281063"},
     "itemLabel": {"type": "literal", "xml:lang": "pt-br", "value": "Independência ou Morte"},
     "image": {"type": "uri", "value": "http://commons.wikimedia.org/wiki/Special:FilePath/Independ%C3%AAncia.jpg"}},
    {"item": {"type": "uri", "value": "http://www.wikidata.org/entity/Q1"},
     "itemLabel": {"type": "literal", "value": "universo"}}
  ]}
}`

func TestQuery(t *testing.T) {
	var gotQuery, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotQuery = r.PostForm.Get("query")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(resultsBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), model.HTTPConfig{Timeout: time.Second, UserAgent: "test"})
	rows, err := c.Query(context.Background(), "SELECT ?item WHERE {}")
	require.NoError(t, err)

	assert.Equal(t, "SELECT ?item WHERE {}", gotQuery)
	assert.Equal(t, "application/sparql-results+json", gotAccept)
	require.Len(t, rows, 2)
	assert.Equal(t, "Independência ou Morte", rows[0]["itemLabel"])
	assert.Equal(t, "Q59281063", EntityID(rows[0]["item"]))
	_, bound := rows[1]["image"]
	assert.False(t, bound)
}

func TestQueryCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(resultsBody))
	}))
	defer srv.Close()

	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	c := NewClient(srv.URL, srv.Client(), model.HTTPConfig{Timeout: time.Second}, WithCache(mem, time.Minute))

	first, err := c.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	second, err := c.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueryErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("<html><body><h1>Too Many Requests</h1></body></html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), model.HTTPConfig{Timeout: time.Second})
	_, err := c.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestEntityID(t *testing.T) {
	assert.Equal(t, "Q42", EntityID("http://www.wikidata.org/entity/Q42"))
	assert.Equal(t, "literal", EntityID("literal"))
}
