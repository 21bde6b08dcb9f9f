package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimovimentobrasil/wikimotivos/internal/sparql"
)

const testCatalog = `{
  "Pinturas": {"query": "SELECT ?item WHERE { ?item wdt:P31 wd:Q3305213 } # LANGUAGE", "descriptor": {"pt-br": "Pinturas", "en": "Paintings"}},
  "Metadados": {"query": "SELECT ?title WHERE { wd:QIDDAOBRA wdt:P1476 ?title } # LANGUAGE"},
  "Motivos": {"query": "SELECT ?motif WHERE { wd:QIDDAOBRA wdt:P180 ?motif }"},
  "Next_qid": {"query": "SELECT ?next_qid WHERE { FILTER(?next_qid != wd:QIDDAOBRA) }"},
  "Quantidade_de_objetos": {"query": "SELECT (COUNT(?item) AS ?count) WHERE {}"}
}`

// fakeQuerier answers by matching a substring of the query.
type fakeQuerier struct {
	answers map[string][]sparql.Row
	err     error
	queries []string
}

func (f *fakeQuerier) Query(ctx context.Context, query string) ([]sparql.Row, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	for marker, rows := range f.answers {
		if strings.Contains(query, marker) {
			return rows, nil
		}
	}
	return nil, nil
}

type fakeGallery struct {
	files      []string
	err        error
	categories []string
	limit      int
}

func (f *fakeGallery) CategoryMembers(ctx context.Context, category string, limit int) ([]string, error) {
	f.categories = append(f.categories, category)
	f.limit = limit
	return f.files, f.err
}

func mustParse(t *testing.T) *Catalog {
	t.Helper()
	c, err := Parse([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pinturas"}, c.Collections())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseRejectsEmptyQuery(t *testing.T) {
	_, err := Parse([]byte(`{"x": {"query": "  "}}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	c := mustParse(t)

	q, err := c.Render(QueryMetadata, "pt-br", "Q59281063")
	require.NoError(t, err)
	assert.Equal(t, "SELECT ?title WHERE { wd:Q59281063 wdt:P1476 ?title } # pt-br", q)

	_, err = c.Render(QueryMetadata, "pt-br", "Q1 } DELETE {")
	assert.Error(t, err, "ids are validated before substitution")

	_, err = c.Render(QueryMetadata, `en" }`, "Q1")
	assert.Error(t, err)

	_, err = c.Render("Nope", "en", "")
	assert.Error(t, err)
}

func TestDescriptorFor(t *testing.T) {
	e := Entry{Descriptor: map[string]string{"pt-br": "Pinturas", "en": "Paintings"}}
	assert.Equal(t, "Paintings", e.DescriptorFor("en"))
	assert.Equal(t, "Pinturas", e.DescriptorFor("pt-br"))
	assert.Equal(t, "Pinturas", e.DescriptorFor("es"))
}

func TestBrowserCollection(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]sparql.Row{
		"Q3305213": {{"item": "http://www.wikidata.org/entity/Q1"}},
	}}
	b := NewBrowser(mustParse(t), q)

	col, err := b.Collection(context.Background(), "Pinturas", "en")
	require.NoError(t, err)
	assert.Equal(t, "Paintings", col.Descriptor)
	assert.Len(t, col.Items, 1)
	assert.Contains(t, q.queries[0], "# en")

	_, err = b.Collection(context.Background(), "Metadados", "en")
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = b.Collection(context.Background(), "Esculturas", "en")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestBrowserItem(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]sparql.Row{
		"P1476":    {{"title": "Independência ou Morte"}},
		"P180":     {{"motif": "http://www.wikidata.org/entity/Q726"}, {"motif": "http://www.wikidata.org/entity/Q144"}},
		"next_qid": {{"next_qid": "http://www.wikidata.org/entity/Q59281064"}},
	}}
	b := NewBrowser(mustParse(t), q)

	item, err := b.Item(context.Background(), "Q59281063", "pt-br")
	require.NoError(t, err)
	assert.Equal(t, "Q59281063", item.QID)
	assert.Equal(t, "Independência ou Morte", item.Metadata["title"])
	assert.Len(t, item.Motifs, 2)
	assert.Equal(t, "Q59281064", item.NextQID)
}

func TestBrowserItemCategoryImages(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]sparql.Row{
		"P1476": {{"title": "Independência ou Morte", "category": "Independência ou Morte (Pedro Américo)"}},
	}}
	g := &fakeGallery{files: []string{"Independência ou Morte.jpg", "Detalhe.jpg"}}
	b := NewBrowser(mustParse(t), q, WithGallery(g, 25))

	item, err := b.Item(context.Background(), "Q59281063", "pt-br")
	require.NoError(t, err)
	assert.Equal(t, []string{"Independência ou Morte.jpg", "Detalhe.jpg"}, item.Images)
	assert.Equal(t, []string{"Independência ou Morte (Pedro Américo)"}, g.categories)
	assert.Equal(t, 25, g.limit)
}

func TestBrowserItemWithoutCategory(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]sparql.Row{"P1476": {{"title": "Sem categoria"}}}}
	g := &fakeGallery{files: []string{"unused.jpg"}}
	b := NewBrowser(mustParse(t), q, WithGallery(g, 25))

	item, err := b.Item(context.Background(), "Q1", "en")
	require.NoError(t, err)
	assert.Empty(t, item.Images)
	assert.NotNil(t, item.Images)
	assert.Empty(t, g.categories)
}

func TestBrowserItemCategoryFailure(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]sparql.Row{"P1476": {{"title": "x", "category": "Obras"}}}}
	b := NewBrowser(mustParse(t), q, WithGallery(&fakeGallery{err: errors.New("timeout")}, 10))

	item, err := b.Item(context.Background(), "Q1", "en")
	require.NoError(t, err)
	assert.Equal(t, "x", item.Metadata["title"])
	assert.Empty(t, item.Images)
}

func TestBrowserItemEmptyResults(t *testing.T) {
	b := NewBrowser(mustParse(t), &fakeQuerier{})

	item, err := b.Item(context.Background(), "Q1", "en")
	require.NoError(t, err)
	assert.NotNil(t, item.Metadata)
	assert.NotNil(t, item.Motifs)
	assert.Empty(t, item.NextQID)

	_, err = b.Item(context.Background(), "cachorro", "en")
	assert.Error(t, err)
}

func TestBrowserItemQueryFailure(t *testing.T) {
	b := NewBrowser(mustParse(t), &fakeQuerier{err: errors.New("503")})

	_, err := b.Item(context.Background(), "Q1", "en")
	assert.Error(t, err)
}

func TestWorkCount(t *testing.T) {
	q := &fakeQuerier{answers: map[string][]sparql.Row{"COUNT": {{"count": "1234"}}}}
	b := NewBrowser(mustParse(t), q)

	n, err := b.WorkCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, n)

	q.answers["COUNT"] = []sparql.Row{{"count": "many"}}
	_, err = b.WorkCount(context.Background())
	assert.Error(t, err)
}
