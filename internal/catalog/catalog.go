// Package catalog loads the named SPARQL queries behind the collection,
// item and about pages and fills in their placeholders.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Names of the queries the item and about pages depend on.
const (
	QueryMetadata  = "Metadados"
	QueryMotifs    = "Motivos"
	QueryNextItem  = "Next_qid"
	QueryWorkCount = "Quantidade_de_objetos"
)

// Placeholders substituted by Render.
const (
	PlaceholderLanguage = "LANGUAGE"
	PlaceholderWork     = "QIDDAOBRA"
)

var itemIDPattern = regexp.MustCompile(`^Q[1-9][0-9]*$`)

// Entry is one named query.
type Entry struct {
	Query      string            `json:"query"`
	Descriptor map[string]string `json:"descriptor,omitempty"`
}

// DescriptorFor returns the collection title for lang: English for "en",
// Brazilian Portuguese otherwise.
func (e Entry) DescriptorFor(lang string) string {
	if lang == "en" {
		return e.Descriptor["en"]
	}
	if d := e.Descriptor["pt-br"]; d != "" {
		return d
	}
	return e.Descriptor["pt"]
}

// Catalog is an immutable set of named queries.
type Catalog struct {
	entries map[string]Entry
}

// Load reads a catalog from a JSON file mapping names to entries.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog.
func Parse(data []byte) (*Catalog, error) {
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for name, e := range entries {
		if strings.TrimSpace(e.Query) == "" {
			return nil, fmt.Errorf("catalog entry %q has no query", name)
		}
	}
	return &Catalog{entries: entries}, nil
}

// Get returns the entry called name.
func (c *Catalog) Get(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Collections returns the names of entries that carry a descriptor, sorted.
func (c *Catalog) Collections() []string {
	var names []string
	for name, e := range c.entries {
		if len(e.Descriptor) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Render returns the query called name with LANGUAGE replaced by lang and
// QIDDAOBRA by qid. qid may be empty for queries without that placeholder.
func (c *Catalog) Render(name, lang, qid string) (string, error) {
	e, ok := c.entries[name]
	if !ok {
		return "", fmt.Errorf("unknown query %q", name)
	}
	query := e.Query
	if strings.Contains(query, PlaceholderWork) {
		if !itemIDPattern.MatchString(qid) {
			return "", fmt.Errorf("invalid item id %q", qid)
		}
		query = strings.ReplaceAll(query, PlaceholderWork, qid)
	}
	if strings.Contains(query, PlaceholderLanguage) {
		if !validLang(lang) {
			return "", fmt.Errorf("invalid language %q", lang)
		}
		query = strings.ReplaceAll(query, PlaceholderLanguage, lang)
	}
	return query, nil
}

// ValidItemID reports whether id looks like "Q123".
func ValidItemID(id string) bool {
	return itemIDPattern.MatchString(id)
}

func validLang(lang string) bool {
	if lang == "" || len(lang) > 12 {
		return false
	}
	for _, r := range lang {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	return true
}
