package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wikimovimentobrasil/wikimotivos/internal/sparql"
)

// ErrUnknownCollection is returned for a collection not in the catalog.
var ErrUnknownCollection = errors.New("unknown collection")

// Querier runs SPARQL queries.
type Querier interface {
	Query(ctx context.Context, query string) ([]sparql.Row, error)
}

// Gallery lists the media files of a category.
type Gallery interface {
	CategoryMembers(ctx context.Context, category string, limit int) ([]string, error)
}

// Collection is the listing behind a collection page.
type Collection struct {
	Descriptor string       `json:"descriptor"`
	Items      []sparql.Row `json:"items"`
}

// Item is the data behind an item page.
type Item struct {
	QID      string       `json:"qid"`
	Metadata sparql.Row   `json:"metadata"`
	Motifs   []sparql.Row `json:"motifs"`
	NextQID  string       `json:"next_qid"`
	// Images are the files of the work's media category, when it has one.
	Images []string `json:"category_images"`
}

// Browser answers the read-only page queries.
type Browser struct {
	catalog   *Catalog
	querier   Querier
	gallery   Gallery
	maxImages int
	logger    *slog.Logger
}

// Option configures a Browser.
type Option func(*Browser)

// WithGallery loads up to limit category images on item pages.
func WithGallery(g Gallery, limit int) Option {
	return func(b *Browser) {
		b.gallery = g
		b.maxImages = limit
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// NewBrowser creates a browser over catalog.
func NewBrowser(catalog *Catalog, querier Querier, opts ...Option) *Browser {
	b := &Browser{catalog: catalog, querier: querier, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Collection lists the works of the collection called name.
func (b *Browser) Collection(ctx context.Context, name, lang string) (Collection, error) {
	e, ok := b.catalog.Get(name)
	if !ok || len(e.Descriptor) == 0 {
		return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	query, err := b.catalog.Render(name, lang, "")
	if err != nil {
		return Collection{}, err
	}
	rows, err := b.querier.Query(ctx, query)
	if err != nil {
		return Collection{}, fmt.Errorf("collection %s: %w", name, err)
	}
	return Collection{Descriptor: e.DescriptorFor(lang), Items: rows}, nil
}

// Item returns the metadata, depicted motifs, next work and category
// images for qid. Metadata is the first row of the metadata query; the
// next work is the first value of the first row of the navigation query.
// A failed category lookup leaves Images empty.
func (b *Browser) Item(ctx context.Context, qid, lang string) (Item, error) {
	if !ValidItemID(qid) {
		return Item{}, fmt.Errorf("invalid item id %q", qid)
	}
	item := Item{QID: qid, Metadata: sparql.Row{}, Motifs: []sparql.Row{}, Images: []string{}}

	metadata, err := b.run(ctx, QueryMetadata, lang, qid)
	if err != nil {
		return Item{}, err
	}
	if len(metadata) > 0 {
		item.Metadata = metadata[0]
	}

	motifs, err := b.run(ctx, QueryMotifs, lang, qid)
	if err != nil {
		return Item{}, err
	}
	if motifs != nil {
		item.Motifs = motifs
	}

	next, err := b.run(ctx, QueryNextItem, lang, qid)
	if err != nil {
		return Item{}, err
	}
	item.NextQID = firstValue(next, "next_qid")

	if category := item.Metadata["category"]; category != "" && b.gallery != nil {
		images, err := b.gallery.CategoryMembers(ctx, category, b.maxImages)
		if err != nil {
			b.logger.Warn("category images unavailable", "qid", qid, "category", category, "error", err)
		} else {
			item.Images = images
		}
	}
	return item, nil
}

// WorkCount returns the number of works counted by the count query.
func (b *Browser) WorkCount(ctx context.Context) (int, error) {
	rows, err := b.run(ctx, QueryWorkCount, "", "")
	if err != nil {
		return 0, err
	}
	raw := firstValue(rows, "count")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("work count: %w", err)
	}
	return n, nil
}

func (b *Browser) run(ctx context.Context, name, lang, qid string) ([]sparql.Row, error) {
	query, err := b.catalog.Render(name, lang, qid)
	if err != nil {
		return nil, err
	}
	rows, err := b.querier.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return rows, nil
}

// firstValue returns preferred from the first row, or the row's only
// value when preferred is unbound. Entity URIs are reduced to ids.
func firstValue(rows []sparql.Row, preferred string) string {
	if len(rows) == 0 {
		return ""
	}
	row := rows[0]
	if v, ok := row[preferred]; ok {
		return sparql.EntityID(v)
	}
	if len(row) == 1 {
		for _, v := range row {
			return sparql.EntityID(v)
		}
	}
	return ""
}
