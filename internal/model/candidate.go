package model

// Candidate is a search hit merged from the Portuguese and English lookups.
type Candidate struct {
	ID              string
	LabelPT         string
	LabelPTBR       string
	LabelEN         string
	DescriptionPT   string
	DescriptionPTBR string
	DescriptionEN   string

	// Membership data used by category filters
	Properties map[string]bool
	Classes    map[string]bool
}

// WithFallback returns a copy whose pt-br fields fall back to the pt fields.
func (c Candidate) WithFallback() Candidate {
	if c.LabelPTBR == "" {
		c.LabelPTBR = c.LabelPT
	}
	if c.DescriptionPTBR == "" {
		c.DescriptionPTBR = c.DescriptionPT
	}
	return c
}

// SearchResult is the shape returned to the item page.
type SearchResult struct {
	QID   string `json:"qid"`
	Label string `json:"label"`
	Descr string `json:"descr"`
}

// Project selects the label and description for lang, applying the pt-br fallback.
func (c Candidate) Project(lang string) SearchResult {
	c = c.WithFallback()
	if lang == "en" {
		return SearchResult{QID: c.ID, Label: c.LabelEN, Descr: c.DescriptionEN}
	}
	return SearchResult{QID: c.ID, Label: c.LabelPTBR, Descr: c.DescriptionPTBR}
}
