package wikibase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// categoryPageSize is the cmlimit of one categorymembers request.
const categoryPageSize = 500

// CategoryMembers lists the files in a media repository category, following
// continuation until limit files are collected. category may carry the
// "Category:" prefix or not. Titles are returned without the "File:" prefix.
func (c *Client) CategoryMembers(ctx context.Context, category string, limit int) ([]string, error) {
	category = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(category), "Category:"))
	if category == "" || limit <= 0 {
		return []string{}, nil
	}

	files := []string{}
	cont := ""
	for len(files) < limit {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "categorymembers")
		params.Set("cmtitle", "Category:"+category)
		params.Set("cmtype", "file")
		params.Set("cmlimit", strconv.Itoa(min(categoryPageSize, limit-len(files))))
		if cont != "" {
			params.Set("cmcontinue", cont)
		}

		var resp struct {
			Continue struct {
				CMContinue string `json:"cmcontinue"`
			} `json:"continue"`
			Query struct {
				CategoryMembers []struct {
					Title string `json:"title"`
				} `json:"categorymembers"`
			} `json:"query"`
		}
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("category members %s: %w", category, err)
		}

		for _, m := range resp.Query.CategoryMembers {
			files = append(files, strings.TrimPrefix(m.Title, "File:"))
		}
		cont = resp.Continue.CMContinue
		if cont == "" {
			break
		}
	}
	if len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
