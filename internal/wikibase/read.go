package wikibase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// maxEntitiesPerRequest is the wbgetentities id limit for normal accounts.
const maxEntitiesPerRequest = 50

// GetClaims returns the claims of entityID for property, in API order.
func (c *Client) GetClaims(ctx context.Context, entityID, property string) ([]model.Claim, error) {
	params := url.Values{}
	params.Set("action", "wbgetclaims")
	params.Set("entity", entityID)
	params.Set("property", property)

	var resp struct {
		Claims map[string][]model.Claim `json:"claims"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("get claims %s/%s: %w", entityID, property, err)
	}
	return resp.Claims[property], nil
}

// ResolveClaimHandle finds the claim entityID -property-> targetID and
// returns its handle. The lookup reads the store that was just written to
// and may not see the write yet; a miss is reported as a
// ReconciliationMiss error with an empty handle.
func (c *Client) ResolveClaimHandle(ctx context.Context, entityID, property, targetID string) (string, error) {
	const op = "wikibase.resolve_claim"

	want, err := model.NumericID(targetID)
	if err != nil {
		return "", apperr.Malformed(op, err.Error())
	}

	claims, err := c.GetClaims(ctx, entityID, property)
	if err != nil {
		return "", err
	}

	for _, claim := range claims {
		dv := claim.MainSnak.DataValue
		if claim.MainSnak.SnakType != "value" || dv == nil || dv.Value == nil {
			continue
		}
		if dv.Value.NumericID == want {
			return claim.ID, nil
		}
	}
	return "", apperr.ReconciliationMiss(op, fmt.Sprintf("no %s claim on %s with value %s", property, entityID, targetID))
}

// SearchHit is one wbsearchentities match.
type SearchHit struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// SearchEntities runs a label/alias search for term in lang and returns
// the hits in relevance order.
func (c *Client) SearchEntities(ctx context.Context, term, lang string, limit int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", term)
	params.Set("language", lang)
	params.Set("uselang", lang)
	params.Set("type", "item")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Search []SearchHit `json:"search"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("search %q (%s): %w", term, lang, err)
	}
	return resp.Search, nil
}

// Entity is the subset of a wbgetentities record used for filtering and
// labelling search candidates.
type Entity struct {
	ID           string
	Labels       map[string]string
	Descriptions map[string]string
	Claims       map[string][]model.Claim
}

// InstanceOf returns the item ids of the entity's P31 values.
func (e Entity) InstanceOf() []string {
	var ids []string
	for _, claim := range e.Claims["P31"] {
		dv := claim.MainSnak.DataValue
		if dv == nil || dv.Value == nil {
			continue
		}
		ids = append(ids, "Q"+strconv.FormatInt(dv.Value.NumericID, 10))
	}
	return ids
}

type termValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// GetEntities fetches labels, descriptions and claims for ids in the given
// languages. Missing entities are left out of the result.
func (c *Client) GetEntities(ctx context.Context, ids, languages []string) (map[string]Entity, error) {
	out := make(map[string]Entity, len(ids))
	for start := 0; start < len(ids); start += maxEntitiesPerRequest {
		end := min(start+maxEntitiesPerRequest, len(ids))

		params := url.Values{}
		params.Set("action", "wbgetentities")
		params.Set("ids", strings.Join(ids[start:end], "|"))
		params.Set("props", "labels|descriptions|claims")
		params.Set("languages", strings.Join(languages, "|"))

		var resp struct {
			Entities map[string]struct {
				ID           string                   `json:"id"`
				Missing      *string                  `json:"missing"`
				Labels       map[string]termValue     `json:"labels"`
				Descriptions map[string]termValue     `json:"descriptions"`
				Claims       map[string][]model.Claim `json:"claims"`
			} `json:"entities"`
		}
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("get entities: %w", err)
		}

		for id, raw := range resp.Entities {
			if raw.Missing != nil {
				continue
			}
			e := Entity{
				ID:           id,
				Labels:       make(map[string]string, len(raw.Labels)),
				Descriptions: make(map[string]string, len(raw.Descriptions)),
				Claims:       raw.Claims,
			}
			for lang, v := range raw.Labels {
				e.Labels[lang] = v.Value
			}
			for lang, v := range raw.Descriptions {
				e.Descriptions[lang] = v.Value
			}
			out[id] = e
		}
	}
	return out, nil
}
