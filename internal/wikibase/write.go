package wikibase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// itemValue encodes targetID as {"entity-type":"item","numeric-id":N}.
func itemValue(targetID string) (string, error) {
	v, err := model.NewItemValue(targetID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(struct {
		EntityType string `json:"entity-type"`
		NumericID  int64  `json:"numeric-id"`
	}{v.EntityType, v.NumericID})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateClaim creates a "value" claim entityID -property-> targetID and returns
// the handle reported by the API, which may be empty. Callers that need the
// handle reliably use ResolveClaimHandle.
func (c *Client) CreateClaim(ctx context.Context, tok EditToken, entityID, property, targetID string) (string, error) {
	const op = "wikibase.wbcreateclaim"

	value, err := itemValue(targetID)
	if err != nil {
		return "", apperr.Malformed(op, err.Error())
	}

	params := url.Values{}
	params.Set("action", "wbcreateclaim")
	params.Set("entity", entityID)
	params.Set("property", property)
	params.Set("snaktype", "value")
	params.Set("value", value)
	params.Set("token", tok.Value)

	var resp struct {
		Claim struct {
			ID string `json:"id"`
		} `json:"claim"`
	}
	if err := c.post(ctx, tok.Signer, params, &resp); err != nil {
		return "", apperr.WriteRejected(op, upstreamMessage(err), err)
	}

	c.logger.Info("claim created", "entity", entityID, "property", property, "target", targetID, "claim", resp.Claim.ID)
	return resp.Claim.ID, nil
}

// SetClaimValue replaces the value of an existing claim with targetID.
// Setting the value a claim already has leaves it unchanged.
func (c *Client) SetClaimValue(ctx context.Context, tok EditToken, claimHandle, targetID string) error {
	const op = "wikibase.wbsetclaimvalue"

	value, err := itemValue(targetID)
	if err != nil {
		return apperr.Malformed(op, err.Error())
	}
	if claimHandle == "" {
		return apperr.Malformed(op, "empty claim handle")
	}

	params := url.Values{}
	params.Set("action", "wbsetclaimvalue")
	params.Set("claim", claimHandle)
	params.Set("snaktype", "value")
	params.Set("value", value)
	params.Set("token", tok.Value)

	if err := c.post(ctx, tok.Signer, params, nil); err != nil {
		return apperr.WriteRejected(op, upstreamMessage(err), err)
	}

	c.logger.Info("claim value set", "claim", claimHandle, "target", targetID)
	return nil
}

// SetQualifier attaches property -> qualifierEntityID to the claim.
func (c *Client) SetQualifier(ctx context.Context, tok EditToken, claimHandle, property, qualifierEntityID string) error {
	const op = "wikibase.wbsetqualifier"

	value, err := itemValue(qualifierEntityID)
	if err != nil {
		return apperr.Malformed(op, err.Error())
	}
	if claimHandle == "" {
		return apperr.Malformed(op, "empty claim handle")
	}

	params := url.Values{}
	params.Set("action", "wbsetqualifier")
	params.Set("claim", claimHandle)
	params.Set("property", property)
	params.Set("snaktype", "value")
	params.Set("value", value)
	params.Set("token", tok.Value)

	if err := c.post(ctx, tok.Signer, params, nil); err != nil {
		return apperr.WriteRejected(op, upstreamMessage(err), err)
	}

	c.logger.Info("qualifier set", "claim", claimHandle, "property", property, "value", qualifierEntityID)
	return nil
}

// CSRFToken fetches an edit token for the session behind signer.
func (c *Client) CSRFToken(ctx context.Context, signer Doer) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "csrf")

	var resp struct {
		Query struct {
			Tokens struct {
				CSRFToken string `json:"csrftoken"`
			} `json:"tokens"`
		} `json:"query"`
	}
	if err := c.call(ctx, signer, "GET", params, &resp); err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}

	// The anonymous token is "+\\"; it cannot be used for OAuth edits
	token := resp.Query.Tokens.CSRFToken
	if token == "" || token == `+\` {
		return "", fmt.Errorf("fetch csrf token: session is not authenticated")
	}
	return token, nil
}

// UserName returns the name of the user behind signer, or "" if the API
// reports an anonymous user.
func (c *Client) UserName(ctx context.Context, signer Doer) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")

	var resp struct {
		Query struct {
			UserInfo struct {
				ID        int64   `json:"id"`
				Name      string  `json:"name"`
				Anonymous *string `json:"anon"`
			} `json:"userinfo"`
		} `json:"query"`
	}
	if err := c.call(ctx, signer, "GET", params, &resp); err != nil {
		return "", fmt.Errorf("fetch userinfo: %w", err)
	}

	info := resp.Query.UserInfo
	if info.Anonymous != nil || info.ID == 0 {
		return "", nil
	}
	return info.Name, nil
}
