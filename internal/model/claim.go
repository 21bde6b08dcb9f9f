package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PredicateCode is the "tipo" of a statement submission: a property id
// or one of the two sentinel codes.
type PredicateCode string

const (
	// PredicateNoValue marks a "no motif depicted" vote
	PredicateNoValue PredicateCode = "novalue"
	// PredicateUnknownValue marks a "motif unknown" vote
	PredicateUnknownValue PredicateCode = "unknownvalue"
)

// IsSentinel reports whether the code is one of the vote sentinels
// that never reach the write API.
func (p PredicateCode) IsSentinel() bool {
	return p == PredicateNoValue || p == PredicateUnknownValue
}

// Claim mirrors the subset of a Wikibase claim this service reads back.
type Claim struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Rank     string `json:"rank,omitempty"`
	MainSnak Snak   `json:"mainsnak"`
}

// Snak is a single value assertion inside a claim.
type Snak struct {
	SnakType  string     `json:"snaktype"`
	Property  string     `json:"property"`
	DataValue *DataValue `json:"datavalue,omitempty"`
}

// DataValue carries the typed value of a "value" snak.
// Only item values are decoded; other types keep Value nil.
type DataValue struct {
	Type  string     `json:"type"`
	Value *ItemValue `json:"-"`
	Raw   []byte     `json:"-"`
}

// ItemValue is the wire encoding for item-type targets.
type ItemValue struct {
	EntityType string `json:"entity-type"`
	NumericID  int64  `json:"numeric-id"`
	ID         string `json:"id,omitempty"`
}

// NewItemValue builds the item value for an entity id such as "Q100".
func NewItemValue(entityID string) (ItemValue, error) {
	n, err := NumericID(entityID)
	if err != nil {
		return ItemValue{}, err
	}
	return ItemValue{EntityType: "item", NumericID: n}, nil
}

// NumericID strips the "Q" prefix of an item id and parses the number.
func NumericID(entityID string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(entityID), "Q")
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid item id %q", entityID)
	}
	return n, nil
}
