package model

import "encoding/json"

// UnmarshalJSON decodes the datavalue, keeping item values typed.
func (d *DataValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Type = raw.Type
	d.Raw = raw.Value
	d.Value = nil

	if raw.Type != "wikibase-entityid" {
		return nil
	}
	var item ItemValue
	if err := json.Unmarshal(raw.Value, &item); err != nil {
		return err
	}
	d.Value = &item
	return nil
}

// MarshalJSON re-emits the datavalue in its wire shape.
func (d DataValue) MarshalJSON() ([]byte, error) {
	var value any = json.RawMessage(d.Raw)
	if d.Value != nil {
		value = d.Value
	} else if len(d.Raw) == 0 {
		value = nil
	}
	return json.Marshal(struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}{d.Type, value})
}
