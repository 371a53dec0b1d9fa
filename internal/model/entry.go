package model

import "encoding/json"

// Entry is one line of the JSONL hand-off file between the collect and
// commit halves of the pipeline. Amount is a decimal or 0x-hex string and
// may be empty before amounts have been assigned.
type Entry struct {
	Handle  string `json:"twitter"`
	Address string `json:"address"`
	Amount  string `json:"amount,omitempty"`
}

// UnmarshalJSON accepts "username" as an alias of "twitter" so files
// written by older compile runs still load.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Twitter  string          `json:"twitter"`
		Username string          `json:"username"`
		Address  string          `json:"address"`
		Amount   json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Handle = raw.Twitter
	if e.Handle == "" {
		e.Handle = raw.Username
	}
	e.Address = raw.Address
	e.Amount = ""

	if len(raw.Amount) > 0 && string(raw.Amount) != "null" {
		// Amounts may be written as JSON strings or bare numbers
		var s string
		if err := json.Unmarshal(raw.Amount, &s); err == nil {
			e.Amount = s
		} else {
			var n json.Number
			if err := json.Unmarshal(raw.Amount, &n); err != nil {
				return err
			}
			e.Amount = n.String()
		}
	}

	return nil
}
