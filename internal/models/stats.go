package models

import "encoding/json"

// DailySale is one day of completed sales. It marshals as a [date, amount]
// pair, the shape chart clients consume.
type DailySale struct {
	Date   string
	Amount float64
}

func (d DailySale) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{d.Date, d.Amount})
}

func (d *DailySale) UnmarshalJSON(data []byte) error {
	var pair [2]any
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if s, ok := pair[0].(string); ok {
		d.Date = s
	}
	if f, ok := pair[1].(float64); ok {
		d.Amount = f
	}
	return nil
}
