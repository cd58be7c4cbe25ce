package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CategoryTotal is one entry of a category breakdown.
type CategoryTotal struct {
	Name  string  `json:"-"`
	Type  string  `json:"type"`
	Total float64 `json:"total"`
	Count int     `json:"count,omitempty"`
}

// CategoryBreakdown is a category name -> total mapping that keeps the order
// in which the server emitted the keys.
type CategoryBreakdown []CategoryTotal

// UnmarshalJSON decodes a JSON object, preserving key order.
func (b *CategoryBreakdown) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("category breakdown: expected object, got %v", tok)
	}

	out := CategoryBreakdown{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("category breakdown: expected key, got %v", tok)
		}
		var ct CategoryTotal
		if err := dec.Decode(&ct); err != nil {
			return fmt.Errorf("category breakdown %q: %w", name, err)
		}
		ct.Name = name
		out = append(out, ct)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*b = out
	return nil
}

// MarshalJSON encodes the breakdown as a JSON object in slice order.
func (b CategoryBreakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ct := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ct.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ct)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MonthlyReport is the monthly spending report used for chart input.
type MonthlyReport struct {
	Year              int               `json:"year"`
	Month             int               `json:"month"`
	CategoryBreakdown CategoryBreakdown `json:"category_breakdown"`
	TotalIncome       float64           `json:"total_income"`
	TotalExpense      float64           `json:"total_expense"`
	NetIncome         float64           `json:"net_income"`
}
