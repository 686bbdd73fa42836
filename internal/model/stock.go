package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Known StockData keys, in the order the view shows them.
var StockColumns = []string{
	"code",
	"name",
	"date",
	"open",
	"close",
	"high",
	"low",
	"volume",
	"change_percent",
	"change_price",
	"rank_value",
	"ts",
}

// StockData is one result row. Every key is optional and scanners may add
// their own; values are strings or numbers.
type StockData map[string]any

func (s StockData) Code() string { return s.Text("code") }
func (s StockData) Name() string { return s.Text("name") }

// Text returns the value of key formatted as a string, "" when absent.
func (s StockData) Text(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// Number returns the numeric value of key. ok is false when the key is absent
// or the value is not a number.
func (s StockData) Number(key string) (float64, bool) {
	switch t := s[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of s.
func (s StockData) Clone() StockData {
	out := make(StockData, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Columns returns the keys present in rows: known columns first in canonical
// order, then any extra keys sorted by name.
func Columns(rows []StockData) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}

	cols := make([]string, 0, len(seen))
	for _, k := range StockColumns {
		if seen[k] {
			cols = append(cols, k)
			delete(seen, k)
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
