package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/api/schema"
)

// Row is one chart data point; values are string, float64 or nil.
type Row map[string]any

// AdaptedChart is a chart with inferred axes, ready to plot.
type AdaptedChart struct {
	Kind  string   `json:"kind"`
	Title string   `json:"title"`
	Data  []Row    `json:"data"`
	XKey  string   `json:"xKey"`
	YKeys []string `json:"yKeys"`
}

var errUnsupportedChart = errors.New("unsupported chart data")

// AdaptChart infers x and y keys from the chart data. It returns false when
// the data is not an array of flat rows, has fewer than two keys, or has no
// numeric series.
func AdaptChart(chart api.Chart) (*AdaptedChart, bool) {
	rows, keys, err := decodeRows(chart.Data)
	if err != nil || len(rows) == 0 || len(keys) < 2 {
		return nil, false
	}

	var yKeys []string
	for _, key := range keys {
		if anyRow(rows, key, isNumber) {
			yKeys = append(yKeys, key)
		}
	}
	if len(yKeys) == 0 {
		return nil, false
	}

	return &AdaptedChart{
		Kind:  chart.Kind,
		Title: chart.Title,
		Data:  rows,
		XKey:  pickXKey(rows, keys, yKeys),
		YKeys: yKeys,
	}, true
}

func pickXKey(rows []Row, keys, yKeys []string) string {
	for _, key := range keys {
		if anyRow(rows, key, isString) {
			return key
		}
	}
	for _, key := range keys {
		if !slices.Contains(yKeys, key) {
			return key
		}
	}
	return keys[0]
}

func anyRow(rows []Row, key string, pred func(any) bool) bool {
	for _, row := range rows {
		if pred(row[key]) {
			return true
		}
	}
	return false
}

func isNumber(v any) bool {
	_, ok := v.(float64)
	return ok
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// decodeRows validates the data and returns the rows plus the first row's keys in document order.
func decodeRows(raw json.RawMessage) ([]Row, []string, error) {
	if schema.Kind(raw) != "array" {
		return nil, nil, errUnsupportedChart
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, err
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row, err := decodeRow(item)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	if len(items) == 0 {
		return rows, nil, nil
	}
	keys, err := objectKeys(items[0])
	if err != nil {
		return nil, nil, err
	}
	return rows, keys, nil
}

func decodeRow(raw json.RawMessage) (Row, error) {
	if schema.Kind(raw) != "object" {
		return nil, errUnsupportedChart
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	row := make(Row, len(fields))
	for key, value := range fields {
		switch schema.Kind(value) {
		case "string":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, err
			}
			row[key] = s
		case "number":
			var f float64
			if err := json.Unmarshal(value, &f); err != nil {
				return nil, err
			}
			row[key] = f
		case "null":
			row[key] = nil
		default:
			return nil, errUnsupportedChart
		}
	}
	return row, nil
}

func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
