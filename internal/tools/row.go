package tools

import (
	"bytes"
	"encoding/json"
)

// Row is one result record that encodes as a JSON object with keys in
// column order. A repeated column name keeps its first position and its
// last value.
type Row struct {
	Columns []string
	Values  []any
}

func (r Row) MarshalJSON() ([]byte, error) {
	order := make([]string, 0, len(r.Columns))
	values := make(map[string]any, len(r.Columns))
	for i, column := range r.Columns {
		if _, seen := values[column]; !seen {
			order = append(order, column)
		}
		var value any
		if i < len(r.Values) {
			value = r.Values[i]
		}
		values[column] = value
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONValue(&buf, column); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONValue(&buf, values[column]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONValue(buf *bytes.Buffer, value any) error {
	var encoded bytes.Buffer
	encoder := json.NewEncoder(&encoded)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(encoded.Bytes(), []byte("\n")))
	return nil
}

func buildRows(columns []string, values [][]any) []Row {
	rows := make([]Row, 0, len(values))
	for _, record := range values {
		rows = append(rows, Row{Columns: columns, Values: record})
	}
	return rows
}
