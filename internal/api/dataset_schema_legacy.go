package api

import (
	"encoding/json"

	"dataghost-gateway/internal/api/schema"
)

const unknownColumnType = "unknown"

// DatasetUploadLegacy is the older upload shape keyed by table_name with
// bare column names and a separate column -> type map.
type DatasetUploadLegacy struct {
	DatasetID string
	TableName string
	Rows      int64
	Columns   []string
	Schema    map[string]string
}

func (l DatasetUploadLegacy) normalize() DatasetUpload {
	return DatasetUpload{
		DatasetID: l.DatasetID,
		Name:      l.TableName,
		Rows:      l.Rows,
		Columns:   typedColumns(l.Columns, l.Schema),
	}
}

// DatasetSummaryLegacy is the older summary shape with string columns.
type DatasetSummaryLegacy struct {
	DatasetID  string
	Name       string
	TableName  string
	Rows       int64
	Columns    []string
	Schema     map[string]string
	SampleRows []map[string]any
	CreatedAt  string
}

// normalize drops stats, which the legacy shape never carried.
func (l DatasetSummaryLegacy) normalize() DatasetSummary {
	return DatasetSummary{
		DatasetID:  l.DatasetID,
		Name:       l.Name,
		Rows:       l.Rows,
		Columns:    typedColumns(l.Columns, l.Schema),
		SampleRows: l.SampleRows,
		CreatedAt:  l.CreatedAt,
	}
}

func parseDatasetUploadLegacy(raw json.RawMessage) (DatasetUpload, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return DatasetUpload{}, schema.Check(issues)
	}
	legacy := DatasetUploadLegacy{
		DatasetID: obj.String("dataset_id"),
		TableName: obj.String("table_name"),
		Rows:      obj.Int("rows"),
		Columns:   obj.Strings("columns"),
		Schema:    obj.StringMap("schema"),
	}
	if err := schema.Check(issues); err != nil {
		return DatasetUpload{}, err
	}
	return legacy.normalize(), nil
}

func parseDatasetSummaryLegacy(raw json.RawMessage) (DatasetSummary, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return DatasetSummary{}, schema.Check(issues)
	}
	legacy := DatasetSummaryLegacy{
		DatasetID:  obj.String("dataset_id"),
		Name:       obj.String("name"),
		Rows:       obj.Int("rows"),
		Columns:    obj.Strings("columns"),
		Schema:     obj.StringMap("schema"),
		SampleRows: readSampleRows(obj, obj.OptionalArray("sample_rows")),
	}
	legacy.TableName, _ = obj.OptionalString("table_name")
	legacy.CreatedAt, _ = obj.OptionalString("created_at")
	if err := schema.Check(issues); err != nil {
		return DatasetSummary{}, err
	}
	return legacy.normalize(), nil
}

// typedColumns keeps column order and falls back to "unknown" for untyped columns.
func typedColumns(names []string, types map[string]string) []DatasetColumn {
	out := make([]DatasetColumn, 0, len(names))
	for _, name := range names {
		colType := types[name]
		if colType == "" {
			colType = unknownColumnType
		}
		out = append(out, DatasetColumn{Name: name, Type: colType})
	}
	return out
}
