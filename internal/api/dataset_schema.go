package api

import (
	"encoding/json"
	"strconv"

	"dataghost-gateway/internal/api/schema"
)

// DatasetColumn describes one column of the uploaded table.
type DatasetColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DatasetUpload is the normalized result of POST /upload/dataset.
type DatasetUpload struct {
	DatasetID string          `json:"dataset_id"`
	Name      string          `json:"name"`
	Rows      int64           `json:"rows"`
	Columns   []DatasetColumn `json:"columns"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// DatasetSummary is the normalized result of GET /dataset/summary.
type DatasetSummary struct {
	DatasetID  string           `json:"dataset_id"`
	Name       string           `json:"name"`
	Rows       int64            `json:"rows"`
	Columns    []DatasetColumn  `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows"`
	Stats      map[string]any   `json:"stats,omitempty"`
	CreatedAt  string           `json:"created_at,omitempty"`
}

var (
	// DatasetUploadSchema accepts only the current upload shape.
	DatasetUploadSchema schema.Schema[DatasetUpload] = schema.Func[DatasetUpload](parseDatasetUpload)
	// DatasetUploadCompatibleSchema accepts the current shape, then the legacy table_name shape.
	DatasetUploadCompatibleSchema = schema.FirstOf[DatasetUpload](
		DatasetUploadSchema,
		schema.Func[DatasetUpload](parseDatasetUploadLegacy),
	)

	// DatasetSummarySchema accepts only the current summary shape.
	DatasetSummarySchema schema.Schema[DatasetSummary] = schema.Func[DatasetSummary](parseDatasetSummary)
	// DatasetSummaryCompatibleSchema accepts the current shape, then the legacy string-columns shape.
	DatasetSummaryCompatibleSchema = schema.FirstOf[DatasetSummary](
		DatasetSummarySchema,
		schema.Func[DatasetSummary](parseDatasetSummaryLegacy),
	)
)

func parseDatasetUpload(raw json.RawMessage) (DatasetUpload, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return DatasetUpload{}, schema.Check(issues)
	}
	out := DatasetUpload{
		DatasetID: obj.String("dataset_id"),
		Name:      obj.String("name"),
		Rows:      obj.Int("rows"),
		Columns:   readColumns(obj, "columns"),
	}
	out.CreatedAt, _ = obj.OptionalString("created_at")
	return out, schema.Check(issues)
}

func parseDatasetSummary(raw json.RawMessage) (DatasetSummary, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return DatasetSummary{}, schema.Check(issues)
	}
	out := DatasetSummary{
		DatasetID:  obj.String("dataset_id"),
		Name:       obj.String("name"),
		Rows:       obj.Int("rows"),
		Columns:    readColumns(obj, "columns"),
		SampleRows: readSampleRows(obj, obj.Array("sample_rows")),
	}
	out.Stats, _ = obj.Record("stats")
	out.CreatedAt, _ = obj.OptionalString("created_at")
	return out, schema.Check(issues)
}

func readColumns(obj *schema.Object, key string) []DatasetColumn {
	items := obj.Array(key)
	if items == nil {
		return nil
	}
	out := make([]DatasetColumn, 0, len(items))
	for idx, item := range items {
		col, ok := schema.ReadObject(item, obj.Issues(), schema.Join(obj.Path(key), strconv.Itoa(idx)))
		if !ok {
			continue
		}
		out = append(out, DatasetColumn{Name: col.String("name"), Type: col.String("type")})
	}
	return out
}

func readSampleRows(obj *schema.Object, items []json.RawMessage) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for idx, item := range items {
		row, ok := schema.DecodeRecord(item, obj.Issues(), schema.Join(obj.Path("sample_rows"), strconv.Itoa(idx)))
		if !ok {
			continue
		}
		out = append(out, row)
	}
	return out
}
