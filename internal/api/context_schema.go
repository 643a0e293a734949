package api

import (
	"encoding/json"

	"dataghost-gateway/internal/api/schema"
)

// ContextUpload is the result of POST /upload/context.
type ContextUpload struct {
	DocID     string `json:"doc_id"`
	Filename  string `json:"filename"`
	Pages     *int64 `json:"pages,omitempty"`
	Chunks    *int64 `json:"chunks,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ContextUploadSchema validates a context document upload.
var ContextUploadSchema schema.Schema[ContextUpload] = schema.Func[ContextUpload](parseContextUpload)

func parseContextUpload(raw json.RawMessage) (ContextUpload, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return ContextUpload{}, schema.Check(issues)
	}
	out := ContextUpload{
		DocID:     obj.String("doc_id"),
		Filename:  obj.String("filename"),
		Pages:     obj.OptionalInt("pages"),
		Chunks:    obj.OptionalInt("chunks"),
		CreatedAt: obj.String("created_at"),
	}
	return out, schema.Check(issues)
}
