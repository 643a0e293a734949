package api

import (
	"encoding/json"

	"dataghost-gateway/internal/api/schema"
)

// ErrorBody is the optional error object of a response envelope.
type ErrorBody struct {
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Envelope is the standard response wrapper {data, error?, request_id?}.
type Envelope[T any] struct {
	Data      T
	Error     *ErrorBody
	RequestID string
}

// ParseEnvelope validates raw as an envelope whose data matches s.
func ParseEnvelope[T any](raw json.RawMessage, s schema.Schema[T]) (Envelope[T], error) {
	var env Envelope[T]
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return env, schema.Check(issues)
	}

	data, _ := obj.Raw("data")
	parsed, err := s.Parse(data)
	if err != nil {
		issues.Merge("data", schema.IssuesOf(err))
	} else {
		env.Data = parsed
	}

	if errRaw, present := obj.Raw("error"); present {
		env.Error = parseErrorBody(errRaw, &issues)
	}
	if id, present := obj.OptionalString("request_id"); present {
		env.RequestID = id
	}
	return env, schema.Check(issues)
}

func parseErrorBody(raw json.RawMessage, issues *schema.Issues) *ErrorBody {
	obj, ok := schema.ReadObject(raw, issues, "error")
	if !ok {
		return nil
	}
	body := &ErrorBody{Details: obj.Unknown("details")}
	body.Message, _ = obj.OptionalString("message")
	body.Code, _ = obj.OptionalString("code")
	return body
}

// errorMessage extracts the most specific message from a failed response.
func errorMessage(env *ErrorBody, payload json.RawMessage, status int) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	var loose struct {
		Message json.RawMessage `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &loose); err == nil {
		if msg := stringValue(loose.Message); msg != "" {
			return msg
		}
		if msg := stringValue(loose.Detail); msg != "" {
			return msg
		}
		var nested struct {
			Message json.RawMessage `json:"message"`
		}
		if json.Unmarshal(loose.Error, &nested) == nil {
			if msg := stringValue(nested.Message); msg != "" {
				return msg
			}
		}
	}
	return statusMessage(status)
}
