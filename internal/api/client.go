package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"dataghost-gateway/internal/api/schema"
	"dataghost-gateway/internal/shared/telemetry"
)

const defaultBinaryAccept = "audio/mpeg"

// Outcome classifies how a remote call ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeHTTPError   Outcome = "http_error"
	OutcomeShapeError  Outcome = "shape_error"
	OutcomeNetwork     Outcome = "network_error"
	OutcomeConfigError Outcome = "config_error"
)

// CallRecord describes one completed remote call.
type CallRecord struct {
	Method    string
	Path      string
	RequestID string
	Status    int
	Outcome   Outcome
	Message   string
	Duration  time.Duration
}

// Observer is notified after every remote call.
type Observer interface {
	ObserveCall(ctx context.Context, rec CallRecord)
}

// Client talks to the Data Ghost analytics API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver registers a hook called after every remote call.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient builds a client. An empty baseURL is accepted; every call then
// fails with ErrMissingBaseURL before touching the network.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Body is a request payload. Use JSONBody or FormBody.
type Body interface {
	isBody()
}

// JSONBody encodes Value as JSON. A nil Value sends no body.
type JSONBody struct {
	Value any
}

// FormBody is a multipart/form-data payload.
type FormBody struct {
	Parts []FormPart
}

// FormPart is one file field of a FormBody.
type FormPart struct {
	Field string
	File  File
}

// File is an uploaded file forwarded to the API.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

func (JSONBody) isBody() {}
func (FormBody) isBody() {}

// Request describes a JSON call.
type Request struct {
	Method    string
	Path      string
	Body      Body
	RequestID string
}

// Response is a validated result with its authoritative request id.
type Response[T any] struct {
	Data      T
	RequestID string
}

// BinaryRequest describes a call whose successful response is raw bytes.
type BinaryRequest struct {
	Method    string
	Path      string
	Body      Body
	RequestID string
	Accept    string
}

// BinaryResponse carries raw bytes and their content type.
type BinaryResponse struct {
	Audio       []byte
	ContentType string
	RequestID   string
}

// Send performs one call and validates the response against s, accepting
// either the {data, error?, request_id?} envelope or the raw shape.
func Send[T any](ctx context.Context, c *Client, req Request, s schema.Schema[T]) (Response[T], error) {
	var out Response[T]
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	resp, payload, err := c.do(ctx, method, req.Path, req.Body, req.RequestID, "")
	if err != nil {
		c.finish(ctx, method, req.Path, 0, "", err, start)
		return out, err
	}

	env, envErr := ParseEnvelope(payload, s)
	envelopeOK := envErr == nil
	requestID := ResolveRequestID(resp.Header.Get(RequestIDHeader), payload, req.RequestID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envErrBody *ErrorBody
		var details any = payload
		if envelopeOK {
			envErrBody = env.Error
			details = nil
			if env.Error != nil && len(env.Error.Details) > 0 {
				details = env.Error.Details
			}
		}
		apiErr := &Error{
			Message:   errorMessage(envErrBody, payload, resp.StatusCode),
			Status:    resp.StatusCode,
			RequestID: requestID,
			Details:   details,
		}
		c.finish(ctx, method, req.Path, resp.StatusCode, requestID, apiErr, start)
		return out, apiErr
	}

	if envelopeOK {
		out = Response[T]{Data: env.Data, RequestID: requestID}
		c.finish(ctx, method, req.Path, resp.StatusCode, requestID, nil, start)
		return out, nil
	}

	raw, rawErr := s.Parse(payload)
	if rawErr == nil {
		out = Response[T]{Data: raw, RequestID: requestID}
		c.finish(ctx, method, req.Path, resp.StatusCode, requestID, nil, start)
		return out, nil
	}

	apiErr := &Error{
		Message:   ShapeErrorMessage,
		Status:    resp.StatusCode,
		RequestID: requestID,
		Details:   schema.IssuesOf(envErr).Normalized(),
		Err:       envErr,
	}
	c.finish(ctx, method, req.Path, resp.StatusCode, requestID, apiErr, start)
	return out, apiErr
}

// SendBinary performs one call whose successful response body is returned verbatim.
func (c *Client) SendBinary(ctx context.Context, req BinaryRequest) (BinaryResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	accept := req.Accept
	if accept == "" {
		accept = defaultBinaryAccept
	}

	start := time.Now()
	resp, body, err := c.doRaw(ctx, method, req.Path, req.Body, req.RequestID, accept)
	if err != nil {
		c.finish(ctx, method, req.Path, 0, "", err, start)
		return BinaryResponse{}, err
	}

	payload := asJSON(body)
	requestID := ResolveRequestID(resp.Header.Get(RequestIDHeader), payload, req.RequestID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Message:   errorMessage(nil, payload, resp.StatusCode),
			Status:    resp.StatusCode,
			RequestID: requestID,
			Details:   payload,
		}
		c.finish(ctx, method, req.Path, resp.StatusCode, requestID, apiErr, start)
		return BinaryResponse{}, apiErr
	}

	c.finish(ctx, method, req.Path, resp.StatusCode, requestID, nil, start)
	return BinaryResponse{
		Audio:       body,
		ContentType: resp.Header.Get("Content-Type"),
		RequestID:   requestID,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body Body, requestID, accept string) (*http.Response, json.RawMessage, error) {
	resp, raw, err := c.doRaw(ctx, method, path, body, requestID, accept)
	if err != nil {
		return nil, nil, err
	}
	return resp, asJSON(raw), nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, body Body, requestID, accept string) (*http.Response, []byte, error) {
	if c.baseURL == "" {
		return nil, nil, missingBaseURLError()
	}

	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, nil, &Error{Message: err.Error(), RequestID: requestID, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, &Error{Message: err.Error(), RequestID: requestID, Err: err}
	}
	httpReq.Header.Set(RequestIDHeader, requestID)
	httpReq.Header.Set("Content-Type", contentType)
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, &Error{Message: networkErrorMessage, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{Message: networkErrorMessage, Status: resp.StatusCode, RequestID: requestID, Err: fmt.Errorf("read response: %w", err)}
	}
	return resp, raw, nil
}

// asJSON treats empty and non-JSON bodies as null.
func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return json.RawMessage("null")
	}
	return json.RawMessage(trimmed)
}

func encodeBody(body Body) (io.Reader, string, error) {
	switch b := body.(type) {
	case FormBody:
		return encodeForm(b)
	case JSONBody:
		if b.Value == nil {
			return nil, "application/json", nil
		}
		data, err := json.Marshal(b.Value)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "application/json", nil
	}
}

func encodeForm(form FormBody) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, part := range form.Parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, part.Field, part.File.Name))
		contentType := part.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		w, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create form part: %w", err)
		}
		if part.File.Content != nil {
			if _, err := io.Copy(w, part.File.Content); err != nil {
				return nil, "", fmt.Errorf("write form part: %w", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) finish(ctx context.Context, method, path string, status int, requestID string, err error, start time.Time) {
	rec := CallRecord{
		Method:    method,
		Path:      path,
		Status:    status,
		RequestID: requestID,
		Duration:  time.Since(start),
		Outcome:   OutcomeOK,
	}
	if err != nil {
		rec.Outcome = classify(err)
		rec.Message = MessageOf(err)
		rec.RequestID = RequestIDOf(err)
		if apiErr, ok := AsError(err); ok && rec.Status == 0 {
			rec.Status = apiErr.Status
		}
	}

	fields := map[string]any{
		"request_id":  rec.RequestID,
		"method":      rec.Method,
		"path":        rec.Path,
		"status":      rec.Status,
		"outcome":     string(rec.Outcome),
		"duration_ms": float64(rec.Duration.Microseconds()) / 1000.0,
	}
	if err != nil {
		fields["error"] = rec.Message
		telemetry.Error("api.request.failed", fields)
	} else {
		telemetry.Info("api.request.complete", fields)
	}

	if c.observer != nil {
		c.observer.ObserveCall(ctx, rec)
	}
}

func classify(err error) Outcome {
	apiErr, ok := AsError(err)
	switch {
	case !ok:
		return OutcomeNetwork
	case apiErr.Err == ErrMissingBaseURL:
		return OutcomeConfigError
	case apiErr.Message == ShapeErrorMessage:
		return OutcomeShapeError
	case apiErr.Status >= 300 || (apiErr.Status > 0 && apiErr.Status < 200):
		return OutcomeHTTPError
	default:
		return OutcomeNetwork
	}
}
