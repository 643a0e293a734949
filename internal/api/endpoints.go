package api

import (
	"context"
	"net/http"

	"dataghost-gateway/internal/api/schema"
)

const (
	pathUploadDataset   = "/upload/dataset"
	pathUploadContext   = "/upload/context"
	pathDatasetSummary  = "/dataset/summary"
	pathAsk             = "/ask"
	pathVoiceTranscribe = "/voice/transcribe"
	pathVoiceSpeak      = "/voice/speak"
)

func fileForm(file File) FormBody {
	return FormBody{Parts: []FormPart{{Field: "file", File: file}}}
}

// UploadDataset sends a tabular file and normalizes legacy responses.
func (c *Client) UploadDataset(ctx context.Context, file File, requestID string) (Response[DatasetUpload], error) {
	return Send(ctx, c, Request{
		Method:    http.MethodPost,
		Path:      pathUploadDataset,
		Body:      fileForm(file),
		RequestID: requestID,
	}, DatasetUploadCompatibleSchema)
}

// UploadContextDocument sends one supporting document.
func (c *Client) UploadContextDocument(ctx context.Context, file File, requestID string) (Response[ContextUpload], error) {
	return Send(ctx, c, Request{
		Method:    http.MethodPost,
		Path:      pathUploadContext,
		Body:      fileForm(file),
		RequestID: requestID,
	}, ContextUploadSchema)
}

// GetDatasetSummary fetches the current dataset. A 404 surfaces as an *Error with NotFound() true.
func (c *Client) GetDatasetSummary(ctx context.Context, requestID string) (Response[DatasetSummary], error) {
	return Send(ctx, c, Request{
		Method:    http.MethodGet,
		Path:      pathDatasetSummary,
		RequestID: requestID,
	}, DatasetSummaryCompatibleSchema)
}

// AskQuestion validates payload and sends it verbatim.
func (c *Client) AskQuestion(ctx context.Context, payload AskRequest, requestID string) (Response[AskResponse], error) {
	if err := payload.Validate(); err != nil {
		return Response[AskResponse]{}, invalidRequest(err, requestID)
	}
	return Send(ctx, c, Request{
		Method:    http.MethodPost,
		Path:      pathAsk,
		Body:      JSONBody{Value: payload},
		RequestID: requestID,
	}, AskResponseSchema)
}

// TranscribeVoice sends recorded audio for transcription.
func (c *Client) TranscribeVoice(ctx context.Context, file File, requestID string) (Response[VoiceTranscription], error) {
	return Send(ctx, c, Request{
		Method:    http.MethodPost,
		Path:      pathVoiceTranscribe,
		Body:      fileForm(file),
		RequestID: requestID,
	}, VoiceTranscriptionSchema)
}

// SpeakText validates payload and returns synthesized audio.
func (c *Client) SpeakText(ctx context.Context, payload SpeakRequest, requestID string) (BinaryResponse, error) {
	if err := payload.Validate(); err != nil {
		return BinaryResponse{}, invalidRequest(err, requestID)
	}
	return c.SendBinary(ctx, BinaryRequest{
		Method:    http.MethodPost,
		Path:      pathVoiceSpeak,
		Body:      JSONBody{Value: payload},
		RequestID: requestID,
	})
}

func invalidRequest(err error, requestID string) *Error {
	return &Error{
		Message:   err.Error(),
		RequestID: requestID,
		Details:   schema.IssuesOf(err).Normalized(),
		Err:       err,
	}
}
