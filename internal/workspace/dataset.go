package workspace

import (
	"context"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/shared/metrics"
	"dataghost-gateway/internal/shared/telemetry"
)

// DatasetSummary returns the cached summary while fresh and refetches it
// otherwise. A nil summary with a nil error means no dataset was uploaded.
// On failure the previously cached summary is returned with the error.
func (s *Session) DatasetSummary(ctx context.Context) (*api.DatasetSummary, error) {
	s.mu.Lock()
	if s.summary.fresh(s.opts.Now(), s.opts.SummaryStaleTime) {
		data := s.summary.data
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()
	return s.fetchSummary(ctx)
}

// RefreshSummary refetches the summary regardless of staleness.
func (s *Session) RefreshSummary(ctx context.Context) (*api.DatasetSummary, error) {
	return s.fetchSummary(ctx)
}

// InvalidateSummary marks the cached summary stale.
func (s *Session) InvalidateSummary() {
	s.mu.Lock()
	s.summary.stale = true
	s.mu.Unlock()
}

func (s *Session) fetchSummary(ctx context.Context) (*api.DatasetSummary, error) {
	s.mu.Lock()
	s.begin(OpSummary)
	s.mu.Unlock()

	data, err := s.querySummary(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.end(OpSummary, err)
	if err != nil {
		return s.summary.data, err
	}
	s.summary = summaryCache{data: data, fetchedAt: s.opts.Now(), loaded: true}
	return data, nil
}

func (s *Session) querySummary(ctx context.Context) (*api.DatasetSummary, error) {
	var lastErr error
	for attempt := 0; attempt <= summaryRetries; attempt++ {
		res, err := s.remote.GetDatasetSummary(ctx, s.newID("dataset-summary"))
		if err == nil {
			data := res.Data
			return &data, nil
		}
		if api.IsNotFound(err) {
			return nil, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// UploadDataset replaces the remote dataset and refetches the summary.
func (s *Session) UploadDataset(ctx context.Context, file api.File) (api.DatasetUpload, error) {
	s.mu.Lock()
	s.begin(OpDatasetUpload)
	s.mu.Unlock()

	res, err := s.remote.UploadDataset(ctx, file, s.newID("upload-dataset"))

	s.mu.Lock()
	s.end(OpDatasetUpload, err)
	if err != nil {
		s.mu.Unlock()
		metrics.IncUploadFailures()
		return api.DatasetUpload{}, err
	}
	s.summary.stale = true
	s.mu.Unlock()

	metrics.IncDatasetUploads()
	telemetry.Info("workspace.dataset.uploaded", map[string]any{
		"session_id": s.id,
		"dataset_id": res.Data.DatasetID,
		"rows":       res.Data.Rows,
		"request_id": res.RequestID,
	})
	if _, err := s.fetchSummary(ctx); err != nil {
		telemetry.Error("workspace.summary.refetch_failed", map[string]any{
			"session_id": s.id,
			"error":      api.MessageOf(err),
			"request_id": api.RequestIDOf(err),
		})
	}
	return res.Data, nil
}

// UploadContext uploads files one at a time. Documents uploaded before a
// failure are kept, prepended ahead of older documents in upload order.
func (s *Session) UploadContext(ctx context.Context, files []api.File) ([]api.ContextUpload, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	s.mu.Lock()
	s.begin(OpContextUpload)
	s.progress = &Progress{Completed: 0, Total: len(files)}
	s.mu.Unlock()

	uploaded := make([]api.ContextUpload, 0, len(files))
	var failure error
	for i, file := range files {
		res, err := s.remote.UploadContextDocument(ctx, file, s.newID("upload-context"))
		if err != nil {
			failure = err
			metrics.IncUploadFailures()
			break
		}
		uploaded = append(uploaded, res.Data)
		metrics.IncContextUploads()

		s.mu.Lock()
		s.progress = &Progress{Completed: i + 1, Total: len(files)}
		s.summary.stale = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(uploaded) > 0 {
		s.docs = append(append([]api.ContextUpload(nil), uploaded...), s.docs...)
	}
	s.progress = nil
	s.end(OpContextUpload, failure)
	if failure != nil {
		telemetry.Error("workspace.context.upload_failed", map[string]any{
			"session_id": s.id,
			"completed":  len(uploaded),
			"total":      len(files),
			"error":      api.MessageOf(failure),
			"request_id": api.RequestIDOf(failure),
		})
	}
	return uploaded, failure
}
