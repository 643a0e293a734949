package workspace

import (
	"bytes"
	"context"
	"io"
	"strings"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/shared/metrics"
	"dataghost-gateway/internal/shared/telemetry"
)

// Transcribe sends recorded audio for transcription and puts the text in
// the question box.
func (s *Session) Transcribe(ctx context.Context, audio api.File) (api.VoiceTranscription, error) {
	s.mu.Lock()
	s.begin(OpTranscribe)
	s.mu.Unlock()

	res, err := s.remote.TranscribeVoice(ctx, audio, s.newID("voice-transcribe"))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.end(OpTranscribe, err)
	if err != nil {
		return api.VoiceTranscription{}, err
	}
	metrics.IncTranscriptions()
	s.editLocked(res.Data.Text)
	return res.Data, nil
}

// Readback synthesizes the current answer's headline and narrative. When
// an audio store is configured the audio is saved and its key recorded.
func (s *Session) Readback(ctx context.Context) (Readback, error) {
	s.mu.Lock()
	answered, ok := s.conv.(Answered)
	if !ok {
		s.mu.Unlock()
		return Readback{}, ErrNoAnswer
	}
	text := readbackText(answered.Answer)
	s.begin(OpReadback)
	s.mu.Unlock()

	rb, err := s.speak(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.end(OpReadback, err)
	if err != nil {
		telemetry.Error("workspace.readback.failed", map[string]any{
			"session_id": s.id,
			"error":      api.MessageOf(err),
			"request_id": api.RequestIDOf(err),
		})
		return Readback{}, err
	}
	metrics.IncReadbacks()
	s.readback = &rb
	if rb.Key != "" {
		s.audioKeys[rb.Key] = struct{}{}
	}
	return rb, nil
}

func (s *Session) speak(ctx context.Context, text string) (Readback, error) {
	req := api.SpeakRequest{Text: text}
	if voice := s.opts.DefaultVoiceID; voice != "" {
		req.VoiceID = &voice
	}
	res, err := s.remote.SpeakText(ctx, req, s.newID("voice-speak"))
	if err != nil {
		return Readback{}, err
	}
	rb := Readback{
		ContentType: res.ContentType,
		SizeBytes:   int64(len(res.Audio)),
		RequestID:   res.RequestID,
		Audio:       res.Audio,
	}
	if s.opts.Audio == nil {
		return rb, nil
	}
	name := "readback-" + res.RequestID + audioExt(res.ContentType)
	key, size, _, err := s.opts.Audio.Save(ctx, s.id, name, bytes.NewReader(res.Audio))
	if err != nil {
		return Readback{}, err
	}
	rb.Key, rb.SizeBytes = key, size
	return rb, nil
}

// OpenAudio streams readback audio saved by this session.
func (s *Session) OpenAudio(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	_, owned := s.audioKeys[key]
	s.mu.Unlock()
	if !owned || s.opts.Audio == nil {
		return nil, ErrNoAnswer
	}
	return s.opts.Audio.Open(ctx, key)
}

func readbackText(answer api.Answer) string {
	return strings.TrimSpace(answer.Headline + "\n\n" + answer.Narrative)
}

func audioExt(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ".mp3"
	}
}
