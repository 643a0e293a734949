package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dataghost-gateway/internal/api"
)

const summaryJSON = `{"dataset_id":"ds-1","name":"sales.csv","rows":3,"columns":[{"name":"region","type":"string"}],"sample_rows":[{"region":"EU"}]}`

type fakeAPI struct {
	t        *testing.T
	mu       sync.Mutex
	hits     map[string]int
	askBody  []json.RawMessage
	handlers map[string]http.HandlerFunc
	server   *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, hits: map[string]int{}, handlers: map[string]http.HandlerFunc{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		if r.URL.Path == "/ask" {
			body, _ := io.ReadAll(r.Body)
			f.askBody = append(f.askBody, json.RawMessage(body))
		}
		h, ok := f.handlers[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeAPI) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeAPI) lastAsk() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.askBody) == 0 {
		f.t.Fatalf("no ask request recorded")
	}
	var out map[string]any
	if err := json.Unmarshal(f.askBody[len(f.askBody)-1], &out); err != nil {
		f.t.Fatalf("decode ask body: %v", err)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSession(t *testing.T, f *fakeAPI, opts Options) (*Session, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	var seq atomic.Int64
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	opts.NewRequestID = func(action string) string {
		return fmt.Sprintf("%s-%d", action, seq.Add(1))
	}
	client := api.NewClient(f.server.URL)
	return NewSession("guest:test", client, opts), clock
}

func textFile(name, body string) api.File {
	return api.File{Name: name, ContentType: "text/plain", Content: strings.NewReader(body)}
}

func TestAskSendsOnlyQuestionThenClarificationsVerbatim(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, summaryJSON)
	})
	var round atomic.Int32
	f.handle("/ask", func(w http.ResponseWriter, r *http.Request) {
		if round.Add(1) == 1 {
			writeJSON(w, http.StatusOK, `{"conversation_id":"conv-1","needs_clarification":true,"clarification_questions":[
				{"key":"metric","type":"select","prompt":"Which metric?","options":["revenue","orders"]},
				{"key":"period","type":"text","prompt":"Which period?"}]}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data":{"conversation_id":"conv-1","needs_clarification":false,"answer":{
			"headline":"Revenue fell 12%","narrative":"EU slowed.","confidence":{"level":"high","reasons":[]}}},"request_id":"ask-srv-9"}`)
	})

	sess, _ := newTestSession(t, f, Options{})
	sess.Edit("  Why did revenue drop?  ")
	state, err := sess.Ask(context.Background(), "")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := f.lastAsk(); !reflect.DeepEqual(got, map[string]any{"question": "Why did revenue drop?"}) {
		t.Fatalf("unexpected ask body %v", got)
	}
	nc, ok := state.(NeedsClarification)
	if !ok || nc.ConversationID != "conv-1" || len(nc.Questions) != 2 {
		t.Fatalf("unexpected state %#v", state)
	}

	state, err = sess.SubmitClarifications(context.Background(), map[string]string{"period": "Q1", "unknown": "x"})
	if err != nil {
		t.Fatalf("SubmitClarifications: %v", err)
	}
	want := map[string]any{
		"question":        "Why did revenue drop?",
		"conversation_id": "conv-1",
		"clarifications":  map[string]any{"metric": "revenue", "period": "Q1"},
	}
	if got := f.lastAsk(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected clarification body %v", got)
	}
	answered, ok := state.(Answered)
	if !ok || answered.Answer.Headline != "Revenue fell 12%" || answered.RequestID != "ask-srv-9" {
		t.Fatalf("unexpected state %#v", state)
	}
	snap := sess.Snapshot()
	if snap.Conversation.Phase != PhaseAnswered || snap.LastAskRequestID != "ask-srv-9" || len(snap.Conversation.Clarifications) != 0 {
		t.Fatalf("unexpected snapshot %+v", snap.Conversation)
	}
}

func TestAskPreconditions(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail":"No dataset uploaded"}`)
	})
	sess, _ := newTestSession(t, f, Options{})

	if _, err := sess.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if _, err := sess.Ask(context.Background(), "why?"); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
	if _, err := sess.SubmitClarifications(context.Background(), nil); !errors.Is(err, ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
	if f.hitCount("/ask") != 0 {
		t.Fatalf("ask must not be sent when preconditions fail")
	}
}

func TestAskSurfacesSummaryFailure(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{"detail":"upstream unavailable"}`)
	})
	sess, _ := newTestSession(t, f, Options{})

	_, err := sess.Ask(context.Background(), "why?")
	if err == nil || errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected remote summary error, got %v", err)
	}
	apiErr, ok := api.AsError(err)
	if !ok || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 api error, got %v", err)
	}
	if sess.Err(OpSummary) == nil {
		t.Fatalf("expected summary error recorded on the session")
	}
	if f.hitCount("/ask") != 0 {
		t.Fatalf("ask must not be sent without a summary")
	}
}

func TestMissingSummaryIsNotAnError(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail":"No dataset uploaded"}`)
	})
	sess, _ := newTestSession(t, f, Options{})

	summary, err := sess.DatasetSummary(context.Background())
	if err != nil || summary != nil {
		t.Fatalf("expected nil summary and nil error, got %v %v", summary, err)
	}
	if sess.Err(OpSummary) != nil {
		t.Fatalf("expected no summary error")
	}
	if f.hitCount("/dataset/summary") != 1 {
		t.Fatalf("404 must not be retried")
	}
	if snap := sess.Snapshot(); snap.Dataset != nil || snap.CanAsk {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSummaryCacheStaleTimeAndRetry(t *testing.T) {
	f := newFakeAPI(t)
	var fail atomic.Bool
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusBadGateway, `{"message":"upstream down"}`)
			return
		}
		writeJSON(w, http.StatusOK, summaryJSON)
	})
	sess, clock := newTestSession(t, f, Options{})
	ctx := context.Background()

	if _, err := sess.DatasetSummary(ctx); err != nil {
		t.Fatalf("DatasetSummary: %v", err)
	}
	clock.Advance(30 * time.Second)
	if _, err := sess.DatasetSummary(ctx); err != nil {
		t.Fatalf("DatasetSummary: %v", err)
	}
	if got := f.hitCount("/dataset/summary"); got != 1 {
		t.Fatalf("expected cached summary, got %d fetches", got)
	}

	clock.Advance(31 * time.Second)
	fail.Store(true)
	summary, err := sess.DatasetSummary(ctx)
	if err == nil {
		t.Fatalf("expected error after retries")
	}
	if summary == nil || summary.DatasetID != "ds-1" {
		t.Fatalf("expected previous summary to be kept, got %+v", summary)
	}
	if got := f.hitCount("/dataset/summary"); got != 3 {
		t.Fatalf("expected one retry, got %d fetches", got)
	}
	if e := sess.Err(OpSummary); e == nil || e.Message != "upstream down" || e.RequestID != "dataset-summary-3" {
		t.Fatalf("unexpected summary error %+v", e)
	}
}

func TestUploadDatasetRefetchesSummary(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, summaryJSON)
	})
	f.handle("/upload/dataset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"dataset_id":"ds-2","table_name":"sales","rows":3,"columns":["region"]}`)
	})
	sess, _ := newTestSession(t, f, Options{})
	ctx := context.Background()

	if _, err := sess.DatasetSummary(ctx); err != nil {
		t.Fatalf("DatasetSummary: %v", err)
	}
	up, err := sess.UploadDataset(ctx, textFile("sales.csv", "region\nEU\n"))
	if err != nil {
		t.Fatalf("UploadDataset: %v", err)
	}
	if up.DatasetID != "ds-2" || up.Rows != 3 || up.Columns[0].Type != "unknown" {
		t.Fatalf("unexpected upload %+v", up)
	}
	if got := f.hitCount("/dataset/summary"); got != 2 {
		t.Fatalf("expected summary refetch after upload, got %d fetches", got)
	}
}

func TestContextUploadKeepsSuccessesBeforeFailure(t *testing.T) {
	f := newFakeAPI(t)
	var sess *Session
	var calls atomic.Int32
	var midFlight *Progress
	f.handle("/upload/context", func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			writeJSON(w, http.StatusOK, `{"doc_id":"doc1","filename":"a.md","chunks":4,"created_at":"2026-01-02T03:04:05Z"}`)
		case 2:
			midFlight = sess.ContextProgress()
			writeJSON(w, http.StatusInternalServerError, `{"error":{"message":"parse failed","code":"bad_doc"},"request_id":"ctx-srv-2"}`)
		default:
			writeJSON(w, http.StatusOK, `{"doc_id":"doc3","filename":"c.md","created_at":"2026-01-02T03:05:00Z"}`)
		}
	})
	sess, _ = newTestSession(t, f, Options{})

	uploaded, err := sess.UploadContext(context.Background(), []api.File{
		textFile("a.md", "a"), textFile("b.md", "b"), textFile("c.md", "c"),
	})
	if err == nil {
		t.Fatalf("expected failure on second file")
	}
	if len(uploaded) != 1 || uploaded[0].DocID != "doc1" {
		t.Fatalf("unexpected uploaded %+v", uploaded)
	}
	if midFlight == nil || *midFlight != (Progress{Completed: 1, Total: 3}) {
		t.Fatalf("expected progress {1,3} at failure, got %+v", midFlight)
	}
	if sess.ContextProgress() != nil {
		t.Fatalf("expected progress cleared")
	}
	docs := sess.ContextDocs()
	if len(docs) != 1 || docs[0].DocID != "doc1" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if e := sess.Err(OpContextUpload); e == nil || e.Message != "parse failed" || e.RequestID != "ctx-srv-2" {
		t.Fatalf("unexpected context error %+v", e)
	}
	if calls.Load() != 2 {
		t.Fatalf("upload must stop at the first failure")
	}

	calls.Store(2)
	if _, err := sess.UploadContext(context.Background(), []api.File{textFile("c.md", "c")}); err != nil {
		t.Fatalf("UploadContext: %v", err)
	}
	docs = sess.ContextDocs()
	if len(docs) != 2 || docs[0].DocID != "doc3" || docs[1].DocID != "doc1" {
		t.Fatalf("expected newest batch first, got %+v", docs)
	}
	if _, err := sess.UploadContext(context.Background(), nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestAskFailureAndEditRecovery(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, summaryJSON)
	})
	var round atomic.Int32
	f.handle("/ask", func(w http.ResponseWriter, r *http.Request) {
		switch round.Add(1) {
		case 1:
			writeJSON(w, http.StatusOK, `{"conversation_id":"conv-7","needs_clarification":true,"clarification_questions":[{"key":"k","type":"radio","prompt":"p","options":["a","b"]}]}`)
		default:
			w.Header().Set(api.RequestIDHeader, "hdr-ask-2")
			writeJSON(w, http.StatusServiceUnavailable, `{"message":"Model overloaded"}`)
		}
	})
	sess, _ := newTestSession(t, f, Options{})
	ctx := context.Background()

	if _, err := sess.Ask(ctx, "why?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	state, err := sess.SubmitClarifications(ctx, map[string]string{"k": "b"})
	if err == nil {
		t.Fatalf("expected failure")
	}
	errored, ok := state.(Errored)
	if !ok || errored.Message != "Model overloaded" || errored.RequestID != "hdr-ask-2" || errored.Resume == nil {
		t.Fatalf("unexpected state %#v", state)
	}
	snap := sess.Snapshot()
	if snap.Conversation.ConversationID != "conv-7" || len(snap.Conversation.Clarifications) != 1 || snap.Conversation.Clarifications[0].Value != "b" {
		t.Fatalf("clarification context must survive failure: %+v", snap.Conversation)
	}

	sess.Edit("why? (edited)")
	nc, ok := sess.State().(NeedsClarification)
	if !ok || nc.ConversationID != "conv-7" {
		t.Fatalf("expected return to clarification round, got %#v", sess.State())
	}
	if sess.Err(OpAsk) != nil {
		t.Fatalf("expected ask error cleared on edit")
	}
}

func TestAskErrorWithoutRoundReturnsToIdle(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, summaryJSON)
	})
	f.handle("/ask", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"unexpected":true}`)
	})
	sess, _ := newTestSession(t, f, Options{})

	state, err := sess.Ask(context.Background(), "why?")
	if err == nil {
		t.Fatalf("expected shape error")
	}
	if e, ok := state.(Errored); !ok || e.Message != api.ShapeErrorMessage || e.RequestID != "ask-2" {
		t.Fatalf("unexpected state %#v", state)
	}
	sess.Edit("why now?")
	if _, ok := sess.State().(Idle); !ok {
		t.Fatalf("expected idle after edit, got %#v", sess.State())
	}
}

type memoryAudio struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (m *memoryAudio) Save(_ context.Context, owner, fileName string, r io.Reader) (string, int64, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", err
	}
	key := owner + "/" + fileName
	m.mu.Lock()
	m.objs[key] = data
	m.mu.Unlock()
	return key, int64(len(data)), "audio/mpeg", nil
}

func (m *memoryAudio) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestReadbackSpeaksAnswerAndStoresAudio(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/dataset/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, summaryJSON)
	})
	f.handle("/ask", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"conversation_id":"c","needs_clarification":false,"answer":{"headline":"Up 5%","narrative":"Orders grew.","confidence":{"level":"medium","reasons":["small sample"]}}}`)
	})
	var spoken map[string]any
	f.handle("/voice/speak", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&spoken)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set(api.RequestIDHeader, "speak-hdr")
		_, _ = w.Write([]byte("ID3-audio"))
	})
	audio := &memoryAudio{objs: map[string][]byte{}}
	sess, _ := newTestSession(t, f, Options{Audio: audio, DefaultVoiceID: "alloy"})
	ctx := context.Background()

	if _, err := sess.Readback(ctx); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("expected ErrNoAnswer, got %v", err)
	}
	if _, err := sess.Ask(ctx, "how are orders?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	rb, err := sess.Readback(ctx)
	if err != nil {
		t.Fatalf("Readback: %v", err)
	}
	if spoken["text"] != "Up 5%\n\nOrders grew." || spoken["voice_id"] != "alloy" {
		t.Fatalf("unexpected speak body %v", spoken)
	}
	if rb.Key != "guest:test/readback-speak-hdr.mp3" || rb.SizeBytes != int64(len("ID3-audio")) {
		t.Fatalf("unexpected readback %+v", rb)
	}
	rc, err := sess.OpenAudio(ctx, rb.Key)
	if err != nil {
		t.Fatalf("OpenAudio: %v", err)
	}
	defer rc.Close()
	if data, _ := io.ReadAll(rc); string(data) != "ID3-audio" {
		t.Fatalf("unexpected audio %q", data)
	}
	if _, err := sess.OpenAudio(ctx, "guest:other/readback.mp3"); err == nil {
		t.Fatalf("expected foreign key to be rejected")
	}
}

func TestTranscribeReplacesQuestion(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/voice/transcribe", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil || r.MultipartForm.File["file"] == nil {
			writeJSON(w, http.StatusBadRequest, `{"detail":"file missing"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"text":"what drove churn","provider":"whisper"}`)
	})
	sess, _ := newTestSession(t, f, Options{})
	sess.Edit("old text")

	out, err := sess.Transcribe(context.Background(), api.File{Name: "clip.webm", ContentType: "audio/webm", Content: strings.NewReader("RIFF")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if out.Provider != "whisper" {
		t.Fatalf("unexpected transcription %+v", out)
	}
	if sess.Question() != "what drove churn" {
		t.Fatalf("expected question replaced, got %q", sess.Question())
	}
}

func TestSnapshotShowsExecutionPhaseWhileAsking(t *testing.T) {
	f := newFakeAPI(t)
	sess, clock := newTestSession(t, f, Options{})
	sess.mu.Lock()
	sess.conv = Asking{Question: "q", StartedAt: clock.Now()}
	sess.mu.Unlock()

	clock.Advance(3200 * time.Millisecond)
	snap := sess.Snapshot()
	if snap.Conversation.Phase != PhaseAsking || snap.Conversation.ExecutionPhase != "Validating" {
		t.Fatalf("unexpected conversation %+v", snap.Conversation)
	}
	if _, ok := snap.Operations[OpReadback]; !ok || len(snap.Operations) != len(operations) {
		t.Fatalf("expected every operation in snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"dataset":null`)) || !bytes.Contains(raw, []byte(`"contextProgress":null`)) {
		t.Fatalf("unexpected snapshot json %s", raw)
	}
}

func TestSessionStoreReusesSessions(t *testing.T) {
	var created atomic.Int32
	store := NewSessionStore(func(id string) *Session {
		created.Add(1)
		return NewSession(id, nil, Options{})
	})
	a := store.Get("guest:a")
	if store.Get("guest:a") != a || store.Get("guest:b") == a {
		t.Fatalf("unexpected session identity")
	}
	if created.Load() != 2 || store.Len() != 2 {
		t.Fatalf("expected two sessions, got %d", created.Load())
	}
}

func TestSessionStoreDropsIdleSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStore(func(id string) *Session {
		return NewSession(id, nil, Options{})
	}, WithIdleTTL(time.Minute), WithStoreClock(func() time.Time { return now }))

	a := store.Get("guest:a")
	store.Get("guest:b")
	now = now.Add(30 * time.Second)
	if store.Get("guest:a") != a {
		t.Fatalf("expected active session reused")
	}

	now = now.Add(45 * time.Second)
	store.Get("guest:c")
	if got := store.Len(); got != 2 {
		t.Fatalf("expected idle guest:b dropped, got %d sessions", got)
	}

	now = now.Add(2 * time.Minute)
	if store.Get("guest:a") == a {
		t.Fatalf("expected expired session replaced")
	}
}

func TestSessionStoreBoundedByCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var created atomic.Int32
	store := NewSessionStore(func(id string) *Session {
		created.Add(1)
		return NewSession(id, nil, Options{})
	}, WithMaxSessions(100), WithStoreClock(func() time.Time { return now }))

	for i := 0; i < 10000; i++ {
		now = now.Add(time.Millisecond)
		store.Get("guest:" + strconv.Itoa(i))
	}
	if got := store.Len(); got != 100 {
		t.Fatalf("expected store capped at 100, got %d", got)
	}

	store.Get("guest:9999")
	if created.Load() != 10000 {
		t.Fatalf("expected most recent session kept, created %d", created.Load())
	}
	store.Get("guest:0")
	if created.Load() != 10001 || store.Len() != 100 {
		t.Fatalf("expected oldest session evicted and recreated, created %d len %d", created.Load(), store.Len())
	}
}
