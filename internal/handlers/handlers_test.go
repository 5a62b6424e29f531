package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapify/internal/database"
	"snapify/internal/ingest"
	"snapify/internal/media"
	"snapify/internal/objectstore"
	"snapify/internal/objectstore/objectstoretest"
	"snapify/internal/realtime"
	"snapify/internal/staging"
	"snapify/internal/transcode"
	"snapify/internal/transcode/transcodetest"
	"snapify/pkg/utils"
)

type fakeCaptioner struct{}

func (fakeCaptioner) Caption(_ context.Context, img []byte) string {
	return fmt.Sprintf("caption for %d bytes", len(img))
}

func (fakeCaptioner) Describe(_ context.Context, title, _, kind string) string {
	return title + " / " + kind
}

type testServer struct {
	srv     *httptest.Server
	store   *database.Store
	backend *objectstoretest.Backend
	queue   *transcode.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	area, err := staging.NewArea(t.TempDir())
	require.NoError(t, err)

	backend := objectstoretest.New()
	objects := objectstore.NewGateway(backend, objectstore.Options{})
	hub := realtime.NewHub(16)

	svc := ingest.NewService(ingest.Deps{
		Store:      store,
		Objects:    objects,
		Staging:    area,
		Notifier:   hub,
		Transcoder: &transcodetest.Transcoder{},
	})
	queue := transcode.NewQueue(1, svc.ProcessJob)
	svc.AttachQueue(queue)

	h := New(Deps{
		Service:   svc,
		Store:     store,
		Objects:   objects,
		Queue:     queue,
		Hub:       hub,
		WS:        realtime.NewWSServer(hub, nil),
		Captioner: fakeCaptioner{},
		Version:   "test",
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	ts := &testServer{srv: srv, store: store, backend: backend, queue: queue}
	ts.postJSON(t, "/api/events", map[string]any{"id": "ev1", "hostId": "host-1", "title": "Wedding", "pin": "1234"}, http.StatusCreated)
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request, wantStatus int) map[string]any {
	t.Helper()
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	raw := new(bytes.Buffer)
	_, _ = raw.ReadFrom(resp.Body)
	require.Equal(t, wantStatus, resp.StatusCode, raw.String())
	if raw.Len() > 0 && strings.HasPrefix(strings.TrimSpace(raw.String()), "{") {
		require.NoError(t, json.Unmarshal(raw.Bytes(), &body))
	}
	return body
}

func (ts *testServer) postJSON(t *testing.T, path string, payload any, wantStatus int) map[string]any {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req, wantStatus)
}

func (ts *testServer) upload(t *testing.T, fields map[string]string, filename, contentType string, data []byte, wantStatus int) map[string]any {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		hdr := make(map[string][]string)
		hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
		hdr["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/media", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(t, req, wantStatus)
}

func (ts *testServer) request(t *testing.T, method, path string, wantStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, nil)
	require.NoError(t, err)
	return ts.do(t, req, wantStatus)
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func mediaFields(id, kind string) map[string]string {
	return map[string]string{
		"id": id, "eventId": "ev1", "type": kind, "caption": "Captured moment",
		"uploadedAt": "2024-06-01T18:30:00Z", "uploaderName": "Ana",
		"isWatermarked": "true", "watermarkText": "A&L",
	}
}

func TestUploadImageAndFetchEvent(t *testing.T) {
	ts := newTestServer(t)

	body := ts.upload(t, mediaFields("img1", "image"), "a.png", "image/png", pngData(t), http.StatusCreated)
	assert.Equal(t, "ready", body["processingState"])
	assert.Equal(t, true, body["isWatermarked"])
	assert.NotEmpty(t, body["url"])
	assert.NotContains(t, body, "previewUrl")

	ev := ts.request(t, http.MethodGet, "/api/events/ev1", http.StatusOK)
	assert.Equal(t, "Wedding", ev["title"])
	items := ev["media"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "2024-06-01T18:30:00Z", items[0].(map[string]any)["uploadedAt"])
	assert.Empty(t, ev["guestbook"])
}

func TestUploadVideoCompletesInBackground(t *testing.T) {
	ts := newTestServer(t)

	body := ts.upload(t, mediaFields("vid1", "video"), "clip.mp4", "video/mp4", []byte("not really mp4"), http.StatusCreated)
	assert.Equal(t, "processing", body["processingState"])
	assert.Empty(t, body["url"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.queue.Drain(ctx))

	ev := ts.request(t, http.MethodGet, "/api/events/ev1", http.StatusOK)
	item := ev["media"].([]any)[0].(map[string]any)
	assert.Equal(t, "ready", item["processingState"])
	assert.NotEmpty(t, item["url"])
	assert.NotEmpty(t, item["previewUrl"])
}

func TestUploadRejections(t *testing.T) {
	ts := newTestServer(t)

	body := ts.upload(t, mediaFields("x", "image"), "", "", nil, http.StatusBadRequest)
	assert.Equal(t, utils.ErrRequestInvalid, body["code"])

	body = ts.upload(t, mediaFields("x", "audio"), "a.mp3", "audio/mpeg", []byte("abc"), http.StatusBadRequest)
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])

	fields := mediaFields("x", "image")
	fields["eventId"] = "ghost"
	body = ts.upload(t, fields, "a.png", "image/png", pngData(t), http.StatusNotFound)
	assert.Equal(t, utils.ErrResourceNotFound, body["code"])

	fields = mediaFields("x", "image")
	fields["uploadedAt"] = "yesterday"
	ts.upload(t, fields, "a.png", "image/png", pngData(t), http.StatusBadRequest)

	ts.upload(t, mediaFields("dup", "image"), "a.png", "image/png", pngData(t), http.StatusCreated)
	body = ts.upload(t, mediaFields("dup", "image"), "a.png", "image/png", pngData(t), http.StatusConflict)
	assert.Equal(t, utils.ErrResourceConflict, body["code"])
}

func TestUploadStorageFailures(t *testing.T) {
	ts := newTestServer(t)

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	ts.backend.PutErr = objectstoretest.FailAll(refused)
	body := ts.upload(t, mediaFields("a", "image"), "a.png", "image/png", pngData(t), http.StatusServiceUnavailable)
	assert.Equal(t, utils.ErrStorageUnavailable, body["code"])

	ts.backend.PutErr = objectstoretest.FailAll(errors.New("AccessDenied"))
	body = ts.upload(t, mediaFields("b", "image"), "a.png", "image/png", pngData(t), http.StatusBadGateway)
	assert.Equal(t, utils.ErrStorageFailed, body["code"])

	_, err := ts.store.GetMedia(context.Background(), "a")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestLikeAndDeleteMedia(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, mediaFields("img1", "image"), "a.png", "image/png", pngData(t), http.StatusCreated)

	ts.request(t, http.MethodPut, "/api/media/img1/like", http.StatusOK)
	body := ts.request(t, http.MethodPut, "/api/media/img1/like", http.StatusOK)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["likes"])

	ts.request(t, http.MethodPut, "/api/media/ghost/like", http.StatusNotFound)

	ts.request(t, http.MethodDelete, "/api/media/img1", http.StatusOK)
	ts.request(t, http.MethodDelete, "/api/media/img1", http.StatusOK)
	assert.Empty(t, ts.backend.Keys())
}

func TestEventEndpoints(t *testing.T) {
	ts := newTestServer(t)

	body := ts.postJSON(t, "/api/events", map[string]any{"id": "ev1", "title": "Again"}, http.StatusConflict)
	assert.Equal(t, utils.ErrResourceConflict, body["code"])
	ts.postJSON(t, "/api/events", map[string]any{"hostId": "host-1"}, http.StatusBadRequest)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/events", strings.NewReader("{not json"))
	require.NoError(t, err)
	ts.do(t, req, http.StatusBadRequest)

	ts.postJSON(t, "/api/events", map[string]any{"hostId": "host-1", "title": "Birthday"}, http.StatusCreated)

	req, err = http.NewRequest(http.MethodGet, ts.srv.URL+"/api/events?hostId=host-1", nil)
	require.NoError(t, err)
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	resp.Body.Close()
	assert.Len(t, events, 2)

	ts.request(t, http.MethodGet, "/api/events", http.StatusBadRequest)
	ts.request(t, http.MethodGet, "/api/events/ghost", http.StatusNotFound)

	body = ts.postJSON(t, "/api/events/ev1/validate-pin", map[string]string{"pin": "1234"}, http.StatusOK)
	assert.Equal(t, true, body["success"])
	body = ts.postJSON(t, "/api/events/ev1/validate-pin", map[string]string{"pin": "0000"}, http.StatusOK)
	assert.Equal(t, false, body["success"])

	body = ts.postJSON(t, "/api/guestbook", map[string]string{"eventId": "ev1", "senderName": "Leo", "message": "Congrats"}, http.StatusCreated)
	assert.NotEmpty(t, body["id"])
	ts.postJSON(t, "/api/guestbook", map[string]string{"eventId": "ev1"}, http.StatusBadRequest)

	ts.upload(t, mediaFields("img1", "image"), "a.png", "image/png", pngData(t), http.StatusCreated)
	ts.request(t, http.MethodDelete, "/api/events/ev1", http.StatusOK)
	ts.request(t, http.MethodGet, "/api/events/ev1", http.StatusNotFound)
	ts.request(t, http.MethodDelete, "/api/events/ev1", http.StatusNotFound)
	assert.Empty(t, ts.backend.Keys())
}

func TestCaptionNeverFails(t *testing.T) {
	ts := newTestServer(t)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "a.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("12345"))
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/captions", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	out := ts.do(t, req, http.StatusOK)
	assert.Equal(t, "caption for 5 bytes", out["caption"])

	req, err = http.NewRequest(http.MethodPost, ts.srv.URL+"/api/captions", strings.NewReader("garbage"))
	require.NoError(t, err)
	out = ts.do(t, req, http.StatusOK)
	assert.Equal(t, "Captured moment", out["caption"])

	out = ts.postJSON(t, "/api/events/describe", map[string]string{"title": "Prom"}, http.StatusOK)
	assert.Equal(t, "Prom / party", out["description"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	body := ts.request(t, http.MethodGet, "/api/health", http.StatusOK)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["db"].(map[string]any)["status"])
	assert.Contains(t, body, "queue")
	assert.Contains(t, body, "pipeline")

	ts.backend.PingErr = errors.New("no such bucket")
	body = ts.request(t, http.MethodGet, "/api/health", http.StatusServiceUnavailable)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["storage"].(map[string]any)["status"])
}

func TestServiceErrorRetryHint(t *testing.T) {
	h := New(Deps{})
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	cases := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"storage down", fmt.Errorf("upload: %w: %w", objectstore.ErrUnavailable, refused), http.StatusServiceUnavailable, true},
		{"shutting down", fmt.Errorf("queue video v1: %w", transcode.ErrQueueClosed), http.StatusServiceUnavailable, true},
		{"storage rejected", fmt.Errorf("upload: %w", objectstore.ErrStorage), http.StatusBadGateway, false},
		{"conflict", fmt.Errorf("media v1: %w", media.ErrConflict), http.StatusConflict, false},
		{"validation", media.Validationf("bad id"), http.StatusBadRequest, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, c.err)
			assert.Equal(t, c.status, rec.Code)
			if c.retryable {
				assert.Equal(t, "5", rec.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, rec.Header().Get("Retry-After"))
			}
		})
	}
}
