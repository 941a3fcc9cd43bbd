package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxfit/backend/internal/access"
	"github.com/foxfit/backend/internal/apperr"
	"github.com/foxfit/backend/internal/logger"
	"github.com/foxfit/backend/internal/models"
	"github.com/foxfit/backend/internal/repository/memory"
)

type deliveryFixture struct {
	store    *memory.Store
	files    *LocalStore
	channel  *models.Channel
	vod      *models.Video
	content  []byte
	viewer   uuid.UUID
	delivery *Delivery
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	owner := &models.User{Email: "coach@foxfit.test", DisplayName: "Coach"}
	require.NoError(t, store.Users().Create(ctx, owner))
	ch := &models.Channel{OwnerID: owner.ID, Name: "HIIT", Slug: "hiit", StreamKey: "live_abc123"}
	require.NoError(t, store.Channels().Create(ctx, ch))

	root := t.TempDir()
	files, err := NewLocalStore(root)
	require.NoError(t, err)

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "recordings"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "recordings", "class.mp4"), content, 0o640))

	key := "recordings/class.mp4"
	vod := &models.Video{ChannelID: ch.ID, Title: "class", Status: models.VideoVOD, FilePath: &key}
	require.NoError(t, store.Videos().Create(ctx, vod))

	return &deliveryFixture{
		store:    store,
		files:    files,
		channel:  ch,
		vod:      vod,
		content:  content,
		viewer:   uuid.New(),
		delivery: NewDelivery(store.Videos(), access.NewAuthorizer(store.Channels()), files, 0),
	}
}

func (f *deliveryFixture) addVideo(t *testing.T, status models.VideoStatus, key *string) *models.Video {
	t.Helper()
	v := &models.Video{ChannelID: f.channel.ID, Title: "extra", Status: status, FilePath: key}
	require.NoError(t, f.store.Videos().Create(context.Background(), v))
	return v
}

func assertNothingWritten(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Accept-Ranges"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestServe_Range(t *testing.T) {
	f := newDeliveryFixture(t)
	rec := httptest.NewRecorder()

	res, err := f.delivery.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "bytes=0-99")
	require.NoError(t, err)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, http.StatusPartialContent, res.Status)
	assert.Equal(t, "bytes 0-99/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "private, no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, f.content[:100], rec.Body.Bytes())
	assert.EqualValues(t, 100, res.Sent)
}

func TestServe_MiddleRange(t *testing.T) {
	f := newDeliveryFixture(t)
	rec := httptest.NewRecorder()

	_, err := f.delivery.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "bytes=500-")
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, f.content[500:], rec.Body.Bytes())
}

func TestServe_Unsatisfiable(t *testing.T) {
	f := newDeliveryFixture(t)
	rec := httptest.NewRecorder()

	res, err := f.delivery.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "bytes=2000-3000")
	require.NoError(t, err)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, PlanUnsatisfiable, res.Plan.Kind)
	assert.Equal(t, "bytes */1000", rec.Header().Get("Content-Range"))
	assert.Zero(t, rec.Body.Len())
}

func TestServe_Full(t *testing.T) {
	f := newDeliveryFixture(t)
	rec := httptest.NewRecorder()

	_, err := f.delivery.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.True(t, bytes.Equal(f.content, rec.Body.Bytes()))
}

func TestServe_ProcessingIsServed(t *testing.T) {
	f := newDeliveryFixture(t)
	key := "recordings/class.mp4"
	v := f.addVideo(t, models.VideoProcessing, &key)

	rec := httptest.NewRecorder()
	_, err := f.delivery.Serve(context.Background(), rec, v.ID, &f.viewer, "bytes=-10")
	require.NoError(t, err)
	assert.Equal(t, f.content[990:], rec.Body.Bytes())
}

func TestServe_ForbiddenBeforeExistence(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		videoID   uuid.UUID
		requester *uuid.UUID
	}{
		{"anonymous existing video", f.vod.ID, nil},
		{"anonymous missing video", uuid.New(), nil},
		{"signed in missing video", uuid.New(), &f.viewer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			_, err := f.delivery.Serve(ctx, rec, tt.videoID, tt.requester, "")
			assert.ErrorIs(t, err, apperr.ErrForbidden)
			assert.NotErrorIs(t, err, apperr.ErrNotFound)
			assertNothingWritten(t, rec)
		})
	}
}

type denyAll struct{}

func (denyAll) CanView(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return false, nil }

func TestServe_AuthorizerDenies(t *testing.T) {
	f := newDeliveryFixture(t)
	d := NewDelivery(f.store.Videos(), denyAll{}, f.files, 0)

	rec := httptest.NewRecorder()
	_, err := d.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "bytes=0-99")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assertNothingWritten(t, rec)
}

func TestServe_NotFound(t *testing.T) {
	f := newDeliveryFixture(t)
	live := "streaming/live/live_abc123.m3u8"
	missing := "recordings/missing.mp4"
	escape := "../outside.mp4"

	tests := []struct {
		name  string
		video *models.Video
	}{
		{"live video", f.addVideo(t, models.VideoLive, &live)},
		{"no file path", f.addVideo(t, models.VideoVOD, nil)},
		{"missing object", f.addVideo(t, models.VideoVOD, &missing)},
		{"escaping path", f.addVideo(t, models.VideoVOD, &escape)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			_, err := f.delivery.Serve(context.Background(), rec, tt.video.ID, &f.viewer, "")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
			assertNothingWritten(t, rec)
		})
	}
}

type trackedObject struct {
	*Object
	closed *atomic.Bool
}

func (o trackedObject) Close() error {
	o.closed.Store(true)
	return o.Object.Close()
}

type flakyStore struct {
	inner    Store
	failures int32
	calls    atomic.Int32
	closed   atomic.Bool
}

func (s *flakyStore) Open(ctx context.Context, key string) (*Object, error) {
	if s.calls.Add(1) <= s.failures {
		return nil, fmt.Errorf("open: %w", apperr.ErrTransient)
	}
	obj, err := s.inner.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	tracked := trackedObject{Object: obj, closed: &s.closed}
	return &Object{ReadSeekCloser: tracked, Name: obj.Name, Size: obj.Size, ModTime: obj.ModTime}, nil
}

func TestServe_RetriesTransientOpenOnce(t *testing.T) {
	f := newDeliveryFixture(t)

	flaky := &flakyStore{inner: f.files, failures: 1}
	d := NewDelivery(f.store.Videos(), access.NewAuthorizer(f.store.Channels()), flaky, 0)
	rec := httptest.NewRecorder()
	_, err := d.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, flaky.calls.Load())
	assert.True(t, flaky.closed.Load())

	down := &flakyStore{inner: f.files, failures: 10}
	d = NewDelivery(f.store.Videos(), access.NewAuthorizer(f.store.Channels()), down, 0)
	rec = httptest.NewRecorder()
	_, err = d.Serve(context.Background(), rec, f.vod.ID, &f.viewer, "")
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.EqualValues(t, 2, down.calls.Load())
	assertNothingWritten(t, rec)
}

func TestServe_MissingObjectIsNotRetried(t *testing.T) {
	f := newDeliveryFixture(t)
	missing := "recordings/missing.mp4"
	v := f.addVideo(t, models.VideoVOD, &missing)

	flaky := &flakyStore{inner: f.files}
	d := NewDelivery(f.store.Videos(), access.NewAuthorizer(f.store.Channels()), flaky, 0)
	_, err := d.Serve(context.Background(), httptest.NewRecorder(), v.ID, &f.viewer, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualValues(t, 1, flaky.calls.Load())
}

func TestServe_StoreFailureDoesNotLeakStreamKey(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	prev := logger.Get()
	logger.Set(l)
	t.Cleanup(func() { logger.Set(prev) })

	f := newDeliveryFixture(t)
	placeholder := "streaming/live/" + f.channel.StreamKey + ".m3u8"
	full := filepath.Join(f.files.Root(), filepath.FromSlash(placeholder))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	// a symlink pointing at itself fails every open with ELOOP
	require.NoError(t, os.Symlink(full, full))
	v := f.addVideo(t, models.VideoProcessing, &placeholder)

	rec := httptest.NewRecorder()
	_, err := f.delivery.Serve(context.Background(), rec, v.ID, &f.viewer, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assertNothingWritten(t, rec)

	require.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), f.channel.StreamKey)
	assert.NotContains(t, err.Error(), f.channel.StreamKey)
}

func TestObjectFile_ErrorsOmitPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "live_secret")
	require.NoError(t, os.Mkdir(dir, 0o750))
	f, err := os.Open(dir)
	require.NoError(t, err)
	obj := objectFile{f}
	defer obj.Close()

	_, err = obj.Read(make([]byte, 1))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "live_secret")
}

// cancellingWriter simulates a viewer that disconnects after the first chunk.
type cancellingWriter struct {
	*httptest.ResponseRecorder
	cancel context.CancelFunc
}

func (w cancellingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseRecorder.Write(p)
	w.cancel()
	return n, err
}

func TestServe_ClientDisconnectReleasesFile(t *testing.T) {
	f := newDeliveryFixture(t)

	big := bytes.Repeat([]byte("x"), 4*copyBufferSize)
	require.NoError(t, os.WriteFile(filepath.Join(f.files.Root(), "recordings", "big.mp4"), big, 0o640))
	key := "recordings/big.mp4"
	v := f.addVideo(t, models.VideoVOD, &key)

	tracking := &flakyStore{inner: f.files}
	d := NewDelivery(f.store.Videos(), access.NewAuthorizer(f.store.Channels()), tracking, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := cancellingWriter{ResponseRecorder: httptest.NewRecorder(), cancel: cancel}

	res, err := d.Serve(ctx, w, v.ID, &f.viewer, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Sent, int64(len(big)))
	assert.True(t, tracking.closed.Load())
}

func TestLocalStore_Confinement(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(root), "outside.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o640))
	t.Cleanup(func() { os.Remove(outside) })

	for _, key := range []string{"../outside.mp4", "/../outside.mp4", `..\outside.mp4`, "", "."} {
		_, err := s.Open(context.Background(), key)
		assert.ErrorIs(t, err, apperr.ErrNotFound, key)
	}

	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o750))
	_, err = s.Open(context.Background(), "dir")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", contentType("a.MP4"))
	assert.Equal(t, "video/webm", contentType("a.webm"))
	assert.Equal(t, "application/octet-stream", contentType("a.unknownext"))
}
