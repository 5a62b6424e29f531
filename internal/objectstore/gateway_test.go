package objectstore_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapify/internal/objectstore"
	"snapify/internal/objectstore/objectstoretest"
	"snapify/pkg/cache"
)

func stageFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "staged.jpg")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func newGateway(t *testing.T) (*objectstore.Gateway, *objectstoretest.Backend) {
	t.Helper()
	backend := objectstoretest.New()
	urls := cache.New(cache.Options{Enabled: true, MaxEntries: 100, TTL: time.Hour})
	t.Cleanup(urls.Close)
	return objectstore.NewGateway(backend, objectstore.Options{URLs: urls}), backend
}

func TestUploadStoresAndRemovesStagedFile(t *testing.T) {
	g, backend := newGateway(t)
	path := stageFile(t, "jpeg bytes")

	key, err := g.Upload(context.Background(), path, "events/ev1/m1.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "events/ev1/m1.jpg", key)

	obj, ok := backend.Object(key)
	require.True(t, ok)
	assert.Equal(t, "jpeg bytes", string(obj.Data))
	assert.Equal(t, "image/jpeg", obj.ContentType)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadClassifiesFailures(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"connection refused", refused, objectstore.ErrUnavailable},
		{"deadline", context.DeadlineExceeded, objectstore.ErrUnavailable},
		{"access denied", errors.New("AccessDenied"), objectstore.ErrStorage},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g, backend := newGateway(t)
			backend.PutErr = objectstoretest.FailAll(c.err)
			path := stageFile(t, "x")

			_, err := g.Upload(context.Background(), path, "events/ev1/m1.jpg", "image/jpeg")
			require.Error(t, err)
			assert.ErrorIs(t, err, c.want)
			assert.ErrorIs(t, err, c.err)

			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "staged file must be removed on failure")
		})
	}
}

func TestPresignIsCachedAndEvictedOnDelete(t *testing.T) {
	g, backend := newGateway(t)
	ctx := context.Background()

	u1, ok := g.Presign(ctx, "events/ev1/m1.jpg")
	require.True(t, ok)
	u2, ok := g.Presign(ctx, "events/ev1/m1.jpg")
	require.True(t, ok)
	assert.Equal(t, u1, u2)
	assert.Equal(t, 1, backend.Presigns)

	g.Delete(ctx, "events/ev1/m1.jpg")
	_, ok = g.Presign(ctx, "events/ev1/m1.jpg")
	require.True(t, ok)
	assert.Equal(t, 2, backend.Presigns)
}

func TestPresignNeverFails(t *testing.T) {
	g, backend := newGateway(t)
	backend.PresignErr = objectstoretest.FailAll(errors.New("signer broken"))

	u, ok := g.Presign(context.Background(), "events/ev1/m1.jpg")
	assert.False(t, ok)
	assert.Empty(t, u)

	u, ok = g.Presign(context.Background(), "")
	assert.False(t, ok)
	assert.Empty(t, u)
}

func TestPresignSurvivesFirstCallerCancelling(t *testing.T) {
	backend := objectstoretest.New()
	g := objectstore.NewGateway(backend, objectstore.Options{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend.PresignErr = func(string) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		url string
		ok  bool
	}
	first := make(chan result, 1)
	second := make(chan result, 1)
	go func() {
		u, ok := g.Presign(ctx, "events/ev1/m1.jpg")
		first <- result{u, ok}
	}()
	<-entered
	go func() {
		u, ok := g.Presign(context.Background(), "events/ev1/m1.jpg")
		second <- result{u, ok}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	close(release)

	r1, r2 := <-first, <-second
	assert.True(t, r1.ok)
	assert.True(t, r2.ok)
	assert.NotEmpty(t, r2.url)
	assert.Equal(t, r1.url, r2.url)
}

func TestPresignedURLDereferences(t *testing.T) {
	g, backend := newGateway(t)
	ctx := context.Background()

	_, err := g.Upload(ctx, stageFile(t, "payload"), "events/ev1/a.png", "image/png")
	require.NoError(t, err)

	u, ok := g.PresignTTL(ctx, "events/ev1/a.png", time.Minute)
	require.True(t, ok)
	data, err := backend.Fetch(u)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDeleteIsBestEffort(t *testing.T) {
	g, backend := newGateway(t)
	backend.RemoveErr = objectstoretest.FailAll(errors.New("boom"))

	assert.NotPanics(t, func() { g.Delete(context.Background(), "events/ev1/m1.jpg") })
	assert.Equal(t, 1, backend.Removes)
}

func TestHealth(t *testing.T) {
	g, backend := newGateway(t)
	assert.NoError(t, g.Health(context.Background()))

	backend.PingErr = &net.DNSError{Err: "no such host", Name: "minio"}
	assert.ErrorIs(t, g.Health(context.Background()), objectstore.ErrUnavailable)
}
