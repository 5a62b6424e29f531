// Package objectstoretest provides an in-memory objectstore.Backend with
// failure injection for tests.
package objectstoretest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type Object struct {
	Data        []byte
	ContentType string
}

// Backend stores objects in a map. Signed URLs look like
// memory://<bucket>/<key>?expires=<unix> and can be read back with Fetch.
type Backend struct {
	Bucket string

	mu      sync.Mutex
	objects map[string]Object
	now     func() time.Time

	// Hooks return a non-nil error to make the operation fail for that key.
	PutErr     func(key string) error
	PresignErr func(key string) error
	RemoveErr  func(key string) error
	PingErr    error

	Puts     int
	Presigns int
	Removes  int
}

func New() *Backend {
	return &Backend{Bucket: "test-bucket", objects: map[string]Object{}, now: time.Now}
}

func (b *Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	hook := b.PutErr
	b.Puts++
	b.mu.Unlock()

	if hook != nil {
		if err := hook(key); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short body for %s: got %d want %d", key, len(data), size)
	}

	b.mu.Lock()
	b.objects[key] = Object{Data: data, ContentType: contentType}
	b.mu.Unlock()
	return nil
}

func (b *Backend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	hook := b.PresignErr
	b.Presigns++
	now := b.now()
	b.mu.Unlock()

	if hook != nil {
		if err := hook(key); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", b.Bucket, key, now.Add(ttl).Unix()), nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	hook := b.RemoveErr
	b.Removes++
	b.mu.Unlock()

	if hook != nil {
		if err := hook(key); err != nil {
			return err
		}
	}
	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.PingErr
}

// Object returns a stored object.
func (b *Backend) Object(key string) (Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	return o, ok
}

// Keys lists stored keys in order.
func (b *Backend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fetch dereferences a signed URL produced by this backend, honoring expiry.
func (b *Backend) Fetch(signed string) ([]byte, error) {
	u, err := url.Parse(signed)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "memory" || u.Host != b.Bucket {
		return nil, fmt.Errorf("foreign url %s", signed)
	}
	var expires int64
	if _, err := fmt.Sscan(u.Query().Get("expires"), &expires); err != nil {
		return nil, fmt.Errorf("unsigned url %s", signed)
	}
	if b.now().Unix() > expires {
		return nil, fmt.Errorf("url expired")
	}

	o, ok := b.Object(strings.TrimPrefix(u.Path, "/"))
	if !ok {
		return nil, fmt.Errorf("no such key")
	}
	return o.Data, nil
}

// FailAll returns a hook that fails every key with err.
func FailAll(err error) func(string) error {
	return func(string) error { return err }
}

// FailMatching returns a hook that fails keys containing substr.
func FailMatching(substr string, err error) func(string) error {
	return func(key string) error {
		if strings.Contains(key, substr) {
			return err
		}
		return nil
	}
}
