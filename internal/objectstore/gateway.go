// Package objectstore is the only place that talks to the S3-compatible store.
// It uploads staged files, signs time-limited GET URLs and deletes objects.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"snapify/pkg/cache"
	"snapify/pkg/logger"
)

// DefaultPresignTTL is the lifetime of URLs returned by Presign.
const DefaultPresignTTL = time.Hour

// Backend is a single bucket in an S3-compatible store.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type Options struct {
	PresignTTL time.Duration
	// Timeout bounds each Put, Remove and Ping. Zero disables it.
	Timeout time.Duration
	// URLs caches signed URLs for half their lifetime. Nil disables caching.
	URLs *cache.MemoryCache
}

type Gateway struct {
	backend Backend
	ttl     time.Duration
	timeout time.Duration
	urls    *cache.MemoryCache
	group   singleflight.Group
	log     *logger.Logger
}

func NewGateway(backend Backend, opts Options) *Gateway {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = DefaultPresignTTL
	}
	return &Gateway{
		backend: backend,
		ttl:     opts.PresignTTL,
		timeout: opts.Timeout,
		urls:    opts.URLs,
		log:     logger.Named("objectstore"),
	}
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Upload streams the file at localPath to key and returns key. localPath is
// removed before Upload returns, whatever the outcome.
func (g *Gateway) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			g.log.Warn("could not remove staged file %s: %v", localPath, err)
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat staged file: %w", err)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := g.backend.Put(ctx, key, f, info.Size(), contentType); err != nil {
		err = classify("put", key, err)
		g.log.Error("upload %s failed: %v", key, err)
		return "", err
	}
	g.log.Info("stored %s (%d bytes) in %v", key, info.Size(), time.Since(start).Round(time.Millisecond))
	return key, nil
}

// Presign returns a GET URL for key valid for the default lifetime.
func (g *Gateway) Presign(ctx context.Context, key string) (string, bool) {
	return g.PresignTTL(ctx, key, g.ttl)
}

// PresignTTL never fails loudly: errors are logged and reported as ("", false).
// The object's existence is not checked.
func (g *Gateway) PresignTTL(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	if key == "" {
		return "", false
	}
	if ttl <= 0 {
		ttl = g.ttl
	}
	cacheable := g.urls != nil && ttl == g.ttl

	if cacheable {
		if u, ok := g.urls.Get(key); ok {
			return u, true
		}
	}

	v, err, _ := g.group.Do(fmt.Sprintf("%s|%d", key, ttl), func() (interface{}, error) {
		// Shared by every waiter: the first caller going away must not fail the rest.
		sctx, cancel := g.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		return g.backend.PresignGet(sctx, key, ttl)
	})
	if err != nil {
		g.log.Warn("presign %s failed: %v", key, classify("presign", key, err))
		return "", false
	}

	u := v.(string)
	if cacheable {
		// Half the lifetime, so a cached URL always has time left when handed out.
		g.urls.SetWithTTL(key, u, ttl/2)
	}
	return u, true
}

// Delete removes key. Failures are logged and otherwise ignored; the caller's
// authoritative state is the metadata row, not the object.
func (g *Gateway) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if g.urls != nil {
		g.urls.Delete(key)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.backend.Remove(ctx, key); err != nil {
		g.log.Warn("delete %s failed (object may be orphaned): %v", key, classify("remove", key, err))
	}
}

// Health reports whether the bucket is reachable.
func (g *Gateway) Health(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return classify("ping", "", g.backend.Ping(ctx))
}

// DefaultTTL is the lifetime Presign uses.
func (g *Gateway) DefaultTTL() time.Duration { return g.ttl }
