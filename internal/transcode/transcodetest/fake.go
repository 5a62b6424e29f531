// Package transcodetest provides a deterministic Transcoder for tests.
package transcodetest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"snapify/internal/transcode"
)

// Transcoder writes "preview:<input bytes>" next to the input. Set Err to fail
// every call, or Block to hold calls until the channel is closed.
type Transcoder struct {
	Err   error
	Block chan struct{}

	mu    sync.Mutex
	calls []string
}

func (t *Transcoder) Transcode(ctx context.Context, inputPath string, opts transcode.Options) (string, error) {
	t.mu.Lock()
	t.calls = append(t.calls, inputPath)
	block, fail := t.Block, t.Err
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail != nil {
		return "", fmt.Errorf("%w: %v", transcode.ErrTranscode, fail)
	}

	in, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", transcode.ErrTranscode, err)
	}
	out := transcode.PreviewPath(inputPath)
	if err := os.WriteFile(out, append([]byte("preview:"), in...), 0o600); err != nil {
		return "", fmt.Errorf("%w: %v", transcode.ErrTranscode, err)
	}
	return out, nil
}

// Calls returns the input paths seen so far.
func (t *Transcoder) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}
