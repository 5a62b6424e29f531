// Package staging owns the local directory where uploads wait for the object
// store or the transcoder. Every staged file belongs to exactly one request or
// job, and whoever owns it removes it.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"snapify/pkg/logger"
)

var log = logger.Named("staging")

// SniffLen is how many leading bytes of a staged file are kept for content sniffing.
const SniffLen = 512

// File is a staged upload.
type File struct {
	Path string
	Size int64
	Head []byte
}

type Area struct {
	dir string
	now func() time.Time
}

// NewArea creates dir when needed.
func NewArea(dir string) (*Area, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Area{dir: abs, now: time.Now}, nil
}

func (a *Area) Dir() string { return a.dir }

// Stage copies r into a uniquely named file carrying ext. On error nothing is left behind.
func (a *Area) Stage(r io.Reader, ext string) (*File, error) {
	path := filepath.Join(a.dir, uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	head := &headWriter{limit: SniffLen}
	n, copyErr := io.Copy(io.MultiWriter(f, head), r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}

	return &File{Path: path, Size: n, Head: head.buf}, nil
}

// Remove deletes a staged file. Missing files and paths outside the area are ignored.
func (a *Area) Remove(path string) {
	if path == "" || !a.owns(path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove %s: %v", filepath.Base(path), err)
	}
}

// Sweep removes every file in the area. Only safe before any request or job runs.
func (a *Area) Sweep() (int, error) {
	return a.sweep(func(os.FileInfo) bool { return true })
}

// SweepStale removes files last modified more than olderThan ago.
func (a *Area) SweepStale(olderThan time.Duration) (int, error) {
	cutoff := a.now().Add(-olderThan)
	return a.sweep(func(info os.FileInfo) bool { return info.ModTime().Before(cutoff) })
}

func (a *Area) sweep(match func(os.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !match(info) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of files currently staged.
func (a *Area) Count() int {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// StartSweeper removes leaked files every interval in the background until ctx is done.
func (a *Area) StartSweeper(ctx context.Context, interval, staleAfter time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := a.SweepStale(staleAfter)
				if err != nil {
					log.Error("stale sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Warn("removed %d stale staged files", n)
				}
			}
		}
	}()
}

func (a *Area) owns(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, a.dir+string(filepath.Separator))
}

type headWriter struct {
	buf   []byte
	limit int
}

func (h *headWriter) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}
