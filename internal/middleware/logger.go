package middleware

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"

	"snapify/pkg/logger"
)

// statusWriter captures the status code and size of a response.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	length     int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.length += len(b)
	return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

var (
	// Method Colors
	cGet     = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	cPost    = color.New(color.FgHiGreen, color.Bold).SprintFunc()
	cPut     = color.New(color.FgHiYellow, color.Bold).SprintFunc()
	cDelete  = color.New(color.FgHiRed, color.Bold).SprintFunc()
	cDefault = color.New(color.FgWhite, color.Bold).SprintFunc()

	c200 = color.New(color.FgGreen, color.Bold).SprintFunc()
	c400 = color.New(color.FgYellow, color.Bold).SprintFunc()
	c500 = color.New(color.FgRed, color.Bold).SprintFunc()

	cTime = color.New(color.FgHiBlack).SprintFunc()
	cPath = color.New(color.FgWhite).SprintFunc()
)

// Logger prints one colored access line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		logger.LogAccess(formatAccess(start, r.Method, r.RequestURI, ww.statusCode, ww.length, time.Since(start)))
	})
}

func formatAccess(start time.Time, method, uri string, code, size int, took time.Duration) string {
	var statusStr string
	switch {
	case code >= 500:
		statusStr = c500(fmt.Sprintf("%d", code))
	case code >= 400:
		statusStr = c400(fmt.Sprintf("%d", code))
	default:
		statusStr = c200(fmt.Sprintf("%d", code))
	}

	label := fmt.Sprintf("%-8s", "["+method+"]")
	var methodStr string
	switch method {
	case http.MethodGet:
		methodStr = cGet(label)
	case http.MethodPost:
		methodStr = cPost(label)
	case http.MethodPut:
		methodStr = cPut(label)
	case http.MethodDelete:
		methodStr = cDelete(label)
	default:
		methodStr = cDefault(label)
	}

	return fmt.Sprintf("%s %s %s %s %s %s %s",
		cTime(start.Format("2006-01-02 15:04:05")),
		methodStr,
		cPath(uri),
		statusStr,
		cTime("|"),
		cTime(took.Round(time.Microsecond).String()),
		cTime(fmt.Sprintf("%dB", size)),
	)
}

// Chain applies middlewares so the first one listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
