package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrUnavailable means the store could not be reached. Callers may retry later.
	ErrUnavailable = errors.New("object store unavailable")
	// ErrStorage means the store answered but refused or failed the operation.
	ErrStorage = errors.New("object store operation failed")
)

// statusCoder is implemented by the aws-sdk-go-v2 response errors.
type statusCoder interface {
	HTTPStatusCode() int
}

// classify wraps err with ErrUnavailable or ErrStorage, keeping the cause.
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrStorage) {
		return err
	}
	kind := ErrStorage
	if isConnectivity(err) {
		kind = ErrUnavailable
	}
	return fmt.Errorf("%s %s: %w: %w", op, key, kind, err)
}

func isConnectivity(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.HTTPStatusCode() {
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
