package utils

import (
	"net/http"
	"path/filepath"
	"strings"
)

// SniffContentType reads the magic bytes of head (up to 512 bytes) and falls
// back to the declared type when sniffing only yields the generic octet-stream.
func SniffContentType(head []byte, declared string) string {
	sniffed := http.DetectContentType(head)
	if sniffed == "application/octet-stream" && declared != "" {
		return declared
	}
	// DetectContentType cannot tell most video containers apart; trust the client there.
	if strings.HasPrefix(declared, "video/") && !strings.HasPrefix(sniffed, "image/") {
		return declared
	}
	return sniffed
}

// SafeExt returns the lowercase extension of a client-supplied filename,
// or "" when it contains anything but [a-z0-9] after the dot.
func SafeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
