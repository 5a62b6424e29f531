package utils

import (
	"net/url"
	"strings"
)

// IsValidKeyFormat checks if the string contains only allowed characters.
// Allowed: a-z, A-Z, 0-9, -, _
// Media and event ids end up inside object keys, so '/' is rejected.
func IsValidKeyFormat(k string) bool {
	if k == "" || len(k) > 128 {
		return false
	}

	for _, r := range k {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' {
			continue
		}

		return false
	}
	return true
}

// IsAllowedOrigin reports whether origin matches one of the configured patterns.
func IsAllowedOrigin(origin string, allowedPatterns []string) bool {
	if origin == "" {
		return false
	}

	cleanOrigin := getCleanOrigin(origin)
	for _, pattern := range allowedPatterns {
		if MatchOrigin(cleanOrigin, strings.TrimSpace(pattern)) {
			return true
		}
	}
	return false
}

func getCleanOrigin(originURL string) string {
	u, err := url.Parse(originURL)
	if err != nil {
		return originURL
	}

	if u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}

	return originURL
}

func MatchOrigin(origin, pattern string) bool {
	// Pattern "*" accepts everything
	if pattern == "*" {
		return true
	}

	if origin == pattern {
		return true
	}

	// "**.example.com" (Main Domain + Subdomains)
	if strings.Contains(pattern, "**.") {
		base := strings.Replace(pattern, "**.", "", 1)
		if origin == base {
			return true
		}
		if strings.HasSuffix(origin, "."+removeProtocol(base)) {
			return true
		}
	}

	// "*.example.com" (Subdomains Only)
	if strings.Contains(pattern, "*.") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			prefix, suffix := parts[0], parts[1]
			if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) &&
				len(origin) > len(prefix)+len(suffix) {
				middle := origin[len(prefix) : len(origin)-len(suffix)]
				if !strings.Contains(middle, "/") {
					return true
				}
			}
		}
	}

	return false
}

func removeProtocol(urlStr string) string {
	urlStr = strings.TrimPrefix(urlStr, "https://")
	return strings.TrimPrefix(urlStr, "http://")
}
