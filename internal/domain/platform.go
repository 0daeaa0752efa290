package domain

import (
	"net/url"
	"strings"
)

// PlatformID identifies the hosting platform behind a share link
type PlatformID string

const (
	PlatformICloud  PlatformID = "icloud"  // iCloud shared albums / photo links
	PlatformDropbox PlatformID = "dropbox" // Dropbox file share links
	PlatformGPhotos PlatformID = "gphotos" // Google Photos share links
	PlatformGDrive  PlatformID = "gdrive"  // Google Drive file links
	PlatformUnknown PlatformID = "unknown" // No registered adapter matched
)

// ValidatePlatform checks if a platform is a known, resolvable platform
func ValidatePlatform(platform PlatformID) bool {
	switch platform {
	case PlatformICloud, PlatformDropbox, PlatformGPhotos, PlatformGDrive:
		return true
	}
	return false
}

// HostWithinDomain reports whether host is the canonical domain itself or a
// proper subdomain of it. Substring matches are rejected, so
// "fakedropbox.com" and "dropbox.notreal.com" never match "dropbox.com".
func HostWithinDomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(domain)
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

// ParseShareURL parses a candidate share URL and rejects anything that is not
// an absolute http(s) URL with a host.
func ParseShareURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewEnvelope(ErrUsage, "malformed URL: "+rawURL, "")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, NewEnvelope(ErrUsage, "not an absolute http(s) URL: "+rawURL, "")
	}
	return u, nil
}
