// Package redact strips secrets from values before they reach logs.
package redact

import (
	"net/url"
	"regexp"
)

var secretParam = regexp.MustCompile(`(?i)((?:password|passwd|pwd|token|access_token|key)=)[^&\s]+`)

// URI hides the userinfo password and secret query parameters of a stream URI.
// Values that do not parse as URLs are returned with query secrets masked.
func URI(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return secretParam.ReplaceAllString(raw, "${1}xxxxx")
	}
	if u.RawQuery != "" {
		u.RawQuery = secretParam.ReplaceAllString(u.RawQuery, "${1}xxxxx")
	}
	return u.Redacted()
}
