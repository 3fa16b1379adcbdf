package redact

import (
	"net/url"
	"regexp"
)

var kvPassword = regexp.MustCompile(`(?i)((?:password|pwd)\s*=\s*)[^;]*`)

// maskURLPassword hides the password of a URL-style connection string, or the
// Password= component of an ADO/ODBC-style one.
func maskURLPassword(s string) string {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			return u.Redacted()
		}
	}
	if kvPassword.MatchString(s) {
		return kvPassword.ReplaceAllString(s, "${1}"+short)
	}
	return Mask(s)
}
