// Package redact produces displayable stand-ins for secret values.
package redact

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/redactyl/livegrab/internal/types"
)

const short = "********"

// Mask keeps the first and last four bytes of long values and hides the rest.
// Values of eight bytes or fewer are fully hidden.
func Mask(s string) string {
	if len(s) <= 8 || !utf8.ValidString(s) {
		return short
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// Preview renders a capture value for reports and logs. Private keys only
// show their PEM header and size; passwords are never partially revealed.
func Preview(kind types.SecretKind, value []byte) string {
	switch kind {
	case types.KindPrivateKey:
		v := bytes.TrimSpace(value)
		if bytes.HasPrefix(v, []byte("-----BEGIN")) {
			hdr := v
			if i := bytes.Index(hdr[5:], []byte("-----")); i >= 0 {
				hdr = hdr[:i+10]
			}
			return fmt.Sprintf("%s (%d bytes)", hdr, len(value))
		}
		return fmt.Sprintf("%s (%d bytes)", short, len(value))
	case types.KindPassword:
		return short
	}
	v := types.Normalize(kind, value)
	if kind == types.KindConnectionString {
		return maskURLPassword(string(v))
	}
	return Mask(string(v))
}
