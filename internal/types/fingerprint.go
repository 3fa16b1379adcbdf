package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

var pemBegin = []byte("-----BEGIN ")

// Normalize returns the canonical form of a secret value used for identity.
// Surrounding whitespace and one layer of matching quotes are removed; PEM
// blocks additionally lose all interior whitespace so CRLF and re-wrapped
// copies of the same key compare equal.
func Normalize(kind SecretKind, value []byte) []byte {
	v := bytes.TrimSpace(value)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			v = bytes.TrimSpace(v[1 : len(v)-1])
		}
	}
	if kind == KindPrivateKey && bytes.HasPrefix(v, pemBegin) {
		out := make([]byte, 0, len(v))
		for _, b := range v {
			switch b {
			case ' ', '\t', '\r', '\n':
				continue
			}
			out = append(out, b)
		}
		return out
	}
	return v
}

// Fingerprint is the stable identity of a secret: SHA-256 over the kind and
// the normalised value, hex encoded.
func Fingerprint(kind SecretKind, value []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(Normalize(kind, value))
	return hex.EncodeToString(h.Sum(nil))
}
