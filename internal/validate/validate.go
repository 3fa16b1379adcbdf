package validate

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"net/url"
	"strings"
)

const (
	base62     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b64like    = base62 + "+/="
)

// LengthBetween returns true if len(s) is within [min,max].
func LengthBetween(s string, min, max int) bool {
	n := len(s)
	return n >= min && n <= max
}

// IsAlphabet returns true if all characters in s are in allowed set.
func IsAlphabet(s, allowed string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(allowed, s[i]) < 0 {
			return false
		}
	}
	return true
}

// IsBase64URLNoPad reports whether s is valid base64url without padding.
func IsBase64URLNoPad(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

// IsBase64Std reports whether s is valid standard base64 (padding optional).
func IsBase64Std(s string) bool {
	if s == "" {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(s); err == nil {
		return true
	}
	_, err := base64.RawStdEncoding.DecodeString(s)
	return err == nil
}

// IsHex returns true if s is valid, even-length hex.
func IsHex(s string) bool {
	if s == "" || len(s)%2 == 1 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HasPrefixTail reports whether s is one of prefixes followed by a tail of
// length within [min,max] drawn from alphabet.
func HasPrefixTail(s string, prefixes []string, min, max int, alphabet string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			tail := s[len(p):]
			return LengthBetween(tail, min, max) && IsAlphabet(tail, alphabet)
		}
	}
	return false
}

// LooksLikeGitHubToken accepts ghp_, gho_, ghu_, ghs_, ghr_ followed by 36 base62 chars.
func LooksLikeGitHubToken(s string) bool {
	return HasPrefixTail(s, []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_"}, 36, 36, base62)
}

// LooksLikeOpenAIKey checks sk- prefix and a base62 tail of 40-64 chars.
func LooksLikeOpenAIKey(s string) bool {
	return HasPrefixTail(s, []string{"sk-"}, 40, 64, base62)
}

// LooksLikeStripeKey checks sk_live_/rk_live_ style secret keys.
func LooksLikeStripeKey(s string) bool {
	return HasPrefixTail(s, []string{"sk_live_", "rk_live_", "sk_test_", "rk_test_"}, 24, 99, base62)
}

// LooksLikeAWSAccessKey checks for AKIA/ASIA + 16 uppercase alnum.
func LooksLikeAWSAccessKey(s string) bool {
	return HasPrefixTail(s, []string{"AKIA", "ASIA"}, 16, 16, upperAlnum)
}

// LooksLikeAWSSecretKey checks base64-like alphabet and exact length 40.
func LooksLikeAWSSecretKey(s string) bool {
	return len(s) == 40 && IsAlphabet(s, b64like)
}

// LooksLikeSlackToken checks the xox?- family.
func LooksLikeSlackToken(s string) bool {
	if len(s) < 15 || !strings.HasPrefix(s, "xox") {
		return false
	}
	switch s[3] {
	case 'a', 'b', 'p', 'r', 's':
	default:
		return false
	}
	return s[4] == '-' && IsAlphabet(s[5:], base62+"-")
}

// IsJWTStructure verifies 3 segments with base64url-decodable header and payload.
func IsJWTStructure(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	return IsBase64URLNoPad(parts[0]) && IsBase64URLNoPad(parts[1])
}

// HasURLPassword reports whether s parses as a URL carrying a non-empty
// password in its userinfo, e.g. postgres://user:pw@host/db.
func HasURLPassword(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.User == nil {
		return false
	}
	pw, ok := u.User.Password()
	return ok && pw != ""
}

// IsPEMPrivateKey reports whether s decodes as a PEM block whose type names a private key.
func IsPEMPrivateKey(s string) bool {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return false
	}
	return strings.HasSuffix(block.Type, "PRIVATE KEY") && len(block.Bytes) > 0
}
