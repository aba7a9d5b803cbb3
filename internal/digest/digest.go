// Package digest computes content digests and normalizes the encodings the
// mail store uses for them into a canonical lowercase hex form.
package digest

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/minio/sha256-simd"
)

// Encoding names how a stored digest string is written.
type Encoding string

const (
	// EncodingHex is lowercase or uppercase hexadecimal.
	EncodingHex Encoding = "hex"
	// EncodingBase64 is standard padded base64.
	EncodingBase64 Encoding = "base64"
	// EncodingFSSafeBase64 is base64 with '/' replaced by ',', as written by the mail store.
	EncodingFSSafeBase64 Encoding = "base64-fssafe"
)

// Size is the length in bytes of a digest.
const Size = sha256.Size

// ParseEncoding validates an encoding name. Empty selects EncodingFSSafeBase64.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case EncodingHex, EncodingBase64, EncodingFSSafeBase64:
		return Encoding(name), nil
	case "":
		return EncodingFSSafeBase64, nil
	default:
		return "", fmt.Errorf("unknown digest encoding %q", name)
	}
}

// Sum streams r through SHA-256 and returns the canonical hex digest and the byte count.
func Sum(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Canonical converts a stored digest in encoding enc to canonical lowercase hex.
func Canonical(enc Encoding, stored string) (string, error) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return "", fmt.Errorf("empty digest")
	}

	var raw []byte
	var err error
	switch enc {
	case EncodingHex:
		raw, err = hex.DecodeString(stored)
	case EncodingBase64:
		raw, err = base64.StdEncoding.DecodeString(stored)
	case EncodingFSSafeBase64:
		raw, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(stored, ",", "/"))
	default:
		return "", fmt.Errorf("unknown digest encoding %q", enc)
	}
	if err != nil {
		return "", fmt.Errorf("decode %s digest %q: %w", enc, stored, err)
	}
	if len(raw) != Size {
		return "", fmt.Errorf("digest %q has %d bytes, want %d", stored, len(raw), Size)
	}
	return hex.EncodeToString(raw), nil
}
