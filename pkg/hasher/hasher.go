package hasher

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"hash"
	"strings"

	"github.com/minio/sha256-simd"
)

// Hasher takes a sha256 hash of everything written to it. String returns a
// lowercase base32 representation of the first 160 bits of the hash.
type Hasher struct {
	hash hash.Hash
}

func New() *Hasher {
	return &Hasher{
		hash: sha256.New(),
	}
}

func (h *Hasher) Write(b []byte) (n int, err error) {
	return h.hash.Write(b)
}

func (h *Hasher) String() string {
	return BytesToBase32Hash(h.hash.Sum(nil))
}

func (h *Hasher) Sha256Hex() string {
	return fmt.Sprintf("%x", h.hash.Sum(nil))
}

func HashString(input string) string {
	h := New()
	_, _ = h.Write([]byte(input))
	return h.String()
}

// HashStrings hashes an ordered list of strings. Each value is length
// prefixed so that ["ab", "c"] and ["a", "bc"] differ.
func HashStrings(values []string) string {
	h := New()
	for _, v := range values {
		fmt.Fprintf(h, "%d:%s\n", len(v), v)
	}
	return h.String()
}

// BytesToBase32Hash takes the first 160 bits of b and encodes them the way
// nix store paths are encoded.
func BytesToBase32Hash(b []byte) string {
	var buf bytes.Buffer
	_, _ = base32.NewEncoder(base32.StdEncoding, &buf).Write(b[:20])
	return strings.ToLower(buf.String())
}
