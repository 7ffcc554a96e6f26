package project

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Digest is a SHA-256 content hash.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestBytes hashes b.
func DigestBytes(b []byte) Digest {
	return sha256.Sum256(b)
}

// DigestFile hashes the contents of path.
func DigestFile(path string) (Digest, error) {
	// #nosec G304 -- project sources
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, err
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Combine derives a key from content and an ordered list of parts:
// H(content || len(p1) p1 || len(p2) p2 ...). The order of parts matters.
func Combine(content Digest, parts ...string) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		_, _ = h.Write(n[:])
		_, _ = io.WriteString(h, p)
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
