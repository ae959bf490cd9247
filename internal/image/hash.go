package image

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Fingerprint returns the SHA-256 hex digest of data. Two byte slices with
// identical content always produce identical fingerprints; the digest is
// used strictly as a cache-validity token, never as a cross-file identity.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile computes the SHA-256 hex digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
