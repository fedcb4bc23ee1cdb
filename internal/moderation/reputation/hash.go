package reputation

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

const hashChunkSize = 4096

// HashReader computes the hex SHA-256 of r, reading it in fixed chunks.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
