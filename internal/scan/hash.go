package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"

	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
)

// hashChunkSize bounds memory use while hashing
const hashChunkSize = 64 * 1024

// HashReader returns the hex SHA-256 of r and the number of bytes read
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)

	var size int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", size, err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// HashFile hashes the file at path in fixed-size chunks
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot open file for hashing", err).WithFile(path)
	}
	defer f.Close()

	sum, size, err := HashReader(f)
	if err != nil {
		return "", 0, pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot read file for hashing", err).WithFile(path)
	}
	return sum, size, nil
}
