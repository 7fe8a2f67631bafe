package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

const bufferSize = 64 * 1024 // 64KB buffer

// Digests holds the checksums sent along with an upload.
type Digests struct {
	// MD5 is hex encoded, the format Swift expects in ETag.
	MD5 string
	// SHA256 is base64 encoded, the format S3 expects in x-amz-checksum-sha256.
	SHA256 string
	Size   int64
}

// Calculate computes both digests from r.
func Calculate(r io.Reader) (Digests, error) {
	md5Hash := md5.New()
	shaHash := sha256.New()
	w := io.MultiWriter(md5Hash, shaHash)

	n, err := io.CopyBuffer(w, r, make([]byte, bufferSize))
	if err != nil {
		return Digests{}, fmt.Errorf("read: %w", err)
	}

	return Digests{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256: base64.StdEncoding.EncodeToString(shaHash.Sum(nil)),
		Size:   n,
	}, nil
}
