package utils

import (
	"crypto/md5"
	"encoding/hex"
	"io"
)

// MD5Hex returns the lowercase hex MD5 digest of b.
func MD5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// MD5Reader returns the lowercase hex MD5 digest of everything read from r.
func MD5Reader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
