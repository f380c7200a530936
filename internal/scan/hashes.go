package scan

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
)

// ContentHashes identifies file content across reports and scan history.
// All three digests are lowercase hex over the full buffer.
type ContentHashes struct {
	MD5    string
	SHA1   string
	SHA256 string
}

// ComputeHashes digests data once for every scanned file, hit or miss, so
// results can be matched against external indicator lists.
func ComputeHashes(data []byte) ContentHashes {
	md5Sum := md5.Sum(data)
	sha1Sum := sha1.Sum(data)
	sha256Sum := sha256.Sum256(data)

	return ContentHashes{
		MD5:    hex.EncodeToString(md5Sum[:]),
		SHA1:   hex.EncodeToString(sha1Sum[:]),
		SHA256: hex.EncodeToString(sha256Sum[:]),
	}
}
