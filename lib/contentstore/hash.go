// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package contentstore

import (
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte keyed BLAKE3 digest of a registered blob.
type Hash [32]byte

// blobDomainKey separates blob digests from any other BLAKE3 use of
// the same bytes. ASCII "nxpack.contentstore.blob", zero padded.
var blobDomainKey = [32]byte{
	'n', 'x', 'p', 'a', 'c', 'k', '.', 'c', 'o', 'n', 't', 'e', 'n', 't', 's', 't',
	'o', 'r', 'e', '.', 'b', 'l', 'o', 'b', 0, 0, 0, 0, 0, 0, 0, 0,
}

// newBlobHasher returns a streaming hasher in the blob domain.
func newBlobHasher() hash.Hash {
	// NewKeyed only fails for a key that is not 32 bytes.
	hasher, err := blake3.NewKeyed(blobDomainKey[:])
	if err != nil {
		panic("contentstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// HashBlob computes the blob-domain digest of data.
func HashBlob(data []byte) Hash {
	hasher := newBlobHasher()
	hasher.Write(data)
	return sumHash(hasher)
}

func sumHash(hasher hash.Hash) Hash {
	var digest Hash
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// FormatHash returns the hex form of a digest.
func FormatHash(digest Hash) string {
	return hex.EncodeToString(digest[:])
}

// ParseHash parses a 64-character hex digest.
func ParseHash(text string) (Hash, error) {
	var digest Hash
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return digest, fmt.Errorf("parsing blob hash: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("blob hash is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}
