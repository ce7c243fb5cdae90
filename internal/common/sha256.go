// Package common holds small utilities shared by the engine, the crawler,
// the toolchain driver and the CLI: content hashing, logging, env/flag
// plumbing and the error taxonomy.
package common

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// SHA256 is a fixed-size content digest, stored as four uint64 words.
// XorWith combines two digests word by word; the store's rule digest
// (store.DependencyRecord.Digest) does not use it.
//
//goland:noinspection GoSnakeCaseUsage
type SHA256 struct {
	B0_7, B8_15, B16_23, B24_31 uint64
}

func (h *SHA256) IsEmpty() bool {
	return h.B0_7 == 0 && h.B8_15 == 0 && h.B16_23 == 0 && h.B24_31 == 0
}

func (h *SHA256) XorWith(other SHA256) {
	h.B0_7 ^= other.B0_7
	h.B8_15 ^= other.B8_15
	h.B16_23 ^= other.B16_23
	h.B24_31 ^= other.B24_31
}

func (h SHA256) String() string {
	return fmt.Sprintf("%016x%016x%016x%016x", h.B0_7, h.B8_15, h.B16_23, h.B24_31)
}

// FromHexString parses the format produced by String; an unparsable
// string leaves h zeroed (IsEmpty() == true), same convention as nocc.
func (h *SHA256) FromHexString(s string) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		*h = SHA256{}
		return
	}
	h.B0_7 = binary.BigEndian.Uint64(b[0:8])
	h.B8_15 = binary.BigEndian.Uint64(b[8:16])
	h.B16_23 = binary.BigEndian.Uint64(b[16:24])
	h.B24_31 = binary.BigEndian.Uint64(b[24:32])
}

func MakeSHA256(hasher hash.Hash) SHA256 {
	b := hasher.Sum(nil) // len is 32
	return SHA256{
		B0_7:   binary.BigEndian.Uint64(b[0:8]),
		B8_15:  binary.BigEndian.Uint64(b[8:16]),
		B16_23: binary.BigEndian.Uint64(b[16:24]),
		B24_31: binary.BigEndian.Uint64(b[24:32]),
	}
}

// HashFile stats and hashes a file in one pass, returning the digest and size.
// Used for every recorded file dependency (spec: "stat+hash of bytes").
func HashFile(filePath string) (SHA256, int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return SHA256{}, 0, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return SHA256{}, 0, err
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return SHA256{}, 0, err
	}
	return MakeSHA256(hasher), stat.Size(), nil
}

// HashBytes hashes an in-memory byte slice (used by the engine to hash the
// JSON encoding of every fact and sub-rule value).
func HashBytes(b []byte) SHA256 {
	hasher := sha256.New()
	hasher.Write(b)
	return MakeSHA256(hasher)
}
