// Package hasher computes MD5 content digests over streams through a fixed
// scratch buffer, optionally capped at a byte budget.
package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"math"

	"github.com/spf13/afero"

	"dupdup/internal/scanerr"
)

// DefaultBufferSize is used when a non-positive buffer size is requested.
const DefaultBufferSize = 4 * 1024

// Digest is a 128-bit MD5 content fingerprint.
type Digest [md5.Size]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Mode selects how much of a source is hashed.
type Mode struct {
	limit int64
}

// Partial hashes at most the first n bytes.
func Partial(n int64) Mode {
	if n < 0 {
		n = 0
	}
	return Mode{limit: n}
}

// Full hashes the whole source.
func Full() Mode {
	return Mode{limit: math.MaxInt64}
}

// Limit returns the byte budget of the mode.
func (m Mode) Limit() int64 {
	return m.limit
}

// IsFull reports whether the mode has no byte budget.
func (m Mode) IsFull() bool {
	return m.limit == math.MaxInt64
}

// Hasher owns one reusable scratch buffer. It is not safe for concurrent use.
type Hasher struct {
	buf []byte
}

// New returns a Hasher reading through a buffer of bufSize bytes.
func New(bufSize int) *Hasher {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Hasher{buf: make([]byte, bufSize)}
}

// BufferSize returns the scratch buffer capacity.
func (h *Hasher) BufferSize() int {
	return len(h.buf)
}

// Sum digests r according to mode and returns the number of bytes read.
//
// Reads are capped at the remaining budget, so the digest covers exactly
// min(size, budget) bytes whatever the buffer size is.
func (h *Hasher) Sum(r io.Reader, mode Mode) (Digest, int64, error) {
	var digest Digest
	md := md5.New()
	limit := mode.Limit()

	var total int64
	for total < limit {
		chunk := h.buf
		if rem := limit - total; rem < int64(len(chunk)) {
			chunk = chunk[:rem]
		}

		n, err := io.ReadFull(r, chunk)
		total += int64(n)
		md.Write(chunk[:n])

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return digest, total, err
		}
	}

	copy(digest[:], md.Sum(nil))
	return digest, total, nil
}

// SumFile opens path on fsys and digests it. Failures are *scanerr.Error
// values classified as open or read failures.
func (h *Hasher) SumFile(fsys afero.Fs, path string, mode Mode) (Digest, int64, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return Digest{}, 0, scanerr.Open(path, err)
	}
	defer file.Close()

	adviseSequential(file, mode)

	digest, n, err := h.Sum(file, mode)
	if err != nil {
		return Digest{}, n, scanerr.Read(path, err)
	}
	return digest, n, nil
}
