// Package hash provides content hashing for files, archive blobs and cache
// fingerprints.
//
// modsync identifies file content by its 64-bit xxHash digest. The same
// digest type is used for fingerprints: stable keys computed from typed
// inputs (mod IDs, names, paths) so a cache lookup never depends on a value's
// string representation at runtime.
package hash

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Hash is a 64-bit xxHash digest.
type Hash uint64

// Zero is the zero hash. It never identifies real content and is treated as
// "unknown" by the planners.
const Zero Hash = 0

// FromBytes hashes an in-memory buffer.
func FromBytes(data []byte) Hash {
	return Hash(xxhash.Sum64(data))
}

// FromString hashes a string.
func FromString(s string) Hash {
	return Hash(xxhash.Sum64String(s))
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// String renders the hash as 16 lower-case hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Parse parses the 16-digit hex form produced by String.
func Parse(s string) (Hash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return Hash(v), nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

var _ json.Marshaler = (*Hash)(nil)

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes the hex string form.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	return h.UnmarshalText([]byte(s))
}

// Hasher computes content hashes of files.
type Hasher interface {
	// HashFile returns the hash and size of the file at path.
	HashFile(path string) (Hash, int64, error)
}

// XXHasher implements Hasher with xxHash64 over an afero filesystem.
type XXHasher struct {
	fs afero.Fs
}

// NewXXHasher creates a hasher reading from fs.
func NewXXHasher(fs afero.Fs) *XXHasher {
	return &XXHasher{fs: fs}
}

// HashFile computes the xxHash64 digest of the file at path.
func (h *XXHasher) HashFile(path string) (Hash, int64, error) {
	file, err := h.fs.Open(path)
	if err != nil {
		return Zero, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return Reader(file)
}

// Reader hashes everything read from r.
func Reader(r io.Reader) (Hash, int64, error) {
	d := xxhash.New()
	n, err := io.Copy(d, r)
	if err != nil {
		return Zero, 0, fmt.Errorf("failed to read file: %w", err)
	}
	return Hash(d.Sum64()), n, nil
}

// Writer is an io.Writer that hashes and counts everything written to it.
type Writer struct {
	d *xxhash.Digest
	n int64
}

// NewWriter creates an empty hashing writer.
func NewWriter() *Writer {
	return &Writer{d: xxhash.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.d.Write(p)
	w.n += int64(n)
	return n, err
}

// Sum returns the hash of the bytes written so far.
func (w *Writer) Sum() Hash {
	return Hash(w.d.Sum64())
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int64 {
	return w.n
}

// Fingerprinter builds a stable hash from a sequence of typed values.
// Each value is length- or width-prefixed so ("ab","c") and ("a","bc")
// produce different fingerprints.
type Fingerprinter struct {
	d   *xxhash.Digest
	buf [8]byte
}

// NewFingerprinter creates an empty Fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{d: xxhash.New()}
}

// AddString adds a string.
func (f *Fingerprinter) AddString(s string) *Fingerprinter {
	f.AddUint64(uint64(len(s)))
	_, _ = f.d.WriteString(s)
	return f
}

// AddBytes adds a byte slice, such as the bytes of a UUID.
func (f *Fingerprinter) AddBytes(b []byte) *Fingerprinter {
	f.AddUint64(uint64(len(b)))
	_, _ = f.d.Write(b)
	return f
}

// AddUint64 adds a fixed-width integer.
func (f *Fingerprinter) AddUint64(v uint64) *Fingerprinter {
	binary.LittleEndian.PutUint64(f.buf[:], v)
	_, _ = f.d.Write(f.buf[:])
	return f
}

// AddHash adds another hash.
func (f *Fingerprinter) AddHash(h Hash) *Fingerprinter {
	return f.AddUint64(uint64(h))
}

// AddBool adds a boolean.
func (f *Fingerprinter) AddBool(b bool) *Fingerprinter {
	if b {
		return f.AddUint64(1)
	}
	return f.AddUint64(0)
}

// Digest returns the fingerprint.
func (f *Fingerprinter) Digest() Hash {
	return Hash(f.d.Sum64())
}

// FakeHasher implements Hasher with predetermined results for testing.
type FakeHasher struct {
	results map[string]fakeResult
}

type fakeResult struct {
	hash Hash
	size int64
	err  error
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{results: make(map[string]fakeResult)}
}

// Set fixes the result for path.
func (h *FakeHasher) Set(path string, hash Hash, size int64) {
	h.results[path] = fakeResult{hash: hash, size: size}
}

// SetError makes HashFile fail for path.
func (h *FakeHasher) SetError(path string, err error) {
	h.results[path] = fakeResult{err: err}
}

// HashFile returns the predetermined result for path.
func (h *FakeHasher) HashFile(path string) (Hash, int64, error) {
	r, ok := h.results[path]
	if !ok {
		return FromString(path), 0, nil
	}
	return r.hash, r.size, r.err
}
