// Package codec implements Seloria's canonical encoding: a fixed-field,
// little-endian, length-prefixed byte format used for both content hashing
// and on-disk persistence. It follows the manual, hand-rolled style of the
// teacher's timestampvm/serializer.go (binary.* field-by-field writes)
// rather than a reflection-based codec, because canonical hashing needs
// exact control over field order and map iteration order that a generic
// struct codec does not give us.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/ava-labs/avalanchego/ids"
)

// ErrBadEncoding is returned for any malformed or truncated input.
var ErrBadEncoding = errors.New("codec: bad encoding")

// Writer accumulates canonical bytes for hashing or persistence.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated canonical encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// U8 writes a single byte.
func (w *Writer) U8(v uint8) { w.buf.WriteByte(v) }

// U64 writes a fixed 8-byte little-endian uint64.
func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// I64 writes a fixed 8-byte little-endian int64.
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// Bool writes a single-byte boolean.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// Fixed32 writes a raw 32-byte array verbatim (ids.ID, pubkeys, hashes).
func (w *Writer) Fixed32(v [32]byte) { w.buf.Write(v[:]) }

// VarBytes writes a length-prefixed (uint32 LE) variable-length byte slice.
func (w *Writer) VarBytes(v []byte) {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(v)))
	w.buf.Write(lb[:])
	w.buf.Write(v)
}

// String writes a length-prefixed UTF-8 string.
func (w *Writer) String(v string) { w.VarBytes([]byte(v)) }

// HashList writes a length-prefixed list of 32-byte identifiers in the
// order given (callers sort first when order must be canonical).
func (w *Writer) HashList(v []ids.ID) {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(v)))
	w.buf.Write(lb[:])
	for _, id := range v {
		w.Fixed32(id)
	}
}

// SortedStringKeys returns keys sorted in ascending byte order, the
// iteration order spec.md requires for every map serialized canonically.
func SortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedIDKeys returns ids.ID keys sorted in ascending byte order.
func SortedIDKeys[V any](m map[ids.ID]V) []ids.ID {
	keys := make([]ids.ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys
}

// Reader decodes a canonical byte stream written by Writer.
type Reader struct {
	b   []byte
	pos int
}

// NewReader wraps raw bytes for canonical decoding.
func NewReader(b []byte) *Reader { return &Reader{b: b} }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return ErrBadEncoding
	}
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

// U64 reads a fixed 8-byte little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// I64 reads a fixed 8-byte little-endian int64.
func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// Bool reads a single-byte boolean.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

// Fixed32 reads a raw 32-byte array.
func (r *Reader) Fixed32() ([32]byte, error) {
	var out [32]byte
	if err := r.need(32); err != nil {
		return out, err
	}
	copy(out[:], r.b[r.pos:r.pos+32])
	r.pos += 32
	return out, nil
}

// VarBytes reads a length-prefixed variable-length byte slice.
func (r *Reader) VarBytes() ([]byte, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.b[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	b, err := r.VarBytes()
	return string(b), err
}

// HashList reads a length-prefixed list of 32-byte identifiers.
func (r *Reader) HashList() ([]ids.ID, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	out := make([]ids.ID, n)
	for i := range out {
		fx, err := r.Fixed32()
		if err != nil {
			return nil, err
		}
		out[i] = fx
	}
	return out, nil
}

// Done reports whether all bytes have been consumed, i.e. the input was
// exactly one encoded record with no trailing garbage.
func (r *Reader) Done() bool { return r.pos == len(r.b) }

// Remaining returns the unread tail of the buffer.
func (r *Reader) Remaining() []byte { return r.b[r.pos:] }
