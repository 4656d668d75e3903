package vdf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/gamesniff/gamesniff/pkg/logflags"
)

// InvalidTagError is returned when the stream contains a type tag that is
// not part of the format.
type InvalidTagError struct {
	Tag byte
	Key string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("vdf: invalid tag 0x%02x for key %q", e.Tag, e.Key)
}

// Reader is what the decoder consumes. Catalog readers hand the same
// buffered reader to the decoder and to their own framing code, so the
// decoder must never read past the end of the tree.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Decode reads one Node from r. The node ends at the terminator byte,
// 0x08 normally or 0x0B when altTerminator is set.
//
// When keys is non-nil every key is a little-endian uint32 index into keys
// instead of an inline null-terminated string. An index past the end of
// keys is replaced by "FALLBACK_<index>" and decoding continues.
//
// Any short read or invalid tag aborts the decode and no tree is returned.
func Decode(r io.Reader, altTerminator bool, keys []string) (Node, error) {
	br, ok := r.(Reader)
	if !ok {
		br = &byteReader{r: r}
	}
	d := &decoder{r: br, end: endTag(altTerminator), keys: keys}
	return d.node()
}

type decoder struct {
	r    Reader
	end  byte
	keys []string
	buf  [8]byte
}

func (d *decoder) node() (Node, error) {
	n := make(Node)
	for {
		tag, err := d.r.ReadByte()
		if err != nil {
			return nil, unexpected(err)
		}
		if tag == d.end {
			return n, nil
		}
		key, err := d.key()
		if err != nil {
			return nil, fmt.Errorf("vdf: reading key: %w", err)
		}
		v, err := d.value(tag, key)
		if err != nil {
			return nil, err
		}
		n[key] = v
	}
}

func (d *decoder) key() (string, error) {
	if d.keys == nil {
		return d.cstring()
	}
	idx, err := d.uint32()
	if err != nil {
		return "", err
	}
	if uint64(idx) >= uint64(len(d.keys)) {
		fallback := fmt.Sprintf("FALLBACK_%d", idx)
		logflags.VDFLogger().Warnf("key index %d out of range (%d keys), using %s", idx, len(d.keys), fallback)
		return fallback, nil
	}
	return d.keys[idx], nil
}

func (d *decoder) value(tag byte, key string) (Value, error) {
	switch tag {
	case tagNode:
		child, err := d.node()
		if err != nil {
			return nil, err
		}
		return child, nil
	case tagString:
		s, err := d.cstring()
		if err != nil {
			return nil, fieldErr("string", key, err)
		}
		return String(s), nil
	case tagWideString:
		s, err := d.wstring()
		if err != nil {
			return nil, fieldErr("wide string", key, err)
		}
		return WideString(s), nil
	case tagInt32, tagPointer, tagColor:
		u, err := d.uint32()
		if err != nil {
			return nil, fieldErr("int32", key, err)
		}
		switch tag {
		case tagPointer:
			return Pointer(int32(u)), nil
		case tagColor:
			return Color(int32(u)), nil
		}
		return Int32(int32(u)), nil
	case tagUint64:
		u, err := d.uint64()
		if err != nil {
			return nil, fieldErr("uint64", key, err)
		}
		return Uint64(u), nil
	case tagInt64:
		u, err := d.uint64()
		if err != nil {
			return nil, fieldErr("int64", key, err)
		}
		return Int64(int64(u)), nil
	case tagFloat32:
		u, err := d.uint32()
		if err != nil {
			return nil, fieldErr("float32", key, err)
		}
		return Float32(math.Float32frombits(u)), nil
	}
	return nil, &InvalidTagError{Tag: tag, Key: key}
}

func (d *decoder) uint32() (uint32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		return 0, unexpected(err)
	}
	return binary.LittleEndian.Uint32(d.buf[:4]), nil
}

func (d *decoder) uint64() (uint64, error) {
	if _, err := io.ReadFull(d.r, d.buf[:8]); err != nil {
		return 0, unexpected(err)
	}
	return binary.LittleEndian.Uint64(d.buf[:8]), nil
}

func (d *decoder) cstring() (string, error) {
	return ReadCString(d.r)
}

// wstring reads UTF-16LE code units up to a zero code unit.
func (d *decoder) wstring() (string, error) {
	var units []uint16
	for {
		if _, err := io.ReadFull(d.r, d.buf[:2]); err != nil {
			return "", unexpected(err)
		}
		u := binary.LittleEndian.Uint16(d.buf[:2])
		if u == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, u)
	}
}

// ReadCString reads bytes up to and excluding a zero byte.
func ReadCString(r io.ByteReader) (string, error) {
	var b []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", unexpected(err)
		}
		if c == 0 {
			return string(b), nil
		}
		b = append(b, c)
	}
}

func fieldErr(what, key string, err error) error {
	return fmt.Errorf("vdf: reading %s for key %q: %w", what, key, err)
}

// unexpected turns a bare EOF inside a tree into io.ErrUnexpectedEOF: a
// well formed stream never ends before its terminator.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// byteReader adapts an io.Reader without buffering, so that nothing past
// the tree is consumed from the underlying reader.
type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (b *byteReader) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.one[:]); err != nil {
		return 0, err
	}
	return b.one[0], nil
}
