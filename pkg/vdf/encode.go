package vdf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"unicode/utf16"
)

// Encoder writes Nodes in the binary KV format. It exists to produce
// synthetic catalogs; keys are emitted in sorted order so output is
// deterministic.
type Encoder struct {
	w     *bufio.Writer
	end   byte
	index map[string]uint32
	keys  []string
}

// NewEncoder returns an Encoder writing to w. With useKeyTable set, keys
// are interned into a table (see Keys) and written as uint32 indices.
func NewEncoder(w io.Writer, altTerminator, useKeyTable bool) *Encoder {
	e := &Encoder{w: bufio.NewWriter(w), end: endTag(altTerminator)}
	if useKeyTable {
		e.index = make(map[string]uint32)
		e.keys = []string{}
	}
	return e
}

// Keys returns the key table built so far, or nil if the encoder writes
// inline keys.
func (e *Encoder) Keys() []string {
	return e.keys
}

// Encode writes n followed by its terminator.
func (e *Encoder) Encode(n Node) error {
	if err := e.node(n); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) node(n Node) error {
	names := make([]string, 0, len(n))
	for k := range n {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := e.entry(k, n[k]); err != nil {
			return err
		}
	}
	return e.w.WriteByte(e.end)
}

func (e *Encoder) entry(key string, v Value) error {
	var tag byte
	switch v.(type) {
	case Node:
		tag = tagNode
	case String:
		tag = tagString
	case WideString:
		tag = tagWideString
	case Int32:
		tag = tagInt32
	case Pointer:
		tag = tagPointer
	case Color:
		tag = tagColor
	case Uint64:
		tag = tagUint64
	case Int64:
		tag = tagInt64
	case Float32:
		tag = tagFloat32
	default:
		return fmt.Errorf("vdf: cannot encode %T for key %q", v, key)
	}
	e.w.WriteByte(tag)
	e.key(key)

	var buf [8]byte
	switch x := v.(type) {
	case Node:
		return e.node(x)
	case String:
		e.w.WriteString(string(x))
		return e.w.WriteByte(0)
	case WideString:
		for _, u := range utf16.Encode([]rune(string(x))) {
			binary.LittleEndian.PutUint16(buf[:2], u)
			e.w.Write(buf[:2])
		}
		_, err := e.w.Write([]byte{0, 0})
		return err
	case Int32:
		return e.put32(uint32(x))
	case Pointer:
		return e.put32(uint32(x))
	case Color:
		return e.put32(uint32(x))
	case Float32:
		return e.put32(math.Float32bits(float32(x)))
	case Uint64:
		return e.put64(uint64(x))
	case Int64:
		return e.put64(uint64(x))
	}
	return nil
}

func (e *Encoder) key(k string) {
	if e.index == nil {
		e.w.WriteString(k)
		e.w.WriteByte(0)
		return
	}
	idx, ok := e.index[k]
	if !ok {
		idx = uint32(len(e.keys))
		e.index[k] = idx
		e.keys = append(e.keys, k)
	}
	e.put32(idx)
}

func (e *Encoder) put32(u uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], u)
	_, err := e.w.Write(buf[:])
	return err
}

func (e *Encoder) put64(u uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	_, err := e.w.Write(buf[:])
	return err
}
