// Package vdf decodes the binary key-value trees Steam uses for its
// appinfo.vdf and packageinfo.vdf catalogs.
//
// A tree is a Node: a map from key to Value. Every Value is one of the
// concrete types declared in this file; callers switch on the dynamic type
// or use the typed lookup helpers on Node.
package vdf

// Value is a leaf or subtree of a binary KV tree. The set of
// implementations is closed.
type Value interface {
	isValue()
}

// String is a null-terminated narrow string (tag 0x01).
type String string

// WideString is a null-terminated little-endian UTF-16 string (tag 0x05).
type WideString string

// Int32 is a signed 32-bit integer (tag 0x02).
type Int32 int32

// Pointer is an int32 used as an opaque reference (tag 0x04).
type Pointer int32

// Color is an int32 holding a packed RGBA color (tag 0x06).
type Color int32

// Uint64 is an unsigned 64-bit integer (tag 0x07).
type Uint64 uint64

// Int64 is a signed 64-bit integer (tag 0x0A).
type Int64 int64

// Float32 is an IEEE-754 single precision float (tag 0x03).
type Float32 float32

// Node is a nested key-value mapping (tag 0x00). Keys are unique within a
// node; the order in which they appeared in the stream is not kept.
type Node map[string]Value

func (String) isValue()     {}
func (WideString) isValue() {}
func (Int32) isValue()      {}
func (Pointer) isValue()    {}
func (Color) isValue()      {}
func (Uint64) isValue()     {}
func (Int64) isValue()      {}
func (Float32) isValue()    {}
func (Node) isValue()       {}

// Type tags as they appear in the stream.
const (
	tagNode       byte = 0x00
	tagString     byte = 0x01
	tagInt32      byte = 0x02
	tagFloat32    byte = 0x03
	tagPointer    byte = 0x04
	tagWideString byte = 0x05
	tagColor      byte = 0x06
	tagUint64     byte = 0x07
	tagEnd        byte = 0x08
	tagInt64      byte = 0x0A
	tagEndAlt     byte = 0x0B
)

func endTag(altTerminator bool) byte {
	if altTerminator {
		return tagEndAlt
	}
	return tagEnd
}
