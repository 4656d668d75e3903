package vdf

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

func sampleTree() Node {
	return Node{
		"name":   String("Half-Life"),
		"wide":   WideString("Ünïcødé 🎮"),
		"count":  Int32(-7),
		"ptr":    Pointer(1234),
		"color":  Color(-16777216),
		"big":    Uint64(1<<63 + 5),
		"signed": Int64(-1 << 40),
		"ratio":  Float32(0.25),
		"config": Node{
			"launch": Node{
				"0": Node{
					"executable": String(`bin\hl.exe`),
					"config": Node{
						"oslist": String("windows"),
						"weight": Float32(1.5),
					},
				},
			},
			"empty": Node{},
		},
	}
}

func encode(t *testing.T, n Node, alt, table bool) ([]byte, []string) {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf, alt, table)
	if err := enc.Encode(n); err != nil {
		t.Fatalf("could not encode tree: %v", err)
	}
	return buf.Bytes(), enc.Keys()
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name  string
		alt   bool
		table bool
	}{
		{"inline", false, false},
		{"inline-alt", true, false},
		{"keytable", false, true},
		{"keytable-alt", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			want := sampleTree()
			data, keys := encode(t, want, tc.alt, tc.table)
			got, err := Decode(bytes.NewReader(data), tc.alt, keys)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\ngot  <%#v>\nwant <%#v>", got, want)
			}
		})
	}
}

func TestDecodeInvalidTag(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
		alt  bool
		tag  byte
	}{
		{"unknown", []byte{0x09, 'k', 0}, false, 0x09},
		{"alt-end-in-normal-stream", []byte{0x0B, 'k', 0}, false, 0x0B},
		{"end-in-alt-stream", []byte{0x08, 'k', 0}, true, 0x08},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tc.data), tc.alt, nil)
			var tagErr *InvalidTagError
			if !errors.As(err, &tagErr) {
				t.Fatalf("expected InvalidTagError, got <%v>", err)
			}
			if tagErr.Tag != tc.tag || tagErr.Key != "k" {
				t.Fatalf("unexpected error contents <%#v>", tagErr)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	data, _ := encode(t, sampleTree(), false, false)
	for _, cut := range []int{0, 1, 5, len(data) / 2, len(data) - 1} {
		n, err := Decode(bytes.NewReader(data[:cut]), false, nil)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("cut at %d: expected unexpected EOF, got <%v>", cut, err)
		}
		if n != nil {
			t.Fatalf("cut at %d: partial tree returned", cut)
		}
	}
}

func TestDecodeFallbackKey(t *testing.T) {
	data := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 'a', 0x00, // keys[0] = "a"
		0x02, 0x05, 0x00, 0x00, 0x00, 0x2a, 0x00, 0x00, 0x00, // index 5 is out of range
		0x08,
	}
	got, err := Decode(bytes.NewReader(data), false, []string{"name"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := Node{"name": String("a"), "FALLBACK_5": Int32(42)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got <%#v> want <%#v>", got, want)
	}
}

func TestDecodeLastWriteWins(t *testing.T) {
	data := []byte{
		0x01, 'k', 0x00, 'o', 'n', 'e', 0x00,
		0x02, 'k', 0x00, 0x02, 0x00, 0x00, 0x00,
		0x08,
	}
	got, err := Decode(bytes.NewReader(data), false, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v := got["k"]; v != Int32(2) {
		t.Fatalf("expected last value to win, got <%#v>", v)
	}
}

func TestDecodeStopsAtTerminator(t *testing.T) {
	data, _ := encode(t, Node{"a": Int32(1)}, false, false)
	data = append(data, 0xde, 0xad)
	r := bytes.NewReader(data)
	if _, err := Decode(r, false, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("decoder consumed trailing bytes, %d left", r.Len())
	}
}

func TestFind(t *testing.T) {
	tree := sampleTree()

	if v, ok := tree.Find("config", "launch", "0", "config", "oslist"); !ok || v != String("windows") {
		t.Fatalf("unexpected deep lookup result <%v> %v", v, ok)
	}
	if _, ok := tree.Find("name", "nested"); ok {
		t.Fatalf("lookup through a leaf must fail")
	}
	if _, ok := tree.Find("config", "missing"); ok {
		t.Fatalf("lookup of a missing key must fail")
	}
	if _, ok := tree.Find(); ok {
		t.Fatalf("empty path must fail")
	}
	if s, ok := tree.Str("wide"); !ok || s != "Ünïcødé 🎮" {
		t.Fatalf("wide string lookup returned <%q> %v", s, ok)
	}
	if _, ok := tree.Str("count"); ok {
		t.Fatalf("Str must not match an Int32 leaf")
	}
	if i, ok := tree.Int32("count"); !ok || i != -7 {
		t.Fatalf("Int32 lookup returned %d %v", i, ok)
	}
	if _, ok := tree.Node("config", "empty"); !ok {
		t.Fatalf("empty node lookup failed")
	}
}

func TestIntAcceptsNumericStrings(t *testing.T) {
	tree := Node{"a": String("1577836800"), "b": Int32(3), "c": String("soon")}
	if i, ok := tree.Int("a"); !ok || i != 1577836800 {
		t.Fatalf("got %d %v", i, ok)
	}
	if i, ok := tree.Int("b"); !ok || i != 3 {
		t.Fatalf("got %d %v", i, ok)
	}
	if _, ok := tree.Int("c"); ok {
		t.Fatalf("non numeric string must not parse")
	}
}
