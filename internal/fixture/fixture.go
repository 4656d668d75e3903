// Package fixture synthesizes the binary files the test suites need:
// minimal PE and ELF executables and Steam catalog files.
package fixture

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/gamesniff/gamesniff/pkg/vdf"
)

const (
	peOffset      = 0x40
	rsrcFileOff   = 0x200
	rsrcVirtAddr  = 0x1000
	versionBlobAt = 88
)

// PE returns a minimal PE32+ image for the given machine. When version is
// non-nil the image carries a .rsrc section holding a version resource
// with that file version (major, minor, patch, build).
func PE(machine uint16, version *[4]uint16) []byte {
	var rsrc []byte
	if version != nil {
		rsrc = versionResource(*version)
	}

	var buf bytes.Buffer
	dos := make([]byte, peOffset)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], peOffset)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	nsec := uint16(0)
	if rsrc != nil {
		nsec = 1
	}
	binary.Write(&buf, binary.LittleEndian, pe.FileHeader{
		Machine:              machine,
		NumberOfSections:     nsec,
		SizeOfOptionalHeader: uint16(binary.Size(pe.OptionalHeader64{})),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	})
	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		ImageBase:           0x140000000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfHeaders:       rsrcFileOff,
		SizeOfImage:         rsrcVirtAddr + 0x1000,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_GUI,
		NumberOfRvaAndSizes: 16,
	}
	if rsrc != nil {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE] = pe.DataDirectory{
			VirtualAddress: rsrcVirtAddr,
			Size:           uint32(len(rsrc)),
		}
	}
	binary.Write(&buf, binary.LittleEndian, oh)
	if rsrc != nil {
		sh := pe.SectionHeader32{
			VirtualSize:      uint32(len(rsrc)),
			VirtualAddress:   rsrcVirtAddr,
			SizeOfRawData:    uint32(len(rsrc)),
			PointerToRawData: rsrcFileOff,
			Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
		}
		copy(sh.Name[:], ".rsrc")
		binary.Write(&buf, binary.LittleEndian, sh)
	}
	for buf.Len() < rsrcFileOff {
		buf.WriteByte(0)
	}
	buf.Write(rsrc)
	return buf.Bytes()
}

// versionResource lays out type -> name -> language directories followed by
// a data entry and a VS_VERSIONINFO blob.
func versionResource(v [4]uint16) []byte {
	le := binary.LittleEndian
	dir := func(b []byte, at int, id, off uint32) {
		le.PutUint16(b[at+14:], 1)
		le.PutUint32(b[at+16:], id)
		le.PutUint32(b[at+20:], off)
	}

	blob := make([]byte, 40+52)
	le.PutUint16(blob[0:], uint16(len(blob)))
	le.PutUint16(blob[2:], 52)
	for i, u := range utf16.Encode([]rune("VS_VERSION_INFO")) {
		le.PutUint16(blob[6+2*i:], u)
	}
	le.PutUint32(blob[40:], 0xFEEF04BD)
	le.PutUint32(blob[44:], 0x00010000)
	le.PutUint32(blob[48:], uint32(v[0])<<16|uint32(v[1]))
	le.PutUint32(blob[52:], uint32(v[2])<<16|uint32(v[3]))

	b := make([]byte, versionBlobAt+len(blob))
	dir(b, 0, 16, 0x80000000|24)
	dir(b, 24, 1, 0x80000000|48)
	dir(b, 48, 0x409, 72)
	le.PutUint32(b[72:], rsrcVirtAddr+versionBlobAt)
	le.PutUint32(b[76:], uint32(len(blob)))
	copy(b[versionBlobAt:], blob)
	return b
}

// ELF returns a minimal 64-bit little-endian ELF header for machine.
func ELF(machine uint16) []byte {
	b := make([]byte, 64)
	copy(b, "\x7fELF")
	b[4] = 2 // ELFCLASS64
	b[5] = 1 // ELFDATA2LSB
	b[6] = 1
	binary.LittleEndian.PutUint16(b[16:], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(b[18:], machine)
	return b
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("could not create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("could not write %s: %v", path, err)
	}
	return path
}

// Mkdir creates path and its parents.
func Mkdir(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("could not create %s: %v", path, err)
	}
	return path
}

// App is one appinfo.vdf record.
type App struct {
	ID   uint32
	Tree vdf.Node
}

// Package is one packageinfo.vdf record.
type Package struct {
	ID   uint32
	Tree vdf.Node
}

// AppInfo encodes an appinfo.vdf catalog with the given magic. Magics after
// 0x07564428 get a trailing key table.
func AppInfo(t testing.TB, magic uint32, apps []App) []byte {
	t.Helper()
	le := binary.LittleEndian
	useTable := magic > 0x07564428

	var out bytes.Buffer
	binary.Write(&out, le, magic)
	binary.Write(&out, le, uint32(1)) // universe
	tableOffsetAt := out.Len()
	if useTable {
		binary.Write(&out, le, int64(0))
	}

	var tree bytes.Buffer
	enc := vdf.NewEncoder(&tree, false, useTable)
	for _, app := range apps {
		tree.Reset()
		if err := enc.Encode(app.Tree); err != nil {
			t.Fatalf("could not encode app %d: %v", app.ID, err)
		}
		var rec bytes.Buffer
		binary.Write(&rec, le, uint32(2))          // info state
		binary.Write(&rec, le, uint32(1700000000)) // last updated
		binary.Write(&rec, le, uint64(0))          // access token
		rec.Write(make([]byte, 20))                // text checksum
		binary.Write(&rec, le, uint32(app.ID*10))  // change number
		if magic >= 0x07564428 {
			rec.Write(make([]byte, 20)) // binary checksum
		}
		rec.Write(tree.Bytes())

		binary.Write(&out, le, app.ID)
		binary.Write(&out, le, uint32(rec.Len()))
		out.Write(rec.Bytes())
	}
	binary.Write(&out, le, uint32(0))

	if useTable {
		data := out.Bytes()
		le.PutUint64(data[tableOffsetAt:], uint64(len(data)))
		keys := enc.Keys()
		binary.Write(&out, le, uint32(len(keys)))
		for _, k := range keys {
			out.WriteString(k)
			out.WriteByte(0)
		}
	}
	return out.Bytes()
}

// PackageInfo encodes a packageinfo.vdf catalog with the given magic.
func PackageInfo(t testing.TB, magic uint32, pkgs []Package) []byte {
	t.Helper()
	le := binary.LittleEndian
	var out bytes.Buffer
	binary.Write(&out, le, magic)
	binary.Write(&out, le, uint32(1))
	for _, p := range pkgs {
		binary.Write(&out, le, p.ID)
		out.Write(make([]byte, 20))
		binary.Write(&out, le, uint32(p.ID+1))
		if magic >= 0x06565528 {
			binary.Write(&out, le, uint64(0))
		}
		if err := vdf.NewEncoder(&out, false, false).Encode(p.Tree); err != nil {
			t.Fatalf("could not encode package %d: %v", p.ID, err)
		}
	}
	binary.Write(&out, le, uint32(0xFFFFFFFF))
	return out.Bytes()
}

// Launch builds the appinfo subtree for a single-launch-option game.
func Launch(name, executable string) vdf.Node {
	return vdf.Node{
		"appinfo": vdf.Node{
			"common": vdf.Node{
				"name": vdf.String(name),
				"type": vdf.String("Game"),
			},
			"config": vdf.Node{
				"launch": vdf.Node{
					"0": vdf.Node{
						"executable": vdf.String(executable),
					},
				},
			},
		},
	}
}
