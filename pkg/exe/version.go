package exe

import (
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNoVersion is returned by ReadFileVersion when the executable carries
// no usable version resource.
var ErrNoVersion = errors.New("no version resource")

// FileVersion is the fixed file version of a PE version resource.
type FileVersion struct {
	Major, Minor, Patch, Build uint16
}

func (v FileVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

const (
	rtVersion          = 16
	resourceDirEntry   = 0x80000000
	resourceDirSize    = 16
	resourceEntrySize  = 8
	fixedFileInfoMagic = 0xFEEF04BD
)

// ReadFileVersion reads the VS_FIXEDFILEINFO file version out of the
// resource section of the PE executable at path.
func ReadFileVersion(path string) (FileVersion, error) {
	f, err := pe.Open(path)
	if err != nil {
		return FileVersion{}, err
	}
	defer f.Close()

	rva, size := resourceDirectory(f)
	if rva == 0 || size == 0 {
		return FileVersion{}, ErrNoVersion
	}
	sec := sectionFor(f, rva)
	if sec == nil {
		return FileVersion{}, ErrNoVersion
	}
	data, err := sec.Data()
	if err != nil {
		return FileVersion{}, fmt.Errorf("could not read %s section: %w", sec.Name, err)
	}
	rsrc := &resources{data: data, base: rva - sec.VirtualAddress, va: sec.VirtualAddress}

	// type -> name -> language -> data entry
	entry, ok := rsrc.find(0, rtVersion)
	if !ok || entry&resourceDirEntry == 0 {
		return FileVersion{}, ErrNoVersion
	}
	for level := 0; level < 2; level++ {
		entry, ok = rsrc.first(entry &^ resourceDirEntry)
		if !ok {
			return FileVersion{}, ErrNoVersion
		}
	}
	if entry&resourceDirEntry != 0 {
		return FileVersion{}, ErrNoVersion
	}
	blob, ok := rsrc.dataEntry(entry)
	if !ok {
		return FileVersion{}, ErrNoVersion
	}
	return parseFixedFileInfo(blob)
}

func resourceDirectory(f *pe.File) (rva, size uint32) {
	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	}
	if len(dirs) <= pe.IMAGE_DIRECTORY_ENTRY_RESOURCE {
		return 0, 0
	}
	d := dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]
	return d.VirtualAddress, d.Size
}

func sectionFor(f *pe.File, rva uint32) *pe.Section {
	for _, s := range f.Sections {
		end := s.VirtualAddress + s.VirtualSize
		if s.VirtualSize == 0 {
			end = s.VirtualAddress + s.Size
		}
		if rva >= s.VirtualAddress && rva < end {
			return s
		}
	}
	return nil
}

// resources walks an IMAGE_RESOURCE_DIRECTORY tree. Offsets stored in the
// tree are relative to the directory root, which sits at base in data.
type resources struct {
	data []byte
	base uint32
	va   uint32
}

func (r *resources) u32(off uint32) (uint32, bool) {
	if uint64(off)+4 > uint64(len(r.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(r.data[off:]), true
}

func (r *resources) u16(off uint32) (uint16, bool) {
	if uint64(off)+2 > uint64(len(r.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.data[off:]), true
}

func (r *resources) entries(dir uint32) (first uint32, count int, ok bool) {
	at := r.base + dir
	named, ok1 := r.u16(at + 12)
	ids, ok2 := r.u16(at + 14)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return at + resourceDirSize, int(named) + int(ids), true
}

// find returns the OffsetToData of the entry with the given numeric id.
func (r *resources) find(dir, id uint32) (uint32, bool) {
	at, n, ok := r.entries(dir)
	if !ok {
		return 0, false
	}
	for i := 0; i < n; i++ {
		e := at + uint32(i)*resourceEntrySize
		name, ok := r.u32(e)
		if !ok {
			return 0, false
		}
		if name == id {
			return r.u32(e + 4)
		}
	}
	return 0, false
}

func (r *resources) first(dir uint32) (uint32, bool) {
	at, n, ok := r.entries(dir)
	if !ok || n == 0 {
		return 0, false
	}
	return r.u32(at + 4)
}

func (r *resources) dataEntry(off uint32) ([]byte, bool) {
	rva, ok1 := r.u32(r.base + off)
	size, ok2 := r.u32(r.base + off + 4)
	if !ok1 || !ok2 || rva < r.va {
		return nil, false
	}
	start := uint64(rva - r.va)
	if start+uint64(size) > uint64(len(r.data)) {
		return nil, false
	}
	return r.data[start : start+uint64(size)], true
}

func parseFixedFileInfo(blob []byte) (FileVersion, error) {
	for i := 0; i+16 <= len(blob); i++ {
		if binary.LittleEndian.Uint32(blob[i:]) != fixedFileInfoMagic {
			continue
		}
		ms := binary.LittleEndian.Uint32(blob[i+8:])
		ls := binary.LittleEndian.Uint32(blob[i+12:])
		return FileVersion{
			Major: uint16(ms >> 16),
			Minor: uint16(ms),
			Patch: uint16(ls >> 16),
			Build: uint16(ls),
		}, nil
	}
	return FileVersion{}, ErrNoVersion
}
