// Package exe classifies executables by CPU architecture and operating
// system from their PE or ELF headers.
//
// The probes read a handful of header fields and nothing else: section
// tables, checksums and signatures are never validated. A file that is
// not the format being probed for is not an error, it classifies as
// unknown.
package exe

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gamesniff/gamesniff/pkg/logflags"
)

// ErrEmptyFile is returned when a probed file has no content at all.
// Partially installed games routinely ship zero-byte files, so callers
// usually treat it as a miss rather than corruption.
var ErrEmptyFile = errors.New("file is empty")

// Architecture is a CPU architecture. The zero value means the machine
// type was not recognized.
type Architecture uint8

const (
	ArchUnknown Architecture = iota
	X86
	X64
)

func (a Architecture) String() string {
	switch a {
	case X86:
		return "x86"
	case X64:
		return "x64"
	}
	return "unknown"
}

func (a Architecture) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Architecture) UnmarshalText(text []byte) error {
	switch string(text) {
	case "x86":
		*a = X86
	case "x64":
		*a = X64
	case "unknown", "":
		*a = ArchUnknown
	default:
		return fmt.Errorf("unknown architecture %q", text)
	}
	return nil
}

// OS is an operating system target. The zero value means unknown.
type OS uint8

const (
	OSUnknown OS = iota
	Windows
	Linux
)

func (o OS) String() string {
	switch o {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	}
	return "unknown"
}

func (o OS) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OS) UnmarshalText(text []byte) error {
	switch string(text) {
	case "windows":
		*o = Windows
	case "linux":
		*o = Linux
	case "unknown", "":
		*o = OSUnknown
	default:
		return fmt.Errorf("unknown operating system %q", text)
	}
	return nil
}

// Header is the result of a header probe.
type Header struct {
	Arch Architecture
	OS   OS
}

const peHeaderOffsetPos = 60

var (
	mzMagic  = []byte("MZ")
	elfMagic = []byte(elf.ELFMAG)
)

// Sniff reads the header of the file at path.
func Sniff(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	h, err := sniff(f)
	if err != nil {
		return Header{}, fmt.Errorf("could not read header of %s: %w", path, err)
	}
	logflags.ExeLogger().Debugf("%s: os=%s arch=%s", path, h.OS, h.Arch)
	return h, nil
}

// ReadArchitecture returns the CPU architecture of the executable at path,
// or ArchUnknown if the file is not a PE or ELF binary for a known machine.
func ReadArchitecture(path string) (Architecture, error) {
	h, err := Sniff(path)
	return h.Arch, err
}

func sniff(r io.ReadSeeker) (Header, error) {
	var magic [4]byte
	n, err := io.ReadFull(r, magic[:])
	switch {
	case n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF):
		return Header{}, ErrEmptyFile
	case n < 2:
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, err
	case err != nil && err != io.ErrUnexpectedEOF:
		return Header{}, err
	}

	switch {
	case bytes.Equal(magic[:2], mzMagic):
		arch, err := peMachine(r)
		if err != nil {
			return Header{}, truncated(err)
		}
		return Header{Arch: arch, OS: Windows}, nil
	case n == 4 && bytes.Equal(magic[:], elfMagic):
		arch, err := elfMachine(r)
		if err != nil {
			return Header{}, truncated(err)
		}
		return Header{Arch: arch, OS: Linux}, nil
	}
	return Header{}, nil
}

func peMachine(r io.ReadSeeker) (Architecture, error) {
	if _, err := r.Seek(peHeaderOffsetPos, io.SeekStart); err != nil {
		return ArchUnknown, err
	}
	var off uint32
	if err := binary.Read(r, binary.LittleEndian, &off); err != nil {
		return ArchUnknown, err
	}
	// Skip the "PE\0\0" signature.
	if _, err := r.Seek(int64(off)+4, io.SeekStart); err != nil {
		return ArchUnknown, err
	}
	var machine uint16
	if err := binary.Read(r, binary.LittleEndian, &machine); err != nil {
		return ArchUnknown, err
	}
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return X86, nil
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return X64, nil
	}
	return ArchUnknown, nil
}

func elfMachine(r io.ReadSeeker) (Architecture, error) {
	var ident [elf.EI_NIDENT]byte
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return ArchUnknown, err
	}
	if _, err := io.ReadFull(r, ident[:]); err != nil {
		return ArchUnknown, err
	}
	var order binary.ByteOrder = binary.LittleEndian
	if elf.Data(ident[elf.EI_DATA]) == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}
	// e_type precedes e_machine.
	var fields [2]uint16
	if err := binary.Read(r, order, &fields); err != nil {
		return ArchUnknown, err
	}
	switch elf.Machine(fields[1]) {
	case elf.EM_386:
		return X86, nil
	case elf.EM_X86_64:
		return X64, nil
	}
	return ArchUnknown, nil
}

// truncated reports a header that ends before a field as an unexpected EOF.
func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
