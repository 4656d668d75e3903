// Package packageinfo reads Steam's appcache/packageinfo.vdf, the catalog
// of license packages and the applications they grant.
package packageinfo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gamesniff/gamesniff/pkg/logflags"
	"github.com/gamesniff/gamesniff/pkg/vdf"
)

const (
	magicBase = 0x06565500
	// Magic27 frames records without an access token.
	Magic27 = 0x06565527
	// Magic28 adds a 64-bit access token to every record.
	Magic28 = 0x06565528

	endOfPackages = 0xFFFFFFFF
)

// ErrUnknownMagic is returned when the file does not start with a
// packageinfo magic number.
var ErrUnknownMagic = errors.New("not a packageinfo.vdf file")

// Package is one license package.
type Package struct {
	ID           uint32
	Checksum     [20]byte
	ChangeNumber uint32
	Tree         vdf.Node
}

// Map holds every package of a catalog by id.
type Map struct {
	Magic    uint32
	Packages map[uint32]*Package
}

// Read decodes the whole catalog at path.
func Read(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	logflags.CatalogLogger().Debugf("read %d packages from %s", len(m.Packages), path)
	return m, nil
}

func decode(r *bufio.Reader) (*Map, error) {
	le := binary.LittleEndian
	var hdr struct {
		Magic    uint32
		Universe uint32
	}
	if err := binary.Read(r, le, &hdr); err != nil {
		return nil, unexpected(err)
	}
	if hdr.Magic&^0xFF != magicBase || hdr.Magic < Magic27 {
		return nil, fmt.Errorf("%w (magic %#x)", ErrUnknownMagic, hdr.Magic)
	}

	m := &Map{Magic: hdr.Magic, Packages: make(map[uint32]*Package)}
	for {
		var id uint32
		if err := binary.Read(r, le, &id); err != nil {
			return nil, unexpected(err)
		}
		if id == endOfPackages {
			return m, nil
		}
		p := &Package{ID: id}
		if _, err := io.ReadFull(r, p.Checksum[:]); err != nil {
			return nil, fmt.Errorf("package %d: %w", id, unexpected(err))
		}
		if err := binary.Read(r, le, &p.ChangeNumber); err != nil {
			return nil, fmt.Errorf("package %d: %w", id, unexpected(err))
		}
		if hdr.Magic >= Magic28 {
			if _, err := r.Discard(8); err != nil {
				return nil, fmt.Errorf("package %d: %w", id, unexpected(err))
			}
		}
		tree, err := vdf.Decode(r, false, nil)
		if err != nil {
			return nil, fmt.Errorf("package %d: %w", id, err)
		}
		p.Tree = tree
		m.Packages[id] = p
	}
}

// AppIDs returns the decimal ids of every application granted by any
// package. Free applications may be playable without appearing here.
func (m *Map) AppIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, p := range m.Packages {
		for key := range p.Tree {
			appids, ok := p.Tree.Node(key, "appids")
			if !ok {
				continue
			}
			for k := range appids {
				if id, ok := appids.Int32(k); ok {
					ids[strconv.FormatInt(int64(id), 10)] = struct{}{}
				}
			}
		}
	}
	return ids
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
