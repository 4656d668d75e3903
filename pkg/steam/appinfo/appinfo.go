// Package appinfo reads Steam's appcache/appinfo.vdf catalog.
//
// The file is a header followed by one framed binary KV record per
// application and a zero application id. Since format 29 the key names of
// every record live in a table at the end of the file.
package appinfo

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cosiner/argv"

	"github.com/gamesniff/gamesniff/pkg/logflags"
	"github.com/gamesniff/gamesniff/pkg/vdf"
)

const (
	magicBase = 0x07564400
	// Magic27 is the oldest supported format: one checksum per record.
	Magic27 = 0x07564427
	// Magic28 adds a checksum of the binary KV data.
	Magic28 = 0x07564428
	// Magic29 moves key names to a trailing table.
	Magic29 = 0x07564429

	// keyTableAfter is the last format without a key table.
	keyTableAfter = Magic28
)

// ErrUnknownMagic is returned when the file does not start with an
// appinfo magic number.
var ErrUnknownMagic = errors.New("not an appinfo.vdf file")

// LaunchOption is one way to start an application.
type LaunchOption struct {
	ID          string `json:"id" yaml:"id"`
	AppID       uint32 `json:"app_id" yaml:"app_id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Executable is relative to the install directory and uses forward
	// slashes.
	Executable string `json:"executable,omitempty" yaml:"executable,omitempty"`
	Arguments  string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	// Type is the launch type, for example "vr" or "default".
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	OSList  string `json:"os_list,omitempty" yaml:"os_list,omitempty"`
	BetaKey string `json:"beta_key,omitempty" yaml:"beta_key,omitempty"`
	OSArch  string `json:"os_arch,omitempty" yaml:"os_arch,omitempty"`
}

// Argv splits Arguments the way a shell would.
func (o LaunchOption) Argv() ([]string, error) {
	if strings.TrimSpace(o.Arguments) == "" {
		return nil, nil
	}
	v, err := argv.Argv(o.Arguments,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal launch arguments '%s'", o.Arguments)
	}
	return v[0], nil
}

// App is one catalog entry.
type App struct {
	ID     uint32         `json:"id" yaml:"id"`
	Name   string         `json:"name" yaml:"name"`
	Launch []LaunchOption `json:"launch" yaml:"launch"`
	// Type is the catalog type tag, for example "Game", "Demo" or "Tool".
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	InstallDir string `json:"install_dir,omitempty" yaml:"install_dir,omitempty"`
	IsFree     bool   `json:"is_free" yaml:"is_free"`
	// ReleaseDate and OriginalReleaseDate are unix timestamps, zero when
	// unknown.
	ReleaseDate         int64 `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	OriginalReleaseDate int64 `json:"original_release_date,omitempty" yaml:"original_release_date,omitempty"`
}

// Reader is a forward-only cursor over the records of an appinfo.vdf
// file. It is not safe for concurrent use.
type Reader struct {
	f     *os.File
	r     *bufio.Reader
	magic uint32
	keys  []string
	done  bool

	// IncludeTools keeps records typed "Tool", which are skipped by default.
	IncludeTools bool
}

// Open opens the catalog at path and reads its header and, for newer
// formats, its key table.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rd := &Reader{f: f}
	if err := rd.init(); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	return rd, nil
}

func (rd *Reader) init() error {
	var hdr struct {
		Magic    uint32
		Universe uint32
	}
	if err := binary.Read(rd.f, binary.LittleEndian, &hdr); err != nil {
		return unexpected(err)
	}
	if hdr.Magic&^0xFF != magicBase || hdr.Magic < Magic27 {
		return fmt.Errorf("%w (magic %#x)", ErrUnknownMagic, hdr.Magic)
	}
	rd.magic = hdr.Magic

	if hdr.Magic > keyTableAfter {
		var tableOffset int64
		if err := binary.Read(rd.f, binary.LittleEndian, &tableOffset); err != nil {
			return unexpected(err)
		}
		recordsStart, err := rd.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if _, err := rd.f.Seek(tableOffset, io.SeekStart); err != nil {
			return err
		}
		if rd.keys, err = readKeyTable(bufio.NewReader(rd.f)); err != nil {
			return fmt.Errorf("reading key table: %w", err)
		}
		if _, err := rd.f.Seek(recordsStart, io.SeekStart); err != nil {
			return err
		}
	}
	rd.r = bufio.NewReader(rd.f)
	return nil
}

func readKeyTable(r *bufio.Reader) ([]string, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, unexpected(err)
	}
	keys := make([]string, 0, min(count, 1<<16))
	for i := uint32(0); i < count; i++ {
		s, err := vdf.ReadCString(r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, s)
	}
	return keys, nil
}

// Magic returns the format magic number of the file.
func (rd *Reader) Magic() uint32 {
	return rd.magic
}

// Close releases the underlying file.
func (rd *Reader) Close() error {
	return rd.f.Close()
}

// recordHeader is the framing between a record's size and its tree.
type recordHeader struct {
	InfoState    uint32
	LastUpdated  uint32
	AccessToken  uint64
	TextChecksum [20]byte
	ChangeNumber uint32
}

// Next returns the next application record. It returns nil, nil once the
// terminating zero id has been read; records without a name or without
// launch options, and tools, are skipped.
//
// Every record is read whole before it is decoded, so after an error for a
// corrupt record the next call continues with the record that follows it.
func (rd *Reader) Next() (*App, error) {
	log := logflags.CatalogLogger()
	for !rd.done {
		var id uint32
		if err := binary.Read(rd.r, binary.LittleEndian, &id); err != nil {
			return nil, unexpected(err)
		}
		if id == 0 {
			rd.done = true
			break
		}
		var size uint32
		if err := binary.Read(rd.r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("app %d: %w", id, unexpected(err))
		}
		// CopyN grows the buffer as data arrives so a bogus size cannot
		// allocate more than the file holds.
		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, rd.r, int64(size)); err != nil {
			rd.done = true
			return nil, fmt.Errorf("app %d: %w", id, unexpected(err))
		}
		tree, err := rd.decodeRecord(bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("app %d: %w", id, err)
		}

		app, reason := project(id, tree, rd.IncludeTools)
		if app == nil {
			log.Debugf("skipping app %d: %s", id, reason)
			continue
		}
		return app, nil
	}
	return nil, nil
}

func (rd *Reader) decodeRecord(r *bytes.Reader) (vdf.Node, error) {
	var hdr recordHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, unexpected(err)
	}
	if rd.magic >= Magic28 {
		if _, err := r.Seek(20, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return vdf.Decode(r, false, rd.keys)
}

// ReadAll reads every remaining record.
func (rd *Reader) ReadAll() ([]App, error) {
	var apps []App
	for {
		app, err := rd.Next()
		if err != nil {
			return apps, err
		}
		if app == nil {
			return apps, nil
		}
		apps = append(apps, *app)
	}
}

func project(id uint32, tree vdf.Node, includeTools bool) (*App, string) {
	typ, _ := tree.Str("appinfo", "common", "type")
	if strings.EqualFold(typ, "Tool") && !includeTools {
		return nil, "tool"
	}
	name, ok := tree.Str("appinfo", "common", "name")
	if !ok || name == "" {
		name, ok = tree.Str("appinfo", "common", "name_localized", "english")
	}
	if !ok || name == "" {
		return nil, "no name"
	}
	launch := launchOptions(id, tree)
	if len(launch) == 0 {
		return nil, "no launch options"
	}

	app := &App{ID: id, Name: name, Launch: launch, Type: typ}
	app.InstallDir, _ = tree.Str("appinfo", "config", "installdir")
	app.ReleaseDate, _ = tree.Int("appinfo", "common", "steam_release_date")
	app.OriginalReleaseDate, _ = tree.Int("appinfo", "common", "original_release_date")
	if free, ok := tree.Int("appinfo", "common", "isfreeapp"); ok {
		app.IsFree = free != 0
	}
	return app, ""
}

func launchOptions(id uint32, tree vdf.Node) []LaunchOption {
	launch, ok := tree.Node("appinfo", "config", "launch")
	if !ok {
		return nil
	}
	opts := make([]LaunchOption, 0, len(launch))
	for slot, v := range launch {
		entry, ok := v.(vdf.Node)
		if !ok {
			continue
		}
		o := LaunchOption{ID: slot, AppID: id}
		o.Description, _ = entry.Str("description")
		o.Type, _ = entry.Str("type")
		o.Arguments, _ = entry.Str("arguments")
		o.OSList, _ = entry.Str("config", "oslist")
		o.BetaKey, _ = entry.Str("config", "betakey")
		o.OSArch, _ = entry.Str("config", "osarch")
		if exe, ok := entry.Str("executable"); ok {
			o.Executable = strings.ReplaceAll(exe, `\`, "/")
		}
		opts = append(opts, o)
	}
	sort.Slice(opts, func(i, j int) bool { return lessLaunchID(opts[i].ID, opts[j].ID) })
	return opts
}

func lessLaunchID(a, b string) bool {
	x, errx := strconv.Atoi(a)
	y, erry := strconv.Atoi(b)
	if errx == nil && erry == nil {
		return x < y
	}
	return a < b
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
