package engine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/gamesniff/gamesniff/pkg/exe"
	"github.com/gamesniff/gamesniff/pkg/logflags"
)

var (
	unrealWinFolders    = []string{"Win64", "Win32", "WinGDK"}
	unrealEngineFolders = []string{"Win64", "Win32", "ThirdParty"}
)

const shippingSuffix = "Shipping.exe"

// The build string is stored as UTF-16LE, e.g. "++UE4+Release-4.27".
// Anything of the form "+<word>-<digits>" may follow the engine tag.
var (
	unrealWideRe = regexp.MustCompile(`\+\x00U\x00E\x00[45]\x00(?:\+\x00(?:[A-Za-z]\x00)+-\x00(?:[0-9]\x00)+(?:\.\x00(?:[0-9]\x00)+)?)?`)
	unrealTextRe = regexp.MustCompile(`\+UE([45])(?:\+[A-Za-z]+-(\d+)(?:\.(\d+))?)?`)
)

func isWinFolder(name string) bool {
	for _, f := range unrealWinFolders {
		if name == f {
			return true
		}
	}
	return false
}

// IsUnreal reports whether path looks like an Unreal game executable:
// either a launcher next to an Engine/Binaries tree, or a binary inside a
// Binaries/Win64 (Win32, WinGDK) folder.
func IsUnreal(path string) bool {
	parent := filepath.Dir(path)
	for _, sub := range unrealEngineFolders {
		if isDir(filepath.Join(parent, "Engine", "Binaries", sub)) {
			return true
		}
	}
	return isWinFolder(filepath.Base(parent)) && filepath.Base(filepath.Dir(parent)) == "Binaries"
}

// ResolveUnrealBinary maps a launcher executable to the shipping binary it
// starts. If none can be found, path is returned unchanged.
func ResolveUnrealBinary(path string) string {
	parent := filepath.Dir(path)
	if isWinFolder(filepath.Base(parent)) {
		if entries, err := os.ReadDir(parent); err == nil {
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), shippingSuffix) {
					return filepath.Join(parent, e.Name())
				}
			}
		}
		return path
	}

	var candidates []string
	for _, pattern := range []string{"*/Binaries/%s/*.exe", "Binaries/%s/*.exe"} {
		for _, win := range unrealWinFolders {
			matches, _ := filepath.Glob(filepath.Join(parent, strings.Replace(pattern, "%s", win, 1)))
			sort.Strings(matches)
			for _, m := range matches {
				rel, err := filepath.Rel(parent, m)
				if err != nil || strings.HasPrefix(rel, "Engine"+string(filepath.Separator)) {
					continue
				}
				candidates = append(candidates, m)
			}
		}
	}
	for _, c := range candidates {
		if strings.HasSuffix(c, shippingSuffix) {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return path
}

func detectUnreal(path string) (Fingerprint, bool) {
	if !IsUnreal(path) {
		return Fingerprint{}, false
	}
	fp := Fingerprint{Brand: Unreal}
	if v, ok := unrealVersion(ResolveUnrealBinary(path)); ok {
		fp.Version = &v
	}
	return fp, true
}

func unrealVersion(path string) (Version, bool) {
	log := logflags.EngineLogger().WithField("path", path)
	fv, err := exe.ReadFileVersion(path)
	switch {
	case err == nil && fv.Major > 0:
		return NewVersion(int(fv.Major), int(fv.Minor), int(fv.Patch)), true
	case err != nil && !errors.Is(err, exe.ErrNoVersion):
		log.WithError(err).Debug("could not read version resource")
	}

	m, err := scanFile(path, unrealWideRe)
	if err != nil {
		log.WithError(err).Debug("could not scan for build string")
		return Version{}, false
	}
	if m == nil {
		return Version{}, false
	}
	return parseUnrealBuild(decodeUTF16(m))
}

func parseUnrealBuild(s string) (Version, bool) {
	m := unrealTextRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	if m[3] != "" {
		minor, _ := strconv.Atoi(m[3])
		return NewVersion(major, minor), true
	}
	return NewVersion(major), true
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}

var (
	scanChunkSize = 1 << 20
	scanOverlap   = 256
)

// scanFile returns the first match of re in the file at path. The file is
// read in chunks that overlap by scanOverlap bytes, so matches up to that
// length are found even when they straddle a chunk boundary.
func scanFile(path string, re *regexp.Regexp) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, scanChunkSize+scanOverlap)
	keep := 0
	for {
		n, err := io.ReadFull(f, buf[keep:])
		window := buf[:keep+n]
		loc := re.FindIndex(window)
		// A match starting in the overlap may continue in the next chunk;
		// it is kept and found again there.
		if loc != nil && (err != nil || loc[0] < len(window)-scanOverlap) {
			return append([]byte(nil), window[loc[0]:loc[1]]...), nil
		}
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return nil, nil
		default:
			return nil, err
		}
		keep = min(scanOverlap, len(window))
		copy(buf, window[len(window)-keep:])
	}
}
