package engine

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gamesniff/gamesniff/pkg/exe"
	"github.com/gamesniff/gamesniff/pkg/logflags"
)

// unityAssets are searched in order for an embedded version string.
var unityAssets = []string{"globalgamemanagers", "mainData", "data.unity3d"}

const unityHeadSize = 4096

var unityVersionRe = regexp.MustCompile(`\d+\.\d+\.\d+[A-Za-z]\d+`)

var (
	il2cppAssemblies    = []string{"GameAssembly.dll", "GameAssembly.so"}
	unityCrashHandler64 = "UnityCrashHandler64.exe"
	unityCrashHandler32 = "UnityCrashHandler32.exe"
)

// UnityDataDir returns the "<stem>_Data" directory that sits next to a
// Unity player executable.
func UnityDataDir(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(path), stem+"_Data")
}

func detectUnity(path string) (Fingerprint, bool) {
	data := UnityDataDir(path)
	if !isDir(data) {
		return Fingerprint{}, false
	}
	fp := Fingerprint{Brand: Unity, Backend: Mono}
	if v, ok := unityVersion(data); ok {
		fp.Version = &v
	}
	dir := filepath.Dir(path)
	for _, name := range il2cppAssemblies {
		if isFile(filepath.Join(dir, name)) {
			fp.Backend = IL2CPP
			break
		}
	}
	return fp, true
}

func unityVersion(data string) (Version, bool) {
	log := logflags.EngineLogger()
	for _, name := range unityAssets {
		asset := filepath.Join(data, name)
		if !isFile(asset) {
			continue
		}
		head, err := readHead(asset, unityHeadSize)
		if err != nil {
			if errors.Is(err, exe.ErrEmptyFile) {
				log.Debugf("skipping empty asset %s", asset)
			} else {
				log.WithError(err).Debugf("could not read %s", asset)
			}
			continue
		}
		m := unityVersionRe.Find(head)
		if m == nil {
			continue
		}
		if v, ok := ParseVersion(string(m)); ok {
			return v, true
		}
	}
	log.Debugf("no Unity version found under %s", data)
	return Version{}, false
}

// unityArchitecture guesses the architecture of a Unity player whose own
// header could not be classified, from the files shipped with it.
func unityArchitecture(path string) exe.Architecture {
	dir := filepath.Dir(path)
	if isFile(filepath.Join(dir, unityCrashHandler64)) {
		return exe.X64
	}
	if isFile(filepath.Join(dir, unityCrashHandler32)) {
		return exe.X86
	}
	if dlls, _ := filepath.Glob(filepath.Join(dir, "*.dll")); len(dlls) > 0 {
		if arch := probe(dlls[0]); arch != exe.ArchUnknown {
			return arch
		}
	}
	if dll := firstDLL(filepath.Join(UnityDataDir(path), "Plugins")); dll != "" {
		return probe(dll)
	}
	return exe.ArchUnknown
}

func probe(path string) exe.Architecture {
	arch, err := exe.ReadArchitecture(path)
	if err != nil {
		logflags.EngineLogger().WithError(err).Debugf("could not probe %s", path)
		return exe.ArchUnknown
	}
	return arch
}

var errFound = errors.New("found")

func firstDLL(root string) string {
	var found string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".dll") {
			found = p
			return errFound
		}
		return nil
	})
	return found
}

// readHead reads up to n bytes from the start of path.
func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	switch {
	case m == 0 && (err == io.EOF || err == nil):
		return nil, exe.ErrEmptyFile
	case err != nil && err != io.ErrUnexpectedEOF:
		return nil, err
	}
	return buf[:m], nil
}
