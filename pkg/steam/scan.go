package steam

import (
	"fmt"
	"path/filepath"
	"strconv"

	lru "github.com/hashicorp/golang-lru"

	"github.com/gamesniff/gamesniff/pkg/engine"
	"github.com/gamesniff/gamesniff/pkg/logflags"
	"github.com/gamesniff/gamesniff/pkg/steam/appinfo"
	"github.com/gamesniff/gamesniff/pkg/steam/packageinfo"
)

// DefaultCacheSize is the number of executable descriptors a Scanner
// remembers when Options.CacheSize is not positive.
const DefaultCacheSize = 256

// Options configures a Scanner.
type Options struct {
	// SteamDir is the Steam install dir holding appcache/ and steamapps/.
	SteamDir string
	// LibraryDirs are additional steamapps directories.
	LibraryDirs []string
	// CacheSize bounds the descriptor cache.
	CacheSize int
	// IncludeTools keeps catalog entries typed "Tool".
	IncludeTools bool
}

// Scanner finds installed games of one Steam installation and
// fingerprints their executables.
type Scanner struct {
	opts      Options
	libraries []string
	cache     *lru.Cache
}

// Game is an installed catalog entry.
type Game struct {
	App         appinfo.App  `json:"app" yaml:"app"`
	Dir         string       `json:"dir" yaml:"dir"`
	Executables []Executable `json:"executables" yaml:"executables"`
}

// Executable is a launch option resolved on disk.
type Executable struct {
	LaunchID string `json:"launch_id" yaml:"launch_id"`
	// Args are the launch option's arguments split into words.
	Args       []string           `json:"args,omitempty" yaml:"args,omitempty"`
	Descriptor *engine.Descriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewScanner returns a Scanner for opts.
func NewScanner(opts Options) (*Scanner, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	libs := []string{filepath.Join(opts.SteamDir, "steamapps")}
	libs = append(libs, opts.LibraryDirs...)
	return &Scanner{opts: opts, libraries: libs, cache: cache}, nil
}

// Apps reads every application of the catalog.
func (s *Scanner) Apps() ([]appinfo.App, error) {
	rd, err := appinfo.Open(AppInfoPath(s.opts.SteamDir))
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	rd.IncludeTools = s.opts.IncludeTools
	return rd.ReadAll()
}

// OwnedApps reads the catalog and keeps the free apps and the apps granted
// by a package.
func (s *Scanner) OwnedApps() ([]appinfo.App, error) {
	apps, err := s.Apps()
	if err != nil {
		return nil, err
	}
	pkgs, err := packageinfo.Read(PackageInfoPath(s.opts.SteamDir))
	if err != nil {
		return nil, err
	}
	owned := pkgs.AppIDs()
	kept := apps[:0]
	for _, app := range apps {
		if _, ok := owned[strconv.FormatUint(uint64(app.ID), 10)]; ok || app.IsFree {
			kept = append(kept, app)
		}
	}
	return kept, nil
}

// InstallDir returns the directory app is installed in, searching the
// libraries in order.
func (s *Scanner) InstallDir(app appinfo.App) (string, bool) {
	if app.InstallDir == "" {
		return "", false
	}
	for _, lib := range s.libraries {
		dir := filepath.Join(lib, "common", app.InstallDir)
		if isDir(dir) {
			return dir, true
		}
	}
	return "", false
}

// Scan returns every owned and installed game with its launch executables
// fingerprinted.
func (s *Scanner) Scan() ([]Game, error) {
	log := logflags.ScanLogger()
	apps, err := s.OwnedApps()
	if err != nil {
		return nil, err
	}
	var games []Game
	for _, app := range apps {
		dir, ok := s.InstallDir(app)
		if !ok {
			continue
		}
		g := Game{App: app, Dir: dir}
		seen := make(map[string]bool)
		for _, o := range app.Launch {
			if o.Executable == "" {
				continue
			}
			path := filepath.Join(dir, filepath.FromSlash(o.Executable))
			if seen[path] {
				continue
			}
			seen[path] = true
			if !isFile(path) {
				log.Debugf("app %d: launch option %s: %s not installed", app.ID, o.ID, path)
				continue
			}
			e := Executable{LaunchID: o.ID}
			if e.Args, err = o.Argv(); err != nil {
				log.Debugf("app %d: launch option %s: %v", app.ID, o.ID, err)
			}
			d, err := s.Describe(path)
			if err != nil {
				e.Error = err.Error()
			} else {
				e.Descriptor = &d
			}
			g.Executables = append(g.Executables, e)
		}
		log.Debugf("app %d installed at %s with %d executables", app.ID, dir, len(g.Executables))
		games = append(games, g)
	}
	return games, nil
}

// Describe fingerprints the executable at path, remembering the result.
func (s *Scanner) Describe(path string) (engine.Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return engine.Descriptor{}, err
	}
	if v, ok := s.cache.Get(abs); ok {
		return v.(engine.Descriptor), nil
	}
	d, err := engine.Describe(abs)
	if err != nil {
		return engine.Descriptor{}, fmt.Errorf("describing %s: %w", abs, err)
	}
	s.cache.Add(abs, d)
	return d, nil
}
