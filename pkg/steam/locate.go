package steam

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/gamesniff/gamesniff/pkg/logflags"
)

// ErrNotFound is returned by Locate when no Steam installation exists.
var ErrNotFound = errors.New("steam installation not found")

// homeCandidates are tried, relative to the home directory, after the
// registry.
var homeCandidates = []string{
	filepath.Join(".steam", "steam"),
	filepath.Join(".local", "share", "Steam"),
	filepath.Join("Library", "Application Support", "Steam"),
}

// registryDir is replaced in tests.
var registryDir = registrySteamPath

// Locate returns the Steam install dir. A non-empty override wins and must
// exist; otherwise the Windows registry and the usual per-user locations
// are tried in order. A candidate counts when it holds an appcache
// directory.
func Locate(override string) (string, error) {
	log := logflags.ScanLogger()
	if override != "" {
		dir, err := homedir.Expand(override)
		if err != nil {
			return "", err
		}
		if !isDir(dir) {
			return "", fmt.Errorf("%w: %s is not a directory", ErrNotFound, dir)
		}
		return dir, nil
	}

	var candidates []string
	if dir, ok := registryDir(); ok {
		candidates = append(candidates, dir)
	}
	if home, err := homedir.Dir(); err == nil {
		for _, c := range homeCandidates {
			candidates = append(candidates, filepath.Join(home, c))
		}
	} else {
		log.WithError(err).Warn("could not resolve home directory")
	}

	for _, dir := range candidates {
		if isDir(filepath.Join(dir, "appcache")) {
			log.Debugf("using steam dir %s", dir)
			return dir, nil
		}
		log.Debugf("no steam install at %s", dir)
	}
	return "", ErrNotFound
}
