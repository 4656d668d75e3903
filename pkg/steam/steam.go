// Package steam ties the Steam catalog readers to an installation on
// disk: where the catalogs live, which apps are owned and installed, and
// what engine their executables were built with.
package steam

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	appInfoFile     = "appinfo.vdf"
	packageInfoFile = "packageinfo.vdf"
)

// AppInfoPath returns the location of the application catalog below the
// Steam install dir.
func AppInfoPath(steamDir string) string {
	return filepath.Join(steamDir, "appcache", appInfoFile)
}

// PackageInfoPath returns the location of the package catalog below the
// Steam install dir.
func PackageInfoPath(steamDir string) string {
	return filepath.Join(steamDir, "appcache", packageInfoFile)
}

// ClearCache removes both catalogs so that Steam regenerates them on its
// next start. Missing files are not an error.
func ClearCache(steamDir string) error {
	var errs []error
	for _, path := range []string{AppInfoPath(steamDir), PackageInfoPath(steamDir)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
