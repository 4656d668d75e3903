package steam

import (
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

func registrySteamPath() (string, bool) {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Software\Valve\Steam`, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()
	path, _, err := k.GetStringValue("SteamPath")
	if err != nil || path == "" {
		return "", false
	}
	return filepath.FromSlash(path), true
}
