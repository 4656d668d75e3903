//go:build !windows

package steam

func registrySteamPath() (string, bool) {
	return "", false
}
