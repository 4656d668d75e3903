package steam

import (
	"sort"
	"strings"

	"github.com/derekparker/trie"

	"github.com/gamesniff/gamesniff/pkg/steam/appinfo"
)

// NameIndex looks up catalog entries by case-insensitive name.
type NameIndex struct {
	t *trie.Trie
}

// NewNameIndex indexes apps by name. Apps sharing a name are kept
// together.
func NewNameIndex(apps []appinfo.App) *NameIndex {
	byName := make(map[string][]appinfo.App)
	for _, app := range apps {
		k := strings.ToLower(app.Name)
		byName[k] = append(byName[k], app)
	}
	t := trie.New()
	for k, group := range byName {
		t.Add(k, group)
	}
	return &NameIndex{t: t}
}

// Find returns the apps named exactly name, ignoring case.
func (idx *NameIndex) Find(name string) []appinfo.App {
	n, ok := idx.t.Find(strings.ToLower(name))
	if !ok {
		return nil
	}
	return n.Meta().([]appinfo.App)
}

// Prefix returns the apps whose name starts with prefix, ignoring case,
// ordered by name and id.
func (idx *NameIndex) Prefix(prefix string) []appinfo.App {
	return idx.collect(idx.t.PrefixSearch(strings.ToLower(prefix)))
}

// Fuzzy returns the apps whose name contains the runes of partial in
// order.
func (idx *NameIndex) Fuzzy(partial string) []appinfo.App {
	return idx.collect(idx.t.FuzzySearch(strings.ToLower(partial)))
}

func (idx *NameIndex) collect(keys []string) []appinfo.App {
	var apps []appinfo.App
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		apps = append(apps, idx.Find(k)...)
	}
	sort.Slice(apps, func(i, j int) bool {
		a, b := strings.ToLower(apps[i].Name), strings.ToLower(apps[j].Name)
		if a != b {
			return a < b
		}
		return apps[i].ID < apps[j].ID
	})
	return apps
}
