package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is an engine version. Only Major is always present; Display is
// rebuilt from the parsed parts and is not a copy of the input.
type Version struct {
	Major   int    `json:"major" yaml:"major"`
	Minor   *int   `json:"minor,omitempty" yaml:"minor,omitempty"`
	Patch   *int   `json:"patch,omitempty" yaml:"patch,omitempty"`
	Suffix  string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Display string `json:"display" yaml:"display"`
}

var versionRe = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?([A-Za-z]+\d*)?$`)

// ParseVersion parses strings of the form major[.minor[.patch]][suffix],
// for example "5", "4.27", "2021.3.5f1".
func ParseVersion(s string) (Version, bool) {
	m := versionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, false
	}
	v := Version{Major: major, Suffix: m[4]}
	if m[2] != "" {
		minor, err := strconv.Atoi(m[2])
		if err != nil {
			return Version{}, false
		}
		v.Minor = &minor
	}
	if m[3] != "" {
		patch, err := strconv.Atoi(m[3])
		if err != nil {
			return Version{}, false
		}
		v.Patch = &patch
	}
	v.Display = v.String()
	return v, true
}

// NewVersion builds a Version from numeric parts. parts holds minor and
// patch, in that order; either may be omitted.
func NewVersion(major int, parts ...int) Version {
	v := Version{Major: major}
	if len(parts) > 0 {
		minor := parts[0]
		v.Minor = &minor
	}
	if len(parts) > 1 {
		patch := parts[1]
		v.Patch = &patch
	}
	v.Display = v.String()
	return v
}

func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", v.Major)
	if v.Minor != nil {
		fmt.Fprintf(&b, ".%d", *v.Minor)
		if v.Patch != nil {
			fmt.Fprintf(&b, ".%d", *v.Patch)
		}
	}
	b.WriteString(v.Suffix)
	return b.String()
}
