package version

import (
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abc123"}
	if got, want := v.String(), "Version: 1.2.3-rc1\nBuild: abc123"; got != want {
		t.Fatalf("expected <%q>; but was <%q>", want, got)
	}
}

func TestBuildInfoStartsWithGoVersion(t *testing.T) {
	if info := BuildInfo(); !strings.HasPrefix(info, "go") && !strings.HasPrefix(info, "devel") {
		t.Fatalf("unexpected build info <%s>", info)
	}
}
