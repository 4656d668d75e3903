package cmds

import (
	"bytes"
	"debug/pe"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gamesniff/gamesniff/internal/fixture"
	"github.com/gamesniff/gamesniff/pkg/config"
	"github.com/gamesniff/gamesniff/pkg/steam"
	"github.com/gamesniff/gamesniff/pkg/steam/appinfo"
	"github.com/gamesniff/gamesniff/pkg/steam/packageinfo"
	"github.com/gamesniff/gamesniff/pkg/vdf"
)

// run executes the command tree with a private config file and returns
// what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yml")
	return runWithConfig(t, cfg, args...)
}

func runWithConfig(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := New(false)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestOutputFormat(t *testing.T) {
	var f outputFormat
	for _, s := range []string{"text", "yaml", "json"} {
		if err := f.Set(s); err != nil || f.String() != s {
			t.Fatalf("expected <%s>; but was <%s> %v", s, f.String(), err)
		}
	}
	if err := f.Set("xml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
	if f.Type() != "format" {
		t.Fatalf("unexpected flag type <%s>", f.Type())
	}
}

func TestExeCommand(t *testing.T) {
	dir := t.TempDir()
	game := fixture.WriteFile(t, filepath.Join(dir, "Game.exe"), fixture.PE(pe.IMAGE_FILE_MACHINE_AMD64, nil))
	fixture.WriteFile(t, filepath.Join(dir, "Game_Data", "globalgamemanagers"), []byte("2019.4.1f1"))
	fixture.WriteFile(t, filepath.Join(dir, "GameAssembly.dll"), []byte{1})

	out, err := run(t, "exe", "-o", "json", game)
	if err != nil {
		t.Fatal(err)
	}
	var descs []struct {
		Path   string
		Arch   string
		OS     string
		Engine struct {
			Brand   string
			Backend string `json:"scripting_backend"`
			Version struct{ Display string }
		}
	}
	if err := json.Unmarshal([]byte(out), &descs); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected one descriptor; but was <%s>", out)
	}
	d := descs[0]
	if d.Path != game || d.Arch != "x64" || d.OS != "windows" {
		t.Fatalf("unexpected descriptor <%+v>", d)
	}
	if d.Engine.Brand != "Unity" || d.Engine.Backend != "IL2CPP" || d.Engine.Version.Display != "2019.4.1f1" {
		t.Fatalf("unexpected engine <%+v>", d.Engine)
	}

	out, err = run(t, "exe", game)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "windows/x64") || !strings.Contains(out, "2019.4.1f1") {
		t.Fatalf("unexpected text output <%s>", out)
	}
}

func TestExeCommandMissingFile(t *testing.T) {
	elf := fixture.WriteFile(t, filepath.Join(t.TempDir(), "game"), fixture.ELF(62))
	out, err := run(t, "exe", elf, filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out, "linux/x64") {
		t.Fatalf("expected the readable executable to be described; but was <%s>", out)
	}
}

func steamFixture(t *testing.T) string {
	dir := t.TempDir()
	half := fixture.Launch("Half-Life", "hl.exe")
	portal := fixture.Launch("Portal", `bin\portal.exe`)
	pong := fixture.Launch("Pong", "pong.exe")
	fixture.WriteFile(t, steam.AppInfoPath(dir), fixture.AppInfo(t, appinfo.Magic29, []fixture.App{
		{ID: 70, Tree: half},
		{ID: 400, Tree: portal},
		{ID: 500, Tree: pong},
	}))
	fixture.WriteFile(t, steam.PackageInfoPath(dir), fixture.PackageInfo(t, packageinfo.Magic28, []fixture.Package{
		{ID: 1, Tree: vdf.Node{"1": vdf.Node{"appids": vdf.Node{"0": vdf.Int32(70), "1": vdf.Int32(400)}}}},
	}))
	return dir
}

func TestAppsCommand(t *testing.T) {
	dir := steamFixture(t)

	out, err := run(t, "apps", "--steam-dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Half-Life", "Portal", "Pong", "bin/portal.exe"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in <%s>", want, out)
		}
	}

	out, err = run(t, "apps", "--steam-dir", dir, "--owned", "--prefix", "p")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Portal") || strings.Contains(out, "Pong") || strings.Contains(out, "Half-Life") {
		t.Fatalf("unexpected output <%s>", out)
	}

	if _, err := run(t, "apps", "--steam-dir", dir, "--prefix", "p", "--match", "p"); err == nil {
		t.Fatal("expected --prefix and --match to conflict")
	}
}

func TestClearCacheCommand(t *testing.T) {
	dir := steamFixture(t)
	if _, err := run(t, "clear-cache", "--steam-dir", dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(steam.AppInfoPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("expected appinfo.vdf to be removed; but was <%v>", err)
	}
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	half := fixture.Launch("Half-Life", "hl.exe")
	half["appinfo"].(vdf.Node)["config"].(vdf.Node)["installdir"] = vdf.String("Half-Life")
	half["appinfo"].(vdf.Node)["config"].(vdf.Node)["launch"].(vdf.Node)["0"].(vdf.Node)["arguments"] = vdf.String(`-game "half life" -console`)
	fixture.WriteFile(t, steam.AppInfoPath(dir), fixture.AppInfo(t, appinfo.Magic28, []fixture.App{{ID: 70, Tree: half}}))
	fixture.WriteFile(t, steam.PackageInfoPath(dir), fixture.PackageInfo(t, packageinfo.Magic28, []fixture.Package{
		{ID: 1, Tree: vdf.Node{"1": vdf.Node{"appids": vdf.Node{"0": vdf.Int32(70)}}}},
	}))
	fixture.WriteFile(t, filepath.Join(dir, "steamapps", "common", "Half-Life", "hl.exe"), fixture.PE(pe.IMAGE_FILE_MACHINE_I386, nil))

	out, err := run(t, "scan", "--steam-dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := `[0] hl.exe -game "half life" -console`; !strings.Contains(out, want) {
		t.Fatalf("expected %q in <%s>", want, out)
	}

	out, err = run(t, "scan", "--steam-dir", dir, "--output", "json")
	if err != nil {
		t.Fatal(err)
	}
	var games []struct {
		Executables []struct{ Args []string }
	}
	if err := json.Unmarshal([]byte(out), &games); err != nil {
		t.Fatalf("could not parse <%s>: %v", out, err)
	}
	want := []string{"-game", "half life", "-console"}
	if len(games) != 1 || len(games[0].Executables) != 1 || !reflect.DeepEqual(games[0].Executables[0].Args, want) {
		t.Fatalf("expected arguments <%q>; but was <%+v>", want, games)
	}
}

func TestConfigCommand(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yml")
	if _, err := runWithConfig(t, cfg, "config", "library-dirs", "/mnt/a", "/mnt/b"); err != nil {
		t.Fatal(err)
	}
	if _, err := runWithConfig(t, cfg, "config", "output", "json"); err != nil {
		t.Fatal(err)
	}
	c := config.LoadConfig(cfg)
	if len(c.LibraryDirs) != 2 || c.LibraryDirs[1] != "/mnt/b" || c.Output != "json" {
		t.Fatalf("unexpected config <%+v>", c)
	}

	out, err := runWithConfig(t, cfg, "config", "--list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `["/mnt/a" "/mnt/b"]`) {
		t.Fatalf("unexpected listing <%s>", out)
	}

	// The configured output format applies unless --output is given.
	out, err = runWithConfig(t, cfg, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "gamesniff\nVersion: ") {
		t.Fatalf("unexpected version output <%s>", out)
	}
	elf := fixture.WriteFile(t, filepath.Join(t.TempDir(), "game"), fixture.ELF(3))
	out, err = runWithConfig(t, cfg, "exe", elf)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "[") {
		t.Fatalf("expected json output; but was <%s>", out)
	}

	// A single argument is split into words.
	if _, err := runWithConfig(t, cfg, "config", `library-dirs "/mnt/my games" /mnt/c`); err != nil {
		t.Fatal(err)
	}
	c = config.LoadConfig(cfg)
	if want := []string{"/mnt/my games", "/mnt/c"}; !reflect.DeepEqual(c.LibraryDirs, want) {
		t.Fatalf("expected <%q>; but was <%q>", want, c.LibraryDirs)
	}
	if _, err := runWithConfig(t, cfg, "config", `output "json`); err == nil {
		t.Fatal("expected an error for an unterminated quote")
	}

	if _, err := runWithConfig(t, cfg, "config", "nope", "1"); err == nil {
		t.Fatal("expected an error for an unknown option")
	}
}

func TestHelpHidesInapplicableFlags(t *testing.T) {
	out, err := run(t, "help", "exe")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "--steam-dir") {
		t.Fatalf("expected --steam-dir to be hidden in <%s>", out)
	}
	if !strings.Contains(out, "--output") {
		t.Fatalf("expected --output in <%s>", out)
	}
}
