// Package engine fingerprints game executables: which engine built them
// and, when it can be recovered, which engine version.
//
// Detection is a fixed chain: Unity is tried first, then Unreal, and the
// first positive match wins. Every step is a best effort; failing to
// recognize an engine is never an error.
package engine

import (
	"fmt"
	"os"

	"github.com/gamesniff/gamesniff/pkg/exe"
	"github.com/gamesniff/gamesniff/pkg/logflags"
)

// Brand is an engine brand.
type Brand uint8

const (
	BrandUnknown Brand = iota
	Unity
	Unreal
	Godot
	GameMaker
)

var brandNames = [...]string{
	BrandUnknown: "unknown",
	Unity:        "Unity",
	Unreal:       "Unreal",
	Godot:        "Godot",
	GameMaker:    "GameMaker",
}

func (b Brand) String() string {
	if int(b) < len(brandNames) {
		return brandNames[b]
	}
	return fmt.Sprintf("Brand(%d)", b)
}

func (b Brand) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Brand) UnmarshalText(text []byte) error {
	for i, name := range brandNames {
		if name == string(text) {
			*b = Brand(i)
			return nil
		}
	}
	return fmt.Errorf("unknown engine brand %q", text)
}

// Backend is the Unity scripting backend.
type Backend uint8

const (
	BackendUnknown Backend = iota
	Mono
	IL2CPP
)

func (b Backend) String() string {
	switch b {
	case Mono:
		return "Mono"
	case IL2CPP:
		return "IL2CPP"
	}
	return "unknown"
}

func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Fingerprint identifies the engine that built an executable.
type Fingerprint struct {
	Brand   Brand    `json:"brand" yaml:"brand"`
	Version *Version `json:"version,omitempty" yaml:"version,omitempty"`
	// Backend is only set for Unity.
	Backend Backend `json:"scripting_backend,omitempty" yaml:"scripting_backend,omitempty"`
}

// Descriptor is everything known about one game executable.
type Descriptor struct {
	Path   string           `json:"path" yaml:"path"`
	Arch   exe.Architecture `json:"arch" yaml:"arch"`
	OS     exe.OS           `json:"os" yaml:"os"`
	Engine *Fingerprint     `json:"engine,omitempty" yaml:"engine,omitempty"`
}

type detector struct {
	brand  Brand
	detect func(path string) (Fingerprint, bool)
}

// detectors is tried in order.
var detectors = []detector{
	{Unity, detectUnity},
	{Unreal, detectUnreal},
}

// Detect fingerprints the executable at path. The path must already be
// absolute and normalized.
func Detect(path string) (Fingerprint, bool) {
	log := logflags.EngineLogger().WithField("path", path)
	for _, d := range detectors {
		if fp, ok := d.detect(path); ok {
			if fp.Version == nil {
				log.Debugf("detected %s, version unknown", d.brand)
			} else {
				log.Debugf("detected %s %s", d.brand, fp.Version)
			}
			return fp, true
		}
	}
	log.Debug("no engine detected")
	return Fingerprint{}, false
}

// Describe probes the executable header at path and fingerprints its
// engine. Only I/O failures are returned as errors.
func Describe(path string) (Descriptor, error) {
	h, err := exe.Sniff(path)
	if err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{Path: path, Arch: h.Arch, OS: h.OS}
	fp, ok := Detect(path)
	if !ok {
		return d, nil
	}
	d.Engine = &fp
	if fp.Brand == Unity && d.Arch == exe.ArchUnknown {
		d.Arch = unityArchitecture(path)
	}
	return d, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
