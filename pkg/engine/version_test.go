package engine

import (
	"reflect"
	"testing"
)

func TestParseVersion(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Version
		ok   bool
	}{
		{"2021.3.5f1", Version{2021, intp(3), intp(5), "f1", "2021.3.5f1"}, true},
		{"4.27", Version{4, intp(27), nil, "", "4.27"}, true},
		{"5", Version{5, nil, nil, "", "5"}, true},
		{" 2019.4.40f1 ", Version{2019, intp(4), intp(40), "f1", "2019.4.40f1"}, true},
		{"v1.2", Version{}, false},
		{"", Version{}, false},
		{"1.2.3.4", Version{}, false},
	} {
		got, ok := ParseVersion(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseVersion(%q): expected ok=%v; but was %v", tc.in, tc.ok, ok)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseVersion(%q): expected <%#v>; but was <%#v>", tc.in, tc.want, got)
		}
	}
}

func TestVersionString(t *testing.T) {
	if s := NewVersion(4, 27, 2).String(); s != "4.27.2" {
		t.Fatalf("expected <4.27.2>; but was <%s>", s)
	}
	if s := NewVersion(5).Display; s != "5" {
		t.Fatalf("expected <5>; but was <%s>", s)
	}
}

func TestParseUnrealBuild(t *testing.T) {
	for in, want := range map[string]string{
		"+UE4+Release-4.25":  "4.25",
		"++UE5+Release-5.3":  "5.3",
		"+UE4+Main-4.26":     "4.26",
		"+UE5":               "5",
		"+UE4+release-4":     "4",
		"garbage+UE4 suffix": "4",
	} {
		v, ok := parseUnrealBuild(in)
		if !ok || v.String() != want {
			t.Fatalf("parseUnrealBuild(%q): expected <%s>; but was <%s> %v", in, want, v, ok)
		}
	}
	if _, ok := parseUnrealBuild("UE4"); ok {
		t.Fatalf("expected no match without the leading plus")
	}
}

func TestBrandText(t *testing.T) {
	for _, b := range []Brand{Unity, Unreal, Godot, GameMaker} {
		text, _ := b.MarshalText()
		var back Brand
		if err := back.UnmarshalText(text); err != nil || back != b {
			t.Fatalf("text round trip of %v produced %v (%v)", b, back, err)
		}
	}
}
