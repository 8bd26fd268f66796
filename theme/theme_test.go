package theme

import (
	"strings"
	"testing"
)

const sampleGPL = `GIMP Palette
Name: duo
Columns: 2
# comment
  0   0   0	black
255 255 255	white
300  10  10	out of range
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(sampleGPL))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "duo" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Errorf("Lookup(0.5) = %v", got)
	}
	if p.Lookup(-1) != p.Colors[0] || p.Lookup(2) != p.Colors[1] {
		t.Error("Lookup does not clamp")
	}
	if p.Index(9) != p.Colors[1] {
		t.Error("Index does not clamp")
	}
}

func TestParseGPLEmpty(t *testing.T) {
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\nName: none\n")); err == nil {
		t.Error("empty palette accepted")
	}
}

func TestLoadFallsBack(t *testing.T) {
	th, err := Load("")
	if err != nil || th.Palette.Name != "plasma" {
		t.Errorf("Load(\"\") = %v, %v", th.Palette.Name, err)
	}
	th, err = Load("/nonexistent/palette.gpl")
	if err == nil || th == nil || th.Palette == nil {
		t.Errorf("missing file: theme %v, err %v", th, err)
	}
	if got := string(th.Accent()); !strings.HasPrefix(got, "#") || len(got) != 7 {
		t.Errorf("Accent = %q", got)
	}
}
