package unbox

import (
	"errors"
	"testing"
)

func TestArchiveTypeString(t *testing.T) {
	seen := map[string]ArchiveType{}
	for _, typ := range AllTypes() {
		name := typ.String()
		if name == "" || name == "unknown" {
			t.Errorf("type %d has no display name", typ)
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("types %d and %d share the name %q", prev, typ, name)
		}
		seen[name] = typ
	}
	if got := ArchiveType(-1).String(); got != "unknown" {
		t.Errorf("out-of-range type String() = %q", got)
	}
}

func TestOpenUnknownType(t *testing.T) {
	if _, err := ArchiveType(-1).Open("whatever"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Open = %v, want ErrUnsupportedFormat", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	for _, typ := range []ArchiveType{TypeZip, TypeTar, TypeCab, TypeFileGz} {
		if _, err := typ.Open("/nonexistent/archive"); err == nil {
			t.Errorf("%v.Open of a missing file succeeded", typ)
		}
	}
}
