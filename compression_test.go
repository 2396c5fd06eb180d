package unbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSingleFileUnpack(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog\n")

	cases := []struct {
		name     string
		filename string
		typ      ArchiveType
		compress func(*testing.T, []byte) []byte
		want     string
	}{
		{"gzip", "notes.txt.gz", TypeFileGz, gzipBytes, "notes.txt"},
		{"xz", "notes.txt.xz", TypeFileXz, xzBytes, "notes.txt"},
		{"bzip2", "notes.txt.bz2", TypeFileBz2, bzip2Bytes, "notes.txt"},
		{"zstd", "notes.txt.zst", TypeFileZst, zstdBytes, "notes.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			dst := t.TempDir()
			path := writeTestFile(t, dir, tc.filename, tc.compress(t, content))

			archive, err := tc.typ.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			ws, err := NewWorkspace(archive, dst)
			if err != nil {
				t.Fatal(err)
			}
			if err := archive.Unpack(context.Background(), ws); err != nil {
				t.Fatal(err)
			}
			published, err := ws.Commit()
			if err != nil {
				t.Fatal(err)
			}

			// the single member is flattened directly into the destination
			// under the stripped name
			if want := filepath.Join(dst, tc.want); published != want {
				t.Errorf("published %q, want %q", published, want)
			}
			data, err := os.ReadFile(published)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != string(content) {
				t.Errorf("content mismatch: %q", data)
			}
		})
	}
}

func TestSingleFileMemberNameFallback(t *testing.T) {
	a := &singleFileArchive{path: "/data/.gz", compression: Gzip}
	if got := a.memberName(); got != "Unknown" {
		t.Errorf("memberName = %q, want Unknown", got)
	}
	a = &singleFileArchive{path: "/data/report.xz", compression: Xz}
	if got := a.memberName(); got != "report" {
		t.Errorf("memberName = %q, want report", got)
	}
}

func TestCompressionForMimetype(t *testing.T) {
	cases := []struct {
		mt   string
		want Compression
		ok   bool
	}{
		{"application/gzip", Gzip, true},
		{"application/x-xz", Xz, true},
		{"application/x-bzip2", Bzip2, true},
		{"application/zstd", Zstd, true},
		{"application/x-lz4", Lz4, true},
		{"application/zip", NoCompression, false},
	}
	for _, tc := range cases {
		got, ok := compressionForMimetype(tc.mt)
		if got != tc.want || ok != tc.ok {
			t.Errorf("compressionForMimetype(%q) = %v/%v, want %v/%v", tc.mt, got, ok, tc.want, tc.ok)
		}
	}
}
