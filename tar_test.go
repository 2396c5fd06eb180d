package unbox

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// buildHostileTarGz creates a gzipped tarball with a real directory tree and
// two path-traversal entries that must be skipped.
func buildHostileTarGz(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := tw.WriteHeader(&tar.Header{
		Name: "project/", Typeflag: tar.TypeDir, Mode: 0o755,
	}); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"project/readme.md":    "# readme",
		"project/sub/data.bin": "\x00\x01\x02\x03binary",
	} {
		if err := tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o644, Size: int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(tw, content); err != nil {
			t.Fatal(err)
		}
	}
	for _, evil := range []string{"../../etc/passwd", "/etc/passwd"} {
		if err := tw.WriteHeader(&tar.Header{
			Name: evil, Mode: 0o644, Size: 4,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(tw, "pwnd"); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	return writeTestFile(t, dir, "project.tar.gz", gzipBytes(t, buf.Bytes()))
}

func TestTarGzRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	dst := t.TempDir()
	path := buildHostileTarGz(t, srcDir)

	typ, ok := DetectFormat(path)
	if !ok || typ != TypeTarGz {
		t.Fatalf("detected %v/%v, want gzip-compressed tarball", typ, ok)
	}
	archive, err := typ.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if total, known := archive.TotalSize(); !known || total <= 0 {
		t.Errorf("total size = %d/%v, want the on-disk file size", total, known)
	}

	ws, err := NewWorkspace(archive, dst)
	if err != nil {
		t.Fatal(err)
	}
	if err := archive.Unpack(context.Background(), ws); err != nil {
		t.Fatal(err)
	}
	if skipped := ws.Stats().SkippedEntries; skipped != 2 {
		t.Errorf("skipped %d entries, want 2", skipped)
	}

	published, err := ws.Commit()
	if err != nil {
		t.Fatal(err)
	}
	// single root directory is flattened to its own name
	if want := filepath.Join(dst, "project"); published != want {
		t.Errorf("published %q, want %q", published, want)
	}

	for rel, want := range map[string]string{
		"readme.md":    "# readme",
		"sub/data.bin": "\x00\x01\x02\x03binary",
	} {
		data, err := os.ReadFile(filepath.Join(published, rel))
		if err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
		if string(data) != want {
			t.Errorf("%s content %q, want %q", rel, data, want)
		}
	}

	// nothing may leak outside the destination tree
	if _, err := os.Stat(filepath.Join(dst, "etc")); !os.IsNotExist(err) {
		t.Errorf("traversal entry escaped into the destination")
	}
	if _, err := os.Stat(filepath.Join(published, "etc", "passwd")); !os.IsNotExist(err) {
		t.Errorf("traversal entry was written under the published root")
	}
}

func TestTarUncompressed(t *testing.T) {
	dir := t.TempDir()
	dst := t.TempDir()
	path := writeTestFile(t, dir, "flat.tar", tarBytes(t, map[string]string{
		"one.txt": "1",
		"two.txt": "2",
	}))

	archive, err := TypeTar.Open(path)
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
	// two top-level entries get wrapped in a folder named after the archive
	if want := filepath.Join(dst, "flat"); published != want {
		t.Errorf("published %q, want %q", published, want)
	}
	for _, name := range []string{"one.txt", "two.txt"} {
		if _, err := os.Stat(filepath.Join(published, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}
