package unbox

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen bounds how much of a file (and of its decompressed prefix) is
// read for content detection.
const sniffLen = 128 << 10

// baseMimetypes are uninformative classifications the ancestor walk stops
// at. Anything more specific wins over them.
var baseMimetypes = map[string]bool{
	"application/octet-stream": true,
	"text/plain":               true,
	"inode/directory":          true,
}

// mimetypePE is the classification of Windows executables, which may carry
// a cabinet payload appended after the last section.
const mimetypePE = "application/vnd.microsoft.portable-executable"

// byMimetype maps normalized container mimetypes to archive types. Pure
// compressor mimetypes are intentionally absent; they are peeled separately.
var byMimetype = map[string]ArchiveType{
	"application/zip":                   TypeZip,
	"application/x-tar":                 TypeTar,
	"application/x-archive":             TypeAr,
	"application/vnd.ms-cab-compressed": TypeCab,
	"application/x-rar-compressed":      TypeRar,
	"application/x-7z-compressed":       TypeSevenZip,
}

// bySuffix is the ordered filename fallback, consulted only when content
// sniffing yields nothing. First matching rule wins.
var bySuffix = []struct {
	pattern *regexp.Regexp
	typ     ArchiveType
}{
	{regexp.MustCompile(`(?i)\.ar?$`), TypeAr},
	{regexp.MustCompile(`(?i)\.zip$`), TypeZip},
	{regexp.MustCompile(`(?i)\.tar$`), TypeTar},
	{regexp.MustCompile(`(?i)\.t(ar\.gz|gz)$`), TypeTarGz},
	{regexp.MustCompile(`(?i)\.t(ar\.xz|xz)$`), TypeTarXz},
	{regexp.MustCompile(`(?i)\.t(ar\.bz2|bz2?)$`), TypeTarBz2},
	{regexp.MustCompile(`(?i)\.t(ar\.zst|zst)$`), TypeTarZst},
	{regexp.MustCompile(`(?i)\.tar\.lz4$`), TypeTarLz4},
	{regexp.MustCompile(`(?i)\.cab$`), TypeCab},
	{regexp.MustCompile(`(?i)\.rar$`), TypeRar},
	{regexp.MustCompile(`(?i)\.7z$`), TypeSevenZip},
}

// DetectFormat determines the archive type for the given path. Content
// sniffing runs first and is authoritative regardless of the file's
// extension; the filename fallback only applies when the content yields no
// match. I/O errors during sniffing degrade to the fallback rather than
// propagate.
func DetectFormat(path string) (ArchiveType, bool) {
	if t, ok := detectByContent(path); ok {
		return t, true
	}
	return detectByFilename(path)
}

func detectByFilename(path string) (ArchiveType, bool) {
	filename := filepath.Base(path)
	for _, rule := range bySuffix {
		if rule.pattern.MatchString(filename) {
			return rule.typ, true
		}
	}
	return 0, false
}

func detectByContent(path string) (ArchiveType, bool) {
	buf, err := readSniffPrefix(path)
	if err != nil {
		return 0, false
	}
	mt := normalizedMimetype(buf)

	// a direct container hit settles it; compressor mimetypes are handled
	// below so a gzip-compressed tarball is never classified as bare gzip
	if t, ok := byMimetype[mt]; ok {
		return t, true
	}

	if mt == mimetypePE {
		if hasEmbeddedCabinet(path) {
			return TypeCab, true
		}
		return 0, false
	}

	// peel one level of compression and test for an interior tar; deeper
	// nesting is deliberately not detected
	compression, ok := compressionForMimetype(mt)
	if !ok {
		return 0, false
	}
	interior, found := detectBehindCompression(buf, compression)
	return compression.compositeType(interior, found)
}

// detectBehindCompression decompresses a bounded prefix of buf and re-runs
// mimetype classification on the decompressed bytes, exactly once.
func detectBehindCompression(buf []byte, compression Compression) (ArchiveType, bool) {
	rc, err := compression.NewReader(bytes.NewReader(buf))
	if err != nil {
		return 0, false
	}
	defer rc.Close()

	inner := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, inner)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, false
	}
	if n == 0 {
		return 0, false
	}
	t, ok := byMimetype[normalizedMimetype(inner[:n])]
	return t, ok
}

func readSniffPrefix(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

// normalizedMimetype classifies buf and walks the ancestor chain upward to
// the most specific ancestor that is not an uninformative base type. An
// office document classified below application/zip therefore normalizes to
// the zip container itself.
func normalizedMimetype(buf []byte) string {
	mt := mimetype.Detect(buf)
	for parent := mt.Parent(); parent != nil && !baseMimetypes[plainMimetype(parent.String())]; parent = parent.Parent() {
		mt = parent
	}
	return plainMimetype(mt.String())
}

// plainMimetype strips mimetype parameters such as a charset.
func plainMimetype(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}
