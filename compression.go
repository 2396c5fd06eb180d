package unbox

import (
	"bufio"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression identifies the outer compression of an input, if any.
type Compression int

const (
	NoCompression Compression = iota
	Gzip
	Xz
	Bzip2
	Zstd
	Lz4
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Xz:
		return "xz"
	case Bzip2:
		return "bzip2"
	case Zstd:
		return "zstd"
	case Lz4:
		return "lz4"
	default:
		return "uncompressed"
	}
}

// compressionForMimetype maps the mimetype of a pure compressor to its
// Compression. Container mimetypes are not handled here.
func compressionForMimetype(mt string) (Compression, bool) {
	switch mt {
	case "application/gzip":
		return Gzip, true
	case "application/x-xz":
		return Xz, true
	case "application/x-bzip2":
		return Bzip2, true
	case "application/zstd":
		return Zstd, true
	case "application/x-lz4":
		return Lz4, true
	default:
		return NoCompression, false
	}
}

// NewReader wraps r for transparent decompression.
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case NoCompression:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case Lz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// tarType returns the composite tarball type for the compression.
func (c Compression) tarType() (ArchiveType, bool) {
	switch c {
	case NoCompression:
		return TypeTar, true
	case Gzip:
		return TypeTarGz, true
	case Xz:
		return TypeTarXz, true
	case Bzip2:
		return TypeTarBz2, true
	case Zstd:
		return TypeTarZst, true
	case Lz4:
		return TypeTarLz4, true
	default:
		return 0, false
	}
}

// singleFileType returns the bare compressed-file type for the compression.
func (c Compression) singleFileType() (ArchiveType, bool) {
	switch c {
	case Gzip:
		return TypeFileGz, true
	case Xz:
		return TypeFileXz, true
	case Bzip2:
		return TypeFileBz2, true
	case Zstd:
		return TypeFileZst, true
	case Lz4:
		return TypeFileLz4, true
	default:
		return 0, false
	}
}

// compositeType combines the compression with an optional interior container
// detected behind it. Only a tar interior forms a composite; anything else
// degrades to the bare compressed-file type.
func (c Compression) compositeType(interior ArchiveType, found bool) (ArchiveType, bool) {
	if found && interior == TypeTar {
		return c.tarType()
	}
	return c.singleFileType()
}

// singleFileArchive models a bare compressed file with no container as a
// one-entry archive. The single member's name is the source filename with
// its compression suffix stripped.
type singleFileArchive struct {
	path        string
	compression Compression
	totalSize   int64
}

func openSingleFile(path string, compression Compression) (*singleFileArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &singleFileArchive{
		path:        path,
		compression: compression,
		totalSize:   fi.Size(),
	}, nil
}

func (a *singleFileArchive) Path() string {
	return a.path
}

func (a *singleFileArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *singleFileArchive) Unpack(ctx context.Context, ws *Workspace) error {
	f, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer f.Close()

	rc, err := a.compression.NewReader(ws.WrapReader(bufio.NewReader(f)))
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	return ws.StoreFile(a.memberName(), rc)
}

// memberName strips the compression suffix from the source filename, with a
// fixed fallback when stripping yields nothing.
func (a *singleFileArchive) memberName() string {
	base := filepath.Base(a.path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "Unknown"
	}
	return name
}

// canonicalPath resolves path to an absolute path with symlinks evaluated.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
