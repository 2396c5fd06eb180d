package unbox

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"io"
	"os"
)

// tarArchive reads an optionally compressed tarball. Tar is a forward-only
// stream, so the progress total is the archive file's own size on disk and
// progress is counted on the input side.
type tarArchive struct {
	path        string
	compression Compression
	totalSize   int64
}

func openTar(path string, compression Compression) (*tarArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &tarArchive{
		path:        path,
		compression: compression,
		totalSize:   fi.Size(),
	}, nil
}

func (a *tarArchive) Path() string {
	return a.path
}

func (a *tarArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *tarArchive) Unpack(ctx context.Context, ws *Workspace) error {
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

	tr := tar.NewReader(rc)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name, ok := sanitizeEntryName(hdr.Name)
		if !ok {
			ws.SkipEntry(hdr.Name, "unsafe entry path")
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			ws.ReportFile(name)
			if err := ws.EnsureDir(name); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := ws.StoreFile(name, tr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := ws.CreateSymlink(name, hdr.Linkname); err != nil {
				return err
			}
		default:
			ws.SkipEntry(hdr.Name, "unsupported entry type")
		}
	}
}
