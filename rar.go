package unbox

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/nwaples/rardecode"
)

// rarArchive reads a rar archive as a forward-only stream. The progress
// total is the file's size on disk, counted on the input side.
type rarArchive struct {
	path      string
	totalSize int64
}

func openRar(path string) (*rarArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &rarArchive{path: path, totalSize: fi.Size()}, nil
}

func (a *rarArchive) Path() string {
	return a.path
}

func (a *rarArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *rarArchive) Unpack(ctx context.Context, ws *Workspace) error {
	f, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer f.Close()

	rdr, err := rardecode.NewReader(ws.WrapReader(bufio.NewReader(f)), "")
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := rdr.Next()
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

		if hdr.IsDir {
			ws.ReportFile(name)
			if err := ws.EnsureDir(name); err != nil {
				return err
			}
			continue
		}
		if err := ws.StoreFile(name, rdr); err != nil {
			return err
		}
	}
}
