package unbox

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/blakesmith/ar"
)

// arArchive reads a unix ar archive. Like tar it is a forward-only stream:
// the progress total is the file's size on disk, counted on the input side.
type arArchive struct {
	path      string
	totalSize int64
}

func openAr(path string) (*arArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &arArchive{path: path, totalSize: fi.Size()}, nil
}

func (a *arArchive) Path() string {
	return a.path
}

func (a *arArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *arArchive) Unpack(ctx context.Context, ws *Workspace) error {
	f, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer f.Close()

	rdr := ar.NewReader(ws.WrapReader(bufio.NewReader(f)))
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

		// GNU ar terminates names with a slash; the symbol table and long
		// name index have no usable filename at all
		rawName := strings.TrimRight(strings.TrimRight(hdr.Name, " "), "/")
		if rawName == "" {
			ws.SkipEntry(hdr.Name, "ar metadata entry")
			continue
		}
		name, ok := sanitizeEntryName(rawName)
		if !ok {
			ws.SkipEntry(hdr.Name, "unsafe entry path")
			continue
		}

		if err := ws.StoreFile(name, rdr); err != nil {
			return err
		}
	}
}
