package unbox

import (
	"archive/zip"
	"context"
	"io/fs"
	"strings"
)

// zipArchive reads a zip file. Zip carries a central directory, so the
// total uncompressed size is known up front and progress is counted on the
// output side.
type zipArchive struct {
	path      string
	rc        *zip.ReadCloser
	totalSize int64
}

func openZip(path string) (*zipArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	var totalSize int64
	for _, f := range rc.File {
		totalSize += int64(f.UncompressedSize64)
	}
	return &zipArchive{
		path:      path,
		rc:        rc,
		totalSize: totalSize,
	}, nil
}

func (a *zipArchive) Path() string {
	return a.path
}

func (a *zipArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *zipArchive) Unpack(ctx context.Context, ws *Workspace) error {
	defer a.rc.Close()

	for _, f := range a.rc.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, ok := sanitizeEntryName(f.Name)
		if !ok {
			ws.SkipEntry(f.Name, "unsafe entry path")
			continue
		}

		// directory membership is carried in the stored unix permission
		// bits or a trailing separator, not in a dedicated flag
		if f.Mode()&fs.ModeDir != 0 || strings.HasSuffix(f.Name, "/") {
			ws.ReportFile(name)
			if err := ws.EnsureDir(name); err != nil {
				return err
			}
			continue
		}

		entry, err := f.Open()
		if err != nil {
			return err
		}
		err = ws.WriteFile(name, entry)
		entry.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
