package unbox

import (
	"context"

	"github.com/bodgit/sevenzip"
)

// sevenZipArchive reads a 7z archive. 7z carries an entry index, so the
// total uncompressed size is known up front and progress is counted on the
// output side.
type sevenZipArchive struct {
	path      string
	rc        *sevenzip.ReadCloser
	totalSize int64
}

func openSevenZip(path string) (*sevenZipArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	var totalSize int64
	for _, f := range rc.File {
		if !f.FileInfo().IsDir() {
			totalSize += f.FileInfo().Size()
		}
	}
	return &sevenZipArchive{
		path:      path,
		rc:        rc,
		totalSize: totalSize,
	}, nil
}

func (a *sevenZipArchive) Path() string {
	return a.path
}

func (a *sevenZipArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *sevenZipArchive) Unpack(ctx context.Context, ws *Workspace) error {
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

		if f.FileInfo().IsDir() {
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
