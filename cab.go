package unbox

import (
	"context"
	"debug/pe"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/unboxd/unbox/internal/cab"
)

// cabinetArchive reads a Microsoft cabinet, either as a standalone .cab
// file or as a payload appended to a Windows executable after the last
// section's raw data. The cabinet's file table is read at open time, so the
// total uncompressed size is known and progress is counted on the output
// side.
type cabinetArchive struct {
	path      string
	f         *os.File
	cabinet   *cab.Cabinet
	totalSize int64
}

func openCabinet(path string) (*cabinetArchive, error) {
	path, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	cabinet, err := cab.New(f, fi.Size())
	if errors.Is(err, cab.ErrNotCabinet) {
		offset, ok := embeddedCabinetOffset(f)
		if !ok {
			f.Close()
			return nil, fmt.Errorf("no cabinet in %s", path)
		}
		cabinet, err = cab.New(io.NewSectionReader(f, offset, fi.Size()-offset), fi.Size()-offset)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	var totalSize int64
	for _, file := range cabinet.Files {
		if !file.Continued {
			totalSize += int64(file.Size)
		}
	}
	return &cabinetArchive{
		path:      path,
		f:         f,
		cabinet:   cabinet,
		totalSize: totalSize,
	}, nil
}

func (a *cabinetArchive) Path() string {
	return a.path
}

func (a *cabinetArchive) TotalSize() (int64, bool) {
	return a.totalSize, true
}

func (a *cabinetArchive) Unpack(ctx context.Context, ws *Workspace) error {
	defer a.f.Close()

	for _, file := range a.cabinet.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if file.Continued {
			ws.SkipEntry(file.Name, "continues in another cabinet")
			continue
		}

		name, ok := sanitizeEntryName(file.Name)
		if !ok {
			ws.SkipEntry(file.Name, "unsafe entry path")
			continue
		}

		rdr, err := a.cabinet.Open(file)
		if err != nil {
			return err
		}
		if err := ws.WriteFile(name, rdr); err != nil {
			return err
		}
	}
	return nil
}

// embeddedCabinetOffset locates a cabinet appended to a Windows executable:
// the offset immediately following the last section's raw data must carry
// the cabinet signature.
func embeddedCabinetOffset(r io.ReaderAt) (int64, bool) {
	pf, err := pe.NewFile(r)
	if err != nil {
		return 0, false
	}
	offset := peOverlayOffset(pf)
	if offset <= 0 {
		return 0, false
	}
	sig := make([]byte, len(cab.Signature))
	if _, err := r.ReadAt(sig, offset); err != nil {
		return 0, false
	}
	if string(sig) != cab.Signature {
		return 0, false
	}
	return offset, true
}

// peOverlayOffset computes the file offset of the first byte past all
// section raw data.
func peOverlayOffset(pf *pe.File) int64 {
	var end int64
	for _, s := range pf.Sections {
		if sectionEnd := int64(s.Offset) + int64(s.Size); sectionEnd > end {
			end = sectionEnd
		}
	}
	return end
}

// hasEmbeddedCabinet reports whether the executable at path carries a
// cabinet payload. Used by content detection.
func hasEmbeddedCabinet(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, ok := embeddedCabinetOffset(f)
	return ok
}
