// Package cab implements a reader for Microsoft cabinet (.cab) files. It
// covers single-cabinet sets with store or MSZIP folder compression, which
// is what installer payloads and cabinets embedded in executables use.
// Quantum and LZX folders are rejected.
package cab

import (
	"bufio"
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Signature is the four-byte magic at the start of every cabinet.
const Signature = "MSCF"

const (
	flagPrevCabinet    = 0x0001
	flagNextCabinet    = 0x0002
	flagReservePresent = 0x0004
)

const (
	compressionMask  = 0x000f
	compressionNone  = 0x0000
	compressionMSZIP = 0x0001
)

// iFolder values above this mark files continued from or into another
// cabinet of a multi-cabinet set.
const firstContinuationFolder = 0xfffd

// mszipWindow is the deflate history window carried across MSZIP blocks
// within one folder.
const mszipWindow = 32 << 10

var (
	ErrNotCabinet             = errors.New("cab: missing cabinet signature")
	ErrUnsupportedCompression = errors.New("cab: unsupported folder compression")
)

type cfHeader struct {
	Signature    [4]byte
	Reserved1    uint32
	CbCabinet    uint32
	Reserved2    uint32
	CoffFiles    uint32
	Reserved3    uint32
	VersionMinor uint8
	VersionMajor uint8
	CFolders     uint16
	CFiles       uint16
	Flags        uint16
	SetID        uint16
	ICabinet     uint16
}

type folder struct {
	dataOffset  uint32
	dataCount   uint16
	compression uint16
	decoded     []byte
}

// File is one entry of a cabinet.
type File struct {
	// Name is the stored path, with the cabinet's native backslash
	// separators preserved.
	Name string

	// Size is the uncompressed size in bytes.
	Size uint32

	// Continued marks files spanning into another cabinet of a set; their
	// content is not available from this cabinet alone.
	Continued bool

	folder *folder
	offset uint32
}

// Cabinet gives access to the files of a single cabinet.
type Cabinet struct {
	Files []*File

	r           io.ReaderAt
	size        int64
	folders     []*folder
	dataReserve uint8
}

// New parses the cabinet structure from r. Offsets inside the cabinet are
// relative to the start of r, so a cabinet embedded in a larger file can be
// opened through an io.SectionReader.
func New(r io.ReaderAt, size int64) (*Cabinet, error) {
	br := bufio.NewReader(io.NewSectionReader(r, 0, size))

	var h cfHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("cab: short header: %w", err)
	}
	if string(h.Signature[:]) != Signature {
		return nil, ErrNotCabinet
	}

	c := &Cabinet{r: r, size: size}

	var folderReserve uint8
	if h.Flags&flagReservePresent != 0 {
		var headerReserve uint16
		if err := binary.Read(br, binary.LittleEndian, &headerReserve); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &folderReserve); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &c.dataReserve); err != nil {
			return nil, err
		}
		if _, err := br.Discard(int(headerReserve)); err != nil {
			return nil, err
		}
	}
	if h.Flags&flagPrevCabinet != 0 {
		if err := skipCString(br, 2); err != nil {
			return nil, err
		}
	}
	if h.Flags&flagNextCabinet != 0 {
		if err := skipCString(br, 2); err != nil {
			return nil, err
		}
	}

	for i := 0; i < int(h.CFolders); i++ {
		var fh struct {
			CoffCabStart uint32
			CCFData      uint16
			TypeCompress uint16
		}
		if err := binary.Read(br, binary.LittleEndian, &fh); err != nil {
			return nil, fmt.Errorf("cab: short folder table: %w", err)
		}
		if _, err := br.Discard(int(folderReserve)); err != nil {
			return nil, err
		}
		c.folders = append(c.folders, &folder{
			dataOffset:  fh.CoffCabStart,
			dataCount:   fh.CCFData,
			compression: fh.TypeCompress,
		})
	}

	fr := bufio.NewReader(io.NewSectionReader(r, int64(h.CoffFiles), size-int64(h.CoffFiles)))
	for i := 0; i < int(h.CFiles); i++ {
		var eh struct {
			CbFile          uint32
			UoffFolderStart uint32
			IFolder         uint16
			Date            uint16
			Time            uint16
			Attribs         uint16
		}
		if err := binary.Read(fr, binary.LittleEndian, &eh); err != nil {
			return nil, fmt.Errorf("cab: short file table: %w", err)
		}
		name, err := fr.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("cab: unterminated file name: %w", err)
		}
		f := &File{
			Name:   strings.TrimSuffix(name, "\x00"),
			Size:   eh.CbFile,
			offset: eh.UoffFolderStart,
		}
		if eh.IFolder >= firstContinuationFolder {
			f.Continued = true
		} else if int(eh.IFolder) < len(c.folders) {
			f.folder = c.folders[eh.IFolder]
		} else {
			return nil, fmt.Errorf("cab: file %q references folder %d of %d", f.Name, eh.IFolder, len(c.folders))
		}
		c.Files = append(c.Files, f)
	}

	return c, nil
}

// Open returns a reader over the uncompressed content of f.
func (c *Cabinet) Open(f *File) (io.Reader, error) {
	if f.Continued || f.folder == nil {
		return nil, fmt.Errorf("cab: %q continues in another cabinet", f.Name)
	}
	content, err := c.folderContent(f.folder)
	if err != nil {
		return nil, err
	}
	end := int64(f.offset) + int64(f.Size)
	if end > int64(len(content)) {
		return nil, fmt.Errorf("cab: %q exceeds folder data", f.Name)
	}
	return bytes.NewReader(content[f.offset:end]), nil
}

// folderContent decompresses all CFDATA blocks of a folder once and caches
// the result; files within a folder are sub-slices of this stream.
func (c *Cabinet) folderContent(fo *folder) ([]byte, error) {
	if fo.decoded != nil {
		return fo.decoded, nil
	}

	compression := fo.compression & compressionMask
	if compression != compressionNone && compression != compressionMSZIP {
		return nil, ErrUnsupportedCompression
	}

	var out bytes.Buffer
	pos := int64(fo.dataOffset)
	for i := 0; i < int(fo.dataCount); i++ {
		var dh struct {
			Csum     uint32
			CbData   uint16
			CbUncomp uint16
		}
		hdr := make([]byte, 8)
		if _, err := c.r.ReadAt(hdr, pos); err != nil {
			return nil, fmt.Errorf("cab: short data block header: %w", err)
		}
		if err := binary.Read(bytes.NewReader(hdr), binary.LittleEndian, &dh); err != nil {
			return nil, err
		}
		pos += 8 + int64(c.dataReserve)

		data := make([]byte, dh.CbData)
		if _, err := c.r.ReadAt(data, pos); err != nil {
			return nil, fmt.Errorf("cab: short data block: %w", err)
		}
		pos += int64(dh.CbData)

		switch compression {
		case compressionNone:
			out.Write(data)
		case compressionMSZIP:
			if len(data) < 2 || data[0] != 'C' || data[1] != 'K' {
				return nil, fmt.Errorf("cab: data block %d lacks MSZIP signature", i)
			}
			// the deflate history carries across blocks within a folder
			dict := out.Bytes()
			if len(dict) > mszipWindow {
				dict = dict[len(dict)-mszipWindow:]
			}
			fr := flate.NewReaderDict(bytes.NewReader(data[2:]), dict)
			block := make([]byte, dh.CbUncomp)
			if _, err := io.ReadFull(fr, block); err != nil {
				fr.Close()
				return nil, fmt.Errorf("cab: MSZIP block %d: %w", i, err)
			}
			fr.Close()
			out.Write(block)
		}
	}

	fo.decoded = out.Bytes()
	return fo.decoded, nil
}

func skipCString(br *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := br.ReadString(0); err != nil {
			return err
		}
	}
	return nil
}
