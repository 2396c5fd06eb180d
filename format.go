package unbox

import "errors"

// ErrUnsupportedFormat is returned when neither content sniffing nor the
// filename fallback can determine an archive type for an input.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// ArchiveType is the closed set of supported archive formats. Exactly one
// or none is assigned per input path; there is no plugin mechanism.
type ArchiveType int

const (
	TypeAr ArchiveType = iota
	TypeZip
	TypeTar
	TypeTarGz
	TypeTarXz
	TypeTarBz2
	TypeTarZst
	TypeTarLz4
	TypeCab
	TypeRar
	TypeSevenZip
	TypeFileGz
	TypeFileXz
	TypeFileBz2
	TypeFileZst
	TypeFileLz4
)

// AllTypes enumerates the supported archive types in declaration order.
func AllTypes() []ArchiveType {
	return []ArchiveType{
		TypeAr, TypeZip, TypeTar,
		TypeTarGz, TypeTarXz, TypeTarBz2, TypeTarZst, TypeTarLz4,
		TypeCab, TypeRar, TypeSevenZip,
		TypeFileGz, TypeFileXz, TypeFileBz2, TypeFileZst, TypeFileLz4,
	}
}

func (t ArchiveType) String() string {
	switch t {
	case TypeAr:
		return "unix ar archive"
	case TypeZip:
		return "zip archive"
	case TypeTar:
		return "uncompressed tarball"
	case TypeTarGz:
		return "gzip-compressed tarball"
	case TypeTarXz:
		return "xz-compressed tarball"
	case TypeTarBz2:
		return "bzip2-compressed tarball"
	case TypeTarZst:
		return "zstd-compressed tarball"
	case TypeTarLz4:
		return "lz4-compressed tarball"
	case TypeCab:
		return "microsoft cabinet"
	case TypeRar:
		return "rar archive"
	case TypeSevenZip:
		return "7z archive"
	case TypeFileGz:
		return "gzip-compressed file"
	case TypeFileXz:
		return "xz-compressed file"
	case TypeFileBz2:
		return "bzip2-compressed file"
	case TypeFileZst:
		return "zstd-compressed file"
	case TypeFileLz4:
		return "lz4-compressed file"
	default:
		return "unknown"
	}
}

// Open opens the given path as an archive of the type. The returned Archive
// is consumed exactly once by Unpack.
func (t ArchiveType) Open(path string) (Archive, error) {
	switch t {
	case TypeAr:
		return openAr(path)
	case TypeZip:
		return openZip(path)
	case TypeTar:
		return openTar(path, NoCompression)
	case TypeTarGz:
		return openTar(path, Gzip)
	case TypeTarXz:
		return openTar(path, Xz)
	case TypeTarBz2:
		return openTar(path, Bzip2)
	case TypeTarZst:
		return openTar(path, Zstd)
	case TypeTarLz4:
		return openTar(path, Lz4)
	case TypeCab:
		return openCabinet(path)
	case TypeRar:
		return openRar(path)
	case TypeSevenZip:
		return openSevenZip(path)
	case TypeFileGz:
		return openSingleFile(path, Gzip)
	case TypeFileXz:
		return openSingleFile(path, Xz)
	case TypeFileBz2:
		return openSingleFile(path, Bzip2)
	case TypeFileZst:
		return openSingleFile(path, Zstd)
	case TypeFileLz4:
		return openSingleFile(path, Lz4)
	default:
		return nil, ErrUnsupportedFormat
	}
}
