package unbox

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"syscall"
)

// Archive is the capability interface implemented once per supported
// container format. An Archive is created by [ArchiveType.Open], consumed
// exactly once by Unpack and then discarded.
type Archive interface {
	// Path returns the canonical path of the archive source on disk.
	Path() string

	// TotalSize returns the number of bytes the progress indicator counts
	// towards completion, if known. Formats with an indexable directory of
	// entries report the summed uncompressed entry sizes; forward-only
	// stream formats report the archive file's own size on disk instead.
	TotalSize() (int64, bool)

	// Unpack streams all entries of the archive into the workspace's
	// scratch directory.
	Unpack(ctx context.Context, ws *Workspace) error
}

// sanitizeEntryName normalizes an archive-native entry path to a relative
// slash-free-of-surprises path under the scratch root. Entries with a
// parent-directory, absolute, or drive-prefix component are rejected, as is
// the bare current-directory entry. Rejection means skip, never error; this
// check guards against path traversal from adversarial archive contents and
// is applied identically across all formats.
func sanitizeEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", false
	}
	if len(name) >= 2 && name[1] == ':' {
		return "", false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", false
		}
	}
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." || rel == "" || filepath.IsAbs(rel) {
		return "", false
	}
	return rel, true
}

// copyWithRetry copies src to dst in fixed-size chunks, advancing progress
// by the bytes written. Interrupted reads are retried transparently and
// never surface as errors.
func copyWithRetry(dst io.Writer, src io.Reader, progress *progressIndicator) (int64, error) {
	buf := make([]byte, 128<<10)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil {
				progress.Add(int64(n))
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return written, nil
		case errors.Is(err, syscall.EINTR):
		default:
			return written, err
		}
	}
}

// progressReader counts bytes read off the underlying reader towards the
// progress indicator. Used by stream formats that measure progress on the
// (possibly compressed) input side.
type progressReader struct {
	r        io.Reader
	progress *progressIndicator
}

func (pr *progressReader) Read(b []byte) (int, error) {
	for {
		n, err := pr.r.Read(b)
		if n > 0 {
			pr.progress.Add(int64(n))
		}
		if n == 0 && err != nil && errors.Is(err, syscall.EINTR) {
			continue
		}
		return n, err
	}
}
