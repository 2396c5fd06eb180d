package unbox

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScratchPrefix is the literal prefix of every scratch directory name, both
// under the system temp root and inside the destination tree. External
// cleanup tooling relies on it to recognize orphaned scratch directories
// after a crash or interrupt.
const ScratchPrefix = ".unbox-"

// ScratchPlacement reports where the scratch directory was created.
type ScratchPlacement int

const (
	// PlacementTempDir places the scratch directory in the platform-wide
	// temporary-files area. Chosen when the atomicity probe shows that a
	// rename from there into the destination stays on one filesystem.
	PlacementTempDir ScratchPlacement = iota

	// PlacementDestination places the scratch directory inside the
	// destination tree itself. The hidden-named folder is transiently
	// visible there, but the commit rename is guaranteed to be atomic.
	PlacementDestination
)

// renameProbe checks whether src can be renamed onto dst and removed again.
// Injectable so tests can force either placement branch.
type renameProbe func(src, dst string) bool

func atomicRenameProbe(src, dst string) bool {
	return os.Rename(src, dst) == nil && os.Remove(dst) == nil
}

// UnpackStats summarizes what a single unpack run wrote into scratch.
type UnpackStats struct {
	Files          int
	Dirs           int
	Symlinks       int
	SkippedEntries int
	Bytes          int64
}

// WorkspaceOption adjusts workspace defaults in an option pattern style.
type WorkspaceOption func(*Workspace)

// WithLogger attaches a logger for debug output. Logging is discarded by
// default.
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(ws *Workspace) {
		ws.logger = logger
	}
}

// WithProgressOutput enables the terminal progress indicator on w. Progress
// rendering is disabled by default.
func WithProgressOutput(w io.Writer) WorkspaceOption {
	return func(ws *Workspace) {
		ws.progressOut = w
	}
}

// withRenameProbe overrides the scratch placement probe. Test seam.
func withRenameProbe(probe renameProbe) WorkspaceOption {
	return func(ws *Workspace) {
		ws.probe = probe
	}
}

// Workspace owns the disposable scratch directory an archive is extracted
// into, the progress indicator, and the commit protocol that publishes the
// extracted content into the destination directory. Nothing written through
// a workspace is visible under a destination-rooted path before Commit.
type Workspace struct {
	archiveBase string
	dst         string
	scratch     string
	placement   ScratchPlacement
	progress    *progressIndicator
	progressOut io.Writer
	probe       renameProbe
	logger      *slog.Logger
	stats       UnpackStats
}

// NewWorkspace creates a workspace for unpacking archive into the
// destination directory dst. The scratch directory is chosen by the
// placement probe; the progress indicator is determinate when the archive
// knows its total size.
func NewWorkspace(archive Archive, dst string, opts ...WorkspaceOption) (*Workspace, error) {
	ws := &Workspace{
		archiveBase: archiveBaseName(archive.Path()),
		probe:       atomicRenameProbe,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(ws)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve destination: %w", err)
	}
	if ws.dst, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("cannot resolve destination: %w", err)
	}

	ws.scratch, ws.placement, err = createScratchDir(ws.dst, ws.probe)
	if err != nil {
		return nil, fmt.Errorf("cannot create scratch directory: %w", err)
	}

	total, known := archive.TotalSize()
	ws.progress = newProgressIndicator(total, known, ws.progressOut)
	ws.logger.Debug("workspace created",
		"scratch", ws.scratch, "destination", ws.dst, "base", ws.archiveBase)
	return ws, nil
}

// archiveBaseName derives the published directory name from the source
// filename stem.
func archiveBaseName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "Archive"
	}
	return stem
}

// createScratchDir picks the scratch root. A uniquely named directory is
// created in the temp area first; if the probe shows it can be renamed
// atomically next to the destination it is kept, otherwise the scratch
// directory is created inside the destination tree where a same-filesystem
// rename is guaranteed.
func createScratchDir(dstDir string, probe renameProbe) (string, ScratchPlacement, error) {
	basename := ScratchPrefix + uuid.NewString()
	tmp := filepath.Join(os.TempDir(), basename)
	dummy := filepath.Join(dstDir, basename)

	if err := os.Mkdir(tmp, 0o755); err == nil {
		if probe(tmp, dummy) {
			if err := os.Mkdir(tmp, 0o755); err != nil {
				return "", 0, err
			}
			return tmp, PlacementTempDir, nil
		}
		os.RemoveAll(tmp)
		os.RemoveAll(dummy)
	}

	inside := filepath.Join(dstDir, basename)
	if err := os.Mkdir(inside, 0o755); err != nil {
		return "", 0, err
	}
	return inside, PlacementDestination, nil
}

// ScratchDir returns the scratch root entries are written under.
func (ws *Workspace) ScratchDir() string {
	return ws.scratch
}

// Placement reports which scratch placement branch was taken.
func (ws *Workspace) Placement() ScratchPlacement {
	return ws.placement
}

// Stats returns counters for the entries written so far.
func (ws *Workspace) Stats() UnpackStats {
	return ws.stats
}

// ReportFile updates the displayed current-file label.
func (ws *Workspace) ReportFile(name string) {
	ws.progress.Describe(name)
}

// WrapReader counts bytes read from r towards the progress indicator.
// Stream formats wrap their source file with it and write entries without
// additional progress accounting.
func (ws *Workspace) WrapReader(r io.Reader) io.Reader {
	return &progressReader{r: r, progress: ws.progress}
}

// CreateFile creates the named file under scratch, creating parent
// directories as needed, and returns the open writable handle. name must be
// a sanitized relative path.
func (ws *Workspace) CreateFile(name string) (*os.File, error) {
	path := filepath.Join(ws.scratch, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	ws.ReportFile(name)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	ws.stats.Files++
	return f, nil
}

// WriteFile streams r into a newly created file under scratch while
// advancing the byte-progress counter. Used by formats that measure
// progress on the uncompressed output side.
func (ws *Workspace) WriteFile(name string, r io.Reader) error {
	f, err := ws.CreateFile(name)
	if err != nil {
		return err
	}
	n, err := copyWithRetry(f, r, ws.progress)
	ws.stats.Bytes += n
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// StoreFile streams r into a newly created file without touching the
// byte-progress counter. Used by formats whose progress is counted on the
// input side through WrapReader.
func (ws *Workspace) StoreFile(name string, r io.Reader) error {
	f, err := ws.CreateFile(name)
	if err != nil {
		return err
	}
	n, err := copyWithRetry(f, r, nil)
	ws.stats.Bytes += n
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// EnsureDir creates the named directory under scratch, parents included,
// without writing data.
func (ws *Workspace) EnsureDir(name string) error {
	if err := os.MkdirAll(filepath.Join(ws.scratch, name), 0o755); err != nil {
		return err
	}
	ws.stats.Dirs++
	return nil
}

// CreateSymlink creates a symlink under scratch when the link target cannot
// escape the scratch root; unsafe targets are skipped.
func (ws *Workspace) CreateSymlink(name, linkname string) error {
	if _, ok := sanitizeEntryName(linkname); !ok {
		ws.SkipEntry(name, "symlink target escapes archive root")
		return nil
	}
	path := filepath.Join(ws.scratch, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(linkname, path); err != nil {
		return err
	}
	ws.stats.Symlinks++
	return nil
}

// SkipEntry records an entry that was rejected rather than written.
// Rejection is silent towards the caller.
func (ws *Workspace) SkipEntry(name, reason string) {
	ws.stats.SkippedEntries++
	ws.logger.Debug("skipping entry", "name", name, "reason", reason)
}

// Commit publishes the extracted content into the destination directory and
// removes the scratch root. If scratch holds exactly one child, that child
// is published directly under its own name (the synthetic wrapper is
// flattened away); otherwise the whole scratch root is published as
// <destination>/<archive base>. Conflicting names are resolved by
// incrementing, never by overwriting. The canonical published path is
// returned.
func (ws *Workspace) Commit() (string, error) {
	ws.progress.Finish()

	entries, err := os.ReadDir(ws.scratch)
	if err != nil {
		return "", fmt.Errorf("cannot enumerate scratch directory: %w", err)
	}

	var src, intended string
	if len(entries) == 1 {
		src = filepath.Join(ws.scratch, entries[0].Name())
		intended = filepath.Join(ws.dst, entries[0].Name())
	} else {
		src = ws.scratch
		intended = filepath.Join(ws.dst, ws.archiveBase)
	}

	final, err := renameResolvingConflict(src, intended)
	if err != nil {
		return "", fmt.Errorf("cannot publish to %s: %w", intended, err)
	}

	// When the scratch root itself was moved, RemoveAll sees nothing and
	// that is fine; otherwise leftover scratch content is purged.
	if err := os.RemoveAll(ws.scratch); err != nil {
		return "", fmt.Errorf("cannot remove scratch directory: %w", err)
	}

	ws.logger.Debug("published", "path", final,
		"files", ws.stats.Files, "dirs", ws.stats.Dirs,
		"skipped", ws.stats.SkippedEntries, "bytes", ws.stats.Bytes)
	return final, nil
}

// Abandon stops progress reporting and leaves the scratch directory in
// place. Used after a mid-extraction failure: the scratch directory is
// inert and disposable, never visible under the destination name.
func (ws *Workspace) Abandon() {
	ws.progress.Finish()
}

// Cleanup stops progress reporting and removes the scratch directory with
// everything in it.
func (ws *Workspace) Cleanup() error {
	ws.progress.Finish()
	return os.RemoveAll(ws.scratch)
}
