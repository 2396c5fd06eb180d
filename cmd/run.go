package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/unboxd/unbox"
)

// CLI are the cli parameters for the unbox binary
type CLI struct {
	Archives    []string         `arg:"" optional:"" name:"archives" help:"The archives to unpack." type:"existingfile"`
	Analyze     bool             `help:"For each archive print out the detected format."`
	ListFormats bool             `help:"List all supported formats."`
	SkipUnknown bool             `help:"Skip silently over files that are not known archives."`
	Destination string           `short:"d" default:"." help:"Directory to unpack into." type:"existingdir"`
	Verbose     bool             `short:"v" optional:"" help:"Verbose logging."`
	Version     kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Run is the entrypoint into unbox as a cli tool
func Run(version, commit, date string) {
	ctx := context.Background()
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Description("unbox unpacks archives. It detects the format from the file contents, "+
			"unpacks through a temporary location and ensures that exactly one item "+
			"(single file or folder) is created in the destination."),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	if cli.ListFormats {
		listFormats()
		return
	}
	if len(cli.Archives) == 0 {
		kctx.PrintUsage(false)
		os.Exit(1)
	}

	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if cli.Analyze {
		analyzeArchives(cli.Archives, cli.SkipUnknown)
		return
	}
	if err := unpackArchives(ctx, logger, cli.Archives, cli.Destination, cli.SkipUnknown); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

// listFormats prints the display name of every supported archive type.
func listFormats() {
	fmt.Println("Supported file formats:")
	for _, t := range unbox.AllTypes() {
		fmt.Printf("- %s\n", color.CyanString(t.String()))
	}
}

// analyzeArchives reports each input's detected type without extracting.
func analyzeArchives(paths []string, skipUnknown bool) {
	for _, path := range paths {
		if t, ok := unbox.DetectFormat(path); ok {
			fmt.Printf("%s: %s\n", path, color.CyanString(t.String()))
		} else if !skipUnknown {
			fmt.Printf("%s: %s\n", path, color.RedString("unsupported"))
		}
	}
}

// unpackArchives extracts every input sequentially, printing one published
// path per line. Unknown inputs abort the batch unless skipUnknown is set;
// the first unrecoverable error halts processing, leaving earlier commits
// in place.
func unpackArchives(ctx context.Context, logger *slog.Logger, paths []string, dst string, skipUnknown bool) error {
	var archives []unbox.Archive
	for _, path := range paths {
		t, ok := unbox.DetectFormat(path)
		if !ok {
			if skipUnknown {
				logger.Debug("skipping unknown archive", "path", path)
				continue
			}
			return fmt.Errorf("could not determine archive type of %q: %w", path, unbox.ErrUnsupportedFormat)
		}
		logger.Debug("detected format", "path", path, "format", t)
		archive, err := t.Open(path)
		if err != nil {
			return fmt.Errorf("cannot open %q: %w", path, err)
		}
		archives = append(archives, archive)
	}

	for _, archive := range archives {
		ws, err := unbox.NewWorkspace(archive, dst,
			unbox.WithLogger(logger),
			unbox.WithProgressOutput(os.Stderr),
		)
		if err != nil {
			return err
		}
		if err := archive.Unpack(ctx, ws); err != nil {
			// the scratch directory is inert and disposable; it is left
			// behind for inspection rather than rolled back
			ws.Abandon()
			return fmt.Errorf("cannot unpack %q: %w", archive.Path(), err)
		}
		published, err := ws.Commit()
		if err != nil {
			return err
		}
		fmt.Println(published)
	}
	return nil
}
