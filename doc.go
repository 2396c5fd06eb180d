// Package unbox unpacks archives of unknown format into a destination
// directory, guaranteeing that exactly one item (single file or folder) is
// created, with no partial state visible and no overwriting.
//
// The archive type is determined from the file contents first, peeling at
// most one layer of compression, and falls back to filename suffixes via
// [DetectFormat]. Extraction goes through a disposable scratch directory
// owned by a [Workspace]; [Workspace.Commit] flattens single-root archives
// and atomically publishes the result under a conflict-free name.
package unbox
