package unbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// incrementPattern splits a basename into the shortest possible prefix,
// the first run of digits and the remainder.
var incrementPattern = regexp.MustCompile(`^(.+?)([0-9]+)(.*)$`)

// incrementString increments the first number in a basename. Basenames
// without a number get a "-2" appended, so repeated increments walk
// "foo" -> "foo-2" -> "foo-3" and so on. Leading zeros are not preserved.
func incrementString(s string) string {
	if caps := incrementPattern.FindStringSubmatch(s); caps != nil {
		if num, err := strconv.ParseUint(caps[2], 10, 64); err == nil {
			return caps[1] + strconv.FormatUint(num+1, 10) + caps[3]
		}
	}
	return s + "-2"
}

// renameResolvingConflict moves src to dst. If dst already exists the
// basename is incremented until an unused sibling name is found, so an
// existing path is never overwritten. The path the source ended up at is
// returned.
func renameResolvingConflict(src, dst string) (string, error) {
	// simple case: dst does not exist yet
	if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
		if err := os.Rename(src, dst); err != nil {
			return "", err
		}
		return dst, nil
	}

	dst, err := filepath.Abs(dst)
	if err != nil {
		return "", err
	}
	parent := filepath.Dir(dst)
	basename := filepath.Base(dst)
	for {
		basename = incrementString(basename)
		candidate := filepath.Join(parent, basename)
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			if err := os.Rename(src, candidate); err != nil {
				return "", err
			}
			return candidate, nil
		}
	}
}
