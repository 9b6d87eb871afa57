// Package profile parses the line-oriented profile grammar of spec.md §6
// into a config.Config, preserving kbackup's own quirk (surfaced from
// original_source/src/Archiver.cxx and recorded in SPEC_FULL.md §12) of
// resetting prefix and max-slice-size to their defaults before a profile is
// re-read, so a short profile missing P/S lines doesn't inherit a previous
// run's values.
package profile

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"emperror.dev/errors"

	"github.com/sliceback/sliceback/internal/config"
)

// Tags of the profile grammar, one per non-blank line: "<tag> <payload>".
const (
	tagTarget   = "M"
	tagPrefix   = "P"
	tagSlice    = "S"
	tagChange   = "C"
	tagCompress = "Z"
	tagInclude  = "I"
	tagExclude  = "E"
)

// unlimitedSentinel is the reserved "S" payload meaning "no size cap".
const unlimitedSentinel = -1

// Load reads a profile file at path into a *config.Config, applying the
// ambient struct-tag defaults first and then the profile's directives, per
// spec.md §6.
func Load(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIff(err, "profile: failed to open '%s'", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the profile grammar from r into a fresh *config.Config.
func Parse(r io.Reader) (*config.Config, error) {
	c, err := config.New()
	if err != nil {
		return nil, err
	}
	// Revert to defaults explicitly, matching kbackup's behavior of
	// resetting prefix/max-slice-MB before applying a (possibly partial)
	// profile, rather than relying on the zero value of an untouched field.
	c.FilePrefix = "backup"
	c.MaxSliceMegabytes = 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		tag, payload, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}

		switch tag {
		case tagTarget:
			c.Target = payload
		case tagPrefix:
			c.FilePrefix = payload
		case tagSlice:
			n, err := strconv.Atoi(payload)
			if err != nil {
				return nil, errors.WrapIff(err, "profile: invalid S payload %q", payload)
			}
			if n == unlimitedSentinel {
				c.MaxSliceMegabytes = 0
			} else {
				c.MaxSliceMegabytes = int64(n)
			}
		case tagChange:
			c.MediaNeedsChange = payload == "1"
		case tagCompress:
			c.CompressFiles = payload == "1"
		case tagInclude:
			c.Includes = append(c.Includes, payload)
		case tagExclude:
			c.Excludes = append(c.Excludes, payload)
		default:
			// Unknown tags are ignored, per spec.md §6.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapIf(err, "profile: failed to read profile")
	}
	return c, nil
}
