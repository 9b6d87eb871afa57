// Package capacity implements the Capacity Probe: querying filesystem free
// space and deriving the byte budget for the slice currently being written.
package capacity

import (
	"emperror.dev/errors"
	"golang.org/x/sys/unix"
)

// FormatMax is the upper bound this implementation's tar writer can address
// for a single slice. archive/tar has no 32-bit envelope limitation the way
// the legacy KDE/Qt3 tool did (its UINT_MAX ceiling came from QIODevice), but
// we still cap slices at this value so a single slice can never overflow an
// int64 byte count passed around the rest of the pipeline.
const FormatMax int64 = 1<<63 - 1

// Usage is the result of a filesystem free-space query.
type Usage struct {
	// Total is the total size of the filesystem containing Path, in bytes.
	Total int64
	// Available is the number of bytes available to an unprivileged user.
	Available int64
}

// FreeSpace returns the total and available bytes of the filesystem
// containing path, computed as f_blocks*f_frsize and f_bavail*f_frsize per
// POSIX statvfs semantics. Returns a wrapped error if the query fails; the
// caller should treat that as "unknown" and fall back to FormatMax.
func FreeSpace(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, errors.WrapIff(err, "capacity: failed to statfs '%s'", path)
	}
	// Bsize on Linux's statfs_t plays the role of POSIX's f_frsize.
	frsize := int64(st.Bsize)
	return Usage{
		Total:     int64(st.Blocks) * frsize,
		Available: int64(st.Bavail) * frsize,
	}, nil
}

// Effective computes the byte budget permitted for the next slice, per the
// rules in §4.1:
//
//  1. if target is local, cap is the available bytes on target
//  2. otherwise cap is 90% of the available bytes on scratch (the slice is
//     staged there before being handed to a Sink)
//  3. cap never exceeds FormatMax
//  4. if maxSliceMB is > 0, cap never exceeds maxSliceMB*2^20
//
// A failed probe is treated as "unknown" and falls back to FormatMax for
// that step, per the ConfigError/FilesystemQueryError disposition in §7.
func Effective(targetIsLocal bool, target, scratch string, maxSliceMB int64) int64 {
	var cap_ int64
	var usage Usage
	var err error

	if targetIsLocal {
		usage, err = FreeSpace(target)
	} else {
		usage, err = FreeSpace(scratch)
	}

	if err != nil {
		cap_ = FormatMax
	} else if targetIsLocal {
		cap_ = usage.Available
	} else {
		cap_ = usage.Available * 9 / 10
	}

	if cap_ > FormatMax || cap_ < 0 {
		cap_ = FormatMax
	}

	if maxSliceMB > 0 {
		max := maxSliceMB * 1024 * 1024
		if max < cap_ {
			cap_ = max
		}
	}

	return cap_
}
